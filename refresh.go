package soundbank

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/aweris/soundbank/internal/store"
)

// RefreshIndex starts a background rescan of the bank directory. Files that
// are not indexed yet are decoded, indexed names whose file is gone are
// evicted. It returns nil when the directory does not exist or when a
// synchronize or refresh is already outstanding.
func (b *Bank) RefreshIndex(ctx context.Context) *Task {
	if !b.dir.Exists() {
		b.log.Info("bank dir does not exist, skipping refresh", zap.String("dir", b.dir.Path()))
		return nil
	}
	return b.start(ctx, KindRefresh, func(ctx context.Context) func() outcome {
		return b.reload(b.log, false)
	})
}

type loadResult struct {
	asset *Asset
	err   error
}

// reload scans the directory and decodes what needs decoding. With full set,
// every file is decoded again and the commit replaces the whole index.
func (b *Bank) reload(log *zap.Logger, full bool) func() outcome {
	entries, err := b.dir.Scan()
	if err != nil {
		return failed(fmt.Errorf("scan %s: %w", b.dir.Path(), err), "")
	}

	// Sorted by filename, so the last file of a logical name wins.
	winners := make(map[string]store.Entry, len(entries))
	for _, e := range entries {
		if prev, dup := winners[e.Name]; dup {
			log.Warn("duplicate clip name, last one wins",
				zap.String("name", e.Name),
				zap.String("skipped", prev.Filename()),
				zap.String("filename", e.Filename()))
		}
		winners[e.Name] = e
	}

	local := b.snapshot()
	var vanished []*Asset
	for name, la := range local {
		if e, ok := winners[name]; !ok || e.Path != la.asset.Path {
			vanished = append(vanished, la.asset)
		}
	}

	var todo []store.Entry
	for _, e := range entries {
		if winners[e.Name] != e {
			continue
		}
		if la, ok := local[e.Name]; ok && !full && la.asset.Path == e.Path {
			continue
		}
		todo = append(todo, e)
	}

	loaded := b.loadAll(log, todo)

	return func() outcome {
		report := Report{Source: SourceLocal}
		if full {
			for _, a := range b.idx.assets() {
				b.evictLocked(a)
			}
		} else {
			for _, a := range vanished {
				if b.idx.get(a.Name) == a {
					b.evictLocked(a)
					report.Removed++
				}
			}
		}

		for _, res := range loaded {
			if res.err != nil {
				report.Failed++
				continue
			}
			if old := b.idx.get(res.asset.Name); old != nil {
				b.evictLocked(old)
				report.Changed++
			} else {
				report.Added++
			}
			b.idx.add(res.asset)
			report.Loaded++
		}

		log.Info("index refreshed",
			zap.Int("loaded", report.Loaded),
			zap.Int("removed", report.Removed),
			zap.Int("failed", report.Failed),
			zap.Bool("full", full))
		report.Total = b.idx.len()
		return outcome{report: report, message: report.String()}
	}
}

func (b *Bank) loadAll(log *zap.Logger, entries []store.Entry) []loadResult {
	if len(entries) == 0 {
		return nil
	}

	var completed atomic.Int64
	total := len(entries)
	p := pool.NewWithResults[loadResult]().WithMaxGoroutines(b.concurrency)
	for _, e := range entries {
		p.Go(func() loadResult {
			a, err := b.load(e)
			if err != nil {
				log.Warn("skip clip", zap.String("filename", e.Filename()), zap.Error(err))
			}
			b.display.Show(fmt.Sprintf("Loading songs... %d/%d", completed.Add(1), total))
			return loadResult{asset: a, err: err}
		})
	}
	return p.Wait()
}
