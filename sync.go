package soundbank

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/aweris/soundbank/internal/metrics"
	"github.com/aweris/soundbank/internal/store"
)

// Synchronize starts a background pass that reconciles the bank with its
// manifest source, or with the git mirror when the manifest is unavailable.
// It returns nil when a synchronize or refresh is already outstanding.
func (b *Bank) Synchronize(ctx context.Context) *Task {
	return b.start(ctx, KindSync, b.synchronize)
}

// localAsset is the part of an indexed asset a background pass may look at.
type localAsset struct {
	asset    *Asset
	filename string
	hash     string
}

// syncPlan is the diff between the manifest and the index at pass start.
type syncPlan struct {
	records []Record      // valid records, last one wins per name
	remove  []*Asset      // indexed assets the manifest no longer lists
	fetch   []fetchItem   // records to download or copy
	stale   []store.Entry // unindexed files the manifest does not list
}

type fetchItem struct {
	rec      Record
	copyFrom string // path of a local file with the same content
}

type fetchResult struct {
	rec     Record
	asset   *Asset
	copied  bool
	written bool // file is in place even if it did not decode
	err     error
}

func (b *Bank) synchronize(ctx context.Context) func() outcome {
	started := time.Now()
	log := b.log.With(zap.String("sync_id", uuid.NewString()))
	b.display.Show("Syncing audio bank...")

	if b.source == nil {
		if b.mirror != nil {
			return b.fallback(ctx, log, started)
		}
		return failed(ErrNoSource, "")
	}

	records, err := b.source.List(ctx)
	if err != nil {
		log.Warn("fetch manifest", zap.Error(err))
		metrics.RecordSync(SourceManifest, false, time.Since(started))
		if b.mirror != nil {
			return b.fallback(ctx, log, started)
		}
		return failed(fmt.Errorf("fetch manifest: %w", err), "Failed to fetch audio manifest.")
	}

	plan := b.plan(log, records)
	b.saveManifest(log, plan.records)

	log.Info("manifest fetched",
		zap.Int("records", len(plan.records)),
		zap.Int("fetch", len(plan.fetch)),
		zap.Int("remove", len(plan.remove)),
		zap.Int("stale", len(plan.stale)))

	results := b.fetchAll(ctx, log, plan.fetch)

	return func() outcome {
		report, remove := b.applySync(log, plan, results)
		metrics.RecordSync(SourceManifest, true, time.Since(started))
		log.Info("sync applied",
			zap.Int("added", report.Added),
			zap.Int("changed", report.Changed),
			zap.Int("removed", report.Removed),
			zap.Int("failed", report.Failed))
		return outcome{report: report, message: report.String(), remove: remove}
	}
}

func failed(err error, message string) func() outcome {
	return func() outcome {
		return outcome{err: err, message: message}
	}
}

// snapshot copies what a background pass needs to know about the index.
func (b *Bank) snapshot() map[string]localAsset {
	b.mu.RLock()
	defer b.mu.RUnlock()

	local := make(map[string]localAsset, b.idx.len())
	for name, a := range b.idx.byName {
		local[name] = localAsset{asset: a, filename: a.Filename(), hash: a.Hash}
	}
	return local
}

func (b *Bank) plan(log *zap.Logger, manifest []Record) syncPlan {
	var plan syncPlan

	want := make(map[string]Record, len(manifest))
	order := make([]string, 0, len(manifest))
	for _, rec := range manifest {
		rec, err := sanitize(rec)
		if err != nil {
			log.Warn("skip record", zap.Error(err))
			continue
		}
		if _, dup := want[rec.Name]; dup {
			log.Warn("duplicate record name, last one wins", zap.String("name", rec.Name))
		} else {
			order = append(order, rec.Name)
		}
		want[rec.Name] = rec
	}
	for _, name := range order {
		plan.records = append(plan.records, want[name])
	}

	local := b.snapshot()
	wantFiles := make(map[string]bool, len(want))
	for _, rec := range want {
		wantFiles[rec.Filename()] = true
	}

	// Local files that stay as they are can seed copies of the same content.
	seeds := make(map[string]string)
	for name, la := range local {
		rec, ok := want[name]
		if !ok {
			plan.remove = append(plan.remove, la.asset)
			continue
		}
		if rec.Hash == la.hash && rec.Filename() == la.filename {
			seeds[la.hash] = la.asset.Path
		}
	}

	for _, rec := range plan.records {
		if la, ok := local[rec.Name]; ok && la.hash == rec.Hash && la.filename == rec.Filename() {
			continue
		}
		plan.fetch = append(plan.fetch, fetchItem{rec: rec, copyFrom: seeds[rec.Hash]})
	}

	indexedFiles := make(map[string]bool, len(local))
	for _, la := range local {
		indexedFiles[la.filename] = true
	}
	if b.dir.Exists() {
		entries, err := b.dir.Scan()
		if err != nil {
			log.Warn("scan bank dir", zap.Error(err))
		}
		for _, e := range entries {
			if !wantFiles[e.Filename()] && !indexedFiles[e.Filename()] {
				plan.stale = append(plan.stale, e)
			}
		}
	}
	return plan
}

func (b *Bank) fetchAll(ctx context.Context, log *zap.Logger, items []fetchItem) []fetchResult {
	if len(items) == 0 {
		return nil
	}

	var completed atomic.Int64
	total := len(items)
	b.display.Show(fmt.Sprintf("Downloading 0/%d", total))

	p := pool.NewWithResults[fetchResult]().WithMaxGoroutines(b.concurrency)
	for _, item := range items {
		p.Go(func() fetchResult {
			res := b.fetch(ctx, log, item)
			b.display.Show(fmt.Sprintf("Downloading %d/%d", completed.Add(1), total))
			return res
		})
	}
	return p.Wait()
}

// fetch writes one record into the bank directory and decodes it. The file
// only replaces an existing one after its hash matched the record.
func (b *Bank) fetch(ctx context.Context, log *zap.Logger, item fetchItem) fetchResult {
	rec := item.rec
	filename := rec.Filename()
	log = log.With(zap.String("filename", filename), zap.String("hash", rec.Hash))
	res := fetchResult{rec: rec}

	verify := func(hash string) error {
		if hash != rec.Hash {
			return fmt.Errorf("%s: got %s: %w", filename, hash, ErrHashMismatch)
		}
		return nil
	}

	var size int64
	var err error
	if item.copyFrom != "" {
		_, size, err = b.dir.CopyFrom(item.copyFrom, filename, verify)
		if err == nil {
			res.copied = true
		} else {
			log.Debug("local copy failed, downloading", zap.Error(err))
		}
	}
	if !res.copied {
		_, size, err = b.dir.WriteAtomic(filename, func(w io.Writer) error {
			return b.source.Download(ctx, rec, w)
		}, verify)
	}
	if err != nil {
		metrics.RecordTransfer("failed", 0)
		log.Warn("download failed", zap.Error(err))
		res.err = err
		return res
	}

	if res.copied {
		metrics.RecordTransfer("copied", size)
	} else {
		metrics.RecordTransfer("downloaded", size)
	}
	res.written = true

	res.asset, res.err = b.load(store.Entry{
		Name:      rec.Name,
		Extension: rec.Extension,
		Path:      b.dir.FilePath(filename),
	})
	if res.err != nil {
		log.Warn("decode failed", zap.Error(res.err))
	}
	return res
}

// applySync runs under the write lock. It returns the report and the files
// to delete once the lock is released.
func (b *Bank) applySync(log *zap.Logger, plan syncPlan, results []fetchResult) (Report, []string) {
	report := Report{Source: SourceManifest}
	var remove []string

	for _, a := range plan.remove {
		if b.idx.get(a.Name) != a {
			continue
		}
		b.evictLocked(a)
		remove = append(remove, a.Filename())
		report.Removed++
	}

	for _, e := range plan.stale {
		remove = append(remove, e.Filename())
		report.Removed++
	}

	for _, res := range results {
		old := b.idx.get(res.rec.Name)
		path := b.dir.FilePath(res.rec.Filename())

		switch {
		case res.asset != nil:
			if old != nil {
				b.evictLocked(old)
				if old.Path != path {
					remove = append(remove, old.Filename())
				}
				report.Changed++
			} else {
				report.Added++
			}
			b.idx.add(res.asset)
			report.Loaded++
			if res.copied {
				report.Copied++
			} else {
				report.Downloaded++
			}
		case res.written:
			// The file on disk is no longer what old was decoded from.
			if old != nil {
				b.evictLocked(old)
				if old.Path != path {
					remove = append(remove, old.Filename())
				}
			}
			report.Failed++
		default:
			if old != nil {
				log.Debug("kept previous version", zap.String("name", old.Name), zap.String("hash", old.Hash))
			}
			report.Failed++
		}
	}
	return report, remove
}
