package soundbank

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aweris/soundbank/internal/metrics"
)

// fallback brings the bank directory up to date from the git mirror and
// reloads it as a whole when anything changed. There is no per-file
// reconciliation on this path.
func (b *Bank) fallback(ctx context.Context, log *zap.Logger, started time.Time) func() outcome {
	log = log.With(zap.String("mirror", b.mirror.URL()))
	b.display.Show("Syncing audio repository...")

	changed, err := b.updateMirror(ctx, log)
	if err != nil {
		metrics.RecordSync(SourceMirror, false, time.Since(started))
		return failed(err.err, err.message)
	}
	metrics.RecordSync(SourceMirror, true, time.Since(started))

	if !changed {
		log.Info("mirror up to date")
		return func() outcome {
			return outcome{report: Report{Source: SourceMirror}, message: "Audio repository is up to date."}
		}
	}

	removed, perr := b.dir.Prune()
	for _, rel := range removed {
		log.Debug("pruned non-media file", zap.String("path", rel))
	}
	if perr != nil {
		log.Warn("prune mirror checkout", zap.Error(perr))
	}

	commit := b.reload(log, true)
	return func() outcome {
		out := commit()
		out.report.Source = SourceMirror
		out.message = out.report.String()
		return out
	}
}

type mirrorError struct {
	err     error
	message string
}

// updateMirror clones or pulls the checkout and reports whether the working
// tree changed. A failed pull leaves whatever git applied on disk and does
// not count as a change.
func (b *Bank) updateMirror(ctx context.Context, log *zap.Logger) (bool, *mirrorError) {
	if !b.mirror.IsRepository() {
		if err := b.mirror.Clone(ctx); err != nil {
			log.Error("clone mirror", zap.Error(err))
			return false, &mirrorError{fmt.Errorf("clone mirror: %w", err), "Failed to clone audio repository."}
		}
		n, err := b.dir.CountFiles()
		if err == nil && n == 0 {
			log.Info("empty checkout, forcing checkout of HEAD")
			if err := b.mirror.Checkout(ctx); err != nil {
				log.Warn("checkout mirror", zap.Error(err))
			}
		}
		return true, nil
	}

	needs, err := b.mirror.NeedsPull(ctx)
	if err != nil {
		log.Error("check mirror updates", zap.Error(err))
		return false, &mirrorError{fmt.Errorf("check mirror updates: %w", err), "Failed to pull audio repository updates."}
	}
	if !needs {
		return false, nil
	}
	if err := b.mirror.Pull(ctx); err != nil {
		log.Error("pull mirror", zap.Error(err))
		return false, &mirrorError{fmt.Errorf("pull mirror: %w", err), "Failed to pull audio repository updates."}
	}
	return true, nil
}
