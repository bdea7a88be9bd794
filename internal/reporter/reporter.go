package reporter

import (
	"context"
	"time"

	"drivemigrate/internal/model"
)

// Source is the read side of the job store.
type Source interface {
	Get(id string) (model.Job, error)
}

// Reporter is a stateless read-only projection of the job store. It holds no
// caches, so staleness is bounded only by the store itself; any number of
// readers may poll concurrently.
type Reporter struct {
	src Source
}

func New(src Source) *Reporter {
	return &Reporter{src: src}
}

// Get returns the most recent job snapshot, or store.ErrNotFound for jobs
// that never existed or have expired.
func (r *Reporter) Get(id string) (model.Job, error) {
	return r.src.Get(id)
}

// Watch polls the job at the given interval and emits a snapshot whenever it
// changes. The channel closes after a terminal snapshot, when the job
// disappears, or when ctx is done. Polling and streaming consumers share this
// one contract; transport is the caller's concern.
func (r *Reporter) Watch(ctx context.Context, id string, interval time.Duration) <-chan model.Job {
	ch := make(chan model.Job, 1)

	go func() {
		defer close(ch)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last *model.Job

		emit := func() bool {
			job, err := r.src.Get(id)
			if err != nil {
				return false
			}

			if last == nil || changed(*last, job) {
				select {
				case ch <- job:
				case <-ctx.Done():
					return false
				}
				last = &job
			}

			return !job.Status.Terminal()
		}

		if !emit() {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !emit() {
					return
				}
			}
		}
	}()

	return ch
}

func changed(a, b model.Job) bool {
	return a.Status != b.Status ||
		a.TransferredCount != b.TransferredCount ||
		a.FailedCount != b.FailedCount ||
		a.SkippedCount != b.SkippedCount ||
		a.BytesTransferred != b.BytesTransferred ||
		a.ExpandedCount != b.ExpandedCount ||
		len(a.ErrorLog) != len(b.ErrorLog)
}
