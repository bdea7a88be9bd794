package engine

import (
	"context"

	"drivemigrate/internal/drive"
	"drivemigrate/internal/logger"
	"drivemigrate/internal/model"
	"drivemigrate/internal/store"

	"go.uber.org/zap"
)

// Recorder is the slice of the job store the engine needs. Updates to jobs
// that no longer exist are silently dropped by the store, so the engine never
// branches on them.
type Recorder interface {
	Update(id string, upd store.JobUpdate) error
}

// Engine executes one transfer job at a time: it walks the source selection
// sequentially, mirrors folders at the destination before descending into
// them, and pushes counters to the recorder after every item so progress is
// observable mid-run.
type Engine struct {
	rec Recorder
}

func New(rec Recorder) *Engine {
	return &Engine{rec: rec}
}

// Run executes the whole work item on the calling goroutine. Per-item
// failures are recorded and never returned; the only non-nil error is a
// cancellation before any progress was made, which leaves the job eligible
// for a whole-job retry.
func (e *Engine) Run(ctx context.Context, item model.WorkItem, src, dst drive.Client) error {
	running := model.JobStatusRunning
	e.record(item.JobID, store.JobUpdate{Status: &running})

	// Best effort: the root-level total recorded at creation says nothing
	// about the expanded tree, so pre-count it for progress displays.
	if count, size, err := e.CountItems(ctx, src, item.Selection); err == nil {
		e.record(item.JobID, store.JobUpdate{
			ExpandedCount: &count,
			ExpandedBytes: &size,
		})
	} else {
		logger.Log.Warn("pre-count failed",
			zap.String("job", item.JobID),
			zap.Error(err))
	}

	w := &walker{
		jobID:     item.JobID,
		src:       src,
		dst:       dst,
		rec:       e.rec,
		folderMap: make(map[string]string),
		errorLog:  []model.ErrorEntry{},
	}

	for _, sel := range item.Selection {
		if ctx.Err() != nil {
			break
		}

		root := drive.ItemFromSelection(sel)
		if root.IsFolder() {
			w.transferFolder(ctx, root, "")
		} else {
			w.transferFile(ctx, root, "")
		}
	}

	if err := ctx.Err(); err != nil && w.noProgress() {
		return err
	}

	// Partial success is success: the job fails only when nothing at all
	// transferred and at least one item did not.
	status := model.JobStatusCompleted
	if w.transferred == 0 && w.failed > 0 {
		status = model.JobStatusFailed
	}

	upd := w.progress()
	upd.Status = &status
	e.record(item.JobID, upd)

	logger.Log.Info("job finished",
		zap.String("job", item.JobID),
		zap.String("status", string(status)),
		zap.Int("transferred", w.transferred),
		zap.Int("failed", w.failed),
		zap.Int("skipped", w.skipped),
		zap.Int64("bytes", w.bytes))

	return nil
}

// CountItems walks the selection and returns the expanded file count and byte
// total. Folder creation steps are not counted, matching what the transfer
// counters track.
func (e *Engine) CountItems(ctx context.Context, client drive.Client, selection []model.SelectionItem) (int, int64, error) {
	var (
		count int
		size  int64
	)

	var walk func(folderID string) error
	walk = func(folderID string) error {
		pageToken := ""
		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			listing, err := client.ListChildren(ctx, folderID, pageToken)
			if err != nil {
				return err
			}

			for _, child := range listing.Items {
				if child.IsFolder() {
					if err := walk(child.ID); err != nil {
						return err
					}
					continue
				}
				count++
				size += child.Size
			}

			if listing.NextToken == "" {
				return nil
			}
			pageToken = listing.NextToken
		}
	}

	for _, sel := range selection {
		root := drive.ItemFromSelection(sel)
		if root.IsFolder() {
			if err := walk(root.ID); err != nil {
				return 0, 0, err
			}
			continue
		}
		count++
		size += root.Size
	}

	return count, size, nil
}

func (e *Engine) record(jobID string, upd store.JobUpdate) {
	if err := e.rec.Update(jobID, upd); err != nil {
		logger.Log.Warn("progress update dropped",
			zap.String("job", jobID),
			zap.Error(err))
	}
}
