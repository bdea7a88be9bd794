package engine

import (
	"context"

	"drivemigrate/internal/drive"
	"drivemigrate/internal/logger"
	"drivemigrate/internal/model"
	"drivemigrate/internal/store"

	"go.uber.org/zap"
)

// walker holds the state of one job execution. The folder map lives and dies
// with the run: a retried job starts from an empty map.
type walker struct {
	jobID string
	src   drive.Client
	dst   drive.Client
	rec   Recorder

	folderMap map[string]string // source folder id -> created destination id

	transferred int
	failed      int
	skipped     int
	bytes       int64
	errorLog    []model.ErrorEntry
}

func (w *walker) noProgress() bool {
	return w.transferred == 0 && w.failed == 0 && w.skipped == 0
}

// transferFile moves one file into an already-created destination folder
// (or the destination root when destParentID is empty). Failure is recorded
// and the walk moves on to the next sibling.
func (w *walker) transferFile(ctx context.Context, item drive.Item, destParentID string) {
	if drive.IsSkippable(item.MIMEType) {
		w.skipped++
		logger.Log.Debug("skipped",
			zap.String("job", w.jobID),
			zap.String("file", item.Name),
			zap.String("mime_type", item.MIMEType))
		w.flush()
		return
	}

	content, err := w.src.Fetch(ctx, item)
	if err != nil {
		w.fail(item.Name, err)
		return
	}

	if _, err := w.dst.Upload(ctx, content, destParentID); err != nil {
		w.fail(item.Name, err)
		return
	}

	w.transferred++
	w.bytes += int64(len(content.Data))

	logger.Log.Info("transferred",
		zap.String("job", w.jobID),
		zap.String("file", content.Name))

	w.flush()
}

// transferFolder mirrors the folder at the destination, then walks its
// children. The destination folder always exists before any child write.
// A create or listing failure skips the whole subtree and counts once.
func (w *walker) transferFolder(ctx context.Context, item drive.Item, destParentID string) {
	destID, err := w.dst.CreateFolder(ctx, item.Name, destParentID)
	if err != nil {
		w.fail(item.Name, err)
		return
	}

	w.folderMap[item.ID] = destID

	logger.Log.Info("created folder",
		zap.String("job", w.jobID),
		zap.String("folder", item.Name))

	w.flush()

	children, err := w.listAll(ctx, item.ID)
	if err != nil {
		w.fail(item.Name, err)
		return
	}

	for _, child := range children {
		if ctx.Err() != nil {
			return
		}

		if child.IsFolder() {
			w.transferFolder(ctx, child, destID)
		} else {
			w.transferFile(ctx, child, destID)
		}
	}
}

// listAll drains every continuation token of a folder before any child is
// processed.
func (w *walker) listAll(ctx context.Context, folderID string) ([]drive.Item, error) {
	var items []drive.Item

	pageToken := ""
	for {
		listing, err := w.src.ListChildren(ctx, folderID, pageToken)
		if err != nil {
			return nil, err
		}

		items = append(items, listing.Items...)

		if listing.NextToken == "" {
			return items, nil
		}
		pageToken = listing.NextToken
	}
}

func (w *walker) fail(itemName string, err error) {
	w.failed++
	w.errorLog = append(w.errorLog, model.ErrorEntry{
		ItemName: itemName,
		Message:  err.Error(),
	})

	logger.Log.Warn("transfer failed",
		zap.String("job", w.jobID),
		zap.String("item", itemName),
		zap.Error(err))

	w.flush()
}

func (w *walker) progress() store.JobUpdate {
	transferred, failed, skipped := w.transferred, w.failed, w.skipped
	bytes := w.bytes

	return store.JobUpdate{
		TransferredCount: &transferred,
		FailedCount:      &failed,
		SkippedCount:     &skipped,
		BytesTransferred: &bytes,
		ErrorLog:         w.errorLog,
	}
}

// flush pushes the latest counters after each unit of work so observers can
// see progress mid-run. Drops are logged, never fatal.
func (w *walker) flush() {
	if err := w.rec.Update(w.jobID, w.progress()); err != nil {
		logger.Log.Warn("progress update dropped",
			zap.String("job", w.jobID),
			zap.Error(err))
	}
}
