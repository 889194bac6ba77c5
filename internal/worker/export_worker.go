// Package worker consumes queued export requests and writes the files.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"retailcast/internal/amqp"
	"retailcast/internal/cache"
	"retailcast/internal/export"
	applog "retailcast/internal/log"
)

// Writer is the part of export.Service the worker needs.
type Writer interface {
	Write(ctx context.Context, username string, formats []export.Format, rec export.Record) ([]string, error)
}

// ExportWorker handles ExportRequestMessages. Message IDs already written
// are remembered for a while so broker redeliveries do not duplicate work.
type ExportWorker struct {
	writer Writer
	seen   *cache.LRUCache[struct{}]
	logger *slog.Logger
}

func NewExportWorker(writer Writer, logger *slog.Logger) *ExportWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportWorker{
		writer: writer,
		seen:   cache.NewLRUCache[struct{}](1024, time.Hour),
		logger: logger,
	}
}

// Handle writes every requested format. An error leaves the message for redelivery.
func (w *ExportWorker) Handle(ctx context.Context, msg *amqp.ExportRequestMessage) error {
	if _, done := w.seen.Get(msg.ID); done && msg.ID != "" {
		w.logger.InfoContext(ctx, "Skipping duplicate export request", applog.FieldMessageID, msg.ID)
		return nil
	}

	formats := make([]export.Format, 0, len(msg.Formats))
	for _, f := range msg.Formats {
		parsed, err := export.ParseFormats(f)
		if err != nil {
			// Retrying cannot fix an unknown format.
			w.logger.ErrorContext(ctx, "Dropping export request", applog.FieldMessageID, msg.ID, applog.FieldError, err)
			return nil
		}
		formats = append(formats, parsed...)
	}

	paths, err := w.writer.Write(ctx, msg.Username, formats, export.FromMessageFields(msg.Fields))
	if err != nil {
		return fmt.Errorf("write export %s: %w", msg.ID, err)
	}
	if msg.ID != "" {
		w.seen.Set(msg.ID, struct{}{})
	}

	w.logger.InfoContext(ctx, "Export request completed",
		applog.FieldMessageID, msg.ID,
		applog.FieldUsername, msg.Username,
		"files", len(paths),
		"queued_for", time.Since(msg.Timestamp).Round(time.Millisecond))
	return nil
}

// Cache exposes the dedup cache for periodic cleanup.
func (w *ExportWorker) Cache() cache.Cleaner {
	return w.seen
}
