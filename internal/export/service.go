package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"retailcast/internal/amqp"
	applog "retailcast/internal/log"
)

// Publisher queues export requests for the worker.
type Publisher interface {
	PublishExportRequest(ctx context.Context, msg *amqp.ExportRequestMessage) error
}

// Recorder keeps a log of written files.
type Recorder interface {
	RecordExport(ctx context.Context, username, format, path string) error
}

// Result describes what Request did. Paths is empty when queued.
type Result struct {
	Queued bool
	Paths  []string
}

// Service writes exports inline, or hands them to the queue when a
// publisher is configured.
type Service struct {
	exporter  *Exporter
	publisher Publisher
	recorder  Recorder
	logger    *slog.Logger
}

// NewService wires the exporter with optional publisher and recorder.
func NewService(exporter *Exporter, publisher Publisher, recorder Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{exporter: exporter, publisher: publisher, recorder: recorder, logger: logger}
}

func (s *Service) Request(ctx context.Context, username string, formats []Format, rec Record) (Result, error) {
	if len(formats) == 0 {
		return Result{}, fmt.Errorf("%w: none requested", ErrUnknownFormat)
	}

	if s.publisher != nil {
		msg := amqp.NewExportRequestMessage(username, formatStrings(formats), toMessageFields(rec))
		err := s.publisher.PublishExportRequest(ctx, msg)
		if err == nil {
			return Result{Queued: true}, nil
		}
		if errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		// The export still happens, just inline.
		s.logger.ErrorContext(ctx, "Failed to queue export, writing inline", applog.FieldError, err, applog.FieldUsername, username)
	}

	paths, err := s.Write(ctx, username, formats, rec)
	if err != nil {
		return Result{}, err
	}
	return Result{Paths: paths}, nil
}

// Write produces every requested file and returns their paths.
func (s *Service) Write(ctx context.Context, username string, formats []Format, rec Record) ([]string, error) {
	name := UserBase(username)
	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		path, err := s.exporter.Write(f, name, rec)
		if err != nil {
			return paths, fmt.Errorf("export %s: %w", f, err)
		}
		paths = append(paths, path)

		if s.recorder != nil {
			if err := s.recorder.RecordExport(ctx, username, string(f), path); err != nil {
				s.logger.WarnContext(ctx, "Failed to record export", applog.FieldError, err, applog.FieldFile, path)
			}
		}
		s.logger.InfoContext(ctx, "Export written", applog.FieldUsername, username, applog.FieldFormat, f, applog.FieldFile, path)
	}
	return paths, nil
}

func formatStrings(formats []Format) []string {
	out := make([]string, len(formats))
	for i, f := range formats {
		out[i] = string(f)
	}
	return out
}

func toMessageFields(rec Record) []amqp.ExportField {
	out := make([]amqp.ExportField, len(rec))
	for i, f := range rec {
		out[i] = amqp.ExportField{Key: f.Key, Value: f.Value}
	}
	return out
}

// FromMessageFields rebuilds a record carried by a queue message.
func FromMessageFields(fields []amqp.ExportField) Record {
	out := make(Record, len(fields))
	for i, f := range fields {
		out[i] = Field{Key: f.Key, Value: f.Value}
	}
	return out
}
