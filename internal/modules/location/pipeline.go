package location

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sbw-site/geotrack/internal/models"
	"github.com/sbw-site/geotrack/internal/pkg/apperr"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Inserter is the persistence the pipeline needs.
type Inserter interface {
	BulkInsert(ctx context.Context, rows []models.LocationData) error
}

// Ack is sent back to the submitting session.
type Ack struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is the outcome of one batch.
type Result struct {
	Ack Ack
	// Broadcast holds the raw batch to relay to other sessions. It is nil
	// unless the batch was persisted.
	Broadcast any
	Saved     int
	Err       error
}

// OK reports whether the batch was persisted.
func (r Result) OK() bool { return r.Err == nil }

// Pipeline validates, timestamps and persists update_location batches.
type Pipeline struct {
	store Inserter
	loc   *time.Location
	now   func() time.Time
	log   *zap.Logger
}

func NewPipeline(store Inserter, loc *time.Location, log *zap.Logger) *Pipeline {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{store: store, loc: loc, now: time.Now, log: log}
}

// Ingest processes one batch from session sid. The batch is all or
// nothing: the first invalid or unparseable element aborts it before
// anything is written.
func (p *Pipeline) Ingest(ctx context.Context, sid string, payload any) Result {
	arrival := p.now().In(p.loc)

	items, err := decodeBatch(payload)
	if err != nil {
		return p.fail(sid, arrival, err)
	}

	rows := make([]models.LocationData, 0, len(items))
	for i, item := range items {
		rp, err := decodeItem(i, item)
		if err != nil {
			return p.fail(sid, arrival, err)
		}
		row, err := rp.toModel(sid, arrival)
		if err != nil {
			return p.fail(sid, arrival, err)
		}
		rows = append(rows, row)
	}

	if err := p.store.BulkInsert(ctx, rows); err != nil {
		return p.fail(sid, arrival, err)
	}

	p.log.Info("location batch saved", zap.String("sid", sid), zap.Int("count", len(rows)))
	return Result{
		Ack: Ack{
			Status:    StatusSuccess,
			Message:   fmt.Sprintf("%d location records saved successfully", len(rows)),
			Timestamp: arrival,
		},
		Broadcast: payload,
		Saved:     len(rows),
	}
}

func (p *Pipeline) fail(sid string, arrival time.Time, err error) Result {
	p.log.Warn("location batch rejected",
		zap.String("sid", sid),
		zap.String("kind", string(apperr.KindOf(err))),
		zap.Error(err),
	)
	return Result{
		Ack: Ack{
			Status:    StatusError,
			Message:   apperr.Message(err),
			Timestamp: arrival,
		},
		Err: err,
	}
}
