// Package audit records every command applied to a map room.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kasuganosora/mvabs/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry is one command applied through the command surface.
type Entry struct {
	TraceID  string
	MapID    int
	UnitID   *int64
	Action   string
	Request  interface{}
	Response interface{}
	Err      error
	IP       string
	Duration time.Duration
}

// Options tunes the batching worker. Zero values use the defaults.
type Options struct {
	Queue    int
	Batch    int
	Interval time.Duration
}

func (o *Options) fill() {
	if o.Queue <= 0 {
		o.Queue = 1024
	}
	if o.Batch <= 0 {
		o.Batch = 100
	}
	if o.Interval <= 0 {
		o.Interval = 2 * time.Second
	}
}

// Service writes entries asynchronously in batches. Log never blocks the
// caller; entries are dropped when the queue is full.
type Service struct {
	db     *gorm.DB
	opts   Options
	ch     chan *model.AuditLog
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates a Service and starts its worker.
func New(db *gorm.DB, opts Options, logger *zap.Logger) *Service {
	opts.fill()
	svc := &Service{
		db:     db,
		opts:   opts,
		ch:     make(chan *model.AuditLog, opts.Queue),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues e. It reports whether the entry was accepted.
func (svc *Service) Log(e Entry) bool {
	select {
	case <-svc.stopCh:
		return false
	default:
	}
	rec := &model.AuditLog{
		TraceID:    e.TraceID,
		MapID:      e.MapID,
		UnitID:     e.UnitID,
		Action:     e.Action,
		Request:    toJSON(e.Request),
		Response:   toJSON(e.Response),
		IP:         e.IP,
		DurationMs: int(e.Duration / time.Millisecond),
	}
	if e.Err != nil {
		rec.Error = e.Err.Error()
	}
	select {
	case svc.ch <- rec:
		return true
	default:
		svc.logger.Warn("audit queue full, dropping entry",
			zap.String("action", e.Action), zap.Int("map_id", e.MapID))
		return false
	}
}

func toJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// Stop writes what is queued and waits for the worker to exit. Safe to call
// more than once.
func (svc *Service) Stop(_ context.Context) {
	svc.once.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(svc.opts.Interval)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, svc.opts.Batch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.CreateInBatches(batch, svc.opts.Batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-svc.ch:
			batch = append(batch, rec)
			if len(batch) >= svc.opts.Batch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case rec := <-svc.ch:
					batch = append(batch, rec)
				default:
					flush()
					return
				}
			}
		}
	}
}
