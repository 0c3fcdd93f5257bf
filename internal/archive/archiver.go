package archive

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lhchen/assistant-realtime/internal/config"
	"github.com/lhchen/assistant-realtime/internal/message"
)

// chatRow is the database representation of a chat envelope.
type chatRow struct {
	MessageID  string
	SenderID   string
	ReceiverID string
	RoomID     string
	Content    string
	SentAt     time.Time
}

// Metrics counts archiver activity.
type Metrics struct {
	Enqueued  int64
	Dropped   int64
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
}

// Archiver consumes chat envelopes and writes them to the chat_messages
// table. It satisfies the dispatcher's Recorder interface.
type Archiver struct {
	cfg    config.ArchiveConfig
	logger *slog.Logger

	db    *pgxpool.Pool
	input chan chatRow

	batch       []chatRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// New creates an Archiver. Call Start before recording envelopes.
func New(cfg config.ArchiveConfig, db *pgxpool.Pool, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		cfg:    cfg,
		logger: logger.With("component", "archiver"),
		db:     db,
		input:  make(chan chatRow, cfg.BufferSize),
		batch:  make([]chatRow, 0, cfg.BatchSize),
	}
}

// Record enqueues a chat envelope for archival. Never blocks; envelopes
// are dropped when the buffer is full.
func (a *Archiver) Record(env *message.Envelope) {
	row := transform(env)

	select {
	case a.input <- row:
		a.batchMu.Lock()
		a.metrics.Enqueued++
		a.batchMu.Unlock()
	default:
		a.batchMu.Lock()
		a.metrics.Dropped++
		a.batchMu.Unlock()
		a.logger.Warn("archive buffer full, dropping message", "message_id", env.ID)
	}
}

// Start begins consuming envelopes and writing batches.
func (a *Archiver) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.flushTicker = time.NewTicker(a.cfg.FlushInterval)

	a.wg.Add(1)
	go a.consumeLoop()

	a.wg.Add(1)
	go a.flushLoop()

	a.logger.Info("archiver started",
		"batch_size", a.cfg.BatchSize,
		"flush_interval", a.cfg.FlushInterval,
	)
	return nil
}

// Stop drains the goroutines and performs a final flush.
func (a *Archiver) Stop(ctx context.Context) error {
	a.logger.Info("stopping archiver")

	if a.cancel != nil {
		a.cancel()
	}
	if a.flushTicker != nil {
		a.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("archiver stopped")
	case <-ctx.Done():
		a.logger.Warn("archiver stop timed out")
	}

	a.flushWith(context.Background())
	return nil
}

// Stats returns current metrics.
func (a *Archiver) Stats() Metrics {
	a.batchMu.Lock()
	defer a.batchMu.Unlock()
	return a.metrics
}

func (a *Archiver) consumeLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case row := <-a.input:
			a.handleRow(row)
		}
	}
}

func (a *Archiver) flushLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.flushTicker.C:
			a.flushWith(a.ctx)
		}
	}
}

func (a *Archiver) handleRow(row chatRow) {
	a.batchMu.Lock()
	a.batch = append(a.batch, row)
	shouldFlush := len(a.batch) >= a.cfg.BatchSize
	a.batchMu.Unlock()

	if shouldFlush {
		a.flushWith(a.ctx)
	}
}

func transform(env *message.Envelope) chatRow {
	content := env.ContentString()
	if content == "" && env.Content != nil {
		if raw, err := json.Marshal(env.Content); err == nil {
			content = string(raw)
		}
	}

	return chatRow{
		MessageID:  env.ID,
		SenderID:   env.SenderID,
		ReceiverID: env.ReceiverID,
		RoomID:     env.RoomID,
		Content:    content,
		SentAt:     env.Timestamp,
	}
}

func (a *Archiver) flushWith(ctx context.Context) {
	a.batchMu.Lock()
	if len(a.batch) == 0 {
		a.batchMu.Unlock()
		return
	}

	batch := a.batch
	a.batch = make([]chatRow, 0, a.cfg.BatchSize)
	a.batchMu.Unlock()

	start := time.Now()

	conflicts, err := a.batchInsert(ctx, batch)
	if err != nil {
		a.logger.Error("batch insert failed", "error", err, "count", len(batch))
		a.batchMu.Lock()
		a.metrics.Errors++
		a.batchMu.Unlock()
		return
	}

	a.batchMu.Lock()
	a.metrics.Inserts += int64(len(batch) - conflicts)
	a.metrics.Conflicts += int64(conflicts)
	a.metrics.Flushes++
	a.batchMu.Unlock()

	a.logger.Debug("flushed chat messages",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

func (a *Archiver) batchInsert(ctx context.Context, rows []chatRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO chat_messages (message_id, sender_id, receiver_id, room_id, content, sent_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (message_id) DO NOTHING
		`, r.MessageID, r.SenderID, nullable(r.ReceiverID), nullable(r.RoomID), r.Content, r.SentAt)
	}

	results := a.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
