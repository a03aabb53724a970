// Package events implements the fire-and-forget write path for click events
// and snapshot audit records.
//
// Request-serving code emits onto a bounded channel and returns immediately;
// a single background goroutine drains the channel into the relational
// store. A full channel drops the event (counted in Prometheus, logged at
// warn) rather than blocking or retrying inline — a slow audit or click
// write must never delay a redirect or a cache build.
package events

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-commerce-edge/internal/domain"
	"github.com/tbourn/go-commerce-edge/internal/repo"
)

// DefaultBuffer is the channel capacity used when the caller passes <= 0.
const DefaultBuffer = 1024

var (
	// eventsWritten counts events persisted by the background writer.
	eventsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_events_written_total",
			Help: "Total number of background events persisted.",
		},
		[]string{"kind"},
	)

	// eventsDropped counts events discarded because the buffer was full or
	// the write failed. Drops are expected to be rare; alert on rate.
	eventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_events_dropped_total",
			Help: "Total number of background events dropped.",
		},
		[]string{"kind", "reason"},
	)
)

func init() {
	prometheus.MustRegister(eventsWritten, eventsDropped)
}

// envelope is the internal channel payload; exactly one field is set.
type envelope struct {
	click *domain.ClickEvent
	audit *domain.SnapshotAudit
}

// Writer drains emitted events into the database. Construct with NewWriter,
// call Start once, and Close on shutdown to drain what is still buffered.
type Writer struct {
	db      *gorm.DB
	ch      chan envelope
	done    chan struct{}
	timeout time.Duration
}

// NewWriter returns a Writer over db with the given buffer capacity.
func NewWriter(db *gorm.DB, buffer int) *Writer {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Writer{
		db:      db,
		ch:      make(chan envelope, buffer),
		done:    make(chan struct{}),
		timeout: 5 * time.Second,
	}
}

// Start launches the background goroutine. It returns immediately.
func (w *Writer) Start() {
	go w.run()
}

// Close stops accepting events, waits for the buffer to drain, and returns.
func (w *Writer) Close() {
	close(w.ch)
	<-w.done
}

// EmitClick queues a click event plus the matching click_count increment.
// It never blocks; the return value reports whether the event was accepted.
func (w *Writer) EmitClick(ev domain.ClickEvent) bool {
	select {
	case w.ch <- envelope{click: &ev}:
		return true
	default:
		eventsDropped.WithLabelValues("click", "buffer_full").Inc()
		log.Warn().Str("link_id", ev.LinkID).Msg("click event dropped: buffer full")
		return false
	}
}

// EmitAudit queues a snapshot build audit record. It never blocks.
func (w *Writer) EmitAudit(a domain.SnapshotAudit) bool {
	select {
	case w.ch <- envelope{audit: &a}:
		return true
	default:
		eventsDropped.WithLabelValues("audit", "buffer_full").Inc()
		log.Warn().Str("owner_id", a.OwnerID).Str("domain", a.Domain).
			Msg("snapshot audit dropped: buffer full")
		return false
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for env := range w.ch {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		switch {
		case env.click != nil:
			w.writeClick(ctx, env.click)
		case env.audit != nil:
			w.writeAudit(ctx, env.audit)
		}
		cancel()
	}
}

func (w *Writer) writeClick(ctx context.Context, ev *domain.ClickEvent) {
	if err := repo.IncrementClickCount(ctx, w.db, ev.LinkID); err != nil {
		// The event is still worth keeping even when the counter bump fails.
		log.Warn().Err(err).Str("link_id", ev.LinkID).Msg("click count increment failed")
	}
	if err := repo.AppendClick(ctx, w.db, ev); err != nil {
		eventsDropped.WithLabelValues("click", "write_failed").Inc()
		log.Warn().Err(err).Str("link_id", ev.LinkID).Msg("click event write failed")
		return
	}
	eventsWritten.WithLabelValues("click").Inc()
}

func (w *Writer) writeAudit(ctx context.Context, a *domain.SnapshotAudit) {
	if err := repo.AppendAudit(ctx, w.db, a); err != nil {
		eventsDropped.WithLabelValues("audit", "write_failed").Inc()
		log.Warn().Err(err).Str("owner_id", a.OwnerID).Msg("snapshot audit write failed")
		return
	}
	eventsWritten.WithLabelValues("audit").Inc()
}
