package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/Rrens/bloombuddy/internal/localstore"
	"github.com/rs/zerolog/log"
)

// DefaultOutboxCapacity bounds the number of queued messages
const DefaultOutboxCapacity = 100

// Sender delivers one queued entry
type Sender func(ctx context.Context, entry domain.OutboxEntry) error

// FailedEntry is a queued entry whose delivery failed during a drain
type FailedEntry struct {
	Entry    domain.OutboxEntry
	Err      error
	Requeued bool
}

// DrainReport summarizes one drain pass
type DrainReport struct {
	Delivered   int
	Requeued    int
	Failed      []FailedEntry
	Interrupted bool
}

// Outbox is a durable FIFO of user messages waiting for connectivity
type Outbox struct {
	store    localstore.Store
	capacity int
	maxAge   time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries []domain.OutboxEntry
}

// OutboxOption configures an Outbox
type OutboxOption func(*Outbox)

// WithCapacity bounds the queue; the oldest entries are evicted first
func WithCapacity(n int) OutboxOption {
	return func(o *Outbox) {
		o.capacity = n
	}
}

// WithMaxAge evicts entries older than d. Zero disables age eviction.
func WithMaxAge(d time.Duration) OutboxOption {
	return func(o *Outbox) {
		o.maxAge = d
	}
}

// WithOutboxClock overrides the clock used for age eviction
func WithOutboxClock(now func() time.Time) OutboxOption {
	return func(o *Outbox) {
		o.now = now
	}
}

// NewOutbox creates an empty outbox; call Load to restore persisted entries
func NewOutbox(store localstore.Store, opts ...OutboxOption) *Outbox {
	o := &Outbox{
		store:    store,
		capacity: DefaultOutboxCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Load restores the queue from the local store. A corrupt record is discarded
// and deleted.
func (o *Outbox) Load(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	data, err := o.store.Get(ctx, localstore.OutboxKey)
	if errors.Is(err, localstore.ErrNotFound) {
		o.entries = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read offline queue: %w", err)
	}

	entries, err := decodeOutbox(data, o.now())
	if err != nil {
		log.Warn().Err(err).Msg("discarding corrupt offline queue")
		if err := o.store.Delete(ctx, localstore.OutboxKey); err != nil {
			log.Warn().Err(err).Msg("failed to delete corrupt offline queue")
		}
		o.entries = nil
		return nil
	}

	pruned := o.prune(entries)
	if len(pruned) != len(entries) {
		if err := o.persist(ctx, pruned); err != nil {
			return fmt.Errorf("failed to persist offline queue: %w", err)
		}
	}
	o.entries = pruned

	if len(pruned) > 0 {
		log.Info().Int("queued", len(pruned)).Msg("restored offline queue")
	}
	return nil
}

// Enqueue appends a copy of m. The new queue is persisted before it becomes
// live, so a failed write leaves the queue as it was and is returned.
func (o *Outbox) Enqueue(ctx context.Context, m domain.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	next := make([]domain.OutboxEntry, 0, len(o.entries)+1)
	next = append(next, o.entries...)
	next = append(next, domain.NewOutboxEntry(m))
	next = o.prune(next)

	if err := o.persist(ctx, next); err != nil {
		return fmt.Errorf("failed to persist offline queue: %w", err)
	}
	o.entries = next
	return nil
}

// DrainAll delivers every queued entry through send, one at a time in FIFO
// order. The live queue is swapped for an empty one before the first send, so
// entries enqueued meanwhile are not part of this pass. Failed entries go back
// to the tail unless the failure is permanent. ErrOffline or a finished
// context stops the pass and requeues the rest in order.
func (o *Outbox) DrainAll(ctx context.Context, send Sender) (DrainReport, error) {
	var report DrainReport

	o.mu.Lock()
	snapshot := o.entries
	if len(snapshot) == 0 {
		o.mu.Unlock()
		return report, nil
	}
	if err := o.persist(ctx, nil); err != nil {
		o.mu.Unlock()
		return report, fmt.Errorf("failed to clear offline queue: %w", err)
	}
	o.entries = nil
	o.mu.Unlock()

	var requeue []domain.OutboxEntry

	for i, entry := range snapshot {
		if ctx.Err() != nil {
			requeue = append(requeue, snapshot[i:]...)
			report.Interrupted = true
			break
		}

		err := send(ctx, entry)
		if err == nil {
			report.Delivered++
			continue
		}

		log.Warn().Err(err).Time("queued_at", entry.Timestamp).Msg("failed to deliver queued message")

		if errors.Is(err, ErrOffline) || ctx.Err() != nil {
			report.Failed = append(report.Failed, FailedEntry{Entry: entry, Err: err, Requeued: true})
			requeue = append(requeue, snapshot[i:]...)
			report.Interrupted = true
			break
		}

		if IsPermanent(err) {
			report.Failed = append(report.Failed, FailedEntry{Entry: entry, Err: err})
			continue
		}

		report.Failed = append(report.Failed, FailedEntry{Entry: entry, Err: err, Requeued: true})
		requeue = append(requeue, entry)
	}

	report.Requeued = len(requeue)
	if len(requeue) == 0 {
		return report, nil
	}

	// Persist with a fresh context: the drain context may be the reason we stopped.
	if err := o.appendTail(context.WithoutCancel(ctx), requeue); err != nil {
		return report, err
	}
	return report, nil
}

// Len returns the number of queued entries
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

// Entries returns a copy of the queue, oldest first
func (o *Outbox) Entries() []domain.OutboxEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.OutboxEntry(nil), o.entries...)
}

func (o *Outbox) appendTail(ctx context.Context, entries []domain.OutboxEntry) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	next := make([]domain.OutboxEntry, 0, len(o.entries)+len(entries))
	next = append(next, o.entries...)
	next = append(next, entries...)
	next = o.prune(next)

	if err := o.persist(ctx, next); err != nil {
		// Keep them in memory so they are not lost for this process.
		o.entries = next
		return fmt.Errorf("failed to persist requeued messages: %w", err)
	}
	o.entries = next
	return nil
}

// prune applies age and capacity eviction. Callers hold o.mu.
func (o *Outbox) prune(entries []domain.OutboxEntry) []domain.OutboxEntry {
	if o.maxAge > 0 {
		cutoff := o.now().Add(-o.maxAge)
		kept := entries[:0:0]
		for _, e := range entries {
			if e.Timestamp.Before(cutoff) {
				continue
			}
			kept = append(kept, e)
		}
		if expired := len(entries) - len(kept); expired > 0 {
			log.Warn().Int("expired", expired).Dur("max_age", o.maxAge).Msg("dropping expired offline messages")
		}
		entries = kept
	}

	if o.capacity > 0 && len(entries) > o.capacity {
		evicted := len(entries) - o.capacity
		log.Warn().Int("evicted", evicted).Int("capacity", o.capacity).Msg("offline queue full, dropping oldest messages")
		entries = append([]domain.OutboxEntry(nil), entries[evicted:]...)
	}
	return entries
}

func (o *Outbox) persist(ctx context.Context, entries []domain.OutboxEntry) error {
	if entries == nil {
		entries = []domain.OutboxEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return o.store.Set(ctx, localstore.OutboxKey, data)
}

// decodeOutbox parses a stored queue with the same rules as decodeHistory:
// a wrong role or empty content rejects the whole record, a missing or
// unreadable timestamp becomes loadedAt.
func decodeOutbox(data []byte, loadedAt time.Time) ([]domain.OutboxEntry, error) {
	var stored []storedMessage
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, errors.New("stored queue is not an array")
	}

	entries := make([]domain.OutboxEntry, 0, len(stored))
	for i, sm := range stored {
		if sm.Role != domain.RoleUser || sm.Content == "" {
			return nil, fmt.Errorf("entry %d is malformed", i)
		}
		ts, err := time.Parse(time.RFC3339Nano, sm.Timestamp)
		if err != nil {
			ts = loadedAt
		}
		entries = append(entries, domain.OutboxEntry{Role: sm.Role, Content: sm.Content, Timestamp: ts.UTC()})
	}
	return entries, nil
}
