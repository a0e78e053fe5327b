package eventing

import (
	"context"
	"sync"
)

const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
)

// DefaultMaxAttempts is how many failed deliveries a record gets before it
// stops being retried.
const DefaultMaxAttempts = 5

type memoryOutboxRecord struct {
	record   OutboxRecord
	status   string
	attempts int
}

// MemoryOutbox is an in-process outbox for demo/testing.
type MemoryOutbox struct {
	mu          sync.Mutex
	records     []*memoryOutboxRecord
	maxAttempts int
}

// NewMemoryOutbox constructs an empty outbox.
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{maxAttempts: DefaultMaxAttempts}
}

// Insert appends an envelope as a pending record.
func (o *MemoryOutbox) Insert(ctx context.Context, env Envelope) (string, error) {
	_ = ctx
	o.mu.Lock()
	defer o.mu.Unlock()
	id := NewEventID()
	o.records = append(o.records, &memoryOutboxRecord{
		record: OutboxRecord{ID: id, Envelope: env},
		status: OutboxStatusPending,
	})
	return id, nil
}

// ListPending returns pending records in insertion order.
func (o *MemoryOutbox) ListPending(ctx context.Context, limit int) ([]OutboxRecord, error) {
	_ = ctx
	o.mu.Lock()
	defer o.mu.Unlock()
	var result []OutboxRecord
	for _, r := range o.records {
		if r.status != OutboxStatusPending {
			continue
		}
		result = append(result, r.record)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// MarkSent marks a record delivered.
func (o *MemoryOutbox) MarkSent(ctx context.Context, id string) error {
	_ = ctx
	o.mu.Lock()
	defer o.mu.Unlock()
	if r := o.find(id); r != nil {
		r.status = OutboxStatusSent
	}
	return nil
}

// MarkFailed counts a failed attempt. The record stays pending until it
// reaches the attempt limit.
func (o *MemoryOutbox) MarkFailed(ctx context.Context, id string) error {
	_ = ctx
	o.mu.Lock()
	defer o.mu.Unlock()
	if r := o.find(id); r != nil {
		r.attempts++
		if r.attempts >= o.maxAttempts {
			r.status = OutboxStatusFailed
		}
	}
	return nil
}

// Status reports a record's status and attempt count.
func (o *MemoryOutbox) Status(id string) (string, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r := o.find(id); r != nil {
		return r.status, r.attempts
	}
	return "", 0
}

// PendingCount returns the number of pending records.
func (o *MemoryOutbox) PendingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	count := 0
	for _, r := range o.records {
		if r.status == OutboxStatusPending {
			count++
		}
	}
	return count
}

func (o *MemoryOutbox) find(id string) *memoryOutboxRecord {
	for _, r := range o.records {
		if r.record.ID == id {
			return r
		}
	}
	return nil
}
