// Package queue delays the firing of after-meal reminders.
package queue

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

var ErrClosed = errors.New("delayer is closed")

// Handler fires the reminder with the given id once its delay is over.
type Handler func(ctx context.Context, reminderID uint) error

// Delayer schedules a reminder to be handed to a Handler after delay.
// Scheduling the same reminder again may or may not cancel the earlier
// delivery; the handler drops deliveries that a later schedule superseded.
type Delayer interface {
	Schedule(ctx context.Context, reminderID uint, delay time.Duration) error
}

// MemoryDelayer keeps pending reminders in process timers. Pending reminders
// are lost on restart; use the AMQP delayer when that matters.
type MemoryDelayer struct {
	handler Handler
	timeout time.Duration

	mu     sync.Mutex
	timers map[uint]*time.Timer
	closed bool
}

func NewMemoryDelayer(handler Handler, timeout time.Duration) *MemoryDelayer {
	return &MemoryDelayer{
		handler: handler,
		timeout: timeout,
		timers:  make(map[uint]*time.Timer),
	}
}

// Schedule replaces any pending timer for the same reminder, so logging two
// meals in a row fires once, after the second one.
func (m *MemoryDelayer) Schedule(_ context.Context, reminderID uint, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if t, ok := m.timers[reminderID]; ok {
		t.Stop()
	}
	m.timers[reminderID] = time.AfterFunc(delay, func() { m.fire(reminderID) })
	return nil
}

func (m *MemoryDelayer) fire(reminderID uint) {
	m.mu.Lock()
	delete(m.timers, reminderID)
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.handler(ctx, reminderID); err != nil {
		log.Printf("fire delayed reminder %d: %v", reminderID, err)
	}
}

// Pending returns the number of reminders waiting for their timer.
func (m *MemoryDelayer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Close stops all pending timers.
func (m *MemoryDelayer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}
