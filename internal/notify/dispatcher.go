// Package notify turns domain notifications into envelopes and hands them
// to a publisher. Request-path notifications are published in the
// background so callers never wait on the broker; reminders are published
// inline because the job needs to know whether they went out.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"ms-registration/internal/config"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

type Dispatcher struct {
	publisher Publisher
	topics    config.TopicConfig
	timeout   time.Duration
	logger    *logger.Logger
	now       func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(publisher Publisher, topics config.TopicConfig, timeout time.Duration, log *logger.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		publisher: publisher,
		topics:    topics,
		timeout:   timeout,
		logger:    log,
		now:       time.Now,
	}
}

func (d *Dispatcher) RegistrationRecorded(ctx context.Context, n models.RegistrationNotification) error {
	return d.dispatch(ctx, d.topics.Registrations, models.NotificationRegistrationRecorded, n.Email, n)
}

func (d *Dispatcher) WaitlistPromoted(ctx context.Context, n models.PromotionNotification) error {
	return d.dispatch(ctx, d.topics.Promotions, models.NotificationWaitlistPromoted, n.Email, n)
}

// EventReminder publishes synchronously and returns delivery errors.
func (d *Dispatcher) EventReminder(ctx context.Context, n models.ReminderNotification) error {
	return d.deliver(ctx, d.topics.Reminders, models.NotificationEventReminder, n.Email, n)
}

func (d *Dispatcher) EventCancelled(ctx context.Context, n models.EventCancelledNotification) error {
	return d.dispatch(ctx, d.topics.EventCancelled, models.NotificationEventCancelled, n.Email, n)
}

func (d *Dispatcher) encode(kind, email string, payload any) ([]byte, string, error) {
	body, err := json.Marshal(models.NewEnvelope(kind, payload, d.now()))
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", kind, err)
	}
	return body, strings.ToLower(email), nil
}

// acquire registers one in-flight publish, or fails once Close has begun.
func (d *Dispatcher) acquire(kind, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("dispatcher closed, dropping %s for %s", kind, key)
	}
	d.wg.Add(1)
	return nil
}

// deliver publishes inline and returns the broker's error.
func (d *Dispatcher) deliver(ctx context.Context, topic, kind, email string, payload any) error {
	body, key, err := d.encode(kind, email, payload)
	if err != nil {
		return err
	}
	if err := d.acquire(kind, key); err != nil {
		return err
	}
	defer d.wg.Done()

	pubCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.publisher.Publish(pubCtx, topic, key, body); err != nil {
		return fmt.Errorf("publish %s for %s: %w", kind, key, err)
	}
	d.logger.Debug("NOTIFY", fmt.Sprintf("%s delivered to %s", kind, key))
	return nil
}

// dispatch encodes synchronously and publishes asynchronously. Only encoding
// and shutdown errors are returned; delivery failures are logged.
func (d *Dispatcher) dispatch(ctx context.Context, topic, kind, email string, payload any) error {
	body, key, err := d.encode(kind, email, payload)
	if err != nil {
		return err
	}
	if err := d.acquire(kind, key); err != nil {
		return err
	}

	// The request context is usually cancelled as soon as the handler returns.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	go func() {
		defer d.wg.Done()
		defer cancel()
		if err := d.publisher.Publish(pubCtx, topic, key, body); err != nil {
			d.logger.Error("NOTIFY", fmt.Sprintf("%s for %s not delivered: %v", kind, key, err))
			return
		}
		d.logger.Debug("NOTIFY", fmt.Sprintf("%s queued for %s", kind, key))
	}()
	return nil
}

// Close stops accepting notifications and waits for in-flight publishes.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
