package notify

import (
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

// DefaultTTL is how long a notification stays visible unless replaced.
const DefaultTTL = 3 * time.Second

// Emitter holds at most one active notification. Each Emit replaces the
// previous notification and cancels its pending clear.
type Emitter struct {
	mu       sync.Mutex
	ttl      time.Duration
	current  *domain.Notification
	timer    *time.Timer
	gen      uint64
	onChange func(*domain.Notification)
}

type Option func(*Emitter)

func WithTTL(ttl time.Duration) Option {
	return func(e *Emitter) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithOnChange registers a hook called after every set or clear, outside
// the emitter's lock. A nil argument means the notification was cleared.
func WithOnChange(fn func(*domain.Notification)) Option {
	return func(e *Emitter) {
		e.onChange = fn
	}
}

func NewEmitter(opts ...Option) *Emitter {
	e := &Emitter{ttl: DefaultTTL}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Emitter) Success(message string) domain.Notification {
	return e.Emit(domain.NotificationSuccess, message)
}

func (e *Emitter) Warning(message string) domain.Notification {
	return e.Emit(domain.NotificationWarning, message)
}

func (e *Emitter) Error(message string) domain.Notification {
	return e.Emit(domain.NotificationError, message)
}

// Emit sets the active notification and schedules its expiry.
func (e *Emitter) Emit(kind domain.NotificationType, message string) domain.Notification {
	n := domain.Notification{
		ID:      uuid.NewString(),
		Message: message,
		Type:    kind,
	}

	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	e.current = &n
	e.timer = time.AfterFunc(e.ttl, func() { e.expire(gen) })
	hook := e.onChange
	e.mu.Unlock()

	if hook != nil {
		hook(&n)
	}
	return n
}

// expire clears the notification only if it is still the one gen refers
// to; a timer that fired while being stopped must not wipe a newer one.
func (e *Emitter) expire(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.current == nil {
		e.mu.Unlock()
		return
	}
	e.current = nil
	e.timer = nil
	hook := e.onChange
	e.mu.Unlock()

	if hook != nil {
		hook(nil)
	}
}

// Current returns the active notification, if any.
func (e *Emitter) Current() (domain.Notification, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return domain.Notification{}, false
	}
	return *e.current, true
}

// Stop cancels the pending clear and drops the active notification.
func (e *Emitter) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
	e.current = nil
}
