package correlation

import (
	"sync"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
	"github.com/tkarvo/sentinel-go/internal/logger"
)

// AlertHandler consumes a newly created alert. Handlers run on the bus
// goroutine and must not block for long.
type AlertHandler func(alert *entities.Alert)

// AlertBus fans newly created alerts out to subscribers (notifications,
// future integrations) without blocking the ingest path. Publish is
// non-blocking: when the buffer is full the alert is dropped with a
// warning rather than stalling a request.
type AlertBus struct {
	ch       chan *entities.Alert
	handlers []AlertHandler
	mu       sync.RWMutex
	stopped  bool
	done     chan struct{}
	stopOnce sync.Once
	log      logger.Logger
}

// NewAlertBus creates a bus with the given buffer size and starts its
// dispatch goroutine.
func NewAlertBus(buffer int, log logger.Logger) *AlertBus {
	if buffer <= 0 {
		buffer = 64
	}
	b := &AlertBus{
		ch:   make(chan *entities.Alert, buffer),
		done: make(chan struct{}),
		log:  log.With(logger.String("component", "alertbus")),
	}
	go b.run()
	return b
}

// Subscribe registers a handler for future alerts.
func (b *AlertBus) Subscribe(handler AlertHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish enqueues an alert for dispatch. Never blocks. Alerts published
// after Stop are dropped; the read lock keeps Stop from closing the
// channel mid-send.
func (b *AlertBus) Publish(alert *entities.Alert) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		b.log.Warn("alert bus stopped, dropping alert",
			logger.Uint64("alert_id", uint64(alert.ID)))
		return
	}
	select {
	case b.ch <- alert:
	default:
		b.log.Warn("alert bus buffer full, dropping alert",
			logger.Uint64("alert_id", uint64(alert.ID)))
	}
}

// Stop shuts the bus down after draining already-queued alerts.
func (b *AlertBus) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		b.mu.Unlock()
		close(b.ch)
		<-b.done
	})
}

func (b *AlertBus) run() {
	defer close(b.done)
	for alert := range b.ch {
		b.dispatch(alert)
	}
}

func (b *AlertBus) dispatch(alert *entities.Alert) {
	b.mu.RLock()
	handlers := make([]AlertHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.safeCall(handler, alert)
	}
}

// safeCall isolates a panicking handler so one bad subscriber cannot kill
// the dispatch goroutine.
func (b *AlertBus) safeCall(handler AlertHandler, alert *entities.Alert) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("alert handler panicked",
				logger.Any("panic", r),
				logger.Uint64("alert_id", uint64(alert.ID)))
		}
	}()
	handler(alert)
}
