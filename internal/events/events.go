package events

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"civic-reporting-api/internal/logger"
	"civic-reporting-api/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	EventProblemCreated    EventType = "problem.created"
	EventProblemClassified EventType = "problem.classified"
	EventProblemQueued     EventType = "problem.queued"
	EventProblemStatus     EventType = "problem.status_changed"
	EventBidSubmitted      EventType = "bid.submitted"
	EventBidAwarded        EventType = "bid.awarded"
	EventCreditsAllocated  EventType = "credits.allocated"
	EventRewardRedeemed    EventType = "reward.redeemed"
	EventJobProcessed      EventType = "job.processed"
)

// AllTypes lists every event type the services publish.
var AllTypes = []EventType{
	EventProblemCreated, EventProblemClassified, EventProblemQueued, EventProblemStatus,
	EventBidSubmitted, EventBidAwarded, EventCreditsAllocated, EventRewardRedeemed, EventJobProcessed,
}

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      any
}

type ProblemData struct {
	Problem models.Problem
}

type JobData struct {
	Job models.Job
}

type BidData struct {
	SessionID string
	Bid       models.Bid
}

type AwardData struct {
	Session models.BiddingSession
}

type AllocationData struct {
	PurchaseID string
	ProblemID  string
	Amount     float64
}

type RedemptionData struct {
	Redemption models.Redemption
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Publisher is what services depend on.
type Publisher interface {
	Publish(ctx context.Context, eventType EventType, data any)
}

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
	wg       sync.WaitGroup
	log      *logrus.Logger
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
		log:      logger.Get("events"),
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}
	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish runs every handler subscribed to eventType in its own goroutine.
// Handlers get a context detached from the request's cancellation.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data any) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	hctx := context.WithoutCancel(ctx)

	// The handlers are counted under the read lock so Shutdown, which takes
	// the write lock before waiting, never sees a late Add.
	m.mu.RLock()
	if !m.enabled || len(m.handlers[eventType]) == 0 {
		m.mu.RUnlock()
		return
	}
	handlers := m.handlers[eventType]
	m.wg.Add(len(handlers))
	m.mu.RUnlock()

	for _, handler := range handlers {
		go func(h Handler) {
			defer m.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					m.log.WithField("event", eventType).Errorf("event handler panic: %v", r)
				}
			}()
			if err := h(hctx, event); err != nil {
				logger.FromContext(hctx, m.log).WithError(err).WithField("event", eventType).Warn("event handler failed")
			}
		}(handler)
	}
}

// Wait blocks until every in-flight handler has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown stops accepting events and waits for in-flight handlers.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
	m.mu.Unlock()

	m.wg.Wait()
}

// AuditHandler logs every event it receives at info level.
func AuditHandler(l *logrus.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		entry := logger.FromContext(ctx, l).WithField("event", event.Type)
		switch d := event.Data.(type) {
		case ProblemData:
			entry = entry.WithFields(logrus.Fields{"problem_id": d.Problem.ID, "status": d.Problem.Status})
		case JobData:
			entry = entry.WithFields(logrus.Fields{"job_id": d.Job.ID, "status": d.Job.Status})
		case BidData:
			entry = entry.WithFields(logrus.Fields{"session_id": d.SessionID, "bid_id": d.Bid.ID})
		case AwardData:
			entry = entry.WithFields(logrus.Fields{"session_id": d.Session.ID, "bid_id": d.Session.SelectedBidID})
		case AllocationData:
			entry = entry.WithFields(logrus.Fields{"purchase_id": d.PurchaseID, "problem_id": d.ProblemID, "amount": d.Amount})
		case RedemptionData:
			entry = entry.WithFields(logrus.Fields{"redemption_id": d.Redemption.ID, "user_id": d.Redemption.UserID})
		}
		entry.Info("audit")
		return nil
	}
}

// SubscribeAudit attaches AuditHandler to every known event type.
func (m *Manager) SubscribeAudit(l *logrus.Logger) {
	h := AuditHandler(l)
	for _, t := range AllTypes {
		m.Subscribe(t, h)
	}
}
