package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"civic-reporting-api/internal/models"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	m := NewManager(true)
	var calls int32
	m.Subscribe(EventBidSubmitted, func(ctx context.Context, e Event) error {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, EventBidSubmitted, e.Type)
		return nil
	})
	m.Subscribe(EventBidSubmitted, func(ctx context.Context, e Event) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("ignored")
	})

	m.Publish(context.Background(), EventBidSubmitted, BidData{SessionID: "s"})
	m.Publish(context.Background(), EventBidAwarded, AwardData{})
	m.Wait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDisabledManagerDropsEverything(t *testing.T) {
	m := NewManager(false)
	var calls int32
	m.Subscribe(EventProblemCreated, func(ctx context.Context, e Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	m.Publish(context.Background(), EventProblemCreated, ProblemData{})
	m.Wait()
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	m := NewManager(true)
	m.Subscribe(EventJobProcessed, func(ctx context.Context, e Event) error {
		panic("boom")
	})
	m.Publish(context.Background(), EventJobProcessed, JobData{})
	m.Shutdown()
}

func TestShutdownWaitsForConcurrentPublishers(t *testing.T) {
	m := NewManager(true)
	var inFlight, delivered int32
	m.Subscribe(EventBidSubmitted, func(ctx context.Context, e Event) error {
		atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		atomic.AddInt32(&delivered, 1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Publish(context.Background(), EventBidSubmitted, BidData{})
			}
		}()
	}

	m.Shutdown()
	assert.Zero(t, atomic.LoadInt32(&inFlight))
	settled := atomic.LoadInt32(&delivered)

	wg.Wait()
	m.Wait()
	assert.Equal(t, settled, atomic.LoadInt32(&delivered))
}

func TestAuditHandlerLogsFields(t *testing.T) {
	l, hook := test.NewNullLogger()
	m := NewManager(true)
	m.SubscribeAudit(l)

	m.Publish(context.Background(), EventProblemCreated, ProblemData{Problem: models.Problem{ID: "prob_1", Status: models.StatusBidding}})
	m.Wait()

	entry := hook.LastEntry()
	if assert.NotNil(t, entry) {
		assert.Equal(t, logrus.InfoLevel, entry.Level)
		assert.Equal(t, "prob_1", entry.Data["problem_id"])
		assert.Equal(t, EventProblemCreated, entry.Data["event"])
	}
}
