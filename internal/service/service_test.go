package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"civic-reporting-api/internal/auth"
	"civic-reporting-api/internal/cache"
	"civic-reporting-api/internal/classifier"
	"civic-reporting-api/internal/classifier/classifiermock"
	"civic-reporting-api/internal/database"
	"civic-reporting-api/internal/models"
)

// stepClock advances one second on every reading so records created in
// sequence sort deterministically.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	svc        *Service
	store      database.Store
	classifier *classifiermock.MockClassifier
	cache      *cache.InMemoryCache
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := database.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	mock := classifiermock.NewMockClassifier(ctrl)
	c := cache.NewInMemoryCache()
	t.Cleanup(c.Stop)
	clock := &stepClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}

	svc := NewService(Deps{
		Store:      store,
		Classifier: mock,
		Tokens:     auth.NewTokenManager("test-secret", time.Hour),
		Cache:      c,
		Now:        clock.Now,
	})
	return &fixture{svc: svc, store: store, classifier: mock, cache: c}
}

func (f *fixture) createUser(t *testing.T, email string, role models.Role) *models.User {
	t.Helper()
	u, err := f.svc.Users.CreateUser(context.Background(), NewUser{Email: email, Name: "Test User", Role: role})
	require.NoError(t, err)
	return u
}

func (f *fixture) createContractor(t *testing.T, email string, trust float64, completed int) *models.User {
	t.Helper()
	ctx := context.Background()
	u := f.createUser(t, email, models.RoleCitizen)
	u, err := f.svc.Users.RegisterContractor(ctx, u.ID, models.RegisterContractorRequest{
		Domain:       "roads",
		ServiceAreas: []string{"Delhi"},
	})
	require.NoError(t, err)
	u.Contractor.TrustScore = trust
	u.Contractor.CompletedJobs = completed
	require.NoError(t, f.svc.Users.users.Set(ctx, u.ID, u))
	return u
}

// expectClassification makes the next report classify as cls and earn credits.
func (f *fixture) expectClassification(cls classifier.Classification, credits float64) {
	f.classifier.EXPECT().ClassifyProblem(gomock.Any(), gomock.Any(), gomock.Any()).Return(&cls, nil)
	f.classifier.EXPECT().AllocateTokens(gomock.Any(), cls).Return(&classifier.Allocation{
		OneCreditsToAllocate: credits,
		Rationale:            "severity based",
	}, nil)
}

func (f *fixture) expectClassifierDown() {
	f.classifier.EXPECT().ClassifyProblem(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, &classifier.CallError{Op: classifier.OpClassify, Outcome: classifier.OutcomeTimeout, Err: errors.New("deadline exceeded")})
}

func potholeRequest() models.CreateProblemRequest {
	lat, lng := 28.61, 77.23
	return models.CreateProblemRequest{
		Description: "Large pothole on main road",
		Location:    models.LocationInput{Lat: &lat, Lng: &lng, Address: "Main Rd"},
	}
}

// reportBiddingProblem creates a classified problem ready for bids.
func (f *fixture) reportBiddingProblem(t *testing.T, reporterID string) *models.Problem {
	t.Helper()
	f.expectClassification(classifier.Classification{
		Category:      models.CategoryInfra,
		SeverityScore: 6.8,
	}, 10)
	p, err := f.svc.Problems.CreateProblem(context.Background(), reporterID, potholeRequest())
	require.NoError(t, err)
	require.Equal(t, models.StatusBidding, p.Status)
	return p
}
