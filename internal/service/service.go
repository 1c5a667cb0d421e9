package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/auth"
	"civic-reporting-api/internal/cache"
	"civic-reporting-api/internal/classifier"
	"civic-reporting-api/internal/database"
	"civic-reporting-api/internal/events"
	"civic-reporting-api/internal/logger"
	"civic-reporting-api/internal/models"
)

// Deps are the collaborators shared by every domain service.
type Deps struct {
	Store      database.Store
	Classifier classifier.Classifier
	Tokens     *auth.TokenManager
	// Optional. Nil disables publishing.
	Events events.Publisher
	// Optional. Nil disables read caching.
	Cache  cache.Cache
	Logger *logrus.Logger
	Now    func() time.Time
}

// Service groups the domain services over one store.
type Service struct {
	Users       *UserService
	Auth        *AuthService
	Problems    *ProblemService
	Bidding     *BiddingService
	Credits     *CreditService
	Redemptions *RedemptionService
	Jobs        *JobService
}

// NewService wires every domain service against deps.
func NewService(deps Deps) *Service {
	e := newEnv(deps)

	users := &UserService{env: e}
	problems := &ProblemService{env: e, accounts: users}
	bidding := &BiddingService{env: e, accounts: users, reports: problems}
	problems.bidding = bidding

	return &Service{
		Users:       users,
		Auth:        &AuthService{env: e, accounts: users, tokens: deps.Tokens},
		Problems:    problems,
		Bidding:     bidding,
		Credits:     &CreditService{env: e, accounts: users},
		Redemptions: &RedemptionService{env: e, accounts: users},
		Jobs:        &JobService{env: e, reports: problems},
	}
}

// env is the state every service shares.
type env struct {
	users       *database.Collection[models.User]
	ledgers     *database.Collection[models.OneCreditLedger]
	problems    *database.Collection[models.Problem]
	sessions    *database.Collection[models.BiddingSession]
	bids        *database.Collection[models.Bid]
	purchases   *database.Collection[models.GreenCreditPurchase]
	rewards     *database.Collection[models.Reward]
	redemptions *database.Collection[models.Redemption]
	jobs        *database.Collection[models.Job]

	classifier classifier.Classifier
	events     events.Publisher
	cache      cache.Cache
	log        *logrus.Logger
	now        func() time.Time
}

func newEnv(d Deps) *env {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = logger.Get("service")
	}
	s := d.Store
	return &env{
		users:       database.NewCollection[models.User](s, database.CollectionUsers),
		ledgers:     database.NewCollection[models.OneCreditLedger](s, database.CollectionOneCredits),
		problems:    database.NewCollection[models.Problem](s, database.CollectionProblems),
		sessions:    database.NewCollection[models.BiddingSession](s, database.CollectionBiddingSessions),
		bids:        database.NewCollection[models.Bid](s, database.CollectionBids),
		purchases:   database.NewCollection[models.GreenCreditPurchase](s, database.CollectionGreenCredits),
		rewards:     database.NewCollection[models.Reward](s, database.CollectionRewards),
		redemptions: database.NewCollection[models.Redemption](s, database.CollectionRedemptions),
		jobs:        database.NewCollection[models.Job](s, database.CollectionJobs),
		classifier:  d.Classifier,
		events:      d.Events,
		cache:       d.Cache,
		log:         d.Logger,
		now:         func() time.Time { return d.Now().UTC() },
	}
}

// newID builds "<prefix>_<unix millis>_<9 random chars>".
func (e *env) newID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s_%d_%s", prefix, e.now().UnixMilli(), suffix)
}

func (e *env) publish(ctx context.Context, t events.EventType, data any) {
	if e.events != nil {
		e.events.Publish(ctx, t, data)
	}
}

func (e *env) logFor(ctx context.Context) *logrus.Entry {
	return logger.FromContext(ctx, e.log)
}

func (e *env) invalidate(ctx context.Context, prefix string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.DeletePrefix(ctx, prefix); err != nil {
		e.logFor(ctx).WithError(err).WithField("prefix", prefix).Warn("cache invalidation failed")
	}
}

// notFound turns a missing-document error into a NotFound application error.
func notFound(err error, what string) error {
	if errors.Is(err, database.ErrNotFound) {
		return apperr.NotFound(what + " not found")
	}
	return err
}

func timePtr(t time.Time) *time.Time {
	return &t
}

var (
	byCreatedDesc = database.Sort{Field: "createdAt", Direction: database.Desc}
	byCreatedAsc  = database.Sort{Field: "createdAt", Direction: database.Asc}
)

func eq(field string, value any) *database.Filter {
	return &database.Filter{Field: field, Op: database.OpEqual, Value: value}
}
