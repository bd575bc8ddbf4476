package service

import (
	"context"
	"errors"
	"time"

	"github.com/ce-fello/recruitment-review-service/src/internal/api/apiErrors"
	"github.com/ce-fello/recruitment-review-service/src/internal/metrics"
	"github.com/ce-fello/recruitment-review-service/src/internal/model"
	"github.com/ce-fello/recruitment-review-service/src/internal/policy"
	"github.com/ce-fello/recruitment-review-service/src/internal/roster"
	"github.com/ce-fello/recruitment-review-service/src/internal/store"
	"github.com/google/uuid"

	"go.uber.org/zap"
)

const DefaultQueueLimit = 100

type Options struct {
	LeaseDuration time.Duration
	QueueLimit    int
	Rules         policy.Rules
}

type Service struct {
	repo       store.Repository
	roster     *roster.Directory
	rules      policy.Rules
	log        *zap.Logger
	lease      time.Duration
	queueLimit int

	now   func() time.Time
	newID func() string
}

func NewService(repo store.Repository, dir *roster.Directory, opts Options, logger *zap.Logger) *Service {
	if opts.LeaseDuration <= 0 {
		opts.LeaseDuration = model.DefaultLeaseDuration
	}
	if opts.QueueLimit <= 0 {
		opts.QueueLimit = DefaultQueueLimit
	}
	return &Service{
		repo:       repo,
		roster:     dir,
		rules:      opts.Rules,
		log:        logger,
		lease:      opts.LeaseDuration,
		queueLimit: opts.QueueLimit,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// Whoami returns the roster entry of email.
func (s *Service) Whoami(email string) (roster.Entry, error) {
	return s.reviewer(email)
}

func (s *Service) reviewer(email string) (roster.Entry, error) {
	e, ok := s.roster.Lookup(email)
	if !ok {
		return roster.Entry{}, apiErrors.APIError{Code: apiErrors.Forbidden, Message: "reviewer is not in the roster"}
	}
	return e, nil
}

func (s *Service) staleBefore(now time.Time) time.Time {
	return now.Add(-s.lease)
}

// storeError converts a repository failure into an APIError and records it.
func (s *Service) storeError(op string, err error) error {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return apiErrors.APIError{Code: apiErrors.NotFound, Message: "application not found"}
	case store.IsUnavailable(err):
		metrics.StoreErrors.WithLabelValues(op, "unavailable").Inc()
		s.log.Warn("application store unavailable", zap.String("op", op), zap.Error(err))
		return apiErrors.APIError{Code: apiErrors.Unavailable, Message: "application store unavailable"}
	default:
		metrics.StoreErrors.WithLabelValues(op, "internal").Inc()
		s.log.Error("application store failed", zap.String("op", op), zap.Error(err))
		return apiErrors.APIError{Code: apiErrors.InternalError, Message: op + " failed"}
	}
}

// visibleApplication loads id and checks that rv may act on it.
func (s *Service) visibleApplication(ctx context.Context, op, id string, rv roster.Entry) (model.Application, error) {
	app, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return model.Application{}, s.storeError(op, err)
	}
	if !s.rules.IsVisibleApplication(&rv, app) {
		return model.Application{}, apiErrors.APIError{Code: apiErrors.Forbidden, Message: "application is outside your review scope"}
	}
	return app, nil
}
