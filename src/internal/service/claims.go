package service

import (
	"context"

	"github.com/ce-fello/recruitment-review-service/src/internal/api/apiErrors"
	"github.com/ce-fello/recruitment-review-service/src/internal/metrics"
	"github.com/ce-fello/recruitment-review-service/src/internal/model"

	"go.uber.org/zap"
)

var errDecided = apiErrors.APIError{Code: apiErrors.Conflict, Message: "application has already been decided"}

// AcquireClaim gives reviewerEmail exclusive review of the application for
// one lease. Claiming again refreshes the lease; a claim at least one lease
// old can be taken over. Decided applications cannot be claimed.
func (s *Service) AcquireClaim(ctx context.Context, appID, reviewerEmail string) (model.Application, error) {
	rv, err := s.reviewer(reviewerEmail)
	if err != nil {
		metrics.ClaimAttempts.WithLabelValues("forbidden").Inc()
		return model.Application{}, err
	}
	app, err := s.visibleApplication(ctx, "claim", appID, rv)
	if err != nil {
		metrics.ClaimAttempts.WithLabelValues(outcome(err)).Inc()
		return model.Application{}, err
	}

	if app.Status.Terminal() {
		metrics.ClaimAttempts.WithLabelValues("conflict").Inc()
		return model.Application{}, errDecided
	}

	now := s.now()
	claim := &model.Claim{Claimant: rv.Email, ClaimedAt: now}
	ok, err := s.repo.ConditionalUpdate(ctx, appID,
		model.ClaimExpectation{Holder: rv.Email, StaleBefore: s.staleBefore(now), Statuses: openStatuses},
		model.ApplicationPatch{Status: model.StatusUnderReview, Claim: claim})
	if err != nil {
		err = s.storeError("claim", err)
		metrics.ClaimAttempts.WithLabelValues(outcome(err)).Inc()
		return model.Application{}, err
	}
	if !ok {
		metrics.ClaimAttempts.WithLabelValues("conflict").Inc()
		s.log.Info("claim refused",
			zap.String("app_id", appID),
			zap.String("reviewer", rv.Email))
		if cur, err := s.repo.GetApplication(ctx, appID); err == nil && cur.Status.Terminal() {
			return model.Application{}, errDecided
		}
		return model.Application{}, apiErrors.APIError{Code: apiErrors.Conflict, Message: "application is claimed by another reviewer"}
	}

	metrics.ClaimAttempts.WithLabelValues("acquired").Inc()
	s.log.Info("claim acquired",
		zap.String("app_id", appID),
		zap.String("reviewer", rv.Email))
	app.Status = model.StatusUnderReview
	app.Claim = claim
	return app, nil
}

// ReleaseClaim hands the application back to the queue. Only the current
// claimant may release it.
func (s *Service) ReleaseClaim(ctx context.Context, appID, reviewerEmail string) (model.Application, error) {
	rv, err := s.reviewer(reviewerEmail)
	if err != nil {
		return model.Application{}, err
	}
	app, err := s.visibleApplication(ctx, "release", appID, rv)
	if err != nil {
		metrics.ClaimReleases.WithLabelValues(outcome(err)).Inc()
		return model.Application{}, err
	}

	ok, err := s.repo.ConditionalUpdate(ctx, appID,
		model.ClaimExpectation{Holder: rv.Email, RequireHeld: true},
		model.ApplicationPatch{Status: model.StatusSubmitted, ClearClaim: true})
	if err != nil {
		err = s.storeError("release", err)
		metrics.ClaimReleases.WithLabelValues(outcome(err)).Inc()
		return model.Application{}, err
	}
	if !ok {
		metrics.ClaimReleases.WithLabelValues("conflict").Inc()
		return model.Application{}, apiErrors.APIError{Code: apiErrors.Conflict, Message: "application is not claimed by you"}
	}

	metrics.ClaimReleases.WithLabelValues("released").Inc()
	s.log.Info("claim released",
		zap.String("app_id", appID),
		zap.String("reviewer", rv.Email))
	app.Status = model.StatusSubmitted
	app.Claim = nil
	return app, nil
}

func outcome(err error) string {
	switch apiErrors.CodeOf(err) {
	case apiErrors.Forbidden:
		return "forbidden"
	case apiErrors.NotFound:
		return "not_found"
	case apiErrors.Conflict:
		return "conflict"
	case apiErrors.Unavailable:
		return "unavailable"
	default:
		return "error"
	}
}
