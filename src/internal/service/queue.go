package service

import (
	"context"
	"strings"

	"github.com/ce-fello/recruitment-review-service/src/internal/api/apiErrors"
	"github.com/ce-fello/recruitment-review-service/src/internal/metrics"
	"github.com/ce-fello/recruitment-review-service/src/internal/model"

	"go.uber.org/zap"
)

// openStatuses are the statuses an application can be claimed in.
var openStatuses = []model.Status{model.StatusSubmitted, model.StatusUnderReview}

// GetQueue lists the applications of branch that reviewerEmail may pick up:
// unclaimed, stale, or already claimed by the reviewer. It never changes
// claim state.
func (s *Service) GetQueue(ctx context.Context, reviewerEmail, branch string) ([]model.Application, error) {
	rv, err := s.reviewer(reviewerEmail)
	if err != nil {
		return nil, err
	}
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return nil, apiErrors.APIError{Code: apiErrors.InvalidArgument, Message: "branch is required"}
	}
	if !s.rules.CanView(&rv, branch) {
		return nil, apiErrors.APIError{Code: apiErrors.Forbidden, Message: "branch is outside your review scope"}
	}

	apps, err := s.repo.FindApplications(ctx, model.ApplicationFilter{
		Branch:      branch,
		Statuses:    openStatuses,
		ClaimableBy: rv.Email,
		StaleBefore: s.staleBefore(s.now()),
	})
	if err != nil {
		return nil, s.storeError("queue", err)
	}

	apps = s.rules.Filter(&rv, apps)
	if len(apps) > s.queueLimit {
		apps = apps[:s.queueLimit]
	}
	metrics.QueueSize.WithLabelValues(strings.ToLower(branch)).Observe(float64(len(apps)))
	s.log.Debug("queue served",
		zap.String("reviewer", rv.Email),
		zap.String("branch", branch),
		zap.Int("size", len(apps)))
	return apps, nil
}
