package service

import (
	"context"
	"sort"
	"strings"

	"github.com/ce-fello/recruitment-review-service/src/internal/api/apiErrors"
	"github.com/ce-fello/recruitment-review-service/src/internal/model"
	"github.com/ce-fello/recruitment-review-service/src/internal/roster"

	"go.uber.org/zap"
)

func (s *Service) SubmitApplication(ctx context.Context, sub model.Submission) (model.Application, error) {
	email := roster.NormalizeEmail(sub.ApplicantEmail)
	if !strings.Contains(email, "@") {
		return model.Application{}, apiErrors.APIError{Code: apiErrors.InvalidArgument, Message: "applicant_email is invalid"}
	}
	branch := strings.TrimSpace(sub.Branch)
	role := strings.TrimSpace(sub.Role)
	if branch == "" || role == "" {
		return model.Application{}, apiErrors.APIError{Code: apiErrors.InvalidArgument, Message: "branch and role are required"}
	}

	app := model.Application{
		ID:             s.newID(),
		ApplicantEmail: email,
		ApplicantName:  strings.TrimSpace(sub.ApplicantName),
		Role:           role,
		Branch:         branch,
		Status:         model.StatusSubmitted,
		Responses:      sub.Responses,
		SubmittedAt:    s.now(),
	}
	if _, err := s.repo.InsertApplication(ctx, app); err != nil {
		return model.Application{}, s.storeError("submit", err)
	}
	s.log.Info("application submitted",
		zap.String("app_id", app.ID),
		zap.String("branch", app.Branch),
		zap.String("role", app.Role))
	return app, nil
}

// ListApplicantApplications returns the applicant's own submissions, oldest
// first.
func (s *Service) ListApplicantApplications(ctx context.Context, applicantEmail string) ([]model.Application, error) {
	email := roster.NormalizeEmail(applicantEmail)
	if email == "" {
		return nil, apiErrors.APIError{Code: apiErrors.InvalidArgument, Message: "applicant email is required"}
	}
	apps, err := s.repo.FindApplications(ctx, model.ApplicationFilter{ApplicantEmail: email})
	if err != nil {
		return nil, s.storeError("list applications", err)
	}
	sort.SliceStable(apps, func(i, j int) bool { return apps[i].SubmittedAt.Before(apps[j].SubmittedAt) })
	if apps == nil {
		apps = []model.Application{}
	}
	return apps, nil
}

// GetApplication returns the full record, notes and history included.
func (s *Service) GetApplication(ctx context.Context, appID, reviewerEmail string) (model.Application, error) {
	rv, err := s.reviewer(reviewerEmail)
	if err != nil {
		return model.Application{}, err
	}
	return s.visibleApplication(ctx, "get application", appID, rv)
}
