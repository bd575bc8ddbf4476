package service

import (
	"context"
	"strings"

	"github.com/ce-fello/recruitment-review-service/src/internal/api/apiErrors"
	"github.com/ce-fello/recruitment-review-service/src/internal/metrics"
	"github.com/ce-fello/recruitment-review-service/src/internal/model"

	"go.uber.org/zap"
)

// RecordDecision appends a decision event, moves the application to the
// decided status and clears any claim. Non-blank notes are also kept as a
// tagged note. Every call appends history.
func (s *Service) RecordDecision(ctx context.Context, appID, reviewerEmail, decision, notes string) (model.DecisionEvent, error) {
	rv, err := s.reviewer(reviewerEmail)
	if err != nil {
		return model.DecisionEvent{}, err
	}
	app, err := s.repo.GetApplication(ctx, appID)
	if err != nil {
		return model.DecisionEvent{}, s.storeError("decision", err)
	}
	d, ok := model.ParseDecision(decision)
	if !ok {
		return model.DecisionEvent{}, apiErrors.APIError{Code: apiErrors.InvalidArgument, Message: "decision must be one of accept, reject, waitlist"}
	}
	if !s.rules.IsVisibleApplication(&rv, app) {
		return model.DecisionEvent{}, apiErrors.APIError{Code: apiErrors.Forbidden, Message: "application is outside your review scope"}
	}

	now := s.now()
	notes = strings.TrimSpace(notes)
	ev := model.DecisionEvent{
		ID:            s.newID(),
		ApplicationID: app.ID,
		ReviewerEmail: rv.Email,
		Decision:      d,
		Notes:         notes,
		CreatedAt:     now,
	}
	var note *model.Note
	if notes != "" {
		note = &model.Note{
			Author:    rv.DisplayName(),
			Email:     rv.Email,
			Content:   d.Tag() + " " + notes,
			CreatedAt: now,
		}
	}

	applied, err := s.repo.ApplyDecision(ctx,
		model.ClaimExpectation{Holder: rv.Email, StaleBefore: s.staleBefore(now)}, ev, note)
	if err != nil {
		return model.DecisionEvent{}, s.storeError("decision", err)
	}
	if !applied {
		s.log.Info("decision refused, claimed by another reviewer",
			zap.String("app_id", app.ID),
			zap.String("reviewer", rv.Email))
		return model.DecisionEvent{}, apiErrors.APIError{Code: apiErrors.Conflict, Message: "application is claimed by another reviewer"}
	}

	metrics.DecisionsRecorded.WithLabelValues(string(d)).Inc()
	s.log.Info("decision recorded",
		zap.String("app_id", app.ID),
		zap.String("reviewer", rv.Email),
		zap.String("decision", string(d)))
	return ev, nil
}

func (s *Service) GetHistory(ctx context.Context, appID, reviewerEmail string) ([]model.DecisionEvent, error) {
	rv, err := s.reviewer(reviewerEmail)
	if err != nil {
		return nil, err
	}
	app, err := s.visibleApplication(ctx, "history", appID, rv)
	if err != nil {
		return nil, err
	}
	if app.History == nil {
		return []model.DecisionEvent{}, nil
	}
	return app.History, nil
}
