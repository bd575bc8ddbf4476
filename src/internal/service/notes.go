package service

import (
	"context"
	"strings"

	"github.com/ce-fello/recruitment-review-service/src/internal/api/apiErrors"
	"github.com/ce-fello/recruitment-review-service/src/internal/model"

	"go.uber.org/zap"
)

// AddNote attaches a reviewer comment without touching claim or status.
func (s *Service) AddNote(ctx context.Context, appID, reviewerEmail, text string) (model.Note, error) {
	rv, err := s.reviewer(reviewerEmail)
	if err != nil {
		return model.Note{}, err
	}
	app, err := s.repo.GetApplication(ctx, appID)
	if err != nil {
		return model.Note{}, s.storeError("note", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Note{}, apiErrors.APIError{Code: apiErrors.InvalidArgument, Message: "note text is required"}
	}
	if !s.rules.IsVisibleApplication(&rv, app) {
		return model.Note{}, apiErrors.APIError{Code: apiErrors.Forbidden, Message: "application is outside your review scope"}
	}

	note := model.Note{
		Author:    rv.DisplayName(),
		Email:     rv.Email,
		Content:   text,
		CreatedAt: s.now(),
	}
	if err := s.repo.AppendNote(ctx, app.ID, note); err != nil {
		return model.Note{}, s.storeError("note", err)
	}
	s.log.Debug("note added", zap.String("app_id", app.ID), zap.String("reviewer", rv.Email))
	return note, nil
}
