package service

import (
	"context"
	"strings"

	"github.com/ce-fello/recruitment-review-service/src/internal/api/apiErrors"
	"github.com/ce-fello/recruitment-review-service/src/internal/model"
	"github.com/ce-fello/recruitment-review-service/src/internal/roster"
)

func (s *Service) branchReviewer(reviewerEmail, branch string) (roster.Entry, string, error) {
	rv, err := s.reviewer(reviewerEmail)
	if err != nil {
		return roster.Entry{}, "", err
	}
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return roster.Entry{}, "", apiErrors.APIError{Code: apiErrors.InvalidArgument, Message: "branch is required"}
	}
	if !s.rules.CanView(&rv, branch) {
		return roster.Entry{}, "", apiErrors.APIError{Code: apiErrors.Forbidden, Message: "branch is outside your review scope"}
	}
	return rv, branch, nil
}

// BranchNotes groups the branch's notes by the role applied for, keeping only
// applications the reviewer may see.
func (s *Service) BranchNotes(ctx context.Context, reviewerEmail, branch string) (map[string][]model.NoteReport, error) {
	rv, branch, err := s.branchReviewer(reviewerEmail, branch)
	if err != nil {
		return nil, err
	}
	notes, err := s.repo.ListBranchNotes(ctx, branch)
	if err != nil {
		return nil, s.storeError("branch notes", err)
	}
	out := map[string][]model.NoteReport{}
	for _, n := range notes {
		if !s.rules.IsVisibleApplication(&rv, model.Application{Branch: branch, Role: n.Role}) {
			continue
		}
		out[n.Role] = append(out[n.Role], n)
	}
	return out, nil
}

// BranchSummary counts the branch's applications by status, leaving out roles
// the reviewer may not see.
func (s *Service) BranchSummary(ctx context.Context, reviewerEmail, branch string) (model.BranchSummary, error) {
	rv, branch, err := s.branchReviewer(reviewerEmail, branch)
	if err != nil {
		return model.BranchSummary{}, err
	}
	counts, err := s.repo.BranchStatusCounts(ctx, branch)
	if err != nil {
		return model.BranchSummary{}, s.storeError("branch summary", err)
	}
	sum := model.BranchSummary{Branch: branch, ByStatus: map[model.Status]int{}}
	for _, c := range counts {
		if !s.rules.IsVisibleApplication(&rv, model.Application{Branch: branch, Role: c.Role}) {
			continue
		}
		sum.ByStatus[c.Status] += c.Count
		sum.Total += c.Count
		if c.Status.Terminal() {
			sum.Reviewed += c.Count
		}
	}
	return sum, nil
}

func (s *Service) ReviewerStats(ctx context.Context, reviewerEmail string) (model.ReviewerStats, error) {
	rv, err := s.reviewer(reviewerEmail)
	if err != nil {
		return model.ReviewerStats{}, err
	}
	counts, err := s.repo.ReviewerDecisionCounts(ctx, rv.Email)
	if err != nil {
		return model.ReviewerStats{}, s.storeError("reviewer stats", err)
	}
	st := model.ReviewerStats{ReviewerEmail: rv.Email, ByDecision: counts}
	for _, n := range counts {
		st.Total += n
	}
	return st, nil
}
