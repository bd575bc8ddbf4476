package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ce-fello/recruitment-review-service/src/internal/model"

	"go.uber.org/zap"
)

func (r *Repositories) queryCountMap(ctx context.Context, query string, arg any, logPrefix string) (map[string]int, error) {
	r.Log.Debug(logPrefix + ": start")
	rows, err := r.DB.QueryContext(ctx, query, arg)
	if err != nil {
		r.Log.Error(logPrefix+": query failed", zap.Error(err))
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.Log.Info(logPrefix+": close rows failed", zap.Error(err))
		}
	}(rows)

	result := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			r.Log.Error(logPrefix+": scan failed", zap.Error(err))
			return nil, err
		}
		result[key] = count
	}
	if err := rows.Err(); err != nil {
		r.Log.Error(logPrefix+": rows error", zap.Error(err))
		return nil, err
	}

	r.Log.Debug(logPrefix+": success", zap.Int("items", len(result)))
	return result, nil
}

// BranchStatusCounts groups a branch's applications by role and status so
// callers can drop roles the reader may not see.
func (r *Repositories) BranchStatusCounts(ctx context.Context, branch string) ([]model.StatusCount, error) {
	r.Log.Debug("BranchStatusCounts: start", zap.String("branch", branch))
	rows, err := r.DB.QueryContext(ctx, `
		SELECT role, status, COUNT(*)
		FROM applications
		WHERE lower(branch) = lower($1)
		GROUP BY role, status
		ORDER BY role, status
	`, strings.TrimSpace(branch))
	if err != nil {
		r.Log.Error("BranchStatusCounts: query failed", zap.Error(err))
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.Log.Info("BranchStatusCounts: close rows failed", zap.Error(err))
		}
	}(rows)

	var out []model.StatusCount
	for rows.Next() {
		var c model.StatusCount
		var status string
		if err := rows.Scan(&c.Role, &status, &c.Count); err != nil {
			r.Log.Error("BranchStatusCounts: scan failed", zap.Error(err))
			return nil, err
		}
		c.Status = model.Status(status)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		r.Log.Error("BranchStatusCounts: rows error", zap.Error(err))
		return nil, err
	}
	r.Log.Debug("BranchStatusCounts: success", zap.Int("items", len(out)))
	return out, nil
}

func (r *Repositories) ReviewerDecisionCounts(ctx context.Context, reviewerEmail string) (map[model.Decision]int, error) {
	query := `
		SELECT decision, COUNT(*)
		FROM decision_events
		WHERE lower(reviewer_email) = lower($1)
		GROUP BY decision
	`
	counts, err := r.queryCountMap(ctx, query, strings.TrimSpace(reviewerEmail), "ReviewerDecisionCounts")
	if err != nil {
		return nil, err
	}
	out := make(map[model.Decision]int, len(counts))
	for k, v := range counts {
		out[model.Decision(k)] = v
	}
	return out, nil
}
