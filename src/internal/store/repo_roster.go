package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ce-fello/recruitment-review-service/src/internal/roster"

	"go.uber.org/zap"
)

// ReplaceRoster swaps the stored roster for entries in one transaction.
func (r *Repositories) ReplaceRoster(ctx context.Context, entries []roster.Entry) error {
	r.Log.Debug("ReplaceRoster: start", zap.Int("entries", len(entries)))
	tx, err := r.BeginTx(ctx)
	if err != nil {
		r.Log.Error("ReplaceRoster: begin tx failed", zap.Error(err))
		return err
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.Log.Warn("ReplaceRoster: rollback failed", zap.Error(err))
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM roster_members`); err != nil {
		r.Log.Error("ReplaceRoster: clear failed", zap.Error(err))
		return err
	}

	inserted := 0
	for _, e := range entries {
		email := roster.NormalizeEmail(e.Email)
		if email == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO roster_members(email, name, branch, role) VALUES($1,$2,$3,$4)
			 ON CONFLICT (email) DO UPDATE SET name=EXCLUDED.name, branch=EXCLUDED.branch, role=EXCLUDED.role`,
			email, e.Name, e.Branch, e.Role); err != nil {
			r.Log.Error("ReplaceRoster: insert member failed", zap.String("email", email), zap.Error(err))
			return err
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		r.Log.Error("ReplaceRoster: commit failed", zap.Error(err))
		return err
	}

	r.Log.Info("ReplaceRoster: success", zap.Int("members", inserted))
	return nil
}

func (r *Repositories) LoadRoster(ctx context.Context) ([]roster.Entry, error) {
	r.Log.Debug("LoadRoster: start")
	rows, err := r.DB.QueryContext(ctx, `SELECT email, name, branch, role FROM roster_members ORDER BY email`)
	if err != nil {
		r.Log.Error("LoadRoster: query failed", zap.Error(err))
		return nil, err
	}

	defer func(rows *sql.Rows) {
		err := rows.Close()
		if err != nil {
			r.Log.Error("LoadRoster: close rows failed", zap.Error(err))
		}
	}(rows)

	var out []roster.Entry
	for rows.Next() {
		var e roster.Entry
		if err := rows.Scan(&e.Email, &e.Name, &e.Branch, &e.Role); err != nil {
			r.Log.Error("LoadRoster: scan failed", zap.Error(err))
			return nil, err
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		r.Log.Error("LoadRoster: rows error", zap.Error(err))
		return nil, err
	}

	r.Log.Debug("LoadRoster: success", zap.Int("members", len(out)))
	return out, nil
}

type rosterTable struct {
	r *Repositories
}

func (t rosterTable) Load(ctx context.Context) ([]roster.Entry, error) {
	return t.r.LoadRoster(ctx)
}

// RosterSource exposes the roster_members table as a roster.Source.
func (r *Repositories) RosterSource() roster.Source {
	return rosterTable{r: r}
}
