package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ce-fello/recruitment-review-service/src/internal/model"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const applicationColumns = `id, applicant_email, applicant_name, role, branch, status, claimant, claimed_at, responses, submitted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(s rowScanner) (model.Application, error) {
	var a model.Application
	var claimant sql.NullString
	var claimedAt sql.NullTime
	var responses []byte
	if err := s.Scan(&a.ID, &a.ApplicantEmail, &a.ApplicantName, &a.Role, &a.Branch, &a.Status,
		&claimant, &claimedAt, &responses, &a.SubmittedAt); err != nil {
		return model.Application{}, err
	}
	if claimant.Valid && claimedAt.Valid {
		a.Claim = &model.Claim{Claimant: claimant.String, ClaimedAt: claimedAt.Time}
	}
	if len(responses) > 0 {
		if err := json.Unmarshal(responses, &a.Responses); err != nil {
			return model.Application{}, fmt.Errorf("decode responses of %s: %w", a.ID, err)
		}
	}
	return a, nil
}

func (r *Repositories) InsertApplication(ctx context.Context, app model.Application) (string, error) {
	r.Log.Debug("InsertApplication: start", zap.String("app_id", app.ID), zap.String("branch", app.Branch))
	responses, err := json.Marshal(app.Responses)
	if err != nil {
		return "", fmt.Errorf("encode responses: %w", err)
	}
	if app.Responses == nil {
		responses = []byte("{}")
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO applications(id, applicant_email, applicant_name, role, branch, status, responses, submitted_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		app.ID, app.ApplicantEmail, app.ApplicantName, app.Role, app.Branch, app.Status, responses, app.SubmittedAt)
	if err != nil {
		r.Log.Error("InsertApplication: insert failed", zap.String("app_id", app.ID), zap.Error(err))
		return "", err
	}
	r.Log.Info("InsertApplication: success", zap.String("app_id", app.ID))
	return app.ID, nil
}

func (r *Repositories) GetApplication(ctx context.Context, id string) (model.Application, error) {
	r.Log.Debug("GetApplication: start", zap.String("app_id", id))
	a, err := scanApplication(r.DB.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.Log.Debug("GetApplication: not found", zap.String("app_id", id))
			return model.Application{}, model.ErrNotFound
		}
		r.Log.Error("GetApplication: query failed", zap.String("app_id", id), zap.Error(err))
		return model.Application{}, err
	}

	if a.Notes, err = r.listNotes(ctx, id); err != nil {
		return model.Application{}, err
	}
	if a.History, err = r.listHistory(ctx, id); err != nil {
		return model.Application{}, err
	}

	r.Log.Debug("GetApplication: success", zap.String("app_id", id),
		zap.Int("notes", len(a.Notes)), zap.Int("history", len(a.History)))
	return a, nil
}

func (r *Repositories) listNotes(ctx context.Context, id string) ([]model.Note, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT author, email, content, created_at FROM application_notes WHERE application_id=$1 ORDER BY created_at, id`, id)
	if err != nil {
		r.Log.Error("listNotes: query failed", zap.String("app_id", id), zap.Error(err))
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.Log.Error("listNotes: close rows failed", zap.Error(err))
		}
	}(rows)

	var out []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.Author, &n.Email, &n.Content, &n.CreatedAt); err != nil {
			r.Log.Error("listNotes: scan failed", zap.String("app_id", id), zap.Error(err))
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repositories) listHistory(ctx context.Context, id string) ([]model.DecisionEvent, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, application_id, reviewer_email, decision, notes, created_at
		 FROM decision_events WHERE application_id=$1 ORDER BY created_at, id`, id)
	if err != nil {
		r.Log.Error("listHistory: query failed", zap.String("app_id", id), zap.Error(err))
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.Log.Error("listHistory: close rows failed", zap.Error(err))
		}
	}(rows)

	var out []model.DecisionEvent
	for rows.Next() {
		var ev model.DecisionEvent
		if err := rows.Scan(&ev.ID, &ev.ApplicationID, &ev.ReviewerEmail, &ev.Decision, &ev.Notes, &ev.CreatedAt); err != nil {
			r.Log.Error("listHistory: scan failed", zap.String("app_id", id), zap.Error(err))
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// FindApplications returns matching records ordered by id. Notes and history
// are not loaded.
func (r *Repositories) FindApplications(ctx context.Context, f model.ApplicationFilter) ([]model.Application, error) {
	r.Log.Debug("FindApplications: start", zap.String("branch", f.Branch), zap.String("claimable_by", f.ClaimableBy))

	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Branch != "" {
		where = append(where, "lower(branch)=lower("+arg(strings.TrimSpace(f.Branch))+")")
	}
	if f.ApplicantEmail != "" {
		where = append(where, "lower(applicant_email)=lower("+arg(strings.TrimSpace(f.ApplicantEmail))+")")
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status = ANY("+arg(statusArray(f.Statuses))+")")
	}
	if f.ClaimableBy != "" {
		clause := "claimant IS NULL OR lower(claimant)=lower(" + arg(f.ClaimableBy) + ")"
		if !f.StaleBefore.IsZero() {
			clause += " OR claimed_at <= " + arg(f.StaleBefore)
		}
		where = append(where, "("+clause+")")
	}

	q := `SELECT ` + applicationColumns + ` FROM applications`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		r.Log.Error("FindApplications: query failed", zap.Error(err))
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.Log.Error("FindApplications: close rows failed", zap.Error(err))
		}
	}(rows)

	var out []model.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			r.Log.Error("FindApplications: scan failed", zap.Error(err))
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		r.Log.Error("FindApplications: rows error", zap.Error(err))
		return nil, err
	}
	r.Log.Debug("FindApplications: success", zap.Int("count", len(out)))
	return out, nil
}

// ConditionalUpdate applies patch in a single UPDATE guarded by expect. It
// returns false when the record exists but the status or claim precondition
// failed.
func (r *Repositories) ConditionalUpdate(ctx context.Context, id string, expect model.ClaimExpectation, patch model.ApplicationPatch) (bool, error) {
	r.Log.Debug("ConditionalUpdate: start", zap.String("app_id", id), zap.String("holder", expect.Holder))

	args := []any{id}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var sets []string
	if patch.Status != "" {
		sets = append(sets, "status="+arg(string(patch.Status)))
	}
	switch {
	case patch.Claim != nil:
		sets = append(sets, "claimant="+arg(patch.Claim.Claimant), "claimed_at="+arg(patch.Claim.ClaimedAt))
	case patch.ClearClaim:
		sets = append(sets, "claimant=NULL", "claimed_at=NULL")
	}
	if len(sets) == 0 {
		return false, errors.New("conditional update: empty patch")
	}

	var guards []string
	if len(expect.Statuses) > 0 {
		guards = append(guards, "status = ANY("+arg(statusArray(expect.Statuses))+")")
	}
	var cond string
	if expect.RequireHeld {
		cond = "lower(claimant)=lower(" + arg(expect.Holder) + ")"
	} else {
		cond = "claimant IS NULL OR lower(claimant)=lower(" + arg(expect.Holder) + ")"
		if !expect.StaleBefore.IsZero() {
			cond += " OR claimed_at <= " + arg(expect.StaleBefore)
		}
	}
	guards = append(guards, "("+cond+")")

	q := `UPDATE applications SET ` + strings.Join(sets, ", ") + ` WHERE id=$1 AND ` + strings.Join(guards, " AND ")
	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		r.Log.Error("ConditionalUpdate: update failed", zap.String("app_id", id), zap.Error(err))
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		r.Log.Error("ConditionalUpdate: rows affected failed", zap.String("app_id", id), zap.Error(err))
		return false, err
	}
	if n == 1 {
		r.Log.Info("ConditionalUpdate: success", zap.String("app_id", id), zap.String("status", string(patch.Status)))
		return true, nil
	}

	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM applications WHERE id=$1)`, id).Scan(&exists); err != nil {
		r.Log.Error("ConditionalUpdate: existence check failed", zap.String("app_id", id), zap.Error(err))
		return false, err
	}
	if !exists {
		r.Log.Debug("ConditionalUpdate: not found", zap.String("app_id", id))
		return false, model.ErrNotFound
	}
	r.Log.Debug("ConditionalUpdate: precondition failed", zap.String("app_id", id))
	return false, nil
}

func statusArray(statuses []model.Status) any {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return pq.Array(out)
}

func (r *Repositories) AppendNote(ctx context.Context, id string, note model.Note) error {
	r.Log.Debug("AppendNote: start", zap.String("app_id", id), zap.String("email", note.Email))
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO application_notes(application_id, author, email, content, created_at)
		 SELECT id, $2, $3, $4, $5 FROM applications WHERE id=$1`,
		id, note.Author, note.Email, note.Content, note.CreatedAt)
	if err != nil {
		r.Log.Error("AppendNote: insert failed", zap.String("app_id", id), zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.Log.Debug("AppendNote: not found", zap.String("app_id", id))
		return model.ErrNotFound
	}
	r.Log.Info("AppendNote: success", zap.String("app_id", id))
	return nil
}

// ApplyDecision records ev and its note, sets the status and clears the
// claim in one transaction. The row is locked while expect is checked.
func (r *Repositories) ApplyDecision(ctx context.Context, expect model.ClaimExpectation, ev model.DecisionEvent, note *model.Note) (bool, error) {
	r.Log.Debug("ApplyDecision: start", zap.String("app_id", ev.ApplicationID), zap.String("decision", string(ev.Decision)))

	tx, err := r.BeginTx(ctx)
	if err != nil {
		r.Log.Error("ApplyDecision: begin tx failed", zap.Error(err))
		return false, err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.Log.Warn("ApplyDecision: rollback failed", zap.Error(err))
		}
	}()

	var claimant sql.NullString
	var claimedAt sql.NullTime
	if err := tx.QueryRowContext(ctx, `SELECT claimant, claimed_at FROM applications WHERE id=$1 FOR UPDATE`, ev.ApplicationID).
		Scan(&claimant, &claimedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.Log.Debug("ApplyDecision: not found", zap.String("app_id", ev.ApplicationID))
			return false, model.ErrNotFound
		}
		r.Log.Error("ApplyDecision: select for update failed", zap.String("app_id", ev.ApplicationID), zap.Error(err))
		return false, err
	}
	var current *model.Claim
	if claimant.Valid && claimedAt.Valid {
		current = &model.Claim{Claimant: claimant.String, ClaimedAt: claimedAt.Time}
	}
	if !expect.Satisfied(current) {
		r.Log.Debug("ApplyDecision: claim held by another reviewer", zap.String("app_id", ev.ApplicationID))
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO decision_events(id, application_id, reviewer_email, decision, notes, created_at) VALUES($1,$2,$3,$4,$5,$6)`,
		ev.ID, ev.ApplicationID, ev.ReviewerEmail, string(ev.Decision), ev.Notes, ev.CreatedAt); err != nil {
		r.Log.Error("ApplyDecision: insert decision failed", zap.String("app_id", ev.ApplicationID), zap.Error(err))
		return false, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE applications SET status=$2, claimant=NULL, claimed_at=NULL WHERE id=$1`,
		ev.ApplicationID, string(ev.Decision.Status())); err != nil {
		r.Log.Error("ApplyDecision: update application failed", zap.String("app_id", ev.ApplicationID), zap.Error(err))
		return false, err
	}

	if note != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO application_notes(application_id, author, email, content, created_at) VALUES($1,$2,$3,$4,$5)`,
			ev.ApplicationID, note.Author, note.Email, note.Content, note.CreatedAt); err != nil {
			r.Log.Error("ApplyDecision: insert note failed", zap.String("app_id", ev.ApplicationID), zap.Error(err))
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		r.Log.Error("ApplyDecision: commit failed", zap.String("app_id", ev.ApplicationID), zap.Error(err))
		return false, err
	}

	r.Log.Info("ApplyDecision: success", zap.String("app_id", ev.ApplicationID),
		zap.String("decision", string(ev.Decision)), zap.String("reviewer", ev.ReviewerEmail))
	return true, nil
}

func (r *Repositories) ListBranchNotes(ctx context.Context, branch string) ([]model.NoteReport, error) {
	r.Log.Debug("ListBranchNotes: start", zap.String("branch", branch))
	rows, err := r.DB.QueryContext(ctx, `
		SELECT a.id, a.applicant_email, a.applicant_name, a.role, n.author, n.content, n.created_at
		FROM application_notes n
		JOIN applications a ON a.id = n.application_id
		WHERE lower(a.branch) = lower($1)
		ORDER BY a.role, n.created_at, n.id
	`, strings.TrimSpace(branch))
	if err != nil {
		r.Log.Error("ListBranchNotes: query failed", zap.Error(err))
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.Log.Error("ListBranchNotes: close rows failed", zap.Error(err))
		}
	}(rows)

	var out []model.NoteReport
	for rows.Next() {
		var n model.NoteReport
		if err := rows.Scan(&n.ApplicationID, &n.ApplicantEmail, &n.ApplicantName, &n.Role, &n.Author, &n.Content, &n.CreatedAt); err != nil {
			r.Log.Error("ListBranchNotes: scan failed", zap.Error(err))
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.Log.Debug("ListBranchNotes: success", zap.Int("count", len(out)))
	return out, nil
}
