package store

import (
	"context"
	"database/sql"

	"github.com/ce-fello/recruitment-review-service/src/internal/model"

	"go.uber.org/zap"
)

type Repository interface {
	GetApplication(ctx context.Context, id string) (model.Application, error)
	FindApplications(ctx context.Context, f model.ApplicationFilter) ([]model.Application, error)
	InsertApplication(ctx context.Context, app model.Application) (string, error)
	ConditionalUpdate(ctx context.Context, id string, expect model.ClaimExpectation, patch model.ApplicationPatch) (bool, error)
	AppendNote(ctx context.Context, id string, note model.Note) error
	ApplyDecision(ctx context.Context, expect model.ClaimExpectation, ev model.DecisionEvent, note *model.Note) (bool, error)
	ListBranchNotes(ctx context.Context, branch string) ([]model.NoteReport, error)
	BranchStatusCounts(ctx context.Context, branch string) ([]model.StatusCount, error)
	ReviewerDecisionCounts(ctx context.Context, reviewerEmail string) (map[model.Decision]int, error)
}

var (
	_ Repository = (*Repositories)(nil)
	_ Repository = (*MemoryRepository)(nil)
)

type Repositories struct {
	DB  *sql.DB
	Log *zap.Logger
}

func NewRepositories(db *sql.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		DB:  db,
		Log: logger,
	}
}

func (r *Repositories) BeginTx(ctx context.Context) (*sql.Tx, error) {
	r.Log.Debug("BeginTx called")
	return r.DB.BeginTx(ctx, &sql.TxOptions{})
}
