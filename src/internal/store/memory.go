package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/ce-fello/recruitment-review-service/src/internal/model"

	"go.uber.org/zap"
)

type memRecord struct {
	mu  sync.Mutex
	app model.Application
}

// MemoryRepository keeps applications in process. Each record has its own
// lock so claims on different applications never contend.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*memRecord
	log     *zap.Logger
}

func NewMemoryRepository(logger *zap.Logger) *MemoryRepository {
	return &MemoryRepository{records: map[string]*memRecord{}, log: logger}
}

func (m *MemoryRepository) record(id string) (*memRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	return rec, ok
}

func (m *MemoryRepository) snapshot() []*memRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*memRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out
}

func cloneApplication(a model.Application) model.Application {
	if a.Claim != nil {
		c := *a.Claim
		a.Claim = &c
	}
	if a.Responses != nil {
		r := make(map[string]string, len(a.Responses))
		for k, v := range a.Responses {
			r[k] = v
		}
		a.Responses = r
	}
	a.Notes = append([]model.Note(nil), a.Notes...)
	a.History = append([]model.DecisionEvent(nil), a.History...)
	return a
}

func (m *MemoryRepository) InsertApplication(_ context.Context, app model.Application) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[app.ID]; ok {
		return "", errors.New("application " + app.ID + " already exists")
	}
	m.records[app.ID] = &memRecord{app: cloneApplication(app)}
	m.log.Debug("memory: inserted application", zap.String("app_id", app.ID))
	return app.ID, nil
}

func (m *MemoryRepository) GetApplication(_ context.Context, id string) (model.Application, error) {
	rec, ok := m.record(id)
	if !ok {
		return model.Application{}, model.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return cloneApplication(rec.app), nil
}

func (m *MemoryRepository) FindApplications(_ context.Context, f model.ApplicationFilter) ([]model.Application, error) {
	var out []model.Application
	for _, rec := range m.snapshot() {
		rec.mu.Lock()
		a := rec.app
		match := matches(a, f)
		if match {
			a = cloneApplication(a)
			a.Notes, a.History = nil, nil
		}
		rec.mu.Unlock()
		if match {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matches(a model.Application, f model.ApplicationFilter) bool {
	if f.Branch != "" && !strings.EqualFold(strings.TrimSpace(a.Branch), strings.TrimSpace(f.Branch)) {
		return false
	}
	if f.ApplicantEmail != "" && !strings.EqualFold(a.ApplicantEmail, strings.TrimSpace(f.ApplicantEmail)) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if a.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ClaimableBy != "" {
		exp := model.ClaimExpectation{Holder: f.ClaimableBy, StaleBefore: f.StaleBefore}
		if !exp.Satisfied(a.Claim) {
			return false
		}
	}
	return true
}

func (m *MemoryRepository) ConditionalUpdate(_ context.Context, id string, expect model.ClaimExpectation, patch model.ApplicationPatch) (bool, error) {
	rec, ok := m.record(id)
	if !ok {
		return false, model.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !expect.AllowsStatus(rec.app.Status) || !expect.Satisfied(rec.app.Claim) {
		return false, nil
	}
	if patch.Status != "" {
		rec.app.Status = patch.Status
	}
	switch {
	case patch.Claim != nil:
		c := *patch.Claim
		rec.app.Claim = &c
	case patch.ClearClaim:
		rec.app.Claim = nil
	}
	return true, nil
}

func (m *MemoryRepository) AppendNote(_ context.Context, id string, note model.Note) error {
	rec, ok := m.record(id)
	if !ok {
		return model.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.app.Notes = append(rec.app.Notes, note)
	return nil
}

func (m *MemoryRepository) ApplyDecision(_ context.Context, expect model.ClaimExpectation, ev model.DecisionEvent, note *model.Note) (bool, error) {
	rec, ok := m.record(ev.ApplicationID)
	if !ok {
		return false, model.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !expect.Satisfied(rec.app.Claim) {
		return false, nil
	}
	rec.app.History = append(rec.app.History, ev)
	rec.app.Status = ev.Decision.Status()
	rec.app.Claim = nil
	if note != nil {
		rec.app.Notes = append(rec.app.Notes, *note)
	}
	return true, nil
}

func (m *MemoryRepository) ListBranchNotes(_ context.Context, branch string) ([]model.NoteReport, error) {
	var out []model.NoteReport
	for _, rec := range m.snapshot() {
		rec.mu.Lock()
		a := rec.app
		if strings.EqualFold(strings.TrimSpace(a.Branch), strings.TrimSpace(branch)) {
			for _, n := range a.Notes {
				out = append(out, model.NoteReport{
					ApplicationID:  a.ID,
					ApplicantEmail: a.ApplicantEmail,
					ApplicantName:  a.ApplicantName,
					Role:           a.Role,
					Author:         n.Author,
					Content:        n.Content,
					CreatedAt:      n.CreatedAt,
				})
			}
		}
		rec.mu.Unlock()
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ApplicationID < out[j].ApplicationID
	})
	return out, nil
}

func (m *MemoryRepository) BranchStatusCounts(_ context.Context, branch string) ([]model.StatusCount, error) {
	type key struct {
		role   string
		status model.Status
	}
	counts := map[key]int{}
	for _, rec := range m.snapshot() {
		rec.mu.Lock()
		if strings.EqualFold(strings.TrimSpace(rec.app.Branch), strings.TrimSpace(branch)) {
			counts[key{rec.app.Role, rec.app.Status}]++
		}
		rec.mu.Unlock()
	}
	out := make([]model.StatusCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, model.StatusCount{Role: k.role, Status: k.status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

func (m *MemoryRepository) ReviewerDecisionCounts(_ context.Context, reviewerEmail string) (map[model.Decision]int, error) {
	out := map[model.Decision]int{}
	for _, rec := range m.snapshot() {
		rec.mu.Lock()
		for _, ev := range rec.app.History {
			if strings.EqualFold(ev.ReviewerEmail, strings.TrimSpace(reviewerEmail)) {
				out[ev.Decision]++
			}
		}
		rec.mu.Unlock()
	}
	return out, nil
}
