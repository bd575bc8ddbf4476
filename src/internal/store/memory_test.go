package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ce-fello/recruitment-review-service/src/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedMemory(t *testing.T, apps ...model.Application) *MemoryRepository {
	repo := NewMemoryRepository(zap.NewNop())
	for _, a := range apps {
		_, err := repo.InsertApplication(context.Background(), a)
		require.NoError(t, err)
	}
	return repo
}

func TestMemory_ConditionalUpdateIsExclusive(t *testing.T) {
	repo := seedMemory(t, model.Application{ID: "a1", Branch: "Software", Status: model.StatusSubmitted})
	now := time.Now()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			who := fmt.Sprintf("r%d@x.com", i)
			ok, err := repo.ConditionalUpdate(context.Background(), "a1",
				model.ClaimExpectation{Holder: who, StaleBefore: now.Add(-model.DefaultLeaseDuration)},
				model.ApplicationPatch{Status: model.StatusUnderReview, Claim: &model.Claim{Claimant: who, ClaimedAt: now}})
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestMemory_ConditionalUpdateStatusGuard(t *testing.T) {
	now := time.Now()
	repo := seedMemory(t, model.Application{ID: "a1", Branch: "Software", Status: model.StatusAccept})
	open := []model.Status{model.StatusSubmitted, model.StatusUnderReview}

	ok, err := repo.ConditionalUpdate(context.Background(), "a1",
		model.ClaimExpectation{Holder: "bob@x.com", StaleBefore: now.Add(-model.DefaultLeaseDuration), Statuses: open},
		model.ApplicationPatch{Status: model.StatusUnderReview, Claim: &model.Claim{Claimant: "bob@x.com", ClaimedAt: now}})
	require.NoError(t, err)
	assert.False(t, ok)

	app, err := repo.GetApplication(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccept, app.Status)
	assert.Nil(t, app.Claim)
}

func TestMemory_StaleAtExactLeaseBoundary(t *testing.T) {
	now := time.Now()
	claimedAt := now.Add(-model.DefaultLeaseDuration)
	repo := seedMemory(t, model.Application{ID: "a1", Branch: "Software", Status: model.StatusUnderReview,
		Claim: &model.Claim{Claimant: "bob@x.com", ClaimedAt: claimedAt}})

	ok, err := repo.ConditionalUpdate(context.Background(), "a1",
		model.ClaimExpectation{Holder: "alice@x.com", StaleBefore: claimedAt.Add(-time.Nanosecond)},
		model.ApplicationPatch{Claim: &model.Claim{Claimant: "alice@x.com", ClaimedAt: now}})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ConditionalUpdate(context.Background(), "a1",
		model.ClaimExpectation{Holder: "alice@x.com", StaleBefore: now.Add(-model.DefaultLeaseDuration)},
		model.ApplicationPatch{Claim: &model.Claim{Claimant: "alice@x.com", ClaimedAt: now}})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory_BranchStatusCountsByRole(t *testing.T) {
	repo := seedMemory(t,
		model.Application{ID: "a1", Branch: "Data", Role: "Analyst", Status: model.StatusSubmitted},
		model.Application{ID: "a2", Branch: "data", Role: "Analyst", Status: model.StatusSubmitted},
		model.Application{ID: "a3", Branch: "Data", Role: "Chief Analyst", Status: model.StatusAccept},
		model.Application{ID: "a4", Branch: "Hardware", Role: "Analyst", Status: model.StatusSubmitted},
	)

	counts, err := repo.BranchStatusCounts(context.Background(), " Data ")
	require.NoError(t, err)
	assert.Equal(t, []model.StatusCount{
		{Role: "Analyst", Status: model.StatusSubmitted, Count: 2},
		{Role: "Chief Analyst", Status: model.StatusAccept, Count: 1},
	}, counts)
}

func TestMemory_FindFiltersAndOrders(t *testing.T) {
	now := time.Now()
	repo := seedMemory(t,
		model.Application{ID: "c", Branch: "software", Status: model.StatusSubmitted},
		model.Application{ID: "a", Branch: "Software", Status: model.StatusUnderReview,
			Claim: &model.Claim{Claimant: "bob@x.com", ClaimedAt: now}},
		model.Application{ID: "b", Branch: "Software", Status: model.StatusUnderReview,
			Claim: &model.Claim{Claimant: "bob@x.com", ClaimedAt: now.Add(-3 * time.Hour)}},
		model.Application{ID: "d", Branch: "Software", Status: model.StatusAccept},
		model.Application{ID: "e", Branch: "Hardware", Status: model.StatusSubmitted},
	)

	got, err := repo.FindApplications(context.Background(), model.ApplicationFilter{
		Branch:      "SOFTWARE",
		Statuses:    []model.Status{model.StatusSubmitted, model.StatusUnderReview},
		ClaimableBy: "alice@x.com",
		StaleBefore: now.Add(-model.DefaultLeaseDuration),
	})
	require.NoError(t, err)

	ids := []string{}
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"b", "c"}, ids)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	repo := seedMemory(t, model.Application{ID: "a1", Status: model.StatusSubmitted, Responses: map[string]string{"q": "a"}})

	got, err := repo.GetApplication(context.Background(), "a1")
	require.NoError(t, err)
	got.Responses["q"] = "changed"
	got.Notes = append(got.Notes, model.Note{Content: "x"})

	again, err := repo.GetApplication(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Responses["q"])
	assert.Empty(t, again.Notes)
}

func TestMemory_ApplyDecision(t *testing.T) {
	now := time.Now()
	repo := seedMemory(t, model.Application{ID: "a1", Branch: "Data", Role: "Member", Status: model.StatusUnderReview,
		Claim: &model.Claim{Claimant: "alice@x.com", ClaimedAt: now}})
	expect := model.ClaimExpectation{Holder: "alice@x.com", StaleBefore: now.Add(-model.DefaultLeaseDuration)}

	ok, err := repo.ApplyDecision(context.Background(), expect,
		model.DecisionEvent{ID: "e1", ApplicationID: "a1", ReviewerEmail: "alice@x.com", Decision: model.DecisionReject, CreatedAt: now},
		&model.Note{Author: "Alice", Content: "[Decision: REJECT] no", CreatedAt: now})
	require.NoError(t, err)
	require.True(t, ok)

	app, _ := repo.GetApplication(context.Background(), "a1")
	assert.Equal(t, model.StatusReject, app.Status)
	assert.Nil(t, app.Claim)
	assert.Len(t, app.History, 1)
	assert.Len(t, app.Notes, 1)

	notes, _ := repo.ListBranchNotes(context.Background(), "data")
	assert.Len(t, notes, 1)
	counts, _ := repo.ReviewerDecisionCounts(context.Background(), "ALICE@x.com")
	assert.Equal(t, 1, counts[model.DecisionReject])

	_, err = repo.ApplyDecision(context.Background(), expect, model.DecisionEvent{ApplicationID: "zz"}, nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
