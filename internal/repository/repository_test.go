package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/websitelelo/websitelelo/internal/filestore"
	"github.com/websitelelo/websitelelo/internal/models"
	"github.com/websitelelo/websitelelo/internal/repository"
	"github.com/websitelelo/websitelelo/internal/testutil"
)

type planRepo = repository.Repository[models.Plan, *models.Plan]

type fixture struct {
	files   *filestore.Store
	health  *testutil.Health
	primary *testutil.MemoryPrimary[models.Plan, *models.Plan]
	repo    *planRepo
	clock   *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type countingRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (c *countingRecorder) Fallback(collection, operation string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, collection+"/"+operation)
}

func newFixture(t *testing.T, up bool) *fixture {
	t.Helper()
	f := &fixture{
		files:   filestore.New(t.TempDir()),
		health:  testutil.NewHealth(up),
		primary: testutil.NewMemoryPrimary[models.Plan, *models.Plan](),
		clock:   &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	f.repo = repository.New[models.Plan](
		"plans", f.primary, repository.Options{
			Health: f.health,
			Files:  f.files,
			Now:    f.clock.Now,
		})
	return f
}

func fields(t *testing.T, v map[string]any) map[string]json.RawMessage {
	t.Helper()
	out := make(map[string]json.RawMessage, len(v))
	for k, val := range v {
		raw, err := json.Marshal(val)
		require.NoError(t, err)
		out[k] = raw
	}
	return out
}

func basicPlan(t *testing.T) map[string]json.RawMessage {
	return fields(t, map[string]any{
		"name":         "Basic",
		"price":        "₹13,999",
		"deliveryTime": "7 Days",
		"features":     "SEO, Mobile Responsive",
	})
}

func TestCreate_FeaturesFromCommaSeparatedString(t *testing.T) {
	for _, up := range []bool{true, false} {
		f := newFixture(t, up)
		plan, err := f.repo.Create(context.Background(), basicPlan(t))
		require.NoError(t, err)
		assert.Equal(t, models.Features{"SEO", "Mobile Responsive"}, plan.Features)
		assert.Equal(t, models.Bool(true), plan.IsActive)
		assert.NotEmpty(t, plan.ID)
		assert.False(t, plan.CreatedAt.IsZero())
	}
}

func TestCreateThenListIncludesOnce(t *testing.T) {
	for _, up := range []bool{true, false} {
		f := newFixture(t, up)
		ctx := context.Background()

		created, err := f.repo.Create(ctx, basicPlan(t))
		require.NoError(t, err)

		plans, err := f.repo.List(ctx, repository.ListOptions{})
		require.NoError(t, err)

		matches := 0
		for _, p := range plans {
			if p.ID == created.ID {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "connected=%v", up)
	}
}

func TestCreate_ValidationRejectsMissingFields(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.repo.Create(context.Background(), fields(t, map[string]any{"name": "Basic"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrValidation)
	assert.Contains(t, err.Error(), "price")
	assert.Contains(t, err.Error(), "deliveryTime")

	// nothing was written
	_, statErr := os.Stat(f.files.Path("plans"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCreate_IgnoresClientSuppliedIdentity(t *testing.T) {
	f := newFixture(t, false)
	in := basicPlan(t)
	in["_id"] = json.RawMessage(`"chosen"`)
	in["createdAt"] = json.RawMessage(`"2001-01-01T00:00:00Z"`)

	plan, err := f.repo.Create(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, "chosen", plan.ID)
	assert.Equal(t, 2026, plan.CreatedAt.Year())
}

func TestFallbackCRUD_FileReflectsSurvivors(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	basic, err := f.repo.Create(ctx, basicPlan(t))
	require.NoError(t, err)
	standard, err := f.repo.Create(ctx, fields(t, map[string]any{
		"name": "Standard", "price": "₹17,999", "deliveryTime": "14 Days",
	}))
	require.NoError(t, err)

	updated, err := f.repo.Update(ctx, basic.ID, fields(t, map[string]any{"price": "₹12,999"}))
	require.NoError(t, err)
	assert.Equal(t, "₹12,999", updated.Price)
	assert.Equal(t, "Basic", updated.Name)

	require.NoError(t, f.repo.Delete(ctx, standard.ID))

	data, err := os.ReadFile(f.files.Path("plans"))
	require.NoError(t, err)
	var onDisk []models.Plan
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Len(t, onDisk, 1)
	assert.Equal(t, basic.ID, onDisk[0].ID)
	assert.Equal(t, "₹12,999", onDisk[0].Price)
	assert.Equal(t, models.Features{"SEO", "Mobile Responsive"}, onDisk[0].Features)
	assert.Empty(t, f.primary.Docs())
}

func TestUpdate_MergesInsteadOfOverwriting(t *testing.T) {
	for _, up := range []bool{true, false} {
		f := newFixture(t, up)
		ctx := context.Background()

		plan, err := f.repo.Create(ctx, basicPlan(t))
		require.NoError(t, err)

		_, err = f.repo.Update(ctx, plan.ID, fields(t, map[string]any{
			"matrixValues": map[string]string{"numPages": "5 Pages"},
			"isActive":     false,
		}))
		require.NoError(t, err)

		all, err := f.repo.List(ctx, repository.ListOptions{})
		require.NoError(t, err)
		require.Len(t, all, 1)
		got := all[0]
		assert.Equal(t, "Basic", got.Name)
		assert.Equal(t, "7 Days", got.DeliveryTime)
		assert.Equal(t, models.Features{"SEO", "Mobile Responsive"}, got.Features)
		assert.Equal(t, "5 Pages", got.MatrixValues["numPages"])
		assert.Equal(t, models.Bool(false), got.IsActive)
		assert.Equal(t, plan.CreatedAt, got.CreatedAt)
		require.NotNil(t, got.UpdatedAt)
	}
}

func TestUpdate_EmptyPatchOnlyTouchesUpdatedAt(t *testing.T) {
	for _, up := range []bool{true, false} {
		f := newFixture(t, up)
		ctx := context.Background()

		plan, err := f.repo.Create(ctx, basicPlan(t))
		require.NoError(t, err)

		updated, err := f.repo.Update(ctx, plan.ID, map[string]json.RawMessage{})
		require.NoError(t, err)
		require.NotNil(t, updated.UpdatedAt)

		before := *plan
		after := *updated
		before.UpdatedAt, after.UpdatedAt = nil, nil
		assert.Equal(t, before, after)
	}
}

func TestUpdate_InvalidPatchIsRejected(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	plan, err := f.repo.Create(ctx, basicPlan(t))
	require.NoError(t, err)

	_, err = f.repo.Update(ctx, plan.ID, fields(t, map[string]any{"name": ""}))
	assert.ErrorIs(t, err, repository.ErrValidation)

	_, err = f.repo.Update(ctx, plan.ID, map[string]json.RawMessage{"isActive": json.RawMessage(`"yes"`)})
	assert.ErrorIs(t, err, repository.ErrValidation)

	got, err := f.repo.Get(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Basic", got.Name)
}

func TestUpdateAndDelete_MissingIsNotFound(t *testing.T) {
	for _, up := range []bool{true, false} {
		f := newFixture(t, up)
		ctx := context.Background()

		_, err := f.repo.Update(ctx, "nope", fields(t, map[string]any{"name": "x"}))
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.ErrorIs(t, f.repo.Delete(ctx, "nope"), repository.ErrNotFound)
		_, err = f.repo.Get(ctx, "nope")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	}
}

func TestCrossBackendUpdateIsNotFound(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	offline, err := f.repo.Create(ctx, basicPlan(t))
	require.NoError(t, err)

	// the primary comes back: the file-store record is no longer visible
	f.health.Set(true)
	_, err = f.repo.Update(ctx, offline.ID, fields(t, map[string]any{"price": "1"}))
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, f.repo.Delete(ctx, offline.ID), repository.ErrNotFound)

	online, err := f.repo.Create(ctx, basicPlan(t))
	require.NoError(t, err)
	assert.Len(t, online.ID, 24)
	assert.NotEqual(t, offline.ID, online.ID)

	plans, err := f.repo.List(ctx, repository.ListOptions{})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, online.ID, plans[0].ID)
}

func TestAdapterErrorDegradesToFileStore(t *testing.T) {
	f := newFixture(t, true)
	rec := &countingRecorder{}
	f.repo = repository.New[models.Plan]("plans", f.primary, repository.Options{
		Health:   f.health,
		Files:    f.files,
		Recorder: rec,
		Now:      f.clock.Now,
	})
	f.primary.Err = errors.New("connection reset")
	ctx := context.Background()

	plan, err := f.repo.Create(ctx, basicPlan(t))
	require.NoError(t, err)

	plans, err := f.repo.List(ctx, repository.ListOptions{})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, plan.ID, plans[0].ID)

	_, err = f.repo.Update(ctx, plan.ID, fields(t, map[string]any{"price": "₹1"}))
	require.NoError(t, err)
	require.NoError(t, f.repo.Delete(ctx, plan.ID))

	assert.Equal(t, []string{"plans/create", "plans/list", "plans/update", "plans/delete"}, rec.calls)
}

func TestListActiveOnly(t *testing.T) {
	for _, up := range []bool{true, false} {
		f := newFixture(t, up)
		ctx := context.Background()

		active, err := f.repo.Create(ctx, basicPlan(t))
		require.NoError(t, err)
		hidden := basicPlan(t)
		hidden["isActive"] = json.RawMessage(`false`)
		_, err = f.repo.Create(ctx, hidden)
		require.NoError(t, err)

		plans, err := f.repo.List(ctx, repository.ListOptions{ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, plans, 1)
		assert.Equal(t, active.ID, plans[0].ID)

		all, err := f.repo.List(ctx, repository.ListOptions{})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	}
}

func TestListActiveOnly_LegacyRecordsWithoutFlagAreActive(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.files.WriteAll("plans", []json.RawMessage{
		json.RawMessage(`{"_id":"1700000000000","name":"Old","price":"1","deliveryTime":"1 Day","createdAt":"2024-01-01T00:00:00Z"}`),
	}))

	plans, err := f.repo.List(context.Background(), repository.ListOptions{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "Old", plans[0].Name)
	assert.Equal(t, models.Bool(true), plans[0].IsActive)
	assert.NotNil(t, plans[0].Features)
}

func TestListActiveOnly_LegacyOffersMatchOnBothBackends(t *testing.T) {
	ctx := context.Background()
	legacy := json.RawMessage(`{"_id":"1700000000000","title":"Diwali","createdAt":"2024-01-01T00:00:00Z"}`)

	t.Run("file store", func(t *testing.T) {
		files := filestore.New(t.TempDir())
		require.NoError(t, files.WriteAll("offers", []json.RawMessage{legacy}))
		offers := repository.New[models.Offer]("offers", nil, repository.Options{Files: files})

		got, err := offers.List(ctx, repository.ListOptions{ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, models.Bool(true), got[0].IsActive)

		one, err := offers.Get(ctx, "1700000000000")
		require.NoError(t, err)
		assert.Equal(t, models.Bool(true), one.IsActive)
	})

	t.Run("primary", func(t *testing.T) {
		primary := testutil.NewMemoryPrimary[models.Offer, *models.Offer]()
		require.NoError(t, primary.Insert(ctx, &models.Offer{
			Base:  models.Base{ID: "65a1f0c2e4b0a1b2c3d4e5f6", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			Title: "Diwali",
		}))
		offers := repository.New[models.Offer]("offers", primary, repository.Options{
			Health: testutil.NewHealth(true),
			Files:  filestore.New(t.TempDir()),
		})

		got, err := offers.List(ctx, repository.ListOptions{ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, models.Bool(true), got[0].IsActive)
	})
}

func TestCreate_OfferStartsHiddenButExplicitFlagWins(t *testing.T) {
	offers := repository.New[models.Offer]("offers", nil, repository.Options{Files: filestore.New(t.TempDir())})
	ctx := context.Background()

	hidden, err := offers.Create(ctx, fields(t, map[string]any{"title": "Monsoon"}))
	require.NoError(t, err)
	assert.Equal(t, models.Bool(false), hidden.IsActive)

	_, err = offers.Create(ctx, fields(t, map[string]any{"title": "Diwali", "isActive": true}))
	require.NoError(t, err)

	public, err := offers.List(ctx, repository.ListOptions{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "Diwali", public[0].Title)
}

func TestList_EmptyIsNotAnError(t *testing.T) {
	for _, up := range []bool{true, false} {
		f := newFixture(t, up)
		plans, err := f.repo.List(context.Background(), repository.ListOptions{})
		require.NoError(t, err)
		assert.NotNil(t, plans)
		assert.Empty(t, plans)
	}
}

func TestList_SortOrder(t *testing.T) {
	files := filestore.New(t.TempDir())
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	leads := repository.New[models.Lead]("contacts", nil, repository.Options{
		Files:      files,
		Descending: true,
		Now:        clock.Now,
	})
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		_, err := leads.Create(ctx, fields(t, map[string]any{
			"name": name, "email": name + "@x.com", "message": "hi",
		}))
		require.NoError(t, err)
	}

	got, err := leads.List(ctx, repository.ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "third", got[0].Name)
	assert.Equal(t, "first", got[2].Name)
	assert.Equal(t, models.LeadStatusNew, got[0].Status)
}

func TestConcurrentCreatesAgainstFileStoreBothPersist(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plan, err := f.repo.Create(ctx, basicPlan(t))
			if assert.NoError(t, err) {
				ids <- plan.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	plans, err := f.repo.List(ctx, repository.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, plans, n)
}

func TestPortfolioLinkAlias(t *testing.T) {
	repo := repository.New[models.PortfolioItem]("portfolio", nil, repository.Options{
		Files: filestore.New(t.TempDir()),
	})
	ctx := context.Background()

	item, err := repo.Create(ctx, fields(t, map[string]any{
		"title": "Shop", "description": "E-commerce build", "imageUrl": "/uploads/a.jpg",
		"link": "https://shop.example.com",
	}))
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com", item.ProjectURL)

	item, err = repo.Update(ctx, item.ID, fields(t, map[string]any{"link": "https://new.example.com"}))
	require.NoError(t, err)
	assert.Equal(t, "https://new.example.com", item.ProjectURL)
	assert.Equal(t, "Shop", item.Title)
}

func TestCount(t *testing.T) {
	for _, up := range []bool{true, false} {
		f := newFixture(t, up)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			_, err := f.repo.Create(ctx, basicPlan(t))
			require.NoError(t, err)
		}
		n, err := f.repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}
}

func TestStorageFaultSurfaces(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, os.WriteFile(f.files.Path("plans"), []byte(`{not json`), 0o644))

	_, err := f.repo.List(context.Background(), repository.ListOptions{})
	assert.ErrorIs(t, err, repository.ErrStorage)

	_, err = f.repo.Create(context.Background(), basicPlan(t))
	assert.ErrorIs(t, err, repository.ErrStorage)
}

func TestImportLocal(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	a, err := f.repo.Create(ctx, basicPlan(t))
	require.NoError(t, err)
	_, err = f.repo.Create(ctx, basicPlan(t))
	require.NoError(t, err)

	_, err = f.repo.ImportLocal(ctx, false)
	assert.ErrorIs(t, err, repository.ErrPrimaryUnavailable)

	f.health.Set(true)
	n, err := f.repo.ImportLocal(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// a second run finds everything already imported
	n, err = f.repo.ImportLocal(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	records, err := f.files.ReadAll("plans")
	require.NoError(t, err)
	assert.Empty(t, records)

	got, err := f.repo.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}
