package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ToffenYT/varsly/internal/notify"
	"github.com/ToffenYT/varsly/internal/source"
	"github.com/ToffenYT/varsly/internal/store"
	"github.com/ToffenYT/varsly/internal/telemetry"
	"github.com/ToffenYT/varsly/pkg/models"
)

type fixedFetcher struct {
	outcome source.Outcome
	calls   int
}

func (f *fixedFetcher) Fetch(context.Context) source.Outcome {
	f.calls++
	return f.outcome
}

func fetcherOf(cs ...models.TenderCandidate) *fixedFetcher {
	return &fixedFetcher{outcome: source.Outcome{
		Source:     "static",
		Candidates: cs,
		Attempts:   []source.Attempt{{Source: "static", Status: source.StatusData, Count: len(cs)}},
	}}
}

var (
	asfalt = models.TenderCandidate{Title: "Asfaltering av vei", Organization: "X kommune"}
	snow   = models.TenderCandidate{Title: "Snøbrøyting 2025", Organization: "Bærum kommune", Category: "Drift"}
)

func subscribe(t *testing.T, st store.Store, id string, enabled bool, keywords ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertPreference(ctx, &models.SubscriberPreference{
		SubscriberID:         id,
		Email:                id + "@example.no",
		NotificationsEnabled: enabled,
		DeliveryMode:         models.DeliveryImmediate,
	}))
	for _, kw := range keywords {
		require.NoError(t, st.InsertKeyword(ctx, &models.Keyword{OwnerID: id, Text: kw}))
	}
}

type hookRecorder struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (h *hookRecorder) hook(_ context.Context, a models.Alert) notify.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alerts = append(h.alerts, a)
	return ""
}

func TestRecordMatchIdempotent(t *testing.T) {
	st := store.NewMemory()
	r := NewRecorder(st)
	ctx := context.Background()

	first, created, err := r.RecordMatch(ctx, "u1", asfalt, "asfalt")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)

	again, created, err := r.RecordMatch(ctx, "u1", asfalt, "asfalt")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 1, st.AlertCount())
}

// lostRace hides existing alerts from FindAlert, as if another writer inserted in between
type lostRace struct {
	*store.Memory
}

func (lostRace) FindAlert(context.Context, models.AlertKey) (*models.Alert, error) {
	return nil, store.ErrNotFound
}

func TestRecordMatchConflictIsNotAnError(t *testing.T) {
	st := lostRace{store.NewMemory()}
	r := NewRecorder(st)

	_, created, err := r.RecordMatch(context.Background(), "u1", asfalt, "asfalt")
	require.NoError(t, err)
	require.True(t, created)

	_, created, err = r.RecordMatch(context.Background(), "u1", asfalt, "asfalt")
	require.NoError(t, err)
	assert.False(t, created)
}

type brokenStore struct {
	*store.Memory
}

func (brokenStore) InsertAlert(context.Context, *models.Alert) error {
	return errors.New("connection reset")
}

func TestRunNoKeywords(t *testing.T) {
	f := fetcherOf(asfalt)
	sum, err := NewPipeline(f, store.NewMemory()).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, sum.OK)
	assert.Equal(t, reasonNoKeywords, sum.Reason)
	assert.Zero(t, f.calls, "no fetch without keywords")
}

func TestRunSkipsDisabledSubscribers(t *testing.T) {
	st := store.NewMemory()
	subscribe(t, st, "off", false, "asfalt")
	f := fetcherOf(asfalt)

	sum, err := NewPipeline(f, st).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reasonNoSubscribers, sum.Reason)
	assert.Zero(t, st.AlertCount())

	subscribe(t, st, "on", true, "asfalt")
	sum, err = NewPipeline(f, st).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Subscriptions)
	assert.Equal(t, 1, sum.Inserted)

	alerts, _ := st.ListAlertsSince(context.Background(), "off", time.Time{})
	assert.Empty(t, alerts)
}

func TestRunCrossProduct(t *testing.T) {
	st := store.NewMemory()
	subscribe(t, st, "u1", true, "asfalt", "kommune")
	subscribe(t, st, "u2", true, "BRØYTING", "tunnel")
	hooks := &hookRecorder{}

	sum, err := NewPipeline(fetcherOf(asfalt, snow), st, WithHooks(hooks.hook), WithTelemetry(telemetry.NewNoop())).
		Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "static", sum.Source)
	assert.Equal(t, 2, sum.TendersChecked)
	assert.Equal(t, 4, sum.Subscriptions)
	// u1: asfalt×asfalt, kommune×asfalt, kommune×snow; u2: brøyting×snow
	assert.Equal(t, 4, sum.Matches)
	assert.Equal(t, 4, sum.Inserted)
	assert.Len(t, hooks.alerts, 4)
	require.Len(t, sum.Attempts, 1)
	assert.Equal(t, "data", sum.Attempts[0].Status)
}

func TestRunCountsDeliveries(t *testing.T) {
	st := store.NewMemory()
	subscribe(t, st, "u1", true, "asfalt", "kommune")
	subscribe(t, st, "u2", true, "brøyting")

	byKeyword := map[string]notify.Status{
		"asfalt":   notify.StatusSent,
		"kommune":  notify.StatusFailed,
		"brøyting": notify.StatusSkipped,
	}
	deliver := func(_ context.Context, a models.Alert) notify.Status {
		return byKeyword[a.MatchedKeyword]
	}
	hooks := &hookRecorder{}

	sum, err := NewPipeline(fetcherOf(asfalt, snow), st, WithHooks(deliver, hooks.hook)).Run(context.Background())
	require.NoError(t, err)

	// asfalt×asfalt sent; kommune×asfalt, kommune×snow failed; brøyting×snow skipped
	assert.Equal(t, 4, sum.Inserted)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 2, sum.SendFailed)
	assert.Equal(t, 1, sum.SendSkipped)
	assert.Len(t, hooks.alerts, 4, "non-sending hooks add nothing to the counts")
}

func TestRunIdempotent(t *testing.T) {
	st := store.NewMemory()
	subscribe(t, st, "u1", true, "asfalt", "kommune")
	hooks := &hookRecorder{}
	p := NewPipeline(fetcherOf(asfalt, snow), st, WithHooks(hooks.hook))

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	second, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, first.Inserted)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 3, second.Duplicates)
	assert.Equal(t, 3, st.AlertCount())
	assert.Len(t, hooks.alerts, 3, "hooks only fire for new alerts")
}

func TestRunCountsWriteErrors(t *testing.T) {
	st := brokenStore{store.NewMemory()}
	subscribe(t, st, "u1", true, "asfalt")

	sum, err := NewPipeline(fetcherOf(asfalt), st).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, sum.OK)
	assert.Equal(t, 1, sum.Errors)
	assert.Zero(t, sum.Inserted)
}

func TestRunCancelled(t *testing.T) {
	st := store.NewMemory()
	subscribe(t, st, "u1", true, "asfalt")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := NewPipeline(fetcherOf(asfalt), st).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, sum.Cancelled)
	assert.Zero(t, st.AlertCount())
}

func TestRunConcurrentWritersNeverDoubleInsert(t *testing.T) {
	st := store.NewMemory()
	subscribe(t, st, "u1", true, "asfalt")
	subscribe(t, st, "u2", true, "vei")

	var wg sync.WaitGroup
	inserted := make([]int, 8)
	for i := range inserted {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sum, err := NewPipeline(fetcherOf(asfalt), st).Run(context.Background())
			if err == nil {
				inserted[i] = sum.Inserted
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, n := range inserted {
		total += n
	}
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, st.AlertCount())
}
