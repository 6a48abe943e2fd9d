package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ToffenYT/varsly/internal/mailer"
	"github.com/ToffenYT/varsly/internal/store"
	"github.com/ToffenYT/varsly/internal/unsubscribe"
	"github.com/ToffenYT/varsly/pkg/models"
)

type fakeProvider struct {
	mu     sync.Mutex
	sent   []mailer.Message
	failTo map[string]bool
}

func (f *fakeProvider) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[msg.To] {
		return fmt.Errorf("%w: status 500", mailer.ErrRejected)
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeProvider) messagesTo(addr string) []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []mailer.Message
	for _, m := range f.sent {
		if m.To == addr {
			out = append(out, m)
		}
	}
	return out
}

var now = time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) (*store.Memory, *fakeProvider, *unsubscribe.Signer, *Router) {
	t.Helper()
	st := store.NewMemory(store.WithMemoryClock(func() time.Time { return now }))
	p := &fakeProvider{failTo: map[string]bool{}}
	signer, err := unsubscribe.NewSigner("test-secret", 0, unsubscribe.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	r := NewRouter(st, p, NewLinks("https://anbudsvarsler.no/", signer), "varsler@resend.dev",
		WithClock(func() time.Time { return now }), WithWorkers(2))
	return st, p, signer, r
}

func addSubscriber(t *testing.T, st *store.Memory, id, email string, enabled bool, mode models.DeliveryMode) {
	t.Helper()
	require.NoError(t, st.UpsertPreference(context.Background(), &models.SubscriberPreference{
		SubscriberID:         id,
		Email:                email,
		NotificationsEnabled: enabled,
		DeliveryMode:         mode,
	}))
}

func addAlert(t *testing.T, st *store.Memory, owner, title string, at time.Time) models.Alert {
	t.Helper()
	a := models.NewAlert(owner, models.TenderCandidate{
		Title:        title,
		Organization: "X kommune",
		URL:          "https://www.doffin.no/Notice/1",
	}, "asfalt")
	a.CreatedAt = at
	require.NoError(t, st.InsertAlert(context.Background(), &a))
	return a
}

func TestImmediateSends(t *testing.T) {
	st, p, signer, r := newFixture(t)
	addSubscriber(t, st, "s1", "s1@example.no", true, models.DeliveryImmediate)
	a := addAlert(t, st, "s1", "Asfaltering av vei", now)

	d, err := r.Immediate(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, d.Status)

	msgs := p.messagesTo("s1@example.no")
	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, "Nytt anbud funnet for søkeordet: asfalt", msg.Subject)
	assert.Equal(t, "varsler@resend.dev", msg.From)
	assert.Contains(t, msg.HTML, "Asfaltering av vei")
	assert.Contains(t, msg.HTML, "X kommune")
	assert.Contains(t, msg.HTML, "Ikke oppgitt")
	assert.Contains(t, msg.HTML, `href="https://www.doffin.no/Notice/1"`)
	assert.Contains(t, msg.HTML, `href="https://anbudsvarsler.no/settings"`)

	token := extractToken(t, msg.HTML)
	sub, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "s1", sub)

	pref, err := st.GetPreference(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, pref.LastNotifiedAt)
	assert.Equal(t, now, *pref.LastNotifiedAt)
}

func extractToken(t *testing.T, html string) string {
	t.Helper()
	const marker = `https://anbudsvarsler.no/unsubscribe?token=`
	i := strings.Index(html, marker)
	require.GreaterOrEqual(t, i, 0, "unsubscribe link missing")
	rest := html[i+len(marker):]
	raw := rest[:strings.Index(rest, `"`)]
	token, err := url.QueryUnescape(raw)
	require.NoError(t, err)
	return token
}

func TestImmediateProviderRejects(t *testing.T) {
	st, p, _, r := newFixture(t)
	addSubscriber(t, st, "s1", "s1@example.no", true, models.DeliveryImmediate)
	p.failTo["s1@example.no"] = true
	a := addAlert(t, st, "s1", "Asfaltering av vei", now)

	d, err := r.Immediate(context.Background(), a)
	require.Error(t, err)
	assert.ErrorIs(t, err, mailer.ErrRejected)
	assert.Equal(t, StatusFailed, d.Status)

	pref, _ := st.GetPreference(context.Background(), "s1")
	assert.Nil(t, pref.LastNotifiedAt)

	_, err = st.FindAlert(context.Background(), a.Key())
	assert.NoError(t, err, "alert stays after a failed send")
}

func TestImmediateSkips(t *testing.T) {
	st, p, _, r := newFixture(t)
	addSubscriber(t, st, "digest", "d@example.no", true, models.DeliveryDailyDigest)
	addSubscriber(t, st, "off", "off@example.no", false, models.DeliveryImmediate)

	for _, id := range []string{"digest", "off"} {
		d, err := r.Immediate(context.Background(), addAlert(t, st, id, "T", now))
		require.NoError(t, err)
		assert.Equal(t, StatusSkipped, d.Status, id)
	}
	assert.Empty(t, p.sent)
}

func TestImmediateErrors(t *testing.T) {
	st, _, _, r := newFixture(t)
	addSubscriber(t, st, "noemail", "", true, models.DeliveryImmediate)

	_, err := r.Immediate(context.Background(), addAlert(t, st, "noemail", "T", now))
	assert.ErrorIs(t, err, ErrNoEmail)

	_, err = r.Immediate(context.Background(), addAlert(t, st, "ghost", "T", now))
	assert.ErrorIs(t, err, store.ErrNotFound)

	addSubscriber(t, st, "s1", "s1@example.no", true, models.DeliveryImmediate)
	unconfigured := NewRouter(st, nil, NewLinks("https://anbudsvarsler.no", nil), "from@example.no")
	_, err = unconfigured.Immediate(context.Background(), addAlert(t, st, "s1", "T", now))
	assert.ErrorIs(t, err, mailer.ErrNotConfigured)
}

func TestImmediateEscapesNoticeText(t *testing.T) {
	st, p, _, r := newFixture(t)
	addSubscriber(t, st, "s1", "s1@example.no", true, models.DeliveryImmediate)
	a := models.NewAlert("s1", models.TenderCandidate{
		Title:        `<script>alert("x")</script> & co`,
		Organization: "A&B",
		URL:          "javascript:alert(1)",
	}, "co")
	require.NoError(t, st.InsertAlert(context.Background(), &a))

	_, err := r.Immediate(context.Background(), a)
	require.NoError(t, err)

	html := p.sent[0].HTML
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "A&amp;B")
	assert.NotContains(t, html, "javascript:")
}

func TestLinksWithoutSecret(t *testing.T) {
	l := NewLinks("https://anbudsvarsler.no", nil)
	assert.Equal(t, "https://anbudsvarsler.no/settings", l.Unsubscribe("s1"))
}

func TestDigest(t *testing.T) {
	st, p, _, r := newFixture(t)
	ctx := context.Background()

	addSubscriber(t, st, "busy", "busy@example.no", true, models.DeliveryDailyDigest)
	addAlert(t, st, "busy", "Eldst i vinduet", now.Add(-23*time.Hour))
	addAlert(t, st, "busy", "Nyest", now.Add(-time.Hour))
	addAlert(t, st, "busy", "For gammel", now.Add(-25*time.Hour))

	addSubscriber(t, st, "quiet", "quiet@example.no", true, models.DeliveryDailyDigest)
	addAlert(t, st, "quiet", "Forrige uke", now.Add(-7*24*time.Hour))

	addSubscriber(t, st, "off", "off@example.no", false, models.DeliveryDailyDigest)
	addAlert(t, st, "off", "Skal ikke sendes", now)

	addSubscriber(t, st, "instant", "instant@example.no", true, models.DeliveryImmediate)
	addAlert(t, st, "instant", "Sendt umiddelbart", now)

	sum, err := r.Digest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.UsersChecked)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 1, sum.Empty)
	assert.Zero(t, sum.Failed)

	msgs := p.messagesTo("busy@example.no")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Dagens oppsummering – 2 nye anbud", msgs[0].Subject)
	html := msgs[0].HTML
	assert.Less(t, strings.Index(html, "Nyest"), strings.Index(html, "Eldst i vinduet"), "newest first")
	assert.NotContains(t, html, "For gammel")

	assert.Empty(t, p.messagesTo("quiet@example.no"))
	assert.Empty(t, p.messagesTo("off@example.no"))
	assert.Empty(t, p.messagesTo("instant@example.no"))

	busy, _ := st.GetPreference(ctx, "busy")
	require.NotNil(t, busy.LastNotifiedAt)
	quiet, _ := st.GetPreference(ctx, "quiet")
	assert.Nil(t, quiet.LastNotifiedAt)
}

func TestDigestFailureDoesNotBlockOthers(t *testing.T) {
	st, p, _, r := newFixture(t)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("s%d", i)
		addSubscriber(t, st, id, id+"@example.no", true, models.DeliveryDailyDigest)
		addAlert(t, st, id, "Brøyting", now.Add(-time.Hour))
	}
	p.failTo["s2@example.no"] = true

	sum, err := r.Digest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Sent)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, "s2", sum.Failures[0].SubscriberID)

	s2, _ := st.GetPreference(context.Background(), "s2")
	assert.Nil(t, s2.LastNotifiedAt)
}

func TestDigestSkipsMissingEmail(t *testing.T) {
	st, p, _, r := newFixture(t)
	addSubscriber(t, st, "s1", "", true, models.DeliveryDailyDigest)
	addAlert(t, st, "s1", "T", now)

	sum, err := r.Digest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Empty(t, p.sent)
}

func TestDigestRequiresProvider(t *testing.T) {
	r := NewRouter(store.NewMemory(), nil, NewLinks("https://x.no", nil), "f@x.no")
	_, err := r.Digest(context.Background())
	assert.True(t, errors.Is(err, mailer.ErrNotConfigured))
}
