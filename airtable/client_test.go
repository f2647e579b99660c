package airtable_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/airtable/airtabletest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedSleeps struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	return ctx.Err()
}

func (r *recordedSleeps) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

func newClient(t *testing.T, srv *airtabletest.Server) (*airtable.Client, *recordedSleeps) {
	t.Helper()
	sleeps := &recordedSleeps{}
	cfg := airtable.DefaultConfig()
	cfg.Token = "pat-test"
	cfg.BaseID = srv.BaseID
	cfg.BaseURL = srv.URL()
	c, err := airtable.New(cfg, airtable.WithSleeper(sleeps.sleep))
	require.NoError(t, err)
	return c, sleeps
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := airtable.New(airtable.Config{BaseID: "app1"})
	var cfgErr *airtable.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "token")

	_, err = airtable.New(airtable.Config{Token: "x"})
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "base id")
}

func TestNewClampsPacing(t *testing.T) {
	c, err := airtable.New(airtable.Config{Token: "x", BaseID: "app1", BatchSize: 50, PageSize: 500})
	require.NoError(t, err)
	cfg := c.Config()
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 8, cfg.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, airtable.DefaultBaseURL, cfg.BaseURL)
}

func TestCreateBatchesWithRetries(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Kontakty")
	// Second POST batch is rate limited twice before it goes through.
	srv.FailWith(http.MethodPost, 2, 429, 429)
	c, sleeps := newClient(t, srv)

	input := make([]airtable.Fields, 23)
	for i := range input {
		input[i] = airtable.Fields{"E-mail": fmt.Sprintf("user%02d@example.com", i)}
	}

	created, err := c.Create(context.Background(), "Kontakty", input)
	require.NoError(t, err)
	require.Len(t, created, 23)
	for i, r := range created {
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, fmt.Sprintf("user%02d@example.com", i), r.Fields.String("E-mail"))
	}

	var sizes []int
	for _, req := range srv.Requests() {
		var body struct {
			Records  []map[string]any `json:"records"`
			Typecast bool             `json:"typecast"`
		}
		require.NoError(t, json.Unmarshal(req.Body, &body))
		assert.True(t, body.Typecast)
		sizes = append(sizes, len(body.Records))
	}
	// Retried requests resend the same body.
	assert.Equal(t, []int{10, 10, 10, 10, 3}, sizes)

	assert.Equal(t, []time.Duration{
		200 * time.Millisecond, // between batch 1 and 2
		time.Second,
		2 * time.Second,
		200 * time.Millisecond, // between batch 2 and 3
	}, sleeps.all())
	assert.Len(t, srv.Records("Kontakty"), 23)
}

func TestNonRetryableStatusFailsImmediately(t *testing.T) {
	long := strings.Repeat("x", 900)
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(long))
	}))
	defer ts.Close()

	c, err := airtable.New(airtable.Config{Token: "x", BaseID: "app1", BaseURL: ts.URL},
		airtable.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	require.NoError(t, err)

	_, err = c.Create(context.Background(), "Kontakty", []airtable.Fields{{"a": "b"}})
	var apiErr *airtable.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.StatusCode)
	assert.Len(t, apiErr.Body, 500)
	assert.Equal(t, 1, calls)
}

func TestFailedBatchKeepsEarlierBatches(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Kontakty")
	srv.FailWith(http.MethodPost, 2, 422)
	c, _ := newClient(t, srv)

	input := make([]airtable.Fields, 23)
	for i := range input {
		input[i] = airtable.Fields{"E-mail": fmt.Sprintf("user%02d@example.com", i)}
	}

	created, err := c.Create(context.Background(), "Kontakty", input)
	var apiErr *airtable.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.StatusCode)

	// Batch 3 is never sent; batch 1 stays written.
	assert.Equal(t, 2, srv.CountRequests(http.MethodPost))
	require.Len(t, created, 10)
	assert.Equal(t, "user00@example.com", created[0].Fields.String("E-mail"))
	assert.Len(t, srv.Records("Kontakty"), 10)
}

func TestRetriesExhausted(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Kontakty")
	srv.FailWith(http.MethodGet, 1, 503, 503, 503, 503, 503, 503, 503, 503)
	c, sleeps := newClient(t, srv)

	_, err := c.FetchAll(context.Background(), "Kontakty")
	require.Error(t, err)
	assert.True(t, errors.Is(err, airtable.ErrRetriesExhausted))

	var exhausted *airtable.RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 503, exhausted.LastStatus)
	assert.Equal(t, 8, srv.CountRequests(http.MethodGet))
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 20 * time.Second, 20 * time.Second,
	}, sleeps.all())
}

func TestUnknownFieldError(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Kontakty", "E-mail")
	c, _ := newClient(t, srv)

	_, err := c.Create(context.Background(), "Kontakty", []airtable.Fields{{"Nope": "x"}})
	require.Error(t, err)
	assert.True(t, airtable.IsUnknownField(err))

	var apiErr *airtable.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "UNKNOWN_FIELD_NAME", apiErr.Type)
}

func TestBearerTokenSent(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"records":[]}`))
	}))
	defer ts.Close()

	c, err := airtable.New(airtable.Config{Token: "pat-secret", BaseID: "app1", BaseURL: ts.URL})
	require.NoError(t, err)
	_, err = c.FetchAll(context.Background(), "Kontakty")
	require.NoError(t, err)
	assert.Equal(t, "Bearer pat-secret", got)
}

func TestContextCancelStopsBackoff(t *testing.T) {
	srv := airtabletest.New(t)
	srv.AddTable("Kontakty")
	srv.FailWith(http.MethodGet, 1, 429)

	cfg := airtable.Config{Token: "x", BaseID: srv.BaseID, BaseURL: srv.URL()}
	c, err := airtable.New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.FetchAll(ctx, "Kontakty")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, srv.CountRequests(http.MethodGet))
}
