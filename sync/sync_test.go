// ABOUTME: Shared fixtures for job tests: a fake table API and a runner wired to it
// ABOUTME: Sleeps are skipped so batch pacing does not slow the suite
package sync

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kontakty/airtable"
	"github.com/harperreed/kontakty/airtable/airtabletest"
	"github.com/harperreed/kontakty/models"
	"github.com/harperreed/kontakty/normalize"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, srv *airtabletest.Server) *Runner {
	t.Helper()
	cfg := airtable.DefaultConfig()
	cfg.Token = "pat-test"
	cfg.BaseID = srv.BaseID
	cfg.BaseURL = srv.URL()
	client, err := airtable.New(cfg, airtable.WithSleeper(func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}))
	require.NoError(t, err)
	return NewRunner(client, normalize.Default(), models.DefaultSchema(), log.New(io.Discard))
}

// recordByField finds a fake-server record whose field has the given text value.
func recordByField(records []airtabletest.Record, field, value string) (airtabletest.Record, bool) {
	for _, r := range records {
		if s, ok := r.Fields[field].(string); ok && s == value {
			return r, true
		}
	}
	return airtabletest.Record{}, false
}
