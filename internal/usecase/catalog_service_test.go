package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/riskibarqy/volley-ticker/internal/platform/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_ListLeaguesCachesOneShotFetch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, fetcher, _, _ := newTestRegistry(t, loadFixture(t))
	svc := NewCatalogService(registry, fetcher, "https://ticker.test/live/tickers/", time.Minute, logging.NewNop())

	leagues, err := svc.ListLeagues(ctx, "Baden", "female")
	require.NoError(t, err)
	require.Len(t, leagues, 1)
	assert.Equal(t, "league-vl-f", leagues[0].ID)

	all, err := svc.ListLeagues(ctx, "baden", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 1, fetcher.Calls(), "second lookup must hit the cache")
	assert.Equal(t, "https://ticker.test/live/tickers/baden", fetcher.urls[0])
}

func TestCatalogService_PrefersAttachedSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, fetcher, _, _ := newTestRegistry(t, loadFixture(t))
	coordinator, err := registry.Attach("", "baden")
	require.NoError(t, err)
	_, err = coordinator.Refresh(ctx, true)
	require.NoError(t, err)

	svc := NewCatalogService(registry, fetcher, "https://ticker.test/live/tickers/", time.Minute, logging.NewNop())
	teams, err := svc.ListTeams(ctx, "baden", "league-vl-f")
	require.NoError(t, err)
	assert.Equal(t, []TeamSummary{
		{ID: "team-freiburg", Name: "FT 1844 Freiburg 4"},
		{ID: "team-karlsruhe", Name: "SSC Karlsruhe 2"},
		{ID: "team-mannheim", Name: "VSG Mannheim"},
	}, teams)
	assert.Equal(t, 1, fetcher.Calls())
}

func TestCatalogService_AttachedSnapshotEvictsOneShotCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, fetcher, _, _ := newTestRegistry(t, loadFixture(t))
	svc := NewCatalogService(registry, fetcher, "https://ticker.test/live/tickers/", time.Minute, logging.NewNop())

	_, err := svc.ListLeagues(ctx, "baden", "")
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.Calls())

	coordinator, err := registry.Attach("", "baden")
	require.NoError(t, err)
	_, err = coordinator.Refresh(ctx, true)
	require.NoError(t, err)
	require.Equal(t, 2, fetcher.Calls())

	_, err = svc.ListLeagues(ctx, "baden", "")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.Calls(), "attached snapshot answers without a fetch")

	require.NoError(t, registry.Detach("baden"))
	_, err = svc.ListLeagues(ctx, "baden", "")
	require.NoError(t, err)
	assert.Equal(t, 3, fetcher.Calls(), "one-shot copy was evicted while attached")
}

func TestCatalogService_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, fetcher, _, _ := newTestRegistry(t, loadFixture(t))
	svc := NewCatalogService(registry, fetcher, "https://ticker.test/live/tickers/", time.Minute, logging.NewNop())

	_, err := svc.ListLeagues(ctx, "atlantis", "")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = svc.ListLeagues(ctx, "baden", "junior")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = svc.ListTeams(ctx, "baden", "league-unknown")
	assert.True(t, errors.Is(err, ErrNotFound))

	fetcher.set(nil, errors.Mark(errors.New("refused"), ErrTransport))
	_, err = svc.ListLeagues(ctx, "vlw", "")
	assert.True(t, errors.Is(err, ErrTransport))
}
