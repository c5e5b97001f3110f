package usecase

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/riskibarqy/volley-ticker/internal/domain/ticker"
	"github.com/riskibarqy/volley-ticker/internal/platform/cache"
	"github.com/riskibarqy/volley-ticker/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

type TeamSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CatalogService answers setup lookups. It reads the attached coordinator's
// snapshot when there is one and otherwise caches a one-shot fetch.
type CatalogService struct {
	registry   *Registry
	fetcher    OverviewFetcher
	getBaseURL string
	cache      *cache.Store[*ticker.Overview]
	logger     *logging.Logger
}

func NewCatalogService(registry *Registry, fetcher OverviewFetcher, getBaseURL string, ttl time.Duration, logger *logging.Logger) *CatalogService {
	if logger == nil {
		logger = logging.Default()
	}
	return &CatalogService{
		registry:   registry,
		fetcher:    fetcher,
		getBaseURL: getBaseURL,
		cache:      cache.NewStore[*ticker.Overview](ttl),
		logger:     logger,
	}
}

func (s *CatalogService) ListLeagues(ctx context.Context, region, gender string) ([]ticker.LeagueSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.ListLeagues", attribute.String("region", region))
	defer span.End()

	gender = strings.ToLower(strings.TrimSpace(gender))
	if gender != "" && !slices.Contains(ticker.Genders, gender) {
		return nil, errors.Wrapf(ErrInvalidInput, "unknown gender %q", gender)
	}

	doc, err := s.overview(ctx, region)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return ticker.ListLeagues(doc, gender), nil
}

func (s *CatalogService) ListTeams(ctx context.Context, region, leagueID string) ([]TeamSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.ListTeams", attribute.String("region", region))
	defer span.End()

	doc, err := s.overview(ctx, region)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	teams, ok := ticker.ListTeams(doc, leagueID)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "league %s in region %s", leagueID, region)
	}
	out := make([]TeamSummary, 0, len(teams))
	for name, teamID := range teams {
		out = append(out, TeamSummary{ID: teamID, Name: name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *CatalogService) overview(ctx context.Context, region string) (*ticker.Overview, error) {
	region = strings.ToLower(strings.TrimSpace(region))
	if !ticker.IsKnownRegion(region) {
		return nil, errors.Wrapf(ErrInvalidInput, "unknown region %q", region)
	}

	if coordinator, ok := s.registry.Lookup(region); ok {
		if doc := coordinator.Data(); doc != nil {
			// The live snapshot supersedes any one-shot copy.
			s.cache.Delete(ctx, region)
			return doc, nil
		}
	}

	doc, err := s.cache.GetOrLoad(ctx, region, func(ctx context.Context) (*ticker.Overview, error) {
		s.logger.DebugContext(ctx, "catalog cache miss", "region", region)
		return s.fetcher.FetchOverview(ctx, ticker.OverviewURL(s.getBaseURL, region))
	})
	if err != nil {
		return nil, errors.Wrapf(err, "load overview for region %s", region)
	}
	return doc, nil
}
