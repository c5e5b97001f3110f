package app

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/riskibarqy/volley-ticker/external/samsticker"
	"github.com/riskibarqy/volley-ticker/internal/config"
	"github.com/riskibarqy/volley-ticker/internal/domain/ticker"
	"github.com/riskibarqy/volley-ticker/internal/interfaces/httpapi"
	idgen "github.com/riskibarqy/volley-ticker/internal/platform/id"
	"github.com/riskibarqy/volley-ticker/internal/platform/logging"
	"github.com/riskibarqy/volley-ticker/internal/platform/resilience"
	"github.com/riskibarqy/volley-ticker/internal/usecase"
)

// App owns the ticker connections, the trackers and the HTTP server.
type App struct {
	logger   *logging.Logger
	server   *http.Server
	registry *usecase.Registry
	trackers *usecase.TrackerService
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	fetcher := samsticker.NewFetcher(samsticker.FetcherConfig{
		Timeout:        cfg.Ticker.FetchTimeout,
		MaxRetries:     cfg.Ticker.FetchMaxRetries,
		Logger:         logger.Named("fetcher"),
		CircuitBreaker: cfg.Ticker.Circuit,
	})
	dialer := samsticker.NewDialer(samsticker.StreamConfig{
		Logger: logger.Named("stream"),
	})

	registry := usecase.NewRegistry(usecase.RegistryConfig{
		DefaultHost: cfg.Ticker.Host,
		GetBaseURL:  cfg.Ticker.GetBaseURL,
		Supervisor: usecase.SupervisorConfig{
			TickInterval:      cfg.Ticker.TickInterval,
			GameFetchInterval: cfg.Ticker.GameFetchInterval,
			IdleFetchInterval: cfg.Ticker.IdleFetchInterval,
			NearGameTimeout:   cfg.Ticker.NearGameTimeout,
			InGameTimeout:     cfg.Ticker.InGameTimeout,
		},
		Reconnect: resilience.ReconnectConfig{
			MinGap: cfg.Ticker.ReconnectMinGap,
			Burst:  resilience.DefaultReconnectConfig().Burst,
		},
		Logger: logger.Named("coordinator"),
	}, fetcher, dialer)

	trackers := usecase.NewTrackerService(usecase.TrackerServiceConfig{
		Locale:     cfg.Ticker.Locale,
		Location:   cfg.Ticker.Location,
		GameWindow: ticker.DefaultGameWindow,
		Logger:     logger.Named("tracker"),
	}, registry, idgen.NewRandomGenerator())
	catalog := usecase.NewCatalogService(registry, fetcher, cfg.Ticker.GetBaseURL, cfg.Ticker.CatalogCacheTTL, logger.Named("catalog"))

	handler := httpapi.NewHandler(trackers, catalog, registry, logger)
	router := httpapi.NewRouter(handler, logger, cfg.SwaggerEnabled, cfg.CORSAllowedOrigins)

	server, err := NewHTTPServer(cfg, router)
	if err != nil {
		_ = registry.Close()
		return nil, err
	}

	return &App{
		logger:   logger,
		server:   server,
		registry: registry,
		trackers: trackers,
	}, nil
}

func NewHTTPServer(cfg config.Config, router http.Handler) (*http.Server, error) {
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	if server.Addr == "" {
		return nil, errors.New("http server addr cannot be empty")
	}

	return server, nil
}

func (a *App) Server() *http.Server {
	return a.server
}

// TrackConfigured registers every team from the tracked-teams file. A team
// that fails to register is logged and skipped.
func (a *App) TrackConfigured(ctx context.Context, teams []config.TrackedTeam) error {
	var errs []error
	for _, team := range teams {
		state, err := a.trackers.Track(ctx, usecase.TrackerConfig{
			Name:       team.Name,
			Host:       team.Host,
			Region:     team.Region,
			LeagueID:   team.LeagueID,
			LeagueName: team.LeagueName,
			Gender:     team.Gender,
			TeamName:   team.TeamName,
			TeamID:     team.TeamID,
		})
		if err != nil {
			a.logger.ErrorContext(ctx, "track configured team failed",
				"region", team.Region,
				"team_name", team.TeamName,
				"team_id", team.TeamID,
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		a.logger.InfoContext(ctx, "configured team tracked", "tracker_id", state.ID, "state", string(state.State))
	}
	return errors.Join(errs...)
}

// Shutdown stops the HTTP server, then every tracker and region.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "shutdown http server"))
	}
	if err := a.trackers.Close(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "close trackers"))
	}
	if err := a.registry.Close(); err != nil {
		errs = append(errs, errors.Wrap(err, "close registry"))
	}
	return errors.Join(errs...)
}
