package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/volley-ticker/internal/domain/ticker"
	"github.com/riskibarqy/volley-ticker/internal/platform/id"
	"github.com/riskibarqy/volley-ticker/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

type TrackerServiceConfig struct {
	Locale     string
	Location   *time.Location
	GameWindow ticker.GameWindow
	Logger     *logging.Logger
	Now        func() time.Time
}

// TrackerService creates and removes team trackers and wires each one to
// its region coordinator.
type TrackerService struct {
	cfg      TrackerServiceConfig
	registry *Registry
	validate *validator.Validate
	ids      id.Generator
	logger   *logging.Logger

	mu      sync.RWMutex
	order   []string
	entries map[string]*trackerEntry
}

type trackerEntry struct {
	tracker      *TeamTracker
	subscription *Subscription
	region       string
}

func NewTrackerService(cfg TrackerServiceConfig, registry *Registry, ids id.Generator) *TrackerService {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if ids == nil {
		ids = id.NewRandomGenerator()
	}
	return &TrackerService{
		cfg:      cfg,
		registry: registry,
		validate: NewTrackerValidator(),
		ids:      ids,
		logger:   cfg.Logger,
		entries:  make(map[string]*trackerEntry),
	}
}

// NewTrackerValidator knows the sams_region tag used by TrackerConfig.
func NewTrackerValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("sams_region", func(fl validator.FieldLevel) bool {
		return ticker.IsKnownRegion(fl.Field().String())
	})
	return v
}

func normalizeTrackerConfig(cfg TrackerConfig) TrackerConfig {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Region = strings.ToLower(strings.TrimSpace(cfg.Region))
	cfg.LeagueID = strings.TrimSpace(cfg.LeagueID)
	cfg.LeagueName = strings.TrimSpace(cfg.LeagueName)
	cfg.Gender = strings.ToLower(strings.TrimSpace(cfg.Gender))
	cfg.TeamName = strings.TrimSpace(cfg.TeamName)
	cfg.TeamID = strings.TrimSpace(cfg.TeamID)
	if cfg.Name == "" {
		cfg.Name = cfg.TeamName
	}
	if cfg.Name == "" {
		cfg.Name = cfg.TeamID
	}
	return cfg
}

// Track registers a tracker and hands it the region's current overview,
// fetching one when none is due yet. A failed fetch leaves the tracker
// unavailable rather than failing the call.
func (s *TrackerService) Track(ctx context.Context, input TrackerConfig) (TrackerState, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.TrackerService.Track", attribute.String("region", input.Region))
	defer span.End()

	cfg := normalizeTrackerConfig(input)
	if err := s.validate.StructCtx(ctx, cfg); err != nil {
		return TrackerState{}, errors.Wrapf(ErrInvalidInput, "invalid tracker: %v", err)
	}

	entryID, err := s.ids.NewID()
	if err != nil {
		return TrackerState{}, errors.Wrap(err, "generate tracker id")
	}
	trackerID := id.UniqueID(cfg.Name, entryID)

	coordinator, err := s.registry.Attach(cfg.Host, cfg.Region)
	if err != nil {
		recordSpanError(span, err)
		return TrackerState{}, err
	}

	projector := ticker.Projector{Locale: s.cfg.Locale, Location: s.cfg.Location, Now: s.cfg.Now}
	tracker := NewTeamTracker(trackerID, cfg, projector, s.cfg.GameWindow, s.logger)
	tracker.bind(coordinator)
	subscription := coordinator.Subscribe(tracker)

	s.mu.Lock()
	s.entries[trackerID] = &trackerEntry{tracker: tracker, subscription: subscription, region: cfg.Region}
	s.order = append(s.order, trackerID)
	s.mu.Unlock()

	doc, err := coordinator.Refresh(ctx, false)
	switch {
	case err != nil:
		recordSpanError(span, err)
		s.logger.WarnContext(ctx, "initial overview unavailable", "tracker_id", trackerID, "error", err)
	case doc == nil:
		subscription.Prime(ctx)
	}

	s.logger.InfoContext(ctx, "tracker added",
		"tracker_id", trackerID,
		"region", cfg.Region,
		"team_id", cfg.TeamID,
		"team_name", cfg.TeamName,
	)
	return tracker.State(), nil
}

// Untrack detaches the tracker; the region closes with its last tracker.
func (s *TrackerService) Untrack(ctx context.Context, trackerID string) error {
	s.mu.Lock()
	entry, ok := s.entries[trackerID]
	if !ok {
		s.mu.Unlock()
		return errors.Wrapf(ErrNotFound, "tracker %s", trackerID)
	}
	delete(s.entries, trackerID)
	for i, existing := range s.order {
		if existing == trackerID {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	entry.subscription.Close()
	if err := s.registry.Detach(entry.region); err != nil {
		return errors.Wrapf(err, "detach region %s", entry.region)
	}
	s.logger.InfoContext(ctx, "tracker removed", "tracker_id", trackerID, "region", entry.region)
	return nil
}

func (s *TrackerService) Get(_ context.Context, trackerID string) (TrackerState, error) {
	s.mu.RLock()
	entry, ok := s.entries[trackerID]
	s.mu.RUnlock()
	if !ok {
		return TrackerState{}, errors.Wrapf(ErrNotFound, "tracker %s", trackerID)
	}
	return entry.tracker.State(), nil
}

// List returns trackers in creation order.
func (s *TrackerService) List(_ context.Context) []TrackerState {
	s.mu.RLock()
	trackers := make([]*TeamTracker, 0, len(s.order))
	for _, trackerID := range s.order {
		trackers = append(trackers, s.entries[trackerID].tracker)
	}
	s.mu.RUnlock()

	out := make([]TrackerState, 0, len(trackers))
	for _, tracker := range trackers {
		out = append(out, tracker.State())
	}
	return out
}

// Close untracks everything.
func (s *TrackerService) Close(ctx context.Context) error {
	s.mu.RLock()
	ids := append([]string(nil), s.order...)
	s.mu.RUnlock()

	var errs []error
	for _, trackerID := range ids {
		if err := s.Untrack(ctx, trackerID); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
