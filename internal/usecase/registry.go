package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/volley-ticker/internal/domain/ticker"
	"github.com/riskibarqy/volley-ticker/internal/platform/logging"
	"github.com/riskibarqy/volley-ticker/internal/platform/resilience"
)

const defaultRefreshWorkers = 4

type RegistryConfig struct {
	DefaultHost    string
	GetBaseURL     string
	Supervisor     SupervisorConfig
	Reconnect      resilience.ReconnectConfig
	RefreshWorkers int
	// ManualTicks leaves tick loops stopped; callers drive Tick themselves.
	ManualTicks bool
	Logger      *logging.Logger
	Now         func() time.Time
}

// Registry keeps at most one coordinator per region, shared by every
// tracker of that region and reference counted.
type Registry struct {
	cfg     RegistryConfig
	fetcher OverviewFetcher
	streams StreamFactory
	logger  *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*registryEntry
	closed  bool
}

type registryEntry struct {
	coordinator *Coordinator
	host        string
	refs        int
}

type RefreshResult struct {
	Region     string `json:"region"`
	Refreshed  bool   `json:"refreshed"`
	Available  bool   `json:"available"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

func NewRegistry(cfg RegistryConfig, fetcher OverviewFetcher, streams StreamFactory) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.RefreshWorkers < 1 {
		cfg.RefreshWorkers = defaultRefreshWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		cfg:     cfg,
		fetcher: fetcher,
		streams: streams,
		logger:  cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*registryEntry),
	}
}

// Attach returns the region's coordinator, creating and starting it on first
// use. The host of the first attach wins for the coordinator's lifetime.
func (r *Registry) Attach(host, region string) (*Coordinator, error) {
	key := strings.ToLower(strings.TrimSpace(region))
	if !ticker.IsKnownRegion(key) {
		return nil, errors.Wrapf(ErrInvalidInput, "unknown region %q", region)
	}
	host = strings.TrimSpace(host)
	if host == "" {
		host = r.cfg.DefaultHost
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.Wrap(ErrDependencyUnavailable, "registry closed")
	}

	if entry, ok := r.entries[key]; ok {
		if entry.host != host {
			r.logger.Warn("region already attached with another host, keeping the first",
				"region", key,
				"host", entry.host,
				"requested_host", host,
			)
		}
		entry.refs++
		return entry.coordinator, nil
	}

	coordinator := NewCoordinator(CoordinatorConfig{
		Region:     key,
		Host:       host,
		GetBaseURL: r.cfg.GetBaseURL,
		Supervisor: r.cfg.Supervisor,
		Reconnect:  r.cfg.Reconnect,
		Logger:     r.logger,
		Now:        r.cfg.Now,
	}, r.fetcher, r.streams)
	r.entries[key] = &registryEntry{coordinator: coordinator, host: host, refs: 1}
	if !r.cfg.ManualTicks {
		coordinator.Start(r.ctx)
	}
	r.logger.Info("region coordinator started", "region", key, "host", host)
	return coordinator, nil
}

// Detach drops one reference and closes the coordinator at zero.
func (r *Registry) Detach(region string) error {
	key := strings.ToLower(strings.TrimSpace(region))

	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	entry.refs--
	if entry.refs > 0 {
		r.mu.Unlock()
		return nil
	}
	delete(r.entries, key)
	r.mu.Unlock()

	return entry.coordinator.Close()
}

func (r *Registry) Lookup(region string) (*Coordinator, bool) {
	key := strings.ToLower(strings.TrimSpace(region))
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return entry.coordinator, true
}

func (r *Registry) coordinators() []*Coordinator {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Coordinator, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.coordinator)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Region() < out[j].Region()
	})
	return out
}

func (r *Registry) Statuses() []CoordinatorStatus {
	coordinators := r.coordinators()
	out := make([]CoordinatorStatus, 0, len(coordinators))
	for _, coordinator := range coordinators {
		out = append(out, coordinator.Status())
	}
	return out
}

// RefreshAll refreshes every attached region on a bounded worker pool.
func (r *Registry) RefreshAll(ctx context.Context, force bool) ([]RefreshResult, error) {
	coordinators := r.coordinators()
	if len(coordinators) == 0 {
		return []RefreshResult{}, nil
	}

	workerCount := r.cfg.RefreshWorkers
	if workerCount > len(coordinators) {
		workerCount = len(coordinators)
	}
	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return nil, errors.Wrap(err, "create refresh worker pool")
	}
	defer pool.Release()

	results := make([]RefreshResult, len(coordinators))
	var workers sync.WaitGroup
	for i, coordinator := range coordinators {
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			start := time.Now()
			row := RefreshResult{Region: coordinator.Region()}
			doc, err := coordinator.Refresh(ctx, force)
			row.Refreshed = doc != nil
			row.Available = coordinator.LastUpdateSuccess()
			if err != nil {
				row.Error = err.Error()
			}
			row.DurationMs = time.Since(start).Milliseconds()
			results[i] = row
		}); err != nil {
			workers.Done()
			workers.Wait()
			return nil, errors.Wrap(err, "submit refresh to worker pool")
		}
	}
	workers.Wait()
	return results, nil
}

// Close stops every coordinator. Later attaches fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	r.cancel()
	var errs []error
	for _, entry := range entries {
		if err := entry.coordinator.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
