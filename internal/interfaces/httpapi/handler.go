package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/volley-ticker/internal/platform/logging"
	"github.com/riskibarqy/volley-ticker/internal/usecase"
)

type Handler struct {
	trackerService *usecase.TrackerService
	catalogService *usecase.CatalogService
	registry       *usecase.Registry
	logger         *logging.Logger
	validator      *validator.Validate
}

func NewHandler(
	trackerService *usecase.TrackerService,
	catalogService *usecase.CatalogService,
	registry *usecase.Registry,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		trackerService: trackerService,
		catalogService: catalogService,
		registry:       registry,
		logger:         logger,
		validator:      usecase.NewTrackerValidator(),
	}
}

type createTrackerRequest struct {
	Name       string `json:"name" validate:"omitempty,max=120"`
	Host       string `json:"host" validate:"omitempty,url"`
	Region     string `json:"region" validate:"required"`
	LeagueID   string `json:"league_id"`
	LeagueName string `json:"league_name" validate:"required_with=TeamName"`
	Gender     string `json:"gender" validate:"omitempty,oneof=female male mixed"`
	TeamName   string `json:"team_name" validate:"required_without=TeamID"`
	TeamID     string `json:"team_id" validate:"required_without=TeamName"`
}

func (r createTrackerRequest) toConfig() usecase.TrackerConfig {
	return usecase.TrackerConfig{
		Name:       r.Name,
		Host:       r.Host,
		Region:     r.Region,
		LeagueID:   r.LeagueID,
		LeagueName: r.LeagueName,
		Gender:     strings.ToLower(r.Gender),
		TeamName:   r.TeamName,
		TeamID:     r.TeamID,
	}
}

type deletedDTO struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListTrackers(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListTrackers")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, h.trackerService.List(ctx))
}

func (h *Handler) CreateTracker(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateTracker")
	defer span.End()

	var req createTrackerRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validator.StructCtx(ctx, req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err))
		return
	}

	state, err := h.trackerService.Track(ctx, req.toConfig())
	if err != nil {
		h.logger.WarnContext(ctx, "create tracker failed", "region", req.Region, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, state)
}

func (h *Handler) GetTracker(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetTracker")
	defer span.End()

	state, err := h.trackerService.Get(ctx, strings.TrimSpace(r.PathValue("trackerID")))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, state)
}

func (h *Handler) DeleteTracker(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.DeleteTracker")
	defer span.End()

	trackerID := strings.TrimSpace(r.PathValue("trackerID"))
	if err := h.trackerService.Untrack(ctx, trackerID); err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, deletedDTO{ID: trackerID, Deleted: true})
}

func (h *Handler) ListRegions(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListRegions")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, h.registry.Statuses())
}

func (h *Handler) RefreshRegions(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RefreshRegions")
	defer span.End()

	force := true
	if raw := strings.TrimSpace(r.URL.Query().Get("force")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(ctx, w, fmt.Errorf("%w: force must be a boolean", usecase.ErrInvalidInput))
			return
		}
		force = parsed
	}

	results, err := h.registry.RefreshAll(ctx, force)
	if err != nil {
		h.logger.ErrorContext(ctx, "refresh regions failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, results)
}

func (h *Handler) ListLeagues(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListLeagues")
	defer span.End()

	leagues, err := h.catalogService.ListLeagues(ctx, r.PathValue("region"), r.URL.Query().Get("gender"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, leagues)
}

func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListTeams")
	defer span.End()

	teams, err := h.catalogService.ListTeams(ctx, r.PathValue("region"), strings.TrimSpace(r.PathValue("leagueID")))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, teams)
}
