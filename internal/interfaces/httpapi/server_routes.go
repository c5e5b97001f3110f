package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, swaggerEnabled bool) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if !swaggerEnabled {
		return
	}

	mux.HandleFunc("GET /openapi.yaml", handler.OpenAPI)
	mux.HandleFunc("GET /docs", handler.SwaggerUI)
	mux.HandleFunc("GET /docs/", handler.SwaggerUI)
}

func registerTrackerRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/trackers", handler.ListTrackers)
	mux.HandleFunc("POST /v1/trackers", handler.CreateTracker)
	mux.HandleFunc("GET /v1/trackers/{trackerID}", handler.GetTracker)
	mux.HandleFunc("DELETE /v1/trackers/{trackerID}", handler.DeleteTracker)
}

func registerRegionRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/regions", handler.ListRegions)
	// Forces an overview fetch for every attached region.
	mux.HandleFunc("POST /v1/regions/refresh", handler.RefreshRegions)
	mux.HandleFunc("GET /v1/regions/{region}/leagues", handler.ListLeagues)
	mux.HandleFunc("GET /v1/regions/{region}/leagues/{leagueID}/teams", handler.ListTeams)
}
