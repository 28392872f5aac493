package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"ratingo/handlers"
	"ratingo/internal/database"
	"ratingo/services/scheduler"
	"ratingo/services/sync"
)

// corsMiddleware handles CORS for API routes.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// apiKeyMiddleware guards the admin endpoints. The key is read from the
// X-Api-Key header or an api_key query parameter.
func apiKeyMiddleware(apiKey string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Api-Key")
			if provided == "" {
				provided = r.URL.Query().Get("api_key")
			}
			if apiKey == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetupRoutes wires all HTTP routes.
func SetupRoutes(
	db *database.DB,
	syncService *sync.Service,
	schedulerService *scheduler.Service,
	apiKey string,
) *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	syncHandler := handlers.NewSyncHandler(db, syncService)
	catalogHandler := handlers.NewCatalogHandler(db)
	tasksHandler := handlers.NewTasksHandler(schedulerService)

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	// Public catalog endpoints, rate limited per IP.
	public := r.PathPrefix("/api").Subrouter()
	public.Use(rateLimitMiddleware(NewIPRateLimiter(rate.Every(time.Second), 20)))
	public.HandleFunc("/trending/{type}", catalogHandler.Trending).Methods(http.MethodGet)
	public.HandleFunc("/calendar", catalogHandler.Calendar).Methods(http.MethodGet)

	// Admin endpoints, key guarded.
	admin := r.PathPrefix("/api/sync").Subrouter()
	admin.Use(apiKeyMiddleware(apiKey))
	admin.HandleFunc("/shows", syncHandler.TriggerShows).Methods(http.MethodPost)
	admin.HandleFunc("/movies", syncHandler.TriggerMovies).Methods(http.MethodPost)
	admin.HandleFunc("/status", syncHandler.Status).Methods(http.MethodGet)
	admin.HandleFunc("/jobs/{id}", syncHandler.GetJob).Methods(http.MethodGet)

	tasks := r.PathPrefix("/api/tasks").Subrouter()
	tasks.Use(apiKeyMiddleware(apiKey))
	tasks.HandleFunc("", tasksHandler.ListTasks).Methods(http.MethodGet)
	tasks.HandleFunc("/{id}/run", tasksHandler.RunTask).Methods(http.MethodPost)

	return r
}
