package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/sfmlstats/internal/api/handlers"
	"github.com/wonny/sfmlstats/pkg/logger"
)

// NewRouter creates and configures the HTTP router.
// stream may be nil, in which case the websocket endpoint is not mounted.
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(comparisonHandler *handlers.ComparisonHandler, stream http.HandlerFunc, log *logger.Logger) http.Handler {
	r := mux.NewRouter()
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Live record stream
	if stream != nil {
		r.HandleFunc("/ws/comparison", stream).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	// 서브라우터는 자체 핸들러가 없으면 메서드 불일치를 404 로 응답
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	// Comparison endpoints (summary before {date} so it is not captured)
	api.HandleFunc("/comparison", comparisonHandler.List).Methods("GET")
	api.HandleFunc("/comparison/summary", comparisonHandler.Summary).Methods("GET")
	api.HandleFunc("/comparison/collect/{pass}", comparisonHandler.Collect).Methods("POST")
	api.HandleFunc("/comparison/{date}", comparisonHandler.Get).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "sfmlstats-api",
	})
}

// methodNotAllowedHandler answers a known path requested with the wrong method
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "Method not allowed",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
