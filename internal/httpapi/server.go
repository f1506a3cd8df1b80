package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"textgend/pkg/types"
)

// NewMux builds the HTTP API over svc.
func NewMux(svc Service) http.Handler {
	h := &handlers{svc: svc}
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsMethods(),
			AllowedHeaders: corsHeaders(),
			MaxAge:         300,
		}))
	}

	r.Get("/models", h.listModels)
	r.Delete("/models/{id}", h.unloadModel)
	r.Get("/status", h.status)
	r.Post("/generate", h.generate)
	r.Get("/ws", h.serveWS)

	r.Route("/storage", func(r chi.Router) {
		r.Get("/", h.listStorage)
		r.Get("/{key}", h.getStorage)
		r.Put("/{key}", h.putStorage)
		r.Delete("/{key}", h.deleteStorage)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

type handlers struct {
	svc Service
}

// listModels godoc
// @Summary      List catalog models
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /models [get]
func (h *handlers) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, modelsResponse(h.svc.ListModels()))
}

// unloadModel godoc
// @Summary      Unload a model
// @Description  Drains in-flight generations and releases the model handle.
// @Tags         models
// @Param        id   path  string  true  "Model id"
// @Success      204
// @Failure      404  {object}  types.ErrorResponse
// @Router       /models/{id} [delete]
func (h *handlers) unloadModel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Unload(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// status godoc
// @Summary      Engine status
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.Status())
}

func modelsResponse(models []types.Model) types.ModelsResponse {
	if models == nil {
		models = []types.Model{}
	}
	return types.ModelsResponse{Models: models}
}
