// Package httptransport is the thin JSON shim over the domain services. It
// owns routing, request decoding, and the error-code → status mapping, and
// nothing else; business rules live in the services.
package httptransport

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	checkinservice "esupervision/internal/checkin/service"
	offenderservice "esupervision/internal/offender/service"
	"esupervision/pkg/requestcontext"
)

// Handler bundles the services the routes delegate to.
type Handler struct {
	offenders *offenderservice.Service
	checkins  *checkinservice.Service
	creator   *checkinservice.Creator
	log       *log.Logger
}

func NewHandler(offenders *offenderservice.Service, checkins *checkinservice.Service, creator *checkinservice.Creator, logger *log.Logger) *Handler {
	return &Handler{
		offenders: offenders,
		checkins:  checkins,
		creator:   creator,
		log:       logger,
	}
}

// NewRouter wires the interactive operations.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestTime)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/offenders", func(r chi.Router) {
		r.Post("/", h.registerOffender)
		r.Route("/{offenderID}", func(r chi.Router) {
			r.Get("/", h.getOffender)
			r.Post("/photo-upload-url", h.photoUploadURL)
			r.Post("/complete-setup", h.completeSetup)
			r.Post("/deactivate", h.deactivateOffender)
			r.Post("/reactivate", h.reactivateOffender)
			r.Put("/schedule", h.updateSchedule)
			r.Post("/checkins", h.createCheckin)
		})
	})

	r.Route("/checkins/{checkinID}", func(r chi.Router) {
		r.Get("/", h.getCheckin)
		r.Post("/verify-identity", h.verifyIdentity)
		r.Post("/video-upload-url", h.videoUploadURL)
		r.Post("/snapshot-upload-url", h.snapshotUploadURL)
		r.Post("/submit", h.submitCheckin)
		r.Post("/verify-face", h.verifyFace)
		r.Post("/review", h.reviewCheckin)
		r.Post("/annotate", h.annotateCheckin)
	})

	return r
}

// requestTime pins one "now" per request so everything a handler touches
// (audit facts, domain timestamps) agrees on the time.
func requestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
