package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"github.com/secmon-lab/mnemosyne/pkg/utils/safe"
)

type Server struct {
	router   *chi.Mux
	uc       *usecase.UseCases
	validate *validator.Validate
}

type Options func(*Server)

// WithValidator replaces the request validator, e.g. to register custom tags
func WithValidator(v *validator.Validate) Options {
	return func(s *Server) {
		s.validate = v
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:   r,
		uc:       uc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(authorMiddleware)

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", s.createProject)
			r.Get("/", s.listProjects)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", s.getProject)
				r.Patch("/", s.updateProject)

				r.Post("/fragments", s.createFragment)
				r.Get("/fragments", s.listFragments)
				r.Post("/fragments:reindex", s.reindexFragments)
				r.Get("/fragments/{fragmentID}", s.getFragment)
				r.Patch("/fragments/{fragmentID}", s.updateFragment)
				r.Delete("/fragments/{fragmentID}", s.deleteFragment)

				r.Post("/search", s.searchFragments)

				r.Post("/chapters:generate", s.generateChapters)
				r.Get("/chapters", s.listChapters)
				r.Get("/chapters/{chapterID}", s.getChapter)
				r.Patch("/chapters/{chapterID}", s.updateChapter)
				r.Get("/chapters/{chapterID}/preview", s.previewChapter)
				r.Get("/chapters/{chapterID}/text", s.chapterText)

				r.Post("/interviews", s.openInterview)
			})
		})

		r.Route("/interviews/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getInterview)
			r.Post("/answers", s.answerInterview)
			r.Post("/question", s.askInterview)
			r.Post("/reset", s.resetInterview)
			r.Delete("/", s.closeInterview)
		})

		r.Post("/refine", s.refine)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		logger := logging.Default().With("request_id", middleware.GetReqID(r.Context()))
		ctx := logging.With(r.Context(), logger)

		defer func() {
			logger.Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r.WithContext(ctx))
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	safe.WriteJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}
