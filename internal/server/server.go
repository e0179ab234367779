// Package server contains the HTTP API of the study service.
package server

import (
	"context"
	"net/http"
	"time"

	"gridstudy/internal/server/handlers"
	"gridstudy/internal/server/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options tunes the HTTP server.
type Options struct {
	// RateLimitRPS limits each user's request rate. 0 disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server is the HTTP server for the study API.
type Server struct {
	httpServer *http.Server
}

// New creates a new study API server.
func New(addr string, svc handlers.Service, opts Options) *Server {
	h := handlers.New(svc)
	limited := middleware.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst)

	authed := func(hf http.HandlerFunc) http.Handler {
		return middleware.Identity(limited(hf))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("GET /v1/studies", authed(h.ListStudies))
	mux.Handle("GET /v1/study_creation_requests", authed(h.ListCreationRequests))
	mux.Handle("POST /v1/studies/{studyName}/cases/{caseUuid}", authed(h.CreateStudy))

	mux.Handle("GET /v1/{ownerId}/studies/{studyName}", authed(h.GetStudy))
	mux.Handle("GET /v1/{ownerId}/studies/{studyName}/exists", authed(h.StudyExists))
	mux.Handle("DELETE /v1/{ownerId}/studies/{studyName}", authed(h.DeleteStudy))
	mux.Handle("POST /v1/{ownerId}/studies/{studyName}/rename", authed(h.RenameStudy))
	mux.Handle("POST /v1/{ownerId}/studies/{studyName}/public", authed(h.MakePublic))
	mux.Handle("POST /v1/{ownerId}/studies/{studyName}/private", authed(h.MakePrivate))

	mux.Handle("GET /v1/{ownerId}/studies/{studyName}/loadflow/parameters", authed(h.GetLoadFlowParameters))
	mux.Handle("POST /v1/{ownerId}/studies/{studyName}/loadflow/parameters", authed(h.SetLoadFlowParameters))
	mux.Handle("PUT /v1/{ownerId}/studies/{studyName}/loadflow/run", authed(h.RunLoadFlow))

	mux.Handle("PUT /v1/{ownerId}/studies/{studyName}/network-modification/switches/{switchId}", authed(h.ChangeSwitchState))
	mux.Handle("PUT /v1/{ownerId}/studies/{studyName}/network-modification/groovy", authed(h.ApplyGroovyScript))

	mux.Handle("POST /v1/{ownerId}/studies/{studyName}/security-analysis/run", authed(h.RunSecurityAnalysis))
	mux.Handle("GET /v1/{ownerId}/studies/{studyName}/security-analysis/status", authed(h.SecurityAnalysisStatus))
	mux.Handle("GET /v1/{ownerId}/studies/{studyName}/security-analysis/result", authed(h.SecurityAnalysisResult))
	mux.Handle("GET /v1/{ownerId}/studies/{studyName}/contingency-count", authed(h.ContingencyCount))

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
