// Package handlers contains the HTTP handlers for the study API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"gridstudy/internal/orchestrator"
	"gridstudy/internal/pending"
	"gridstudy/internal/store"
	"gridstudy/pkg/api"
	"gridstudy/pkg/apperrors"
)

// Service is the orchestration surface the handlers expose over HTTP.
// Implemented by *orchestrator.Orchestrator.
type Service interface {
	Ping(ctx context.Context) error

	CreateStudy(ctx context.Context, callerID string, p orchestrator.CreateStudyParams) error
	GetStudy(ctx context.Context, callerID string, key store.StudyKey) (*store.Study, error)
	StudyExists(ctx context.Context, key store.StudyKey) (bool, error)
	ListStudies(ctx context.Context, callerID string) ([]store.Study, error)
	ListPendingCreations(callerID string) []pending.Creation
	DeleteStudy(ctx context.Context, callerID string, key store.StudyKey) error
	RenameStudy(ctx context.Context, callerID string, key store.StudyKey, newName string) (*store.Study, error)
	SetVisibility(ctx context.Context, callerID string, key store.StudyKey, private bool) error

	GetLoadFlowParameters(ctx context.Context, callerID string, key store.StudyKey) (json.RawMessage, error)
	SetLoadFlowParameters(ctx context.Context, callerID string, key store.StudyKey, params json.RawMessage) error
	ChangeSwitchState(ctx context.Context, callerID string, key store.StudyKey, switchID string, open bool) error
	ApplyScript(ctx context.Context, callerID string, key store.StudyKey, script string) error
	RunLoadFlow(ctx context.Context, callerID string, key store.StudyKey) error

	RunSecurityAnalysis(ctx context.Context, callerID string, key store.StudyKey, contingencyListNames []string, parameters string) error
	GetSecurityAnalysisStatus(ctx context.Context, callerID string, key store.StudyKey) (string, error)
	GetSecurityAnalysisResult(ctx context.Context, callerID string, key store.StudyKey, limitTypes []string) (json.RawMessage, error)
	GetContingencyCount(ctx context.Context, callerID string, key store.StudyKey, contingencyListNames []string) (int, error)
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	svc Service
}

// New creates a new Handlers instance with the given service dependency.
func New(svc Service) *Handlers {
	return &Handlers{svc: svc}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

// respondError maps domain errors to HTTP status codes.
func (h *Handlers) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		h.httpError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, apperrors.ErrForbidden):
		h.httpError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, apperrors.ErrAlreadyExists),
		errors.Is(err, apperrors.ErrComputationInProgress),
		errors.Is(err, apperrors.ErrDeletionWhileCreating):
		h.httpError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, apperrors.ErrImport), errors.Is(err, apperrors.ErrCompute):
		h.httpError(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		h.httpError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.httpError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func studyToResponse(s *store.Study) api.StudyResponse {
	resp := api.StudyResponse{
		StudyName:              s.Name,
		UserID:                 s.OwnerID,
		Description:            s.Description,
		CaseFormat:             s.CaseFormat,
		CaseUUID:               s.CaseUUID.String(),
		NetworkUUID:            s.NetworkUUID.String(),
		NetworkID:              s.NetworkID,
		Private:                s.IsPrivate,
		CreatedAt:              s.CreatedAt,
		LoadFlowStatus:         string(s.LoadFlowStatus),
		LoadFlowResult:         string(s.LoadFlowResult),
		SecurityAnalysisStatus: string(s.SecurityAnalysisStatus),
	}
	if s.SecurityAnalysisResultID != nil {
		resp.SecurityAnalysisResultUUID = s.SecurityAnalysisResultID.String()
	}
	return resp
}
