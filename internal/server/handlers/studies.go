package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"gridstudy/internal/orchestrator"
	"gridstudy/internal/server/middleware"
	"gridstudy/internal/store"
	"gridstudy/pkg/api"

	"github.com/google/uuid"
)

// studyKey builds the durable study identity from the request path.
func studyKey(r *http.Request) store.StudyKey {
	return store.StudyKey{
		OwnerID: r.PathValue("ownerId"),
		Name:    r.PathValue("studyName"),
	}
}

// CreateStudy handles POST /v1/studies/{studyName}/cases/{caseUuid}.
// The caller becomes the owner; the import runs in the background and the
// study appears in listings once it commits.
func (h *Handlers) CreateStudy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caseUUID, err := uuid.Parse(r.PathValue("caseUuid"))
	if err != nil {
		h.httpError(w, "Invalid case uuid", http.StatusBadRequest)
		return
	}

	userID := middleware.UserIDFromContext(ctx)
	params := orchestrator.CreateStudyParams{
		Name:        r.PathValue("studyName"),
		CaseUUID:    caseUUID,
		Description: r.URL.Query().Get("description"),
		IsPrivate:   r.URL.Query().Get("isPrivate") == "true",
	}

	if err := h.svc.CreateStudy(ctx, userID, params); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, nil)
}

// ListStudies handles GET /v1/studies.
// Returns the caller's studies plus public studies of other users.
func (h *Handlers) ListStudies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	studies, err := h.svc.ListStudies(ctx, userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := api.ListStudiesResponse{Studies: make([]api.StudyResponse, 0, len(studies))}
	for i := range studies {
		resp.Studies = append(resp.Studies, studyToResponse(&studies[i]))
	}
	h.respondJson(w, http.StatusOK, resp)
}

// ListCreationRequests handles GET /v1/study_creation_requests.
func (h *Handlers) ListCreationRequests(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	pendings := h.svc.ListPendingCreations(userID)
	resp := api.ListPendingCreationsResponse{Requests: make([]api.PendingCreationResponse, 0, len(pendings))}
	for _, p := range pendings {
		resp.Requests = append(resp.Requests, api.PendingCreationResponse{
			StudyName:   p.Name,
			UserID:      p.OwnerID,
			SubmittedAt: p.SubmittedAt,
		})
	}
	h.respondJson(w, http.StatusOK, resp)
}

// GetStudy handles GET /v1/{ownerId}/studies/{studyName}.
func (h *Handlers) GetStudy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	study, err := h.svc.GetStudy(ctx, userID, studyKey(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, studyToResponse(study))
}

// StudyExists handles GET /v1/{ownerId}/studies/{studyName}/exists.
func (h *Handlers) StudyExists(w http.ResponseWriter, r *http.Request) {
	exists, err := h.svc.StudyExists(r.Context(), studyKey(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, exists)
}

// DeleteStudy handles DELETE /v1/{ownerId}/studies/{studyName}.
func (h *Handlers) DeleteStudy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	if err := h.svc.DeleteStudy(ctx, userID, studyKey(r)); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, nil)
}

// RenameStudy handles POST /v1/{ownerId}/studies/{studyName}/rename.
func (h *Handlers) RenameStudy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	var req api.RenameStudyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.NewStudyName == "" {
		h.httpError(w, "newStudyName is required", http.StatusBadRequest)
		return
	}

	study, err := h.svc.RenameStudy(ctx, userID, studyKey(r), req.NewStudyName)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, studyToResponse(study))
}

// MakePublic handles POST /v1/{ownerId}/studies/{studyName}/public.
func (h *Handlers) MakePublic(w http.ResponseWriter, r *http.Request) {
	h.setVisibility(w, r, false)
}

// MakePrivate handles POST /v1/{ownerId}/studies/{studyName}/private.
func (h *Handlers) MakePrivate(w http.ResponseWriter, r *http.Request) {
	h.setVisibility(w, r, true)
}

func (h *Handlers) setVisibility(w http.ResponseWriter, r *http.Request, private bool) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	if err := h.svc.SetVisibility(ctx, userID, studyKey(r), private); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, nil)
}

// GetLoadFlowParameters handles GET /v1/{ownerId}/studies/{studyName}/loadflow/parameters.
func (h *Handlers) GetLoadFlowParameters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	params, err := h.svc.GetLoadFlowParameters(ctx, userID, studyKey(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, json.RawMessage(params))
}

// SetLoadFlowParameters handles POST /v1/{ownerId}/studies/{studyName}/loadflow/parameters.
// An empty body restores the defaults.
func (h *Handlers) SetLoadFlowParameters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		h.httpError(w, "Parameters must be valid JSON", http.StatusBadRequest)
		return
	}

	if err := h.svc.SetLoadFlowParameters(ctx, userID, studyKey(r), body); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, nil)
}
