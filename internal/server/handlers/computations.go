package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"gridstudy/internal/server/middleware"
	"gridstudy/pkg/api"
)

// RunLoadFlow handles PUT /v1/{ownerId}/studies/{studyName}/loadflow/run.
// The computation runs in the background; the gate is held on return.
func (h *Handlers) RunLoadFlow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	if err := h.svc.RunLoadFlow(ctx, userID, studyKey(r)); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, nil)
}

// ChangeSwitchState handles
// PUT /v1/{ownerId}/studies/{studyName}/network-modification/switches/{switchId}.
func (h *Handlers) ChangeSwitchState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)
	open := r.URL.Query().Get("open") == "true"

	if err := h.svc.ChangeSwitchState(ctx, userID, studyKey(r), r.PathValue("switchId"), open); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, nil)
}

// ApplyGroovyScript handles
// PUT /v1/{ownerId}/studies/{studyName}/network-modification/groovy.
// The body is the script itself, not JSON.
func (h *Handlers) ApplyGroovyScript(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	script, err := io.ReadAll(r.Body)
	if err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(script) == 0 {
		h.httpError(w, "Script is required", http.StatusBadRequest)
		return
	}

	if err := h.svc.ApplyScript(ctx, userID, studyKey(r), string(script)); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, nil)
}

// RunSecurityAnalysis handles
// POST /v1/{ownerId}/studies/{studyName}/security-analysis/run.
// Contingency lists are selected with repeated contingencyListName query
// parameters; the optional body carries analysis parameters.
func (h *Handlers) RunSecurityAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	lists := r.URL.Query()["contingencyListName"]
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.svc.RunSecurityAnalysis(ctx, userID, studyKey(r), lists, string(body)); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, nil)
}

// SecurityAnalysisStatus handles
// GET /v1/{ownerId}/studies/{studyName}/security-analysis/status.
func (h *Handlers) SecurityAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	status, err := h.svc.GetSecurityAnalysisStatus(ctx, userID, studyKey(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, api.SecurityAnalysisStatusResponse{Status: status})
}

// SecurityAnalysisResult handles
// GET /v1/{ownerId}/studies/{studyName}/security-analysis/result.
// Results can be filtered with repeated limitType query parameters.
func (h *Handlers) SecurityAnalysisResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	result, err := h.svc.GetSecurityAnalysisResult(ctx, userID, studyKey(r), r.URL.Query()["limitType"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, json.RawMessage(result))
}

// ContingencyCount handles
// GET /v1/{ownerId}/studies/{studyName}/contingency-count.
func (h *Handlers) ContingencyCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	count, err := h.svc.GetContingencyCount(ctx, userID, studyKey(r), r.URL.Query()["contingencyListName"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJson(w, http.StatusOK, api.ContingencyCountResponse{Count: count})
}
