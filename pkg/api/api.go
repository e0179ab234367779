// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and the server.
package api

import "time"

// StudyResponse represents a study in API responses.
type StudyResponse struct {
	StudyName   string    `json:"studyName"`
	UserID      string    `json:"userId"`
	Description string    `json:"description,omitempty"`
	CaseFormat  string    `json:"caseFormat"`
	CaseUUID    string    `json:"caseUuid"`
	NetworkUUID string    `json:"networkUuid"`
	NetworkID   string    `json:"networkId"`
	Private     bool      `json:"private"`
	CreatedAt   time.Time `json:"creationDate"`

	LoadFlowStatus string `json:"loadFlowStatus"`
	// LoadFlowResult carries the raw result payload of the last run, if any.
	LoadFlowResult string `json:"loadFlowResult,omitempty"`

	SecurityAnalysisStatus     string `json:"securityAnalysisStatus"`
	SecurityAnalysisResultUUID string `json:"securityAnalysisResultUuid,omitempty"`
}

// ListStudiesResponse is the response body for listing visible studies.
type ListStudiesResponse struct {
	Studies []StudyResponse `json:"studies"`
}

// PendingCreationResponse represents an in-flight study creation request.
type PendingCreationResponse struct {
	StudyName   string    `json:"studyName"`
	UserID      string    `json:"userId"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// ListPendingCreationsResponse is the response body for listing the caller's
// in-flight creation requests.
type ListPendingCreationsResponse struct {
	Requests []PendingCreationResponse `json:"studyCreationRequests"`
}

// RenameStudyRequest is the request body for renaming a study.
type RenameStudyRequest struct {
	NewStudyName string `json:"newStudyName"`
}

// SecurityAnalysisStatusResponse is the response body for a status query.
type SecurityAnalysisStatusResponse struct {
	Status string `json:"status"`
}

// ContingencyCountResponse is the response body for a contingency count query.
type ContingencyCountResponse struct {
	Count int `json:"contingencyCount"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
