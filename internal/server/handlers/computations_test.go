package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"gridstudy/pkg/apperrors"
)

var studyPath = map[string]string{"ownerId": "alice", "studyName": "s1"}

func TestRunLoadFlow(t *testing.T) {
	tests := []struct {
		name           string
		mockSetup      func(*mockService)
		expectedStatus int
	}{
		{
			name:           "Success",
			mockSetup:      func(m *mockService) {},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Gate Busy",
			mockSetup: func(m *mockService) {
				m.runLFErr = apperrors.ErrComputationInProgress
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "Study Missing",
			mockSetup: func(m *mockService) {
				m.runLFErr = apperrors.ErrNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockService{}
			tt.mockSetup(mock)
			h := New(mock)

			rec := doRequest(t, h.RunLoadFlow, http.MethodPut, "/v1/alice/studies/s1/loadflow/run", "alice", nil, studyPath)
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestChangeSwitchState(t *testing.T) {
	mock := &mockService{}
	h := New(mock)

	pv := map[string]string{"ownerId": "alice", "studyName": "s1", "switchId": "sw-1"}
	rec := doRequest(t, h.ChangeSwitchState, http.MethodPut, "/v1/alice/studies/s1/network-modification/switches/sw-1?open=true", "alice", nil, pv)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if mock.lastSwitch != "sw-1" || !mock.lastOpen {
		t.Fatalf("switch call not forwarded: %q open=%v", mock.lastSwitch, mock.lastOpen)
	}

	mock.switchErr = apperrors.ErrComputationInProgress
	rec = doRequest(t, h.ChangeSwitchState, http.MethodPut, "/v1/alice/studies/s1/network-modification/switches/sw-1?open=true", "alice", nil, pv)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while computing, got %d", rec.Code)
	}
}

func TestApplyGroovyScript(t *testing.T) {
	mock := &mockService{}
	h := New(mock)

	script := "network.getSwitch('sw-1').open = true"
	rec := doRequest(t, h.ApplyGroovyScript, http.MethodPut, "/v1/alice/studies/s1/network-modification/groovy", "alice", strings.NewReader(script), studyPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if mock.lastScript != script {
		t.Fatalf("script not forwarded: %q", mock.lastScript)
	}

	rec = doRequest(t, h.ApplyGroovyScript, http.MethodPut, "/v1/alice/studies/s1/network-modification/groovy", "alice", strings.NewReader(""), studyPath)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty script, got %d", rec.Code)
	}
}

func TestRunSecurityAnalysis(t *testing.T) {
	mock := &mockService{}
	h := New(mock)

	target := "/v1/alice/studies/s1/security-analysis/run?contingencyListName=n-1&contingencyListName=n-2"
	rec := doRequest(t, h.RunSecurityAnalysis, http.MethodPost, target, "alice", nil, studyPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(mock.lastLists) != 2 || mock.lastLists[0] != "n-1" {
		t.Fatalf("contingency lists not forwarded: %v", mock.lastLists)
	}

	mock.runSAErr = apperrors.ErrComputationInProgress
	rec = doRequest(t, h.RunSecurityAnalysis, http.MethodPost, target, "alice", nil, studyPath)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestSecurityAnalysisStatus(t *testing.T) {
	mock := &mockService{saStatus: "COMPLETED"}
	h := New(mock)

	rec := doRequest(t, h.SecurityAnalysisStatus, http.MethodGet, "/v1/alice/studies/s1/security-analysis/status", "alice", nil, studyPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "COMPLETED") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	mock.saStatusErr = apperrors.ErrNotFound
	rec = doRequest(t, h.SecurityAnalysisStatus, http.MethodGet, "/v1/alice/studies/s1/security-analysis/status", "alice", nil, studyPath)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when never run, got %d", rec.Code)
	}
}

func TestSecurityAnalysisResult(t *testing.T) {
	mock := &mockService{saResult: json.RawMessage(`{"preContingencyResult":{}}`)}
	h := New(mock)

	rec := doRequest(t, h.SecurityAnalysisResult, http.MethodGet, "/v1/alice/studies/s1/security-analysis/result?limitType=CURRENT", "alice", nil, studyPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "preContingencyResult") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestContingencyCount(t *testing.T) {
	mock := &mockService{count: 7}
	h := New(mock)

	rec := doRequest(t, h.ContingencyCount, http.MethodGet, "/v1/alice/studies/s1/contingency-count?contingencyListName=n-1", "alice", nil, studyPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"contingencyCount":7`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
