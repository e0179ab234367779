package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gridstudy/internal/store"
	"gridstudy/pkg/apperrors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return &Store{db: db}, mock
}

func testKey() store.StudyKey {
	return store.StudyKey{OwnerID: "alice", Name: "s1"}
}

func TestCreate_DuplicateKey(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`INSERT INTO studies`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.Create(context.Background(), &store.Study{
		ID:      uuid.New(),
		OwnerID: "alice",
		Name:    "s1",
	})
	if !errors.Is(err, apperrors.ErrAlreadyExists) {
		t.Errorf("got %v, want ErrAlreadyExists", err)
	}
}

func TestCreate_AppliesDefaultParameters(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	study := &store.Study{
		ID:          uuid.New(),
		OwnerID:     "alice",
		Name:        "s1",
		CaseUUID:    uuid.New(),
		CaseFormat:  "XIIDM",
		NetworkUUID: uuid.New(),
		NetworkID:   "n1",
		CreatedAt:   time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO studies`).
		WithArgs(study.ID, "alice", "s1", "", false,
			study.CaseUUID, "XIIDM", study.NetworkUUID, "n1",
			[]byte(store.DefaultLoadFlowParameters()),
			store.LoadFlowNotDone, store.SecurityAnalysisNotDone, study.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.Create(context.Background(), study); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`SELECT .+ FROM studies WHERE owner_id = \$1 AND name = \$2`).
		WithArgs("alice", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.Get(context.Background(), store.StudyKey{OwnerID: "alice", Name: "missing"})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestTryStartComputation_Acquired(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`UPDATE studies\s+SET load_flow_status`).
		WithArgs(store.LoadFlowRunning, "alice", "s1", store.SecurityAnalysisRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.TryStartComputation(context.Background(), testKey(), store.ComputationLoadFlow)
	if err != nil {
		t.Fatalf("TryStartComputation failed: %v", err)
	}
	if !ok {
		t.Error("expected gate acquisition to succeed")
	}
}

func TestTryStartComputation_GateBusy(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	// Zero rows matched: some gate is RUNNING (or the study is gone).
	mock.ExpectExec(`UPDATE studies\s+SET load_flow_status`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.TryStartComputation(context.Background(), testKey(), store.ComputationLoadFlow)
	if err != nil {
		t.Fatalf("TryStartComputation failed: %v", err)
	}
	if ok {
		t.Error("expected gate acquisition to fail")
	}
}

func TestTryStartComputation_SecurityAnalysis(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`UPDATE studies\s+SET security_analysis_status`).
		WithArgs(store.LoadFlowRunning, "alice", "s1", store.SecurityAnalysisRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.TryStartComputation(context.Background(), testKey(), store.ComputationSecurityAnalysis)
	if err != nil {
		t.Fatalf("TryStartComputation failed: %v", err)
	}
	if !ok {
		t.Error("expected gate acquisition to succeed")
	}
}

func TestTryStartComputation_UnknownKind(t *testing.T) {
	s, _ := newMockStore(t)
	defer s.db.Close()

	if _, err := s.TryStartComputation(context.Background(), testKey(), "bogus"); err == nil {
		t.Error("expected error for unknown computation kind")
	}
}

func TestFinishLoadFlow_WritesResultAndReleasesGate(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	result := json.RawMessage(`{"ok":true}`)

	mock.ExpectExec(`UPDATE studies\s+SET load_flow_status = \$1, load_flow_result = \$2`).
		WithArgs(store.LoadFlowConverged, []byte(result), "alice", "s1", store.LoadFlowRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.FinishLoadFlow(context.Background(), testKey(), store.LoadFlowConverged, result)
	if err != nil {
		t.Fatalf("FinishLoadFlow failed: %v", err)
	}
	if !ok {
		t.Error("expected finish to apply")
	}
}

func TestFinishLoadFlow_StudyDeletedMidFlight(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`UPDATE studies\s+SET load_flow_status`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.FinishLoadFlow(context.Background(), testKey(), store.LoadFlowConverged, nil)
	if err != nil {
		t.Fatalf("FinishLoadFlow failed: %v", err)
	}
	if ok {
		t.Error("expected completion to be discarded")
	}
}

func TestInvalidateLoadFlow_ClearsSecurityAnalysis(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`security_analysis_result_id = NULL`).
		WithArgs(store.LoadFlowNotDone, "alice", "s1",
			store.LoadFlowRunning, store.SecurityAnalysisRunning, store.SecurityAnalysisNotDone).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.InvalidateLoadFlow(context.Background(), testKey(), true)
	if err != nil {
		t.Fatalf("InvalidateLoadFlow failed: %v", err)
	}
	if !ok {
		t.Error("expected invalidation to apply")
	}
}

func TestInvalidateLoadFlow_KeepsSecurityAnalysis(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`UPDATE studies\s+SET load_flow_status = \$1, load_flow_result = NULL`).
		WithArgs(store.LoadFlowNotDone, "alice", "s1",
			store.LoadFlowRunning, store.SecurityAnalysisRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.InvalidateLoadFlow(context.Background(), testKey(), false)
	if err != nil {
		t.Fatalf("InvalidateLoadFlow failed: %v", err)
	}
	if !ok {
		t.Error("expected invalidation to apply")
	}
}

func TestFinishSecurityAnalysis(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	resultID := uuid.New()

	mock.ExpectExec(`UPDATE studies\s+SET security_analysis_status = \$1, security_analysis_result_id = \$2`).
		WithArgs(store.SecurityAnalysisDone, resultID, "alice", "s1", store.SecurityAnalysisRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.FinishSecurityAnalysis(context.Background(), testKey(), resultID)
	if err != nil {
		t.Fatalf("FinishSecurityAnalysis failed: %v", err)
	}
	if !ok {
		t.Error("expected finish to apply")
	}
}

func TestAbortSecurityAnalysis(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`UPDATE studies\s+SET security_analysis_status = \$1, security_analysis_started_at = NULL`).
		WithArgs(store.SecurityAnalysisNotDone, "alice", "s1", store.SecurityAnalysisRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.AbortSecurityAnalysis(context.Background(), testKey())
	if err != nil {
		t.Fatalf("AbortSecurityAnalysis failed: %v", err)
	}
	if !ok {
		t.Error("expected abort to apply")
	}
}

func TestDelete_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`DELETE FROM studies`).
		WithArgs("alice", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Delete(context.Background(), store.StudyKey{OwnerID: "alice", Name: "missing"})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestRename_DestinationTaken(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`UPDATE studies SET name = \$1`).
		WithArgs("s2", "alice", "s1").
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.Rename(context.Background(), testKey(), "s2")
	if !errors.Is(err, apperrors.ErrAlreadyExists) {
		t.Errorf("got %v, want ErrAlreadyExists", err)
	}
}

func TestReclaimStale(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectExec(`UPDATE studies`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.ReclaimStale(context.Background(), 10*time.Minute)
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if n != 3 {
		t.Errorf("got %d reclaimed, want 3", n)
	}
}

func TestListVisibleTo(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	cols := []string{
		"id", "owner_id", "name", "description", "is_private",
		"case_uuid", "case_format", "network_uuid", "network_id",
		"load_flow_parameters", "load_flow_status", "load_flow_result", "load_flow_started_at",
		"security_analysis_status", "security_analysis_started_at", "security_analysis_result_id",
		"created_at",
	}
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM studies\s+WHERE owner_id = \$1 OR is_private = FALSE`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(uuid.New(), "alice", "mine", "", true,
				uuid.New(), "XIIDM", uuid.New(), "n1",
				[]byte(`{}`), "NOT_DONE", nil, nil,
				"NOT_DONE", nil, nil, now).
			AddRow(uuid.New(), "bob", "shared", "", false,
				uuid.New(), "CGMES", uuid.New(), "n2",
				[]byte(`{}`), "CONVERGED", []byte(`{"ok":true}`), nil,
				"NOT_DONE", nil, nil, now))

	studies, err := s.ListVisibleTo(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListVisibleTo failed: %v", err)
	}
	if len(studies) != 2 {
		t.Fatalf("expected 2 studies, got %d", len(studies))
	}
	if studies[0].OwnerID != "alice" || studies[1].OwnerID != "bob" {
		t.Errorf("unexpected owners: %s, %s", studies[0].OwnerID, studies[1].OwnerID)
	}
	if studies[1].LoadFlowResult == nil {
		t.Error("expected load flow result to be populated")
	}
}
