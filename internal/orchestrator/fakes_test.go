package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gridstudy/internal/gateway"
	"gridstudy/internal/store"
	"gridstudy/pkg/apperrors"

	"github.com/google/uuid"
)

// memStore is an in-memory StudyStore with the same conditional-update
// semantics as the Postgres implementation.
type memStore struct {
	mu      sync.Mutex
	studies map[store.StudyKey]*store.Study

	createErr error
}

func newMemStore() *memStore {
	return &memStore{studies: make(map[store.StudyKey]*store.Study)}
}

func (m *memStore) put(s *store.Study) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.studies[s.Key()] = &cp
}

func (m *memStore) Ping(ctx context.Context) error { return nil }

func (m *memStore) Create(ctx context.Context, study *store.Study) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.studies[study.Key()]; ok {
		return apperrors.ErrAlreadyExists
	}
	cp := *study
	m.studies[study.Key()] = &cp
	return nil
}

func (m *memStore) Get(ctx context.Context, key store.StudyKey) (*store.Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.studies[key]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) Exists(ctx context.Context, key store.StudyKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.studies[key]
	return ok, nil
}

func (m *memStore) Delete(ctx context.Context, key store.StudyKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.studies[key]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.studies, key)
	return nil
}

func (m *memStore) Rename(ctx context.Context, key store.StudyKey, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.studies[key]
	if !ok {
		return apperrors.ErrNotFound
	}
	newKey := store.StudyKey{OwnerID: key.OwnerID, Name: newName}
	if _, taken := m.studies[newKey]; taken {
		return apperrors.ErrAlreadyExists
	}
	delete(m.studies, key)
	s.Name = newName
	m.studies[newKey] = s
	return nil
}

func (m *memStore) ListVisibleTo(ctx context.Context, userID string) ([]store.Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Study
	for _, s := range m.studies {
		if s.OwnerID == userID || !s.IsPrivate {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) SetPrivate(ctx context.Context, key store.StudyKey, private bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.studies[key]
	if !ok {
		return apperrors.ErrNotFound
	}
	s.IsPrivate = private
	return nil
}

func (m *memStore) SetLoadFlowParameters(ctx context.Context, key store.StudyKey, params json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.studies[key]
	if !ok {
		return apperrors.ErrNotFound
	}
	s.LoadFlowParameters = params
	return nil
}

func (m *memStore) TryStartComputation(ctx context.Context, key store.StudyKey, kind store.ComputationKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.studies[key]
	if !ok || s.ComputationRunning() {
		return false, nil
	}
	now := time.Now().UTC()
	switch kind {
	case store.ComputationLoadFlow:
		s.LoadFlowStatus = store.LoadFlowRunning
		s.LoadFlowStartedAt = &now
	case store.ComputationSecurityAnalysis:
		s.SecurityAnalysisStatus = store.SecurityAnalysisRunning
		s.SecurityAnalysisStartedAt = &now
	default:
		return false, nil
	}
	return true, nil
}

func (m *memStore) FinishLoadFlow(ctx context.Context, key store.StudyKey, status store.LoadFlowStatus, result json.RawMessage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.studies[key]
	if !ok || s.LoadFlowStatus != store.LoadFlowRunning {
		return false, nil
	}
	s.LoadFlowStatus = status
	s.LoadFlowResult = result
	s.LoadFlowStartedAt = nil
	return true, nil
}

func (m *memStore) InvalidateLoadFlow(ctx context.Context, key store.StudyKey, clearSecurityAnalysis bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.studies[key]
	if !ok || s.ComputationRunning() {
		return false, nil
	}
	s.LoadFlowStatus = store.LoadFlowNotDone
	s.LoadFlowResult = nil
	if clearSecurityAnalysis {
		s.SecurityAnalysisStatus = store.SecurityAnalysisNotDone
		s.SecurityAnalysisResultID = nil
	}
	return true, nil
}

func (m *memStore) FinishSecurityAnalysis(ctx context.Context, key store.StudyKey, resultID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.studies[key]
	if !ok || s.SecurityAnalysisStatus != store.SecurityAnalysisRunning {
		return false, nil
	}
	s.SecurityAnalysisStatus = store.SecurityAnalysisDone
	s.SecurityAnalysisResultID = &resultID
	s.SecurityAnalysisStartedAt = nil
	return true, nil
}

func (m *memStore) AbortSecurityAnalysis(ctx context.Context, key store.StudyKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.studies[key]
	if !ok || s.SecurityAnalysisStatus != store.SecurityAnalysisRunning {
		return false, nil
	}
	s.SecurityAnalysisStatus = store.SecurityAnalysisNotDone
	s.SecurityAnalysisStartedAt = nil
	return true, nil
}

func (m *memStore) ReclaimStale(ctx context.Context, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-ttl)
	var n int64
	for _, s := range m.studies {
		touched := false
		if s.LoadFlowStatus == store.LoadFlowRunning && s.LoadFlowStartedAt != nil && s.LoadFlowStartedAt.Before(cutoff) {
			s.LoadFlowStatus = store.LoadFlowNotDone
			s.LoadFlowResult = nil
			s.LoadFlowStartedAt = nil
			touched = true
		}
		if s.SecurityAnalysisStatus == store.SecurityAnalysisRunning && s.SecurityAnalysisStartedAt != nil && s.SecurityAnalysisStartedAt.Before(cutoff) {
			s.SecurityAnalysisStatus = store.SecurityAnalysisNotDone
			s.SecurityAnalysisStartedAt = nil
			touched = true
		}
		if touched {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountRunningComputations(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.studies {
		if s.ComputationRunning() {
			n++
		}
	}
	return n, nil
}

type fakeCase struct {
	exists bool
	format string
	err    error
}

func (f *fakeCase) Exists(ctx context.Context, caseUUID uuid.UUID) (bool, error) {
	return f.exists, f.err
}

func (f *fakeCase) Format(ctx context.Context, caseUUID uuid.UUID) (string, error) {
	return f.format, f.err
}

type fakeConversion struct {
	ids gateway.NetworkIdentifiers
	err error

	// block, when non-nil, holds Import until closed.
	block chan struct{}
}

func (f *fakeConversion) Import(ctx context.Context, caseUUID uuid.UUID) (gateway.NetworkIdentifiers, error) {
	if f.block != nil {
		<-f.block
	}
	return f.ids, f.err
}

type fakeModification struct {
	mu      sync.Mutex
	err     error
	switches []string
	scripts  []string
}

func (f *fakeModification) ChangeSwitchState(ctx context.Context, networkUUID uuid.UUID, switchID string, open bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switches = append(f.switches, switchID)
	return f.err
}

func (f *fakeModification) ApplyScript(ctx context.Context, networkUUID uuid.UUID, script string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, script)
	return f.err
}

type fakeLoadFlow struct {
	outcome gateway.LoadFlowOutcome
	err     error

	block chan struct{}
}

func (f *fakeLoadFlow) Run(ctx context.Context, networkUUID uuid.UUID, parameters json.RawMessage) (gateway.LoadFlowOutcome, error) {
	if f.block != nil {
		<-f.block
	}
	return f.outcome, f.err
}

type fakeSecurity struct {
	resultID uuid.UUID
	startErr error
	status   string
	result   json.RawMessage
	count    int

	block chan struct{}
}

func (f *fakeSecurity) Start(ctx context.Context, networkUUID uuid.UUID, contingencyListNames []string, parameters string) (uuid.UUID, error) {
	if f.block != nil {
		<-f.block
	}
	return f.resultID, f.startErr
}

func (f *fakeSecurity) Status(ctx context.Context, resultID uuid.UUID) (string, error) {
	return f.status, nil
}

func (f *fakeSecurity) Result(ctx context.Context, resultID uuid.UUID, limitTypes []string) (json.RawMessage, error) {
	return f.result, nil
}

func (f *fakeSecurity) ContingencyCount(ctx context.Context, networkUUID uuid.UUID, contingencyListNames []string) (int, error) {
	return f.count, nil
}
