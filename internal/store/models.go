// Package store contains the database layer for gridstudy.
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LoadFlowStatus is the lifecycle state of the load-flow computation of a study.
type LoadFlowStatus string

const (
	LoadFlowNotDone   LoadFlowStatus = "NOT_DONE"
	LoadFlowRunning   LoadFlowStatus = "RUNNING"
	LoadFlowConverged LoadFlowStatus = "CONVERGED"
	LoadFlowDiverged  LoadFlowStatus = "DIVERGED"
)

// SecurityAnalysisStatus is the lifecycle state of the security-analysis
// dispatch of a study. The remote service owns the run itself; DONE means a
// result identifier has been obtained and stored.
type SecurityAnalysisStatus string

const (
	SecurityAnalysisNotDone SecurityAnalysisStatus = "NOT_DONE"
	SecurityAnalysisRunning SecurityAnalysisStatus = "RUNNING"
	SecurityAnalysisDone    SecurityAnalysisStatus = "DONE"
)

// ComputationKind identifies one of the per-study computation gates.
type ComputationKind string

const (
	ComputationLoadFlow         ComputationKind = "loadflow"
	ComputationSecurityAnalysis ComputationKind = "security-analysis"
)

// StudyKey is the durable identity of a study. Unique once committed.
type StudyKey struct {
	OwnerID string
	Name    string
}

// Study is the durable aggregate binding an imported network to computation
// results and parameters. The store exclusively owns the record; callers never
// hold a second mutable copy.
type Study struct {
	// ID is an opaque handle that stays stable across rename.
	ID          uuid.UUID
	OwnerID     string
	Name        string
	Description string
	IsPrivate   bool

	CaseUUID    uuid.UUID
	CaseFormat  string
	NetworkUUID uuid.UUID
	NetworkID   string

	LoadFlowParameters json.RawMessage
	LoadFlowStatus     LoadFlowStatus
	LoadFlowResult     json.RawMessage
	LoadFlowStartedAt  *time.Time

	SecurityAnalysisStatus    SecurityAnalysisStatus
	SecurityAnalysisStartedAt *time.Time
	SecurityAnalysisResultID  *uuid.UUID

	CreatedAt time.Time
}

// Key returns the durable identity of the study.
func (s *Study) Key() StudyKey {
	return StudyKey{OwnerID: s.OwnerID, Name: s.Name}
}

// ComputationRunning reports whether any computation gate of the study is busy.
func (s *Study) ComputationRunning() bool {
	return s.LoadFlowStatus == LoadFlowRunning || s.SecurityAnalysisStatus == SecurityAnalysisRunning
}

// DefaultLoadFlowParameters is the parameter blob applied to new studies and
// restored when parameters are set with an empty body.
func DefaultLoadFlowParameters() json.RawMessage {
	return json.RawMessage(`{"voltageInitMode":"UNIFORM_VALUES","transformerVoltageControlOn":false,"noGeneratorReactiveLimits":false,"phaseShifterRegulationOn":false,"twtSplitShuntAdmittance":false,"simulShunt":false,"readSlackBus":false,"writeSlackBus":false}`)
}
