// Package orchestrator coordinates the lifecycle of studies: the asynchronous
// creation workflow, ownership checks, and the operations that mutate a study
// or launch computations while respecting the per-study computation gates.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gridstudy/internal/gateway"
	"gridstudy/internal/pending"
	"gridstudy/internal/store"
	"gridstudy/pkg/apperrors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the orchestrator tunables.
type Config struct {
	// CreationTimeout bounds the asynchronous import-and-commit pipeline.
	CreationTimeout time.Duration

	// ComputationTimeout bounds a single remote computation call.
	ComputationTimeout time.Duration

	// RunningTTL is how long a computation gate may stay RUNNING before the
	// reconciler resets it to NOT_DONE.
	RunningTTL time.Duration

	// ReconcileInterval is the period of the background reclamation pass.
	ReconcileInterval time.Duration

	// InvalidateSecurityAnalysisOnChange clears the stored security-analysis
	// result when the network is mutated, on the grounds that the result no
	// longer reflects the network. The load-flow result is always cleared.
	InvalidateSecurityAnalysisOnChange bool
}

func (c Config) withDefaults() Config {
	if c.CreationTimeout <= 0 {
		c.CreationTimeout = 10 * time.Minute
	}
	if c.ComputationTimeout <= 0 {
		c.ComputationTimeout = 30 * time.Minute
	}
	if c.RunningTTL <= 0 {
		c.RunningTTL = time.Hour
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = time.Minute
	}
	return c
}

// CreateStudyParams are the caller-supplied attributes of a new study.
type CreateStudyParams struct {
	Name        string
	CaseUUID    uuid.UUID
	Description string
	IsPrivate   bool
}

// Orchestrator is the central coordinator. The store is the single source of
// truth; the orchestrator never caches study state across calls.
type Orchestrator struct {
	store   store.StudyStore
	pending *pending.Tracker
	gw      gateway.Gateways
	cfg     Config
	log     *slog.Logger
	tracer  trace.Tracer

	// tasks tracks detached background work (imports, computations) so
	// shutdown and tests can wait for it to drain.
	tasks sync.WaitGroup
}

// New creates an orchestrator.
func New(s store.StudyStore, tracker *pending.Tracker, gw gateway.Gateways, logger *slog.Logger, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:   s,
		pending: tracker,
		gw:      gw,
		cfg:     cfg.withDefaults(),
		log:     logger,
		tracer:  otel.Tracer("gridstudy-orchestrator"),
	}
}

// Wait blocks until all detached background tasks have finished.
func (o *Orchestrator) Wait() {
	o.tasks.Wait()
}

// Ping reports whether the backing store is reachable.
func (o *Orchestrator) Ping(ctx context.Context) error {
	return o.store.Ping(ctx)
}

// CreateStudy runs the admission checks for a new study and, when they pass,
// launches the import pipeline in the background. It returns as soon as the
// key is claimed; the durable record appears once the import commits.
func (o *Orchestrator) CreateStudy(ctx context.Context, callerID string, p CreateStudyParams) error {
	if p.Name == "" {
		return fmt.Errorf("study name is required")
	}
	key := store.StudyKey{OwnerID: callerID, Name: p.Name}

	exists, err := o.gw.Case.Exists(ctx, p.CaseUUID)
	if err != nil {
		return fmt.Errorf("%w: checking case: %v", apperrors.ErrImport, err)
	}
	if !exists {
		return fmt.Errorf("%w: case %s", apperrors.ErrNotFound, p.CaseUUID)
	}

	ok, err := o.pending.Register(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrAlreadyExists
	}

	o.tasks.Add(1)
	go o.importAndCommit(key, p)
	return nil
}

// importAndCommit is the background half of the creation workflow: import the
// case into a network, then publish the durable study. The pending entry is
// removed on every exit path; on failure no durable record exists and the key
// becomes available again.
func (o *Orchestrator) importAndCommit(key store.StudyKey, p CreateStudyParams) {
	defer o.tasks.Done()
	defer o.pending.Complete(key)

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.CreationTimeout)
	defer cancel()

	ctx, span := o.tracer.Start(ctx, "study.create",
		trace.WithAttributes(
			attribute.String("study.owner", key.OwnerID),
			attribute.String("study.name", key.Name),
			attribute.String("case.uuid", p.CaseUUID.String()),
		))
	defer span.End()

	log := o.log.With("owner", key.OwnerID, "study", key.Name)

	format, err := o.gw.Case.Format(ctx, p.CaseUUID)
	if err != nil {
		span.RecordError(err)
		log.Error("study creation failed: case format lookup", "error", err)
		return
	}

	ids, err := o.gw.Conversion.Import(ctx, p.CaseUUID)
	if err != nil {
		span.RecordError(err)
		log.Error("study creation failed: network import", "error", err)
		return
	}

	study := &store.Study{
		ID:                     uuid.New(),
		OwnerID:                key.OwnerID,
		Name:                   key.Name,
		Description:            p.Description,
		IsPrivate:              p.IsPrivate,
		CaseUUID:               p.CaseUUID,
		CaseFormat:             format,
		NetworkUUID:            ids.NetworkUUID,
		NetworkID:              ids.NetworkID,
		LoadFlowParameters:     store.DefaultLoadFlowParameters(),
		LoadFlowStatus:         store.LoadFlowNotDone,
		SecurityAnalysisStatus: store.SecurityAnalysisNotDone,
		CreatedAt:              time.Now().UTC(),
	}
	if err := o.store.Create(ctx, study); err != nil {
		span.RecordError(err)
		log.Error("study creation failed: commit", "error", err)
		return
	}

	log.Info("study created", "network_uuid", ids.NetworkUUID, "case_format", format)
}

// GetStudy returns the study, enforcing visibility: a private study is only
// readable by its owner.
func (o *Orchestrator) GetStudy(ctx context.Context, callerID string, key store.StudyKey) (*store.Study, error) {
	study, err := o.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if study.IsPrivate && study.OwnerID != callerID {
		return nil, apperrors.ErrForbidden
	}
	return study, nil
}

// StudyExists reports whether a durable study occupies the key.
func (o *Orchestrator) StudyExists(ctx context.Context, key store.StudyKey) (bool, error) {
	return o.store.Exists(ctx, key)
}

// ListStudies returns the caller's studies plus public studies of other users.
func (o *Orchestrator) ListStudies(ctx context.Context, callerID string) ([]store.Study, error) {
	return o.store.ListVisibleTo(ctx, callerID)
}

// ListPendingCreations returns the caller's in-flight creation requests.
func (o *Orchestrator) ListPendingCreations(callerID string) []pending.Creation {
	return o.pending.List(callerID)
}

// DeleteStudy removes the durable record. It is rejected while a creation is
// pending for the key; otherwise it succeeds regardless of computation state.
// In-flight remote computations are not cancelled; their completion callbacks
// match zero rows and are discarded.
func (o *Orchestrator) DeleteStudy(ctx context.Context, callerID string, key store.StudyKey) error {
	if err := o.authorizeOwner(callerID, key); err != nil {
		return err
	}
	if o.pending.IsPending(key) {
		return apperrors.ErrDeletionWhileCreating
	}
	return o.store.Delete(ctx, key)
}

// RenameStudy relocates the study identity to a new name. The destination key
// must be free both durably and among pending creations.
func (o *Orchestrator) RenameStudy(ctx context.Context, callerID string, key store.StudyKey, newName string) (*store.Study, error) {
	if err := o.authorizeOwner(callerID, key); err != nil {
		return nil, err
	}
	if newName == "" {
		return nil, fmt.Errorf("new study name is required")
	}
	newKey := store.StudyKey{OwnerID: key.OwnerID, Name: newName}
	if o.pending.IsPending(newKey) {
		return nil, apperrors.ErrAlreadyExists
	}
	if err := o.store.Rename(ctx, key, newName); err != nil {
		return nil, err
	}
	return o.store.Get(ctx, newKey)
}

// SetVisibility toggles the private flag. Idempotent, no gate interaction.
func (o *Orchestrator) SetVisibility(ctx context.Context, callerID string, key store.StudyKey, private bool) error {
	if err := o.authorizeOwner(callerID, key); err != nil {
		return err
	}
	return o.store.SetPrivate(ctx, key, private)
}

// GetLoadFlowParameters returns the study's load-flow parameter blob.
func (o *Orchestrator) GetLoadFlowParameters(ctx context.Context, callerID string, key store.StudyKey) (json.RawMessage, error) {
	study, err := o.GetStudy(ctx, callerID, key)
	if err != nil {
		return nil, err
	}
	return study.LoadFlowParameters, nil
}

// SetLoadFlowParameters replaces the parameter blob; an empty blob resets to
// the defaults.
func (o *Orchestrator) SetLoadFlowParameters(ctx context.Context, callerID string, key store.StudyKey, params json.RawMessage) error {
	if err := o.authorizeOwner(callerID, key); err != nil {
		return err
	}
	if len(params) == 0 {
		params = store.DefaultLoadFlowParameters()
	}
	return o.store.SetLoadFlowParameters(ctx, key, params)
}

// ChangeSwitchState toggles a switch on the study's network. The network is
// now out of sync with any prior computation result, so the load-flow state is
// reset and, per policy, the security-analysis result reference is cleared.
func (o *Orchestrator) ChangeSwitchState(ctx context.Context, callerID string, key store.StudyKey, switchID string, open bool) error {
	return o.mutateNetwork(ctx, callerID, key, func(networkUUID uuid.UUID) error {
		return o.gw.Modification.ChangeSwitchState(ctx, networkUUID, switchID, open)
	})
}

// ApplyScript applies a modification script to the study's network, with the
// same invalidation semantics as ChangeSwitchState.
func (o *Orchestrator) ApplyScript(ctx context.Context, callerID string, key store.StudyKey, script string) error {
	if script == "" {
		return fmt.Errorf("script is required")
	}
	return o.mutateNetwork(ctx, callerID, key, func(networkUUID uuid.UUID) error {
		return o.gw.Modification.ApplyScript(ctx, networkUUID, script)
	})
}

func (o *Orchestrator) mutateNetwork(ctx context.Context, callerID string, key store.StudyKey, mutate func(networkUUID uuid.UUID) error) error {
	if err := o.authorizeOwner(callerID, key); err != nil {
		return err
	}
	study, err := o.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if study.ComputationRunning() {
		return apperrors.ErrComputationInProgress
	}

	if err := mutate(study.NetworkUUID); err != nil {
		return fmt.Errorf("%w: network modification: %v", apperrors.ErrCompute, err)
	}

	// The invalidation re-checks the gates: a computation acquired between the
	// admission check above and this write keeps its state.
	applied, err := o.store.InvalidateLoadFlow(ctx, key, o.cfg.InvalidateSecurityAnalysisOnChange)
	if err != nil {
		return err
	}
	if !applied {
		return apperrors.ErrComputationInProgress
	}
	return nil
}

// RunLoadFlow acquires the load-flow gate and launches the computation in the
// background. It returns once the gate is held.
func (o *Orchestrator) RunLoadFlow(ctx context.Context, callerID string, key store.StudyKey) error {
	if err := o.authorizeOwner(callerID, key); err != nil {
		return err
	}
	study, err := o.store.Get(ctx, key)
	if err != nil {
		return err
	}

	acquired, err := o.store.TryStartComputation(ctx, key, store.ComputationLoadFlow)
	if err != nil {
		return err
	}
	if !acquired {
		return apperrors.ErrComputationInProgress
	}

	o.tasks.Add(1)
	go o.runLoadFlowTask(key, study.NetworkUUID, study.LoadFlowParameters)
	return nil
}

func (o *Orchestrator) runLoadFlowTask(key store.StudyKey, networkUUID uuid.UUID, params json.RawMessage) {
	defer o.tasks.Done()

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.ComputationTimeout)
	defer cancel()

	ctx, span := o.tracer.Start(ctx, "loadflow.run",
		trace.WithAttributes(
			attribute.String("study.owner", key.OwnerID),
			attribute.String("study.name", key.Name),
			attribute.String("network.uuid", networkUUID.String()),
		))
	defer span.End()

	log := o.log.With("owner", key.OwnerID, "study", key.Name)

	outcome, err := o.gw.LoadFlow.Run(ctx, networkUUID, params)
	if err != nil {
		span.RecordError(err)
		log.Warn("load flow failed, releasing gate", "error", err)
		o.releaseLoadFlowGate(key)
		return
	}

	status := store.LoadFlowDiverged
	if outcome.Converged {
		status = store.LoadFlowConverged
	}

	applied, err := o.store.FinishLoadFlow(ctx, key, status, outcome.Report)
	if err != nil {
		span.RecordError(err)
		log.Error("failed to persist load flow result", "error", err)
		return
	}
	if !applied {
		// Study deleted (or gate reclaimed) while the computation ran.
		log.Info("load flow completion discarded, study gone or gate reset")
		return
	}
	log.Info("load flow finished", "status", status)
}

// releaseLoadFlowGate resets a RUNNING load-flow gate after a failed run. The
// status returns to the last consistent value (NOT_DONE, no result); the
// failure surfaces to the next status query, not to the original caller.
func (o *Orchestrator) releaseLoadFlowGate(key store.StudyKey) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := o.store.FinishLoadFlow(ctx, key, store.LoadFlowNotDone, nil); err != nil {
		o.log.Error("failed to release load flow gate", "owner", key.OwnerID, "study", key.Name, "error", err)
	}
}

// RunSecurityAnalysis acquires the security-analysis gate and dispatches the
// run to the remote service in the background. The remote returns a result
// identifier which is stored on the study; the run itself is owned by the
// remote service and never waited on.
func (o *Orchestrator) RunSecurityAnalysis(ctx context.Context, callerID string, key store.StudyKey, contingencyListNames []string, parameters string) error {
	if err := o.authorizeOwner(callerID, key); err != nil {
		return err
	}
	study, err := o.store.Get(ctx, key)
	if err != nil {
		return err
	}

	acquired, err := o.store.TryStartComputation(ctx, key, store.ComputationSecurityAnalysis)
	if err != nil {
		return err
	}
	if !acquired {
		return apperrors.ErrComputationInProgress
	}

	o.tasks.Add(1)
	go o.startSecurityAnalysisTask(key, study.NetworkUUID, contingencyListNames, parameters)
	return nil
}

func (o *Orchestrator) startSecurityAnalysisTask(key store.StudyKey, networkUUID uuid.UUID, contingencyListNames []string, parameters string) {
	defer o.tasks.Done()

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.ComputationTimeout)
	defer cancel()

	ctx, span := o.tracer.Start(ctx, "security-analysis.start",
		trace.WithAttributes(
			attribute.String("study.owner", key.OwnerID),
			attribute.String("study.name", key.Name),
			attribute.String("network.uuid", networkUUID.String()),
		))
	defer span.End()

	log := o.log.With("owner", key.OwnerID, "study", key.Name)

	resultID, err := o.gw.Security.Start(ctx, networkUUID, contingencyListNames, parameters)
	if err != nil {
		span.RecordError(err)
		log.Warn("security analysis dispatch failed, releasing gate", "error", err)
		if _, abortErr := o.store.AbortSecurityAnalysis(ctx, key); abortErr != nil {
			log.Error("failed to release security analysis gate", "error", abortErr)
		}
		return
	}

	applied, err := o.store.FinishSecurityAnalysis(ctx, key, resultID)
	if err != nil {
		span.RecordError(err)
		log.Error("failed to persist security analysis result id", "error", err)
		return
	}
	if !applied {
		log.Info("security analysis completion discarded, study gone or gate reset")
		return
	}
	log.Info("security analysis started", "result_id", resultID)
}

// GetSecurityAnalysisStatus forwards the status query to the remote service
// using the stored result identifier. A study with no identifier has never had
// an analysis requested, which is a not-found, not an error.
func (o *Orchestrator) GetSecurityAnalysisStatus(ctx context.Context, callerID string, key store.StudyKey) (string, error) {
	study, err := o.GetStudy(ctx, callerID, key)
	if err != nil {
		return "", err
	}
	if study.SecurityAnalysisResultID == nil {
		return "", apperrors.ErrNotFound
	}
	return o.gw.Security.Status(ctx, *study.SecurityAnalysisResultID)
}

// GetSecurityAnalysisResult forwards the result query to the remote service.
func (o *Orchestrator) GetSecurityAnalysisResult(ctx context.Context, callerID string, key store.StudyKey, limitTypes []string) (json.RawMessage, error) {
	study, err := o.GetStudy(ctx, callerID, key)
	if err != nil {
		return nil, err
	}
	if study.SecurityAnalysisResultID == nil {
		return nil, apperrors.ErrNotFound
	}
	return o.gw.Security.Result(ctx, *study.SecurityAnalysisResultID, limitTypes)
}

// GetContingencyCount returns the number of contingencies the given lists
// produce for the study's network.
func (o *Orchestrator) GetContingencyCount(ctx context.Context, callerID string, key store.StudyKey, contingencyListNames []string) (int, error) {
	study, err := o.GetStudy(ctx, callerID, key)
	if err != nil {
		return 0, err
	}
	return o.gw.Security.ContingencyCount(ctx, study.NetworkUUID, contingencyListNames)
}

func (o *Orchestrator) authorizeOwner(callerID string, key store.StudyKey) error {
	if callerID != key.OwnerID {
		return apperrors.ErrForbidden
	}
	return nil
}
