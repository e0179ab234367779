package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gridstudy/internal/store"
	"gridstudy/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const studyColumns = `id, owner_id, name, description, is_private,
	case_uuid, case_format, network_uuid, network_id,
	load_flow_parameters, load_flow_status, load_flow_result, load_flow_started_at,
	security_analysis_status, security_analysis_started_at, security_analysis_result_id,
	created_at`

// Create inserts a new durable study row.
func (s *Store) Create(ctx context.Context, study *store.Study) error {
	query := `
		INSERT INTO studies (id, owner_id, name, description, is_private,
			case_uuid, case_format, network_uuid, network_id,
			load_flow_parameters, load_flow_status, security_analysis_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	params := study.LoadFlowParameters
	if len(params) == 0 {
		params = store.DefaultLoadFlowParameters()
	}

	_, err := s.db.ExecContext(ctx, query,
		study.ID,
		study.OwnerID,
		study.Name,
		study.Description,
		study.IsPrivate,
		study.CaseUUID,
		study.CaseFormat,
		study.NetworkUUID,
		study.NetworkID,
		[]byte(params),
		store.LoadFlowNotDone,
		store.SecurityAnalysisNotDone,
		study.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return apperrors.ErrAlreadyExists
		}
		return fmt.Errorf("%w: create study: %v", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// Get returns the study for the given key.
func (s *Store) Get(ctx context.Context, key store.StudyKey) (*store.Study, error) {
	query := fmt.Sprintf("SELECT %s FROM studies WHERE owner_id = $1 AND name = $2", studyColumns)
	return s.scanStudy(s.db.QueryRowContext(ctx, query, key.OwnerID, key.Name))
}

// Exists reports whether a durable study occupies the given key.
func (s *Store) Exists(ctx context.Context, key store.StudyKey) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM studies WHERE owner_id = $1 AND name = $2)",
		key.OwnerID, key.Name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: exists: %v", apperrors.ErrStoreUnavailable, err)
	}
	return exists, nil
}

// Delete removes the study row unconditionally.
func (s *Store) Delete(ctx context.Context, key store.StudyKey) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM studies WHERE owner_id = $1 AND name = $2",
		key.OwnerID, key.Name,
	)
	if err != nil {
		return fmt.Errorf("%w: delete study: %v", apperrors.ErrStoreUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Rename relocates the record identity to (key.OwnerID, newName). The unique
// index on (owner_id, name) rejects an occupied destination.
func (s *Store) Rename(ctx context.Context, key store.StudyKey, newName string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE studies SET name = $1 WHERE owner_id = $2 AND name = $3",
		newName, key.OwnerID, key.Name,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return apperrors.ErrAlreadyExists
		}
		return fmt.Errorf("%w: rename study: %v", apperrors.ErrStoreUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ListVisibleTo returns the studies owned by userID plus public studies of
// other users.
func (s *Store) ListVisibleTo(ctx context.Context, userID string) ([]store.Study, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM studies
		WHERE owner_id = $1 OR is_private = FALSE
		ORDER BY created_at ASC
	`, studyColumns)

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list studies: %v", apperrors.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var studies []store.Study
	for rows.Next() {
		study, err := s.scanStudy(rows)
		if err != nil {
			return nil, err
		}
		studies = append(studies, *study)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list studies: %v", apperrors.ErrStoreUnavailable, err)
	}
	return studies, nil
}

// SetPrivate updates the visibility flag.
func (s *Store) SetPrivate(ctx context.Context, key store.StudyKey, private bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE studies SET is_private = $1 WHERE owner_id = $2 AND name = $3",
		private, key.OwnerID, key.Name,
	)
	if err != nil {
		return fmt.Errorf("%w: set visibility: %v", apperrors.ErrStoreUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SetLoadFlowParameters replaces the load-flow parameter blob.
func (s *Store) SetLoadFlowParameters(ctx context.Context, key store.StudyKey, params json.RawMessage) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE studies SET load_flow_parameters = $1 WHERE owner_id = $2 AND name = $3",
		[]byte(params), key.OwnerID, key.Name,
	)
	if err != nil {
		return fmt.Errorf("%w: set load flow parameters: %v", apperrors.ErrStoreUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// TryStartComputation is the computation gate. The WHERE clause requires every
// gate to be free, so the transition is a single atomic check-and-set; exactly
// one of any number of concurrent callers gets RowsAffected() == 1.
func (s *Store) TryStartComputation(ctx context.Context, key store.StudyKey, kind store.ComputationKind) (bool, error) {
	var query string
	switch kind {
	case store.ComputationLoadFlow:
		query = `
			UPDATE studies
			SET load_flow_status = $1, load_flow_started_at = NOW()
			WHERE owner_id = $2 AND name = $3
			  AND load_flow_status <> $1 AND security_analysis_status <> $4
		`
	case store.ComputationSecurityAnalysis:
		query = `
			UPDATE studies
			SET security_analysis_status = $4, security_analysis_started_at = NOW()
			WHERE owner_id = $2 AND name = $3
			  AND load_flow_status <> $1 AND security_analysis_status <> $4
		`
	default:
		return false, fmt.Errorf("unknown computation kind %q", kind)
	}

	res, err := s.db.ExecContext(ctx, query,
		store.LoadFlowRunning, key.OwnerID, key.Name, store.SecurityAnalysisRunning,
	)
	if err != nil {
		return false, fmt.Errorf("%w: start %s: %v", apperrors.ErrStoreUnavailable, kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: start %s: %v", apperrors.ErrStoreUnavailable, kind, err)
	}
	return n == 1, nil
}

// FinishLoadFlow writes the terminal status and result, releasing the gate.
// A completion racing a delete matches zero rows and is reported as false.
func (s *Store) FinishLoadFlow(ctx context.Context, key store.StudyKey, status store.LoadFlowStatus, result json.RawMessage) (bool, error) {
	var resultArg interface{}
	if len(result) > 0 {
		resultArg = []byte(result)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE studies
		SET load_flow_status = $1, load_flow_result = $2, load_flow_started_at = NULL
		WHERE owner_id = $3 AND name = $4 AND load_flow_status = $5
	`, status, resultArg, key.OwnerID, key.Name, store.LoadFlowRunning)
	if err != nil {
		return false, fmt.Errorf("%w: finish load flow: %v", apperrors.ErrStoreUnavailable, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// InvalidateLoadFlow resets the load-flow state after a network mutation. The
// guard on both gates keeps the reset from clobbering a computation that
// started between the caller's admission check and this write.
func (s *Store) InvalidateLoadFlow(ctx context.Context, key store.StudyKey, clearSecurityAnalysis bool) (bool, error) {
	query := `
		UPDATE studies
		SET load_flow_status = $1, load_flow_result = NULL, load_flow_started_at = NULL
		WHERE owner_id = $2 AND name = $3
		  AND load_flow_status <> $4 AND security_analysis_status <> $5
	`
	if clearSecurityAnalysis {
		query = `
			UPDATE studies
			SET load_flow_status = $1, load_flow_result = NULL, load_flow_started_at = NULL,
			    security_analysis_status = $6, security_analysis_result_id = NULL
			WHERE owner_id = $2 AND name = $3
			  AND load_flow_status <> $4 AND security_analysis_status <> $5
		`
	}

	args := []interface{}{
		store.LoadFlowNotDone, key.OwnerID, key.Name,
		store.LoadFlowRunning, store.SecurityAnalysisRunning,
	}
	if clearSecurityAnalysis {
		args = append(args, store.SecurityAnalysisNotDone)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%w: invalidate load flow: %v", apperrors.ErrStoreUnavailable, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// FinishSecurityAnalysis stores the remote result identifier, releasing the gate.
func (s *Store) FinishSecurityAnalysis(ctx context.Context, key store.StudyKey, resultID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE studies
		SET security_analysis_status = $1, security_analysis_result_id = $2, security_analysis_started_at = NULL
		WHERE owner_id = $3 AND name = $4 AND security_analysis_status = $5
	`, store.SecurityAnalysisDone, resultID, key.OwnerID, key.Name, store.SecurityAnalysisRunning)
	if err != nil {
		return false, fmt.Errorf("%w: finish security analysis: %v", apperrors.ErrStoreUnavailable, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// AbortSecurityAnalysis releases a RUNNING dispatch gate after a failed start,
// keeping whatever result identifier a previous run stored.
func (s *Store) AbortSecurityAnalysis(ctx context.Context, key store.StudyKey) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE studies
		SET security_analysis_status = $1, security_analysis_started_at = NULL
		WHERE owner_id = $2 AND name = $3 AND security_analysis_status = $4
	`, store.SecurityAnalysisNotDone, key.OwnerID, key.Name, store.SecurityAnalysisRunning)
	if err != nil {
		return false, fmt.Errorf("%w: abort security analysis: %v", apperrors.ErrStoreUnavailable, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ReclaimStale resets gates that have been RUNNING longer than ttl. This is
// the recovery path for a process that died between gate acquisition and
// completion; without it a study would stay locked forever.
func (s *Store) ReclaimStale(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoffSeconds := ttl.Seconds()

	res, err := s.db.ExecContext(ctx, `
		UPDATE studies
		SET load_flow_status = CASE
				WHEN load_flow_status = $1 AND load_flow_started_at < NOW() - ($3 * INTERVAL '1 second')
				THEN $2 ELSE load_flow_status END,
		    load_flow_result = CASE
				WHEN load_flow_status = $1 AND load_flow_started_at < NOW() - ($3 * INTERVAL '1 second')
				THEN NULL ELSE load_flow_result END,
		    load_flow_started_at = CASE
				WHEN load_flow_status = $1 AND load_flow_started_at < NOW() - ($3 * INTERVAL '1 second')
				THEN NULL ELSE load_flow_started_at END,
		    security_analysis_status = CASE
				WHEN security_analysis_status = $4 AND security_analysis_started_at < NOW() - ($3 * INTERVAL '1 second')
				THEN $5 ELSE security_analysis_status END,
		    security_analysis_started_at = CASE
				WHEN security_analysis_status = $4 AND security_analysis_started_at < NOW() - ($3 * INTERVAL '1 second')
				THEN NULL ELSE security_analysis_started_at END
		WHERE (load_flow_status = $1 AND load_flow_started_at < NOW() - ($3 * INTERVAL '1 second'))
		   OR (security_analysis_status = $4 AND security_analysis_started_at < NOW() - ($3 * INTERVAL '1 second'))
	`, store.LoadFlowRunning, store.LoadFlowNotDone, cutoffSeconds,
		store.SecurityAnalysisRunning, store.SecurityAnalysisNotDone)
	if err != nil {
		return 0, fmt.Errorf("%w: reclaim stale computations: %v", apperrors.ErrStoreUnavailable, err)
	}
	return res.RowsAffected()
}

// CountRunningComputations returns the number of studies with a busy gate.
func (s *Store) CountRunningComputations(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM studies WHERE load_flow_status = $1 OR security_analysis_status = $2",
		store.LoadFlowRunning, store.SecurityAnalysisRunning,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count running computations: %v", apperrors.ErrStoreUnavailable, err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanStudy(row rowScanner) (*store.Study, error) {
	var (
		study      store.Study
		params     []byte
		lfResult   []byte
		saResultID uuid.NullUUID
	)

	err := row.Scan(
		&study.ID, &study.OwnerID, &study.Name, &study.Description, &study.IsPrivate,
		&study.CaseUUID, &study.CaseFormat, &study.NetworkUUID, &study.NetworkID,
		&params, &study.LoadFlowStatus, &lfResult, &study.LoadFlowStartedAt,
		&study.SecurityAnalysisStatus, &study.SecurityAnalysisStartedAt, &saResultID,
		&study.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scan study: %v", apperrors.ErrStoreUnavailable, err)
	}

	study.LoadFlowParameters = json.RawMessage(params)
	if len(lfResult) > 0 {
		study.LoadFlowResult = json.RawMessage(lfResult)
	}
	if saResultID.Valid {
		id := saResultID.UUID
		study.SecurityAnalysisResultID = &id
	}
	return &study, nil
}
