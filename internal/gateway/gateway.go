// Package gateway defines the capability interfaces for the remote services
// the orchestrator depends on, plus HTTP client implementations. The
// orchestrator only sees the interfaces; tests substitute fakes.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// NetworkIdentifiers is the outcome of importing a case into the network store.
type NetworkIdentifiers struct {
	NetworkUUID uuid.UUID `json:"networkUuid"`
	NetworkID   string    `json:"networkId"`
}

// LoadFlowOutcome is the result of a completed load-flow run.
type LoadFlowOutcome struct {
	Converged bool            `json:"ok"`
	Report    json.RawMessage `json:"metrics,omitempty"`
}

// CaseGateway is the client to the case service holding imported case files.
type CaseGateway interface {
	// Exists reports whether the case is known to the case service.
	Exists(ctx context.Context, caseUUID uuid.UUID) (bool, error)

	// Format returns the file format of the case (e.g. XIIDM, CGMES).
	Format(ctx context.Context, caseUUID uuid.UUID) (string, error)
}

// ConversionGateway is the client to the network-conversion service that
// turns a case into a persisted network.
type ConversionGateway interface {
	// Import converts the case into a network and returns its identifiers.
	Import(ctx context.Context, caseUUID uuid.UUID) (NetworkIdentifiers, error)
}

// ModificationGateway is the client to the network-modification service.
type ModificationGateway interface {
	// ChangeSwitchState opens or closes a switch of the network.
	ChangeSwitchState(ctx context.Context, networkUUID uuid.UUID, switchID string, open bool) error

	// ApplyScript applies a modification script to the network.
	ApplyScript(ctx context.Context, networkUUID uuid.UUID, script string) error
}

// LoadFlowGateway is the client to the load-flow computation service. Run
// blocks until the remote computation finishes; the orchestrator calls it from
// a background task.
type LoadFlowGateway interface {
	Run(ctx context.Context, networkUUID uuid.UUID, parameters json.RawMessage) (LoadFlowOutcome, error)
}

// SecurityAnalysisGateway is the client to the security-analysis service. The
// remote service owns the run lifecycle: Start returns a result identifier
// immediately and Status/Result are queried with it later.
type SecurityAnalysisGateway interface {
	Start(ctx context.Context, networkUUID uuid.UUID, contingencyListNames []string, parameters string) (uuid.UUID, error)

	// Status returns the remote run status, or apperrors.ErrNotFound if the
	// remote no longer knows the identifier.
	Status(ctx context.Context, resultID uuid.UUID) (string, error)

	// Result returns the analysis result filtered by limit types, or
	// apperrors.ErrNotFound.
	Result(ctx context.Context, resultID uuid.UUID, limitTypes []string) (json.RawMessage, error)

	// ContingencyCount returns the number of contingencies the given lists
	// produce for the network.
	ContingencyCount(ctx context.Context, networkUUID uuid.UUID, contingencyListNames []string) (int, error)
}

// Gateways bundles the remote-service clients injected into the orchestrator.
type Gateways struct {
	Case         CaseGateway
	Conversion   ConversionGateway
	Modification ModificationGateway
	LoadFlow     LoadFlowGateway
	Security     SecurityAnalysisGateway
}

// APIError represents an error response from a remote service.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Message)
}
