package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gridstudy/pkg/apperrors"

	"github.com/google/uuid"
)

// client is the shared HTTP plumbing of the gateway implementations.
type client struct {
	service    string
	baseURL    string
	httpClient *http.Client
}

func newClient(service, baseURL string, timeout time.Duration) client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return client{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// do issues the request and returns the response body. A 404 maps to
// apperrors.ErrNotFound; any other non-2xx status becomes an *APIError.
func (c client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", c.service, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Service: c.service, StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return respBody, nil
}

// HTTPCaseGateway talks to the case service.
type HTTPCaseGateway struct {
	client
}

// NewHTTPCaseGateway creates a case-service client for the given base URL.
func NewHTTPCaseGateway(baseURL string, timeout time.Duration) *HTTPCaseGateway {
	return &HTTPCaseGateway{newClient("case-server", baseURL, timeout)}
}

func (g *HTTPCaseGateway) Exists(ctx context.Context, caseUUID uuid.UUID) (bool, error) {
	body, err := g.do(ctx, http.MethodGet, fmt.Sprintf("/v1/cases/%s/exists", caseUUID), nil, nil)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := json.Unmarshal(body, &exists); err != nil {
		return false, fmt.Errorf("failed to parse case existence response: %w", err)
	}
	return exists, nil
}

func (g *HTTPCaseGateway) Format(ctx context.Context, caseUUID uuid.UUID) (string, error) {
	body, err := g.do(ctx, http.MethodGet, fmt.Sprintf("/v1/cases/%s/format", caseUUID), nil, nil)
	if err != nil {
		return "", err
	}
	return strings.Trim(string(body), `"`), nil
}

// HTTPConversionGateway talks to the network-conversion service.
type HTTPConversionGateway struct {
	client
}

// NewHTTPConversionGateway creates a network-conversion client.
func NewHTTPConversionGateway(baseURL string, timeout time.Duration) *HTTPConversionGateway {
	return &HTTPConversionGateway{newClient("network-conversion-server", baseURL, timeout)}
}

func (g *HTTPConversionGateway) Import(ctx context.Context, caseUUID uuid.UUID) (NetworkIdentifiers, error) {
	query := url.Values{"caseUuid": []string{caseUUID.String()}}
	body, err := g.do(ctx, http.MethodPost, "/v1/networks", query, nil)
	if err != nil {
		return NetworkIdentifiers{}, err
	}
	var ids NetworkIdentifiers
	if err := json.Unmarshal(body, &ids); err != nil {
		return NetworkIdentifiers{}, fmt.Errorf("failed to parse import response: %w", err)
	}
	return ids, nil
}

// HTTPModificationGateway talks to the network-modification service.
type HTTPModificationGateway struct {
	client
}

// NewHTTPModificationGateway creates a network-modification client.
func NewHTTPModificationGateway(baseURL string, timeout time.Duration) *HTTPModificationGateway {
	return &HTTPModificationGateway{newClient("network-modification-server", baseURL, timeout)}
}

func (g *HTTPModificationGateway) ChangeSwitchState(ctx context.Context, networkUUID uuid.UUID, switchID string, open bool) error {
	query := url.Values{"open": []string{strconv.FormatBool(open)}}
	path := fmt.Sprintf("/v1/networks/%s/switches/%s", networkUUID, url.PathEscape(switchID))
	_, err := g.do(ctx, http.MethodPut, path, query, nil)
	return err
}

func (g *HTTPModificationGateway) ApplyScript(ctx context.Context, networkUUID uuid.UUID, script string) error {
	path := fmt.Sprintf("/v1/networks/%s/groovy", networkUUID)
	_, err := g.do(ctx, http.MethodPut, path, nil, strings.NewReader(script))
	return err
}

// HTTPLoadFlowGateway talks to the load-flow computation service.
type HTTPLoadFlowGateway struct {
	client
}

// NewHTTPLoadFlowGateway creates a load-flow client.
func NewHTTPLoadFlowGateway(baseURL string, timeout time.Duration) *HTTPLoadFlowGateway {
	return &HTTPLoadFlowGateway{newClient("loadflow-server", baseURL, timeout)}
}

func (g *HTTPLoadFlowGateway) Run(ctx context.Context, networkUUID uuid.UUID, parameters json.RawMessage) (LoadFlowOutcome, error) {
	var body io.Reader
	if len(parameters) > 0 {
		body = strings.NewReader(string(parameters))
	}
	respBody, err := g.do(ctx, http.MethodPut, fmt.Sprintf("/v1/networks/%s/run", networkUUID), nil, body)
	if err != nil {
		return LoadFlowOutcome{}, err
	}

	var outcome LoadFlowOutcome
	if err := json.Unmarshal(respBody, &outcome); err != nil {
		return LoadFlowOutcome{}, fmt.Errorf("failed to parse load flow response: %w", err)
	}
	outcome.Report = respBody
	return outcome, nil
}

// HTTPSecurityAnalysisGateway talks to the security-analysis service and, for
// contingency counting, to the actions service.
type HTTPSecurityAnalysisGateway struct {
	client
	actions client
}

// NewHTTPSecurityAnalysisGateway creates a security-analysis client.
func NewHTTPSecurityAnalysisGateway(baseURL, actionsURL string, timeout time.Duration) *HTTPSecurityAnalysisGateway {
	return &HTTPSecurityAnalysisGateway{
		client:  newClient("security-analysis-server", baseURL, timeout),
		actions: newClient("actions-server", actionsURL, timeout),
	}
}

func (g *HTTPSecurityAnalysisGateway) Start(ctx context.Context, networkUUID uuid.UUID, contingencyListNames []string, parameters string) (uuid.UUID, error) {
	query := url.Values{"contingencyListName": contingencyListNames}
	var body io.Reader
	if parameters != "" {
		body = strings.NewReader(parameters)
	}
	respBody, err := g.do(ctx, http.MethodPost, fmt.Sprintf("/v1/networks/%s/run-and-save", networkUUID), query, body)
	if err != nil {
		return uuid.Nil, err
	}

	resultID, err := uuid.Parse(strings.Trim(string(respBody), `"`))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse security analysis result id: %w", err)
	}
	return resultID, nil
}

func (g *HTTPSecurityAnalysisGateway) Status(ctx context.Context, resultID uuid.UUID) (string, error) {
	body, err := g.do(ctx, http.MethodGet, fmt.Sprintf("/v1/results/%s/status", resultID), nil, nil)
	if err != nil {
		return "", err
	}
	return strings.Trim(string(body), `"`), nil
}

func (g *HTTPSecurityAnalysisGateway) Result(ctx context.Context, resultID uuid.UUID, limitTypes []string) (json.RawMessage, error) {
	query := url.Values{"limitType": limitTypes}
	body, err := g.do(ctx, http.MethodGet, fmt.Sprintf("/v1/results/%s", resultID), query, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (g *HTTPSecurityAnalysisGateway) ContingencyCount(ctx context.Context, networkUUID uuid.UUID, contingencyListNames []string) (int, error) {
	total := 0
	for _, name := range contingencyListNames {
		query := url.Values{"networkUuid": []string{networkUUID.String()}}
		path := fmt.Sprintf("/v1/contingency-lists/%s/export", url.PathEscape(name))
		body, err := g.actions.do(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return 0, err
		}
		var contingencies []json.RawMessage
		if err := json.Unmarshal(body, &contingencies); err != nil {
			return 0, fmt.Errorf("failed to parse contingency list %q: %w", name, err)
		}
		total += len(contingencies)
	}
	return total, nil
}
