package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gridstudy/pkg/api"
)

// StudyClient handles API calls to the gridstudy server.
type StudyClient struct {
	BaseURL    string
	UserID     string
	HTTPClient *http.Client
}

// NewStudyClient creates a new client with the given base URL and identity.
func NewStudyClient(baseURL, userID string) *StudyClient {
	return &StudyClient{
		BaseURL: baseURL,
		UserID:  userID,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// do performs a request with the identity header and returns the response
// body, converting non-2xx statuses into APIError.
func (c *StudyClient) do(method, path string, query url.Values, body io.Reader) ([]byte, error) {
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	httpReq, err := http.NewRequest(method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Add("userId", c.UserID)
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return respBody, nil
}

func studyPath(owner, name string) string {
	return fmt.Sprintf("/v1/%s/studies/%s", url.PathEscape(owner), url.PathEscape(name))
}

// CreateStudy sends POST /v1/studies/{name}/cases/{caseUuid}.
func (c *StudyClient) CreateStudy(name, caseUUID, description string, private bool) error {
	q := url.Values{}
	if description != "" {
		q.Set("description", description)
	}
	if private {
		q.Set("isPrivate", "true")
	}
	path := fmt.Sprintf("/v1/studies/%s/cases/%s", url.PathEscape(name), url.PathEscape(caseUUID))
	_, err := c.do(http.MethodPost, path, q, nil)
	return err
}

// ListStudies sends GET /v1/studies.
func (c *StudyClient) ListStudies() ([]api.StudyResponse, error) {
	respBody, err := c.do(http.MethodGet, "/v1/studies", nil, nil)
	if err != nil {
		return nil, err
	}

	var result api.ListStudiesResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return result.Studies, nil
}

// ListCreationRequests sends GET /v1/study_creation_requests.
func (c *StudyClient) ListCreationRequests() ([]api.PendingCreationResponse, error) {
	respBody, err := c.do(http.MethodGet, "/v1/study_creation_requests", nil, nil)
	if err != nil {
		return nil, err
	}

	var result api.ListPendingCreationsResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return result.Requests, nil
}

// GetStudy sends GET /v1/{owner}/studies/{name}.
func (c *StudyClient) GetStudy(owner, name string) (*api.StudyResponse, error) {
	respBody, err := c.do(http.MethodGet, studyPath(owner, name), nil, nil)
	if err != nil {
		return nil, err
	}

	var result api.StudyResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

// DeleteStudy sends DELETE /v1/{owner}/studies/{name}.
func (c *StudyClient) DeleteStudy(owner, name string) error {
	_, err := c.do(http.MethodDelete, studyPath(owner, name), nil, nil)
	return err
}

// RenameStudy sends POST /v1/{owner}/studies/{name}/rename.
func (c *StudyClient) RenameStudy(owner, name, newName string) (*api.StudyResponse, error) {
	bodyBytes, err := json.Marshal(api.RenameStudyRequest{NewStudyName: newName})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := c.do(http.MethodPost, studyPath(owner, name)+"/rename", nil, strings.NewReader(string(bodyBytes)))
	if err != nil {
		return nil, err
	}

	var result api.StudyResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

// SetVisibility sends POST /v1/{owner}/studies/{name}/public or /private.
func (c *StudyClient) SetVisibility(owner, name string, private bool) error {
	suffix := "/public"
	if private {
		suffix = "/private"
	}
	_, err := c.do(http.MethodPost, studyPath(owner, name)+suffix, nil, nil)
	return err
}

// RunLoadFlow sends PUT /v1/{owner}/studies/{name}/loadflow/run.
func (c *StudyClient) RunLoadFlow(owner, name string) error {
	_, err := c.do(http.MethodPut, studyPath(owner, name)+"/loadflow/run", nil, nil)
	return err
}

// RunSecurityAnalysis sends POST /v1/{owner}/studies/{name}/security-analysis/run.
func (c *StudyClient) RunSecurityAnalysis(owner, name string, contingencyLists []string) error {
	q := url.Values{}
	for _, list := range contingencyLists {
		q.Add("contingencyListName", list)
	}
	_, err := c.do(http.MethodPost, studyPath(owner, name)+"/security-analysis/run", q, nil)
	return err
}

// SecurityAnalysisStatus sends GET /v1/{owner}/studies/{name}/security-analysis/status.
func (c *StudyClient) SecurityAnalysisStatus(owner, name string) (string, error) {
	respBody, err := c.do(http.MethodGet, studyPath(owner, name)+"/security-analysis/status", nil, nil)
	if err != nil {
		return "", err
	}

	var result api.SecurityAnalysisStatusResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return result.Status, nil
}
