// Package orgapi provides an HTTP client for the REST API of connected
// organisation instances. All operations are read-only; error text from the
// org is propagated verbatim so that session-expiry markers can be detected
// upstream.
package orgapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/orgshift/orgshift/internal/core/domain"
)

// =============================================================================
// Client Interface
// =============================================================================

// RecordInfo is what an org reports about one record ID.
type RecordInfo struct {
	ID         string
	ObjectType string
	Exists     bool
}

// FieldDescribe describes one field of an org object.
type FieldDescribe struct {
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Type       string   `json:"type"`
	Required   bool     `json:"required"`
	Createable bool     `json:"createable"`
	References []string `json:"referenceTo,omitempty"`
}

// ObjectDescribe describes an org object and its fields.
type ObjectDescribe struct {
	Name      string          `json:"name"`
	Queryable bool            `json:"queryable"`
	Fields    []FieldDescribe `json:"fields"`
}

// QueryResult holds the rows returned by an org query.
type QueryResult struct {
	TotalSize int              `json:"totalSize"`
	Done      bool             `json:"done"`
	Records   []map[string]any `json:"records"`
}

// Client defines the read-only operations the validation pipeline performs
// against a connected org.
type Client interface {
	// GetRecords resolves a batch of record IDs to existence and object
	// type. IDs the org does not know come back with Exists == false.
	GetRecords(ctx context.Context, org *domain.Org, recordIDs []string) (map[string]RecordInfo, error)

	// DescribeObject fetches the object's metadata, or ErrObjectNotFound
	// if the org has no such object.
	DescribeObject(ctx context.Context, org *domain.Org, object string) (*ObjectDescribe, error)

	// Query runs a read-only query against the org.
	Query(ctx context.Context, org *domain.Org, soql string) (*QueryResult, error)
}

// ErrObjectNotFound is returned when an org has no object with the requested
// API name.
var ErrObjectNotFound = errors.New("object not found in org")

// =============================================================================
// API Error
// =============================================================================

// APIError carries a non-2xx org response. Message holds the raw body text;
// session-expiry detection depends on it being unmodified.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("org API returned %d: %s", e.StatusCode, e.Message)
}

// =============================================================================
// HTTP Client Implementation
// =============================================================================

// HTTPClient implements Client over the org REST API.
type HTTPClient struct {
	httpClient *http.Client
}

// Config holds configuration for the org API client.
type Config struct {
	Timeout time.Duration
}

// NewHTTPClient creates a new org API client.
func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// batchRecordsResponse is the wire shape of the record batch endpoint.
type batchRecordsResponse struct {
	Results []struct {
		StatusCode int `json:"statusCode"`
		Result     struct {
			ID      string `json:"id"`
			APIName string `json:"apiName"`
		} `json:"result"`
	} `json:"results"`
}

func (c *HTTPClient) GetRecords(ctx context.Context, org *domain.Org, recordIDs []string) (map[string]RecordInfo, error) {
	if len(recordIDs) == 0 {
		return map[string]RecordInfo{}, nil
	}

	infos := make(map[string]RecordInfo, len(recordIDs))

	// The batch endpoint caps at 200 IDs per call.
	const batchLimit = 200
	for start := 0; start < len(recordIDs); start += batchLimit {
		end := start + batchLimit
		if end > len(recordIDs) {
			end = len(recordIDs)
		}
		batch := recordIDs[start:end]

		endpoint := fmt.Sprintf("%s/services/data/%s/ui-api/records/batch/%s",
			org.InstanceURL, apiVersion(org), strings.Join(batch, ","))

		var resp batchRecordsResponse
		if err := c.get(ctx, org, endpoint, &resp); err != nil {
			return nil, err
		}

		// Results come back in request order.
		for i, result := range resp.Results {
			if i >= len(batch) {
				break
			}
			id := batch[i]
			if result.StatusCode == http.StatusOK {
				infos[id] = RecordInfo{ID: id, ObjectType: result.Result.APIName, Exists: true}
			} else {
				infos[id] = RecordInfo{ID: id, Exists: false}
			}
		}
	}

	// IDs the org omitted entirely are treated as non-existent.
	for _, id := range recordIDs {
		if _, ok := infos[id]; !ok {
			infos[id] = RecordInfo{ID: id, Exists: false}
		}
	}

	return infos, nil
}

func (c *HTTPClient) DescribeObject(ctx context.Context, org *domain.Org, object string) (*ObjectDescribe, error) {
	endpoint := fmt.Sprintf("%s/services/data/%s/sobjects/%s/describe",
		org.InstanceURL, apiVersion(org), url.PathEscape(object))

	var describe ObjectDescribe
	if err := c.get(ctx, org, endpoint, &describe); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return &describe, nil
}

func (c *HTTPClient) Query(ctx context.Context, org *domain.Org, soql string) (*QueryResult, error) {
	endpoint := fmt.Sprintf("%s/services/data/%s/query?q=%s",
		org.InstanceURL, apiVersion(org), url.QueryEscape(soql))

	var result QueryResult
	if err := c.get(ctx, org, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// get performs an authenticated GET and decodes the JSON response.
func (c *HTTPClient) get(ctx context.Context, org *domain.Org, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build org API request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+org.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("org API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode org API response: %w", err)
	}
	return nil
}

func apiVersion(org *domain.Org) string {
	if org.APIVersion != "" {
		return org.APIVersion
	}
	return domain.DefaultAPIVersion
}
