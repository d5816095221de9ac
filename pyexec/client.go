// Package pyexec is the HTTP client for the Python execution sidecar. Loom
// sends user-supplied parser code to the sidecar's /api/python/execute
// endpoint; the code runs unsandboxed in the sidecar process, which is why
// the sidecar is a separate deployment.
package pyexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/loomworks/loom/errors"
)

// Runner is the interface the parser pipeline depends on. Tests substitute
// a stub; production uses Client.
type Runner interface {
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error)
}

// ExecuteRequest is the request format for /api/python/execute
type ExecuteRequest struct {
	Code             string `json:"code"`
	CaptureVariables bool   `json:"capture_variables"`
}

// ExecuteResponse is the response format from /api/python/execute
type ExecuteResponse struct {
	Success bool           `json:"success"`
	Result  any            `json:"result,omitempty"`
	Stdout  string         `json:"stdout,omitempty"`
	Stderr  string         `json:"stderr,omitempty"`
	Error   string         `json:"error,omitempty"`
	Vars    map[string]any `json:"vars,omitempty"`
}

// Client talks to the Python execution sidecar over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// NewClient creates a sidecar client
func NewClient(baseURL string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Execute sends code to the sidecar and returns its execution report.
// A non-nil response with Success == false means the code itself failed;
// a non-nil error means the sidecar could not be reached or misbehaved.
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal execute request")
	}

	url := fmt.Sprintf("%s/api/python/execute", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create HTTP request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "python sidecar request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read sidecar response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("python sidecar returned status %d: %s", resp.StatusCode, string(body))
	}

	var execResp ExecuteResponse
	if err := json.Unmarshal(body, &execResp); err != nil {
		return nil, errors.Wrapf(err, "failed to parse sidecar response: %s", string(body))
	}

	if !execResp.Success {
		c.logger.Debugw("Python execution failed",
			"error", execResp.Error, "stderr", execResp.Stderr)
	}

	return &execResp, nil
}
