package execapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const maxErrorBodyLen = 256

// HTTPClient talks to the exec API over HTTP, authenticating with a token
// query parameter.
type HTTPClient struct {
	baseURL string
	token   string
	hc      *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the exec API at baseURL. If hc is nil,
// http.DefaultClient is used; per-call deadlines come from the context.
func NewHTTPClient(baseURL, token string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		hc:      hc,
	}
}

// Submit uploads source code for compilation.
func (c *HTTPClient) Submit(ctx context.Context, source []byte) (Submitted, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "source")
	if err != nil {
		return Submitted{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err = fw.Write(source); err != nil {
		return Submitted{}, fmt.Errorf("failed to write form file: %w", err)
	}
	if err = mw.Close(); err != nil {
		return Submitted{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	var res submitResponse
	err = c.doJSON(ctx, http.MethodPost, "/submit", nil, &body, mw.FormDataContentType(), &res)
	if err != nil {
		return Submitted{}, fmt.Errorf("%w: %w", ErrSubmissionRejected, err)
	}
	if res.ID == "" {
		return Submitted{}, fmt.Errorf("%w: %w: submit response without id", ErrSubmissionRejected, ErrMalformedResponse)
	}
	return Submitted{ID: res.ID, SourceID: res.SourceID}, nil
}

// CompileStatus fetches the current state of a compilation.
func (c *HTTPClient) CompileStatus(ctx context.Context, id string) (*CompileStatus, error) {
	var res statusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/compileStatus", url.Values{"id": {id}}, nil, "", &res); err != nil {
		return nil, err
	}
	phase, err := ParsePhase(res.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	status := &CompileStatus{
		Phase:      phase,
		Stats:      res.Stats,
		ErrorLogID: res.ErrorLogID,
	}
	if res.BinaryID != nil && *res.BinaryID != "" {
		binaryID := *res.BinaryID
		status.BinaryID = &binaryID
	}
	return status, nil
}

// RunStatus fetches the current state of a run.
func (c *HTTPClient) RunStatus(ctx context.Context, id string) (*RunStatus, error) {
	var res statusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/runStatus", url.Values{"id": {id}}, nil, "", &res); err != nil {
		return nil, err
	}
	phase, err := ParsePhase(res.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return &RunStatus{
		Phase:    phase,
		Stats:    res.Stats,
		StdoutID: res.StdoutID,
		StderrID: res.StderrID,
	}, nil
}

// StartRun asks the exec API to execute a previously compiled binary.
func (c *HTTPClient) StartRun(ctx context.Context, binaryID string) (string, error) {
	var res runResponse
	err := c.doJSON(ctx, http.MethodPost, "/run", url.Values{"id": {binaryID}}, nil, "", &res)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSubmissionRejected, err)
	}
	if res.ID == "" {
		return "", fmt.Errorf("%w: %w: run response without id", ErrSubmissionRejected, ErrMalformedResponse)
	}
	return res.ID, nil
}

// Artifact downloads an artifact, decoding zstd compressed bodies.
func (c *HTTPClient) Artifact(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/downloadArtifact", url.Values{"id": {id}}, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.Header.Get("Content-Type") == "application/zstd" {
		d, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create zstd reader: %w", ErrTransport, err)
		}
		defer d.Close()
		data, err := io.ReadAll(d)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode artifact %s: %w", ErrTransport, id, err)
		}
		return data, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read artifact %s: %w", ErrTransport, id, err)
	}
	return data, nil
}

func (c *HTTPClient) doJSON(
	ctx context.Context,
	method, path string,
	query url.Values,
	body io.Reader,
	contentType string,
	out any,
) error {
	resp, err := c.do(ctx, method, path, query, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w: %s: %v", ErrTransport, ErrMalformedResponse, path, err)
	}
	return nil
}

// do performs a request and returns the response only for 2xx statuses.
func (c *HTTPClient) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	body io.Reader,
	contentType string,
) (*http.Response, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrTransport, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return nil, fmt.Errorf("%w: %s %s: bad status %s: %s",
			ErrTransport, method, path, resp.Status, strings.TrimSpace(string(snippet)))
	}
	return resp, nil
}
