// Package galaxy implements the subset of the Galaxy REST API needed to
// delegate searches to a remote execution server: histories, file upload,
// tool invocation, dataset state and retrieval.
package galaxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Dataset states reported by the execution server.
const (
	StateOK      = "ok"
	StateQueued  = "queued"
	StateNew     = "new"
	StateRunning = "running"
)

// uploadToolID is the built-in Galaxy tool that turns an uploaded file into
// a history dataset.
const uploadToolID = "upload1"

// Dataset is the execution state of one history dataset.
type Dataset struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	MiscInfo string `json:"misc_info"`
}

// Client talks to a Galaxy server, authenticating every request with the
// configured API key.
type Client struct {
	baseURL string
	apiKey  string
	logger  *zap.Logger

	HTTPClient *http.Client
}

// NewClient creates a client for the Galaxy server at baseURL.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger,
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// CreateHistory creates a named history and returns its id.
func (c *Client) CreateHistory(ctx context.Context, name string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "/api/histories", map[string]any{"name": name}, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("galaxy: create history: no id in response")
	}
	return out.ID, nil
}

// UploadFile stores the file at path as a new dataset in the history,
// returning the dataset id. name and fileType are the dataset name and
// format registered on the server, not the local file name.
func (c *Client) UploadFile(ctx context.Context, historyID, path, name, fileType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("galaxy: open upload file: %w", err)
	}
	defer f.Close()

	inputs, err := json.Marshal(map[string]string{
		"files_0|NAME": name,
		"files_0|type": "upload_dataset",
		"dbkey":        "?",
		"file_type":    fileType,
	})
	if err != nil {
		return "", fmt.Errorf("galaxy: encode upload inputs: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("tool_id", uploadToolID)
	mw.WriteField("history_id", historyID)
	mw.WriteField("inputs", string(inputs))
	fw, err := mw.CreateFormFile("files_0|file_data", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("galaxy: build upload form: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", fmt.Errorf("galaxy: read upload file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("galaxy: finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/tools", &buf)
	if err != nil {
		return "", fmt.Errorf("galaxy: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out toolResponse
	if err := c.doJSON(req, &out); err != nil {
		return "", err
	}
	if len(out.Outputs) == 0 {
		return "", fmt.Errorf("galaxy: upload: no outputs in response")
	}
	return out.Outputs[0].ID, nil
}

// RunTool invokes a tool against the history and returns the id of its
// first output dataset.
func (c *Client) RunTool(ctx context.Context, historyID, toolID string, inputs map[string]any) (string, error) {
	payload := map[string]any{
		"history_id": historyID,
		"tool_id":    toolID,
		"inputs":     inputs,
	}
	var out toolResponse
	if err := c.postJSON(ctx, "/api/tools", payload, &out); err != nil {
		return "", err
	}
	if len(out.Outputs) == 0 {
		return "", fmt.Errorf("galaxy: run tool %s: no outputs in response", toolID)
	}
	c.logger.Debug("Tool started",
		zap.String("tool_id", toolID),
		zap.String("history_id", historyID),
		zap.String("output_id", out.Outputs[0].ID),
	)
	return out.Outputs[0].ID, nil
}

// ShowDataset fetches the current state of a dataset in a history.
func (c *Client) ShowDataset(ctx context.Context, historyID, datasetID string) (*Dataset, error) {
	var out Dataset
	if err := c.getJSON(ctx, "/api/histories/"+historyID+"/contents/"+datasetID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadDataset streams the raw content of a dataset. The caller owns the
// returned reader.
func (c *Client) DownloadDataset(ctx context.Context, historyID, datasetID string) (io.ReadCloser, error) {
	path := "/api/histories/" + historyID + "/contents/" + datasetID + "/display"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("galaxy: build download request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("galaxy: download dataset %s: %w", datasetID, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("galaxy: download dataset %s: unexpected status %s", datasetID, resp.Status)
	}
	return resp.Body, nil
}

// PurgeHistory deletes a history and permanently purges its datasets.
func (c *Client) PurgeHistory(ctx context.Context, historyID string) error {
	body, err := json.Marshal(map[string]any{"purge": true})
	if err != nil {
		return fmt.Errorf("galaxy: encode purge payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/histories/"+historyID, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("galaxy: build purge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, nil)
}

type toolResponse struct {
	Outputs []struct {
		ID string `json:"id"`
	} `json:"outputs"`
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("galaxy: encode %s payload: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("galaxy: build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("galaxy: build %s request: %w", path, err)
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("galaxy: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("galaxy: %s %s: status %s: %s",
			req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("galaxy: decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
