// ABOUTME: HTTP client for the counting backend's REST API
// ABOUTME: Covers multipart uploads, task status, session reset, and camera toggles

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// Mode is a client-selected analysis strategy label, passed through to the
// backend unmodified.
type Mode string

// Analysis modes accepted by the backend.
const (
	ModeStatic   Mode = "static"
	ModeScanning Mode = "scanning"
	ModeConveyor Mode = "conveyor"
	ModeZone     Mode = "zone"
)

// Modes lists the fixed client-side mode enumeration.
var Modes = []Mode{ModeStatic, ModeScanning, ModeConveyor, ModeZone}

// ValidMode reports whether s names a known analysis mode.
func ValidMode(s string) bool {
	for _, m := range Modes {
		if string(m) == s {
			return true
		}
	}
	return false
}

// Task status values reported by the backend.
const (
	TaskProcessing = "processing"
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
)

// ErrTaskNotFound is returned when the backend does not know the task id.
var ErrTaskNotFound = errors.New("task not found")

// TaskStatus is one poll response from GET /tasks/{id}.
type TaskStatus struct {
	Status   string `json:"status"`
	Count    int    `json:"count"`
	MediaURL string `json:"video_url"`
	IsImage  bool   `json:"is_image"`
	Error    string `json:"error"`
}

// UploadRequest describes one file submission.
type UploadRequest struct {
	FileName string
	Content  io.Reader
	Mode     Mode
	// UserID scopes the task to an identity. Empty means unscoped/shared,
	// which the backend records as anonymous.
	UserID string
}

// Client talks to the counting backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// Uploads carry whole video files; allow slow links.
			Timeout: 5 * time.Minute,
		},
		logger: slog.Default().With("component", "backend"),
	}
}

// backendError is the error payload the backend returns on non-2xx. Detail is
// the FastAPI convention; Message is what the mode-validation path emits.
type backendError struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func (e *backendError) text() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}

// SubmitUpload issues exactly one multipart POST to the upload endpoint and
// returns the backend-assigned task id. There are no retries: a failed
// submission is terminal and the user must re-initiate.
func (c *Client) SubmitUpload(ctx context.Context, req UploadRequest) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", req.FileName)
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, req.Content); err != nil {
		return "", fmt.Errorf("copying file content: %w", err)
	}
	if err := writer.WriteField("mode", string(req.Mode)); err != nil {
		return "", fmt.Errorf("writing mode field: %w", err)
	}
	if req.UserID != "" {
		if err := writer.WriteField("user_id", req.UserID); err != nil {
			return "", fmt.Errorf("writing user_id field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalizing multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &body)
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", req.FileName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.decodeError(resp, "upload")
	}

	var accepted struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if accepted.TaskID == "" {
		return "", fmt.Errorf("upload response missing task_id")
	}

	c.logger.Info("upload accepted", "file", req.FileName, "mode", req.Mode, "task_id", accepted.TaskID)
	return accepted.TaskID, nil
}

// GetTask fetches the current status of a backend task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*TaskStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tasks/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("creating task request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching task %s: %w", taskID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTaskNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(resp, "task status")
	}

	var status TaskStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding task response: %w", err)
	}
	return &status, nil
}

// Reset clears the backend's session state (counts and history).
func (c *Client) Reset(ctx context.Context) error {
	if err := c.postEmpty(ctx, "/reset"); err != nil {
		return fmt.Errorf("resetting session: %w", err)
	}
	return nil
}

// CameraOn requests the physical camera be powered up. Best effort: failures
// are logged, not surfaced.
func (c *Client) CameraOn(ctx context.Context) {
	if err := c.postEmpty(ctx, "/camera/on"); err != nil {
		c.logger.Warn("camera on request failed", "error", err)
	}
}

// CameraOff requests the physical camera be released. Best effort.
func (c *Client) CameraOff(ctx context.Context) {
	if err := c.postEmpty(ctx, "/camera/off"); err != nil {
		c.logger.Warn("camera off request failed", "error", err)
	}
}

// StreamURL returns the MJPEG stream source. The stream is consumed as an
// opaque display source, never parsed here.
func (c *Client) StreamURL() string {
	return c.baseURL + "/stream"
}

// MediaURL resolves a task's relative media path against the backend.
func (c *Client) MediaURL(path string) string {
	return c.baseURL + path
}

func (c *Client) postEmpty(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.decodeError(resp, path)
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response, op string) error {
	var berr backendError
	if err := json.NewDecoder(resp.Body).Decode(&berr); err == nil && berr.text() != "" {
		return fmt.Errorf("%s failed: %s", op, berr.text())
	}
	return fmt.Errorf("%s failed: backend returned %d", op, resp.StatusCode)
}
