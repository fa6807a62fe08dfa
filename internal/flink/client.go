package flink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"sqlgateway/internal/apperrors"
	"sqlgateway/internal/artifact"
	"sqlgateway/internal/config"
)

const defaultStatementPath = "/jobs/%s/control/submit-sql"

// Client is a minimal Flink REST API client covering the operations the
// gateway needs: job lookup, jar upload/run, and statement dispatch.
type Client struct {
	baseURL           string
	statementEndpoint string
	logsBaseURL       string
	stderrTruncate    int
	client            *http.Client
	logger            *slog.Logger
}

// NewClient creates a client for the configured cluster. A single pooled
// http.Client is shared across all outbound calls.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:           cfg.FlinkRESTURL,
		statementEndpoint: cfg.StatementEndpoint,
		logsBaseURL:       cfg.LogsBaseURL,
		stderrTruncate:    cfg.StderrTruncateBytes,
		client: &http.Client{
			Timeout: cfg.HTTPTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.With("component", "flink"),
	}
}

// Ping verifies the cluster REST API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/config", nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cluster unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cluster returned status %d", resp.StatusCode)
	}
	return nil
}

// GetJob fetches a job by id. Returns (nil, nil) when the cluster does not
// know the job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	resp, err := c.get(ctx, "/jobs/"+jobID)
	if err != nil {
		return nil, apperrors.RemoteUnavailable("flink.getJob", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.classify("flink.getJob", resp, "")
	}

	var payload struct {
		Name  string `json:"name"`
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.RemoteUnavailable("flink.getJob", err)
	}
	state := payload.State
	if state == "" {
		state = "UNKNOWN"
	}
	return &Job{ID: jobID, State: state, Name: payload.Name}, nil
}

// FindRunningJob scans the cluster job overview for a running job matching
// the given application name. Entries without a name are considered
// candidates. Returns (nil, nil) when nothing suitable is running.
func (c *Client) FindRunningJob(ctx context.Context, appName string) (*Job, error) {
	resp, err := c.get(ctx, "/jobs/overview")
	if err != nil {
		return nil, apperrors.RemoteUnavailable("flink.overview", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classify("flink.overview", resp, "")
	}

	var payload struct {
		Jobs []struct {
			JID   string `json:"jid"`
			JobID string `json:"jobid"`
			Name  string `json:"name"`
			State string `json:"state"`
		} `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.RemoteUnavailable("flink.overview", err)
	}

	for _, entry := range payload.Jobs {
		id := entry.JID
		if id == "" {
			id = entry.JobID
		}
		if id == "" {
			continue
		}
		if entry.Name != "" && entry.Name != appName {
			continue
		}
		job := Job{ID: id, State: entry.State, Name: entry.Name}
		if job.IsRunning() {
			return &job, nil
		}
	}
	return nil, nil
}

// UploadJar uploads the deployable jar and returns the jar id the cluster
// assigned to it.
func (c *Client) UploadJar(ctx context.Context, jar *artifact.Jar) (string, error) {
	data, err := jar.Read()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("jarfile", jar.Name)
	if err != nil {
		return "", apperrors.Internal("flink.uploadJar", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", apperrors.Internal("flink.uploadJar", err)
	}
	if err := writer.Close(); err != nil {
		return "", apperrors.Internal("flink.uploadJar", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jars/upload", &buf)
	if err != nil {
		return "", apperrors.Internal("flink.uploadJar", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apperrors.RemoteUnavailable("flink.uploadJar", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", c.classify("flink.uploadJar", resp, "")
	}

	var payload struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", apperrors.RemoteUnavailable("flink.uploadJar", err)
	}
	if payload.Filename == "" {
		return "", apperrors.RemoteRejected("cluster did not return an uploaded jar identifier", "")
	}
	return path.Base(payload.Filename), nil
}

// RunJar launches the uploaded jar as an application job and returns the new
// job id.
func (c *Client) RunJar(ctx context.Context, jarID, entryClass string, programArgs []string) (string, error) {
	body := map[string]any{}
	if entryClass != "" {
		body["entryClass"] = entryClass
	}
	if len(programArgs) > 0 {
		body["programArgsList"] = programArgs
	}

	resp, err := c.postJSON(ctx, fmt.Sprintf("%s/jars/%s/run?mode=application", c.baseURL, jarID), body)
	if err != nil {
		return "", apperrors.RemoteUnavailable("flink.runJar", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", c.classify("flink.runJar", resp, "")
	}

	var payload struct {
		JobID    string `json:"jobid"`
		JobIDAlt string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", apperrors.RemoteUnavailable("flink.runJar", err)
	}
	jobID := payload.JobID
	if jobID == "" {
		jobID = payload.JobIDAlt
	}
	if jobID == "" {
		return "", apperrors.RemoteRejected("cluster did not return a job id when launching the application", "")
	}
	return jobID, nil
}

// SubmitStatement forwards the SQL payload to the resolved job's management
// endpoint and normalizes the response. A 404 from the endpoint classifies
// as TargetGone so the resolver can invalidate its cached target.
func (c *Client) SubmitStatement(ctx context.Context, target Target, stmt Statement) (*JobMetadata, error) {
	payload := map[string]any{
		"sql":    stmt.SQL,
		"vars":   stmt.Vars,
		"job_id": target.JobID,
	}
	if payload["vars"] == nil {
		payload["vars"] = map[string]any{}
	}

	resp, err := c.postJSON(ctx, c.statementURL(target.JobID), payload)
	if err != nil {
		return nil, apperrors.RemoteUnavailable("flink.submitStatement", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.classify("flink.submitStatement", resp, target.JobID)
	}

	meta := &JobMetadata{
		JobID:   target.JobID,
		Status:  "SUBMITTED",
		LogsURL: c.logsURL(target.JobID),
	}
	if resp.StatusCode == http.StatusNoContent {
		return meta, nil
	}

	var body struct {
		JobID   string `json:"job_id"`
		Status  string `json:"status"`
		LogsURL string `json:"logs_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && err != io.EOF {
		return nil, apperrors.RemoteUnavailable("flink.submitStatement", err)
	}
	if body.JobID != "" {
		meta.JobID = body.JobID
	}
	if body.Status != "" {
		meta.Status = body.Status
	}
	if body.LogsURL != "" {
		meta.LogsURL = body.LogsURL
	}
	return meta, nil
}

// statementURL resolves the statement dispatch URL for a job. An absolute
// override is used as-is, a relative one is joined to the REST base, and
// the {job_id} placeholder is substituted in either.
func (c *Client) statementURL(jobID string) string {
	if c.statementEndpoint == "" {
		return c.baseURL + fmt.Sprintf(defaultStatementPath, jobID)
	}
	endpoint := strings.ReplaceAll(c.statementEndpoint, "{job_id}", jobID)
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + "/" + strings.TrimPrefix(endpoint, "/")
}

// logsURL builds a link to the job's logs. Falls back to the cluster web UI
// when no dedicated logs base is configured.
func (c *Client) logsURL(jobID string) string {
	if c.logsBaseURL != "" {
		return strings.TrimRight(c.logsBaseURL, "/") + "/" + jobID
	}
	return c.baseURL + "/#/job/" + jobID
}

func (c *Client) get(ctx context.Context, p string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+p, nil)
	if err != nil {
		return nil, err
	}
	return c.client.Do(req)
}

func (c *Client) postJSON(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// classify maps an error response from the cluster onto the gateway error
// taxonomy: 5xx is transient, 404 on a resolved target means the job is
// gone, any other 4xx means the cluster understood and rejected us.
// goneJobID is non-empty only for calls addressed to a resolved target.
func (c *Client) classify(op string, resp *http.Response, goneJobID string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, int64(c.stderrTruncate)+1))
	stderr := c.truncate(string(body))

	switch {
	case resp.StatusCode >= 500:
		return apperrors.RemoteUnavailable(op, fmt.Errorf("cluster returned status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound && goneJobID != "":
		return apperrors.TargetGone(goneJobID)
	default:
		return apperrors.RemoteRejected(
			fmt.Sprintf("%s: cluster returned status %d", op, resp.StatusCode), stderr)
	}
}

// truncate caps the echoed body at the configured byte budget, backing the
// cut point off to a rune boundary so the result stays valid UTF-8.
func (c *Client) truncate(body string) string {
	if len(body) <= c.stderrTruncate {
		return body
	}
	cut := c.stderrTruncate
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "..."
}
