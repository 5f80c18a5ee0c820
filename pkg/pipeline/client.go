// Package pipeline implements the deploy.JobDirectory contract over the
// managed build pipeline's HTTP control plane. Only the fields the
// orchestration core reads are decoded; everything else in the responses is
// ignored.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/redeployhq/redeploy/pkg/deploy"
)

const defaultTimeout = 30 * time.Second

// Client is a deploy.JobDirectory over the pipeline REST API, scoped to one
// application.
type Client struct {
	baseURL string
	appID   string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a pipeline client for the application.
func NewClient(baseURL, appID, token string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		appID:   appID,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log.With().Str("component", "pipeline").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// jobPayload is the wire shape of a job. Control planes report statuses in
// several spellings; mapping is centralized in mapStatus.
type jobPayload struct {
	ID        string     `json:"id"`
	CommitID  string     `json:"commit_id"`
	Status    string     `json:"status"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func (p jobPayload) snapshot(log zerolog.Logger) deploy.JobSnapshot {
	return deploy.JobSnapshot{
		JobID:     p.ID,
		CommitID:  p.CommitID,
		Status:    mapStatus(p.Status, log),
		StartedAt: p.StartedAt,
		EndedAt:   p.EndedAt,
	}
}

// ListJobs lists jobs for the branch, newest first.
func (c *Client) ListJobs(ctx context.Context, branch, commitFilter string) ([]deploy.JobSnapshot, error) {
	path := c.branchPath(branch) + "/jobs"
	if commitFilter != "" {
		path += "?commit=" + url.QueryEscape(commitFilter)
	}

	var resp struct {
		Jobs []jobPayload `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	jobs := make([]deploy.JobSnapshot, 0, len(resp.Jobs))
	for _, p := range resp.Jobs {
		jobs = append(jobs, p.snapshot(c.log))
	}
	return jobs, nil
}

// GetJob fetches the current snapshot of a job.
func (c *Client) GetJob(ctx context.Context, branch, jobID string) (deploy.JobSnapshot, error) {
	var p jobPayload
	path := c.branchPath(branch) + "/jobs/" + url.PathEscape(jobID)
	if err := c.do(ctx, http.MethodGet, path, nil, &p); err != nil {
		return deploy.JobSnapshot{}, err
	}
	return p.snapshot(c.log), nil
}

// StartJob starts a job on the branch with the given trigger.
func (c *Client) StartJob(ctx context.Context, branch string, trigger deploy.TriggerType, baseJobID string) (deploy.JobSnapshot, error) {
	body := struct {
		Trigger   string `json:"trigger"`
		BaseJobID string `json:"base_job_id,omitempty"`
	}{
		Trigger:   string(trigger),
		BaseJobID: baseJobID,
	}

	var p jobPayload
	if err := c.do(ctx, http.MethodPost, c.branchPath(branch)+"/jobs", body, &p); err != nil {
		return deploy.JobSnapshot{}, err
	}
	c.log.Info().
		Str("branch", branch).
		Str("trigger", string(trigger)).
		Str("job_id", p.ID).
		Msg("job started")
	return p.snapshot(c.log), nil
}

// CreateBranchRegistration registers a branch with the pipeline.
func (c *Client) CreateBranchRegistration(ctx context.Context, branch string) error {
	body := struct {
		Name string `json:"name"`
	}{Name: branch}
	return c.do(ctx, http.MethodPost, "/apps/"+url.PathEscape(c.appID)+"/branches", body, nil)
}

// DeleteBranchRegistration removes the pipeline-side branch registration.
func (c *Client) DeleteBranchRegistration(ctx context.Context, branch string) error {
	return c.do(ctx, http.MethodDelete, c.branchPath(branch), nil, nil)
}

func (c *Client) branchPath(branch string) string {
	return "/apps/" + url.PathEscape(c.appID) + "/branches/" + url.PathEscape(branch)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, method, path); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func checkStatus(resp *http.Response, method, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return deploy.NewAuthError("pipeline rejected credentials",
			fmt.Errorf("%s %s: %s", method, path, resp.Status))
	case http.StatusNotFound:
		return fmt.Errorf("%s %s: %s: %w", method, path, resp.Status, deploy.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(snippet)))
}

// mapStatus normalizes control-plane status spellings onto the core's job
// statuses. Unknown statuses map to pending so a new upstream state never
// tears a polling loop down early.
func mapStatus(s string, log zerolog.Logger) deploy.JobStatus {
	switch strings.ToLower(s) {
	case "pending", "queued":
		return deploy.JobStatusPending
	case "provisioning":
		return deploy.JobStatusProvisioning
	case "running", "in_progress":
		return deploy.JobStatusRunning
	case "succeed", "succeeded", "successful":
		return deploy.JobStatusSucceeded
	case "failed", "error":
		return deploy.JobStatusFailed
	case "cancelled", "canceled":
		return deploy.JobStatusCancelled
	}
	log.Warn().Str("status", s).Msg("unknown job status, treating as pending")
	return deploy.JobStatusPending
}
