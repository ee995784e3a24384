package llamaextract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/joseph-ayodele/consultation-extract/constants"
	"github.com/joseph-ayodele/consultation-extract/internal/common"
	"github.com/joseph-ayodele/consultation-extract/internal/entity"
	"github.com/joseph-ayodele/consultation-extract/internal/extract"
	"github.com/joseph-ayodele/consultation-extract/internal/schema"
	"github.com/joseph-ayodele/consultation-extract/internal/validate"
)

const (
	pathAgents       = "/api/v1/extraction/extraction-agents"
	pathAgentsByName = "/api/v1/extraction/extraction-agents/by-name/"
	pathFiles        = "/api/v1/files"
	pathJobs         = "/api/v1/extraction/jobs"
	uploadField      = "upload_file"
)

var tracer = otel.Tracer("github.com/joseph-ayodele/consultation-extract/internal/extract/llamaextract")

var _ extract.Extractor = (*Client)(nil)

type agentResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type fileResponse struct {
	ID string `json:"id"`
}

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type resultResponse struct {
	Data json.RawMessage `json:"data"`
}

// Extract uploads one document, runs an extraction job with the schema's agent and
// returns the job's data. Every failure is an EXTRACTION_ERROR.
func (c *Client) Extract(ctx context.Context, doc entity.Document, s *schema.Schema) (extract.RawResult, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}
	start := time.Now()
	log := c.logger.With("req_id", rid, "file", doc.Name)
	if runID := common.RunIDFromContext(ctx); runID != "" {
		log = log.With("run_id", runID)
	}

	ctx, span := tracer.Start(ctx, "llamaextract.Extract")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.name", doc.Name),
		attribute.Int64("document.size", doc.Size),
		attribute.String("schema.name", s.Name),
	)

	fail := func(stage string, err error) (extract.RawResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		log.Error("extract.failed", "stage", stage, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return extract.RawResult{Elapsed: time.Since(start)}, common.ExtractionServiceError(fmt.Sprintf("%s %s", stage, doc.Name), err)
	}

	log.Info("extract.start", "schema", s.Name, "size", doc.Size)

	agentID, err := c.ensureAgent(ctx, s)
	if err != nil {
		return fail("agent", err)
	}
	fileID, err := c.upload(ctx, doc)
	if err != nil {
		return fail("upload", err)
	}
	job, err := c.startJob(ctx, agentID, fileID)
	if err != nil {
		return fail("start_job", err)
	}
	span.SetAttributes(attribute.String("llamaextract.job_id", job.ID))
	log.Info("extract.job.start", "job_id", job.ID, "agent_id", agentID, "file_id", fileID)

	status, err := c.waitJob(ctx, job)
	if err != nil {
		return fail("poll", err)
	}
	data, raw, err := c.result(ctx, job.ID)
	if err != nil {
		return fail("result", err)
	}

	res := extract.RawResult{
		Data:        data,
		RawJSON:     raw,
		RemoteJobID: job.ID,
		Status:      status,
		Elapsed:     time.Since(start),
	}
	if err := validate.CheckExtraction(s, data); err != nil {
		res.SchemaErr = err
		log.Warn("extract.schema_mismatch", "job_id", job.ID, "error", err)
	}
	log.Info("extract.ok",
		"job_id", job.ID,
		"status", status,
		"fields", len(data),
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	return res, nil
}

// ensureAgent returns the id of the agent for s, creating it on first use.
func (c *Client) ensureAgent(ctx context.Context, s *schema.Schema) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.agents[s.Name]; ok {
		return id, nil
	}

	var agent agentResponse
	raw, err := c.call(ctx, "get_agent", func() ([]byte, error) {
		b, _, err := extract.SendJSON(ctx, c.http, http.MethodGet, c.url(pathAgentsByName+url.PathEscape(c.cfg.AgentName)), nil, c.headers(), c.logger)
		return b, err
	})
	var se *extract.StatusError
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &agent); err != nil {
			return "", fmt.Errorf("decode agent: %w", err)
		}
		c.logger.Info("extract.agent.reuse", "agent", c.cfg.AgentName, "agent_id", agent.ID)
	case errors.As(err, &se) && se.Status == http.StatusNotFound:
		body := map[string]any{
			"name":        c.cfg.AgentName,
			"data_schema": s.ExtractionJSONSchema(),
			"config":      map[string]any{"extraction_mode": c.cfg.Mode},
		}
		raw, err := c.call(ctx, "create_agent", func() ([]byte, error) {
			b, _, err := extract.SendJSON(ctx, c.http, http.MethodPost, c.url(pathAgents), body, c.headers(), c.logger)
			return b, err
		})
		if err != nil {
			return "", err
		}
		if err := json.Unmarshal(raw, &agent); err != nil {
			return "", fmt.Errorf("decode agent: %w", err)
		}
		c.logger.Info("extract.agent.created", "agent", c.cfg.AgentName, "agent_id", agent.ID)
	default:
		return "", err
	}
	if agent.ID == "" {
		return "", fmt.Errorf("agent %q: empty id", c.cfg.AgentName)
	}
	c.agents[s.Name] = agent.ID
	return agent.ID, nil
}

func (c *Client) upload(ctx context.Context, doc entity.Document) (string, error) {
	content, err := os.ReadFile(doc.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", doc.Path, err)
	}
	raw, err := c.call(ctx, "upload", func() ([]byte, error) {
		b, _, err := extract.SendMultipart(ctx, c.http, c.url(pathFiles), uploadField, doc.Name, constants.DocxMIME, bytes.NewReader(content), c.headers(), c.logger)
		return b, err
	})
	if err != nil {
		return "", err
	}
	var f fileResponse
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", fmt.Errorf("decode file: %w", err)
	}
	if f.ID == "" {
		return "", fmt.Errorf("upload %s: empty file id", doc.Name)
	}
	return f.ID, nil
}

func (c *Client) startJob(ctx context.Context, agentID, fileID string) (jobResponse, error) {
	body := map[string]any{
		"extraction_agent_id": agentID,
		"file_id":             fileID,
	}
	raw, err := c.call(ctx, "start_job", func() ([]byte, error) {
		b, _, err := extract.SendJSON(ctx, c.http, http.MethodPost, c.url(pathJobs), body, c.headers(), c.logger)
		return b, err
	})
	if err != nil {
		return jobResponse{}, err
	}
	var job jobResponse
	if err := json.Unmarshal(raw, &job); err != nil {
		return jobResponse{}, fmt.Errorf("decode job: %w", err)
	}
	if job.ID == "" {
		return jobResponse{}, fmt.Errorf("start job: empty job id")
	}
	return job, nil
}

// waitJob polls until the job reaches a terminal state and returns it.
func (c *Client) waitJob(ctx context.Context, job jobResponse) (string, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for polls := 0; ; polls++ {
		switch job.Status {
		case constants.RemoteSuccess, constants.RemotePartialSuccess:
			c.logger.Info("extract.job.done", "job_id", job.ID, "status", job.Status, "polls", polls)
			return job.Status, nil
		case constants.RemoteError, constants.RemoteCancelled:
			msg := job.Error
			if msg == "" {
				msg = "no detail"
			}
			return job.Status, fmt.Errorf("job %s %s: %s", job.ID, job.Status, msg)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("job %s: %w", job.ID, ctx.Err())
		case <-ticker.C:
		}

		raw, err := c.call(ctx, "get_job", func() ([]byte, error) {
			b, _, err := extract.SendJSON(ctx, c.http, http.MethodGet, c.url(pathJobs+"/"+url.PathEscape(job.ID)), nil, c.headers(), c.logger)
			return b, err
		})
		if err != nil {
			return "", err
		}
		var next jobResponse
		if err := json.Unmarshal(raw, &next); err != nil {
			return "", fmt.Errorf("decode job: %w", err)
		}
		if next.ID == "" {
			next.ID = job.ID
		}
		job = next
	}
}

func (c *Client) result(ctx context.Context, jobID string) (map[string]any, json.RawMessage, error) {
	raw, err := c.call(ctx, "get_result", func() ([]byte, error) {
		b, _, err := extract.SendJSON(ctx, c.http, http.MethodGet, c.url(pathJobs+"/"+url.PathEscape(jobID)+"/result"), nil, c.headers(), c.logger)
		return b, err
	})
	if err != nil {
		return nil, nil, err
	}
	var rr resultResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return nil, nil, fmt.Errorf("decode result: %w", err)
	}
	if len(bytes.TrimSpace(rr.Data)) == 0 || bytes.Equal(bytes.TrimSpace(rr.Data), []byte("null")) {
		return nil, nil, fmt.Errorf("job %s: no data extracted", jobID)
	}
	var data map[string]any
	if err := json.Unmarshal(rr.Data, &data); err != nil {
		return nil, rr.Data, fmt.Errorf("job %s: data is not an object: %w", jobID, err)
	}
	return data, rr.Data, nil
}

// call runs fn with exponential backoff; only transient failures are retried.
func (c *Client) call(ctx context.Context, op string, fn func() ([]byte, error)) ([]byte, error) {
	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		b, err := fn()
		if err == nil {
			return b, nil
		}
		if !extract.Retryable(err) {
			return nil, backoff.Permanent(err)
		}
		c.logger.Warn("extract.http.retry",
			"req_id", common.RequestIDFromContext(ctx),
			"op", op,
			"attempt", attempt,
			"error", err,
		)
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInterval
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries+1)),
	)
}

func (c *Client) url(path string) string {
	u := c.cfg.BaseURL + path
	if c.cfg.ProjectID != "" {
		u += "?project_id=" + url.QueryEscape(c.cfg.ProjectID)
	}
	return u
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
}
