// internal/workers/matching/run-creator-match/handler.go
package runcreatormatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "creator-match/internal/common/errors"
	"creator-match/internal/common/logger"
	"creator-match/internal/common/metrics"
	"creator-match/internal/common/observability"
	"creator-match/internal/common/validation"
	"creator-match/internal/engine/orchestrator"
	"creator-match/internal/models"
)

const (
	TaskType = "run-creator-match"
)

// Analyzer runs one matching analysis.
type Analyzer interface {
	RunAnalysis(ctx context.Context, profile models.BusinessProfile, opts orchestrator.Options) (*models.AnalysisRecord, error)
}

type Handler struct {
	config   *Config
	analyzer Analyzer
	schema   *validation.Schema
	errors   *apperrors.ErrorHandler
	obs      *observability.Observability
	logger   logger.Logger
}

func NewHandler(config *Config, analyzer Analyzer, obs *observability.Observability, log logger.Logger) *Handler {
	if obs == nil {
		obs = &observability.Observability{}
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		analyzer: analyzer,
		schema:   validation.RunRequest(),
		errors:   apperrors.NewErrorHandler(log),
		obs:      obs,
		logger:   log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()
	ctx, span := h.obs.StartSpan(ctx, "job."+TaskType)
	defer span.End()

	// broker commands must go out even when the run used up the job timeout
	sendCtx := context.WithoutCancel(ctx)

	input, err := h.parseInput(job.Variables)
	if err == nil {
		var output *Output
		output, err = h.Execute(ctx, input)
		if err == nil {
			h.completeJob(sendCtx, client, job, output)
			h.record(sendCtx, start, "completed")
			return
		}
	}

	code := apperrors.Normalize(err).Code
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(code)).Inc()
	h.errors.HandleJobError(sendCtx, client, job, err)
	h.record(sendCtx, start, "failed")
}

func (h *Handler) record(ctx context.Context, start time.Time, status string) {
	elapsed := time.Since(start)
	if status == "completed" {
		metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	}
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, status)
	h.obs.RecordJobDuration(ctx, TaskType, elapsed, status)
}

// parseInput validates the job variables against the run request schema
// before decoding them.
func (h *Handler) parseInput(variables string) (*Input, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &doc); err != nil {
		return nil, apperrors.NewPayloadInvalidError(fmt.Sprintf("parse variables: %v", err))
	}
	result, err := h.schema.Validate(doc)
	if err != nil {
		return nil, apperrors.NewPayloadInvalidError(err.Error())
	}
	if !result.Valid {
		return nil, apperrors.NewPayloadInvalidError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewPayloadInvalidError(fmt.Sprintf("decode variables: %v", err))
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	started := time.Now().UTC()
	rec, err := h.analyzer.RunAnalysis(ctx, input.Profile, orchestrator.Options{
		MaxResults:   input.Options.MaxResults,
		MinScore:     input.Options.MinScore,
		ForceRefresh: input.Options.ForceRefresh,
	})
	if err != nil {
		return nil, err
	}

	output := &Output{
		AnalysisID:  rec.ID,
		Fingerprint: rec.Fingerprint,
		MatchCount:  len(rec.Matches),
		Matches:     rec.Matches,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
		Stats:       rec.Stats,
		Cached:      rec.CreatedAt.Before(started),
	}

	h.logger.Info("creator match completed", map[string]interface{}{
		"analysisId":  output.AnalysisID,
		"fingerprint": output.Fingerprint,
		"matchCount":  output.MatchCount,
		"cached":      output.Cached,
	})
	return output, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
