// internal/workers/matching/project-store-profile/handler.go
package projectstoreprofile

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
	"creator-match/internal/models"
)

const (
	TaskType = "project-store-profile"
)

type Projector interface {
	Project(payload models.StorePayload, hints models.ProfileHints) (models.BusinessProfile, error)
}

type Handler struct {
	config    *Config
	projector Projector
	schema    *validation.Schema
	errors    *apperrors.ErrorHandler
	obs       *observability.Observability
	logger    logger.Logger
}

func NewHandler(config *Config, projector Projector, obs *observability.Observability, log logger.Logger) *Handler {
	if obs == nil {
		obs = &observability.Observability{}
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		projector: projector,
		schema:    validation.ProjectRequest(),
		errors:    apperrors.NewErrorHandler(log),
		obs:       obs,
		logger:    log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()
	ctx, span := h.obs.StartSpan(ctx, "job."+TaskType)
	defer span.End()

	output, err := h.execute(job.Variables)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
		h.errors.HandleJobError(ctx, client, job, err)
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
}

func (h *Handler) execute(variables string) (*Output, error) {
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
	return h.Execute(&input)
}

func (h *Handler) Execute(input *Input) (*Output, error) {
	profile, err := h.projector.Project(input.Payload, input.Hints)
	if err != nil {
		return nil, err
	}

	h.logger.Info("store profile projected", map[string]interface{}{
		"store":           profile.Name,
		"primaryCategory": profile.PrimaryCategory,
		"district":        profile.Location.District,
		"priceTier":       profile.PriceTier.String(),
	})
	return &Output{Profile: profile, StoreURL: input.Payload.URL}, nil
}
