package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/easeemail/easeemail/internal/domain"
	"github.com/easeemail/easeemail/pkg/logger"
)

// JobHandler serves the job status endpoints
type JobHandler struct {
	jobRepo      domain.EmailJobRepository
	deliveryRepo domain.WebhookDeliveryRepository
	logger       logger.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobRepo domain.EmailJobRepository, deliveryRepo domain.WebhookDeliveryRepository, logger logger.Logger) *JobHandler {
	return &JobHandler{
		jobRepo:      jobRepo,
		deliveryRepo: deliveryRepo,
		logger:       logger,
	}
}

// RegisterRoutes registers the status routes
func (h *JobHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/jobs/{id}", h.handleGetJob)
	mux.HandleFunc("GET /api/v1/jobs/{id}/full", h.handleGetJobFull)
}

// webhookDeliverySummary is the delivery sub-object of the full view
type webhookDeliverySummary struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	EventType        string     `json:"event_type"`
	RetryCount       int        `json:"retry_count"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	LastError        *string    `json:"last_error,omitempty"`
	LastResponseCode *int       `json:"last_response_code,omitempty"`
}

// jobFullResponse is the job plus its most recent webhook delivery
type jobFullResponse struct {
	*domain.EmailJob
	WebhookDelivery *webhookDeliverySummary `json:"webhook_delivery"`
}

func (h *JobHandler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) handleGetJobFull(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	resp := jobFullResponse{EmailJob: job}

	delivery, err := h.deliveryRepo.GetByJobID(r.Context(), job.ID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) {
			h.logger.WithFields(map[string]interface{}{
				"job_id": job.ID,
				"error":  err.Error(),
			}).Error("Failed to load webhook delivery")
			WriteJSONError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	} else {
		resp.WebhookDelivery = &webhookDeliverySummary{
			ID:               delivery.ID,
			Status:           string(delivery.Status),
			EventType:        string(delivery.EventType),
			RetryCount:       delivery.RetryCount,
			DeliveredAt:      delivery.DeliveredAt,
			LastError:        delivery.LastError,
			LastResponseCode: delivery.LastResponseCode,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *JobHandler) loadJob(w http.ResponseWriter, r *http.Request) (*domain.EmailJob, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		WriteJSONError(w, "Invalid job id", http.StatusBadRequest)
		return nil, false
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			WriteJSONError(w, "Job not found", http.StatusNotFound)
			return nil, false
		}
		h.logger.WithFields(map[string]interface{}{
			"job_id": id,
			"error":  err.Error(),
		}).Error("Failed to load job")
		WriteJSONError(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}

	return job, true
}
