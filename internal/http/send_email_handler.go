package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/easeemail/easeemail/internal/domain"
	"github.com/easeemail/easeemail/pkg/logger"
	"github.com/easeemail/easeemail/pkg/templates"
)

// EmailSender accepts an email send request and returns the queued job
type EmailSender interface {
	SendEmail(ctx context.Context, apiKey, templateName string, req *domain.SendEmailRequest) (*domain.SendEmailResponse, error)
}

// SendEmailHandler handles the intake endpoint
type SendEmailHandler struct {
	sender EmailSender
	logger logger.Logger
}

// NewSendEmailHandler creates a new send email handler
func NewSendEmailHandler(sender EmailSender, logger logger.Logger) *SendEmailHandler {
	return &SendEmailHandler{
		sender: sender,
		logger: logger,
	}
}

// RegisterRoutes registers the intake route
func (h *SendEmailHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/send/email", h.handleSendEmail)
}

func (h *SendEmailHandler) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Header.Get("XAPIKey")
	templateName := r.URL.Query().Get("template")

	var req domain.SendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.sender.SendEmail(r.Context(), apiKey, templateName, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

// writeError maps service errors onto the intake status codes
func (h *SendEmailHandler) writeError(w http.ResponseWriter, err error) {
	var (
		unauthorized *domain.ErrUnauthorized
		validation   domain.ValidationError
		notFound     *domain.ErrNotFound
		renderErr    *templates.RenderError
	)

	switch {
	case errors.As(err, &unauthorized):
		WriteJSONError(w, unauthorized.Message, http.StatusUnauthorized)
	case errors.As(err, &validation):
		WriteJSONError(w, validation.Message, http.StatusBadRequest)
	case errors.As(err, &renderErr):
		WriteJSONError(w, "Template rendering error", http.StatusBadRequest)
	case errors.As(err, &notFound):
		WriteJSONError(w, "Template not found", http.StatusNotFound)
	default:
		h.logger.WithField("error", err.Error()).Error("Send email request failed")
		WriteJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}
