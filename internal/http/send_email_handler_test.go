package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tidwall/gjson"

	"github.com/easeemail/easeemail/internal/domain"
	"github.com/easeemail/easeemail/pkg/logger"
	"github.com/easeemail/easeemail/pkg/templates"
)

type mockEmailSender struct {
	mock.Mock
}

func (m *mockEmailSender) SendEmail(ctx context.Context, apiKey, templateName string, req *domain.SendEmailRequest) (*domain.SendEmailResponse, error) {
	args := m.Called(ctx, apiKey, templateName, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SendEmailResponse), args.Error(1)
}

func newSendEmailServer(t *testing.T, sender *mockEmailSender) *http.ServeMux {
	mux := http.NewServeMux()
	NewSendEmailHandler(sender, logger.NewTestLogger(t)).RegisterRoutes(mux)
	return mux
}

func postSendEmail(mux *http.ServeMux, apiKey, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/send/email?template=welcome_email", strings.NewReader(body))
	if apiKey != "" {
		req.Header.Set("XAPIKey", apiKey)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

const validBody = `{"service_name":"welcome","to_email":"alice@example.com","variables_data":{"name":"Alice"}}`

func TestSendEmailHandler(t *testing.T) {
	t.Run("accepted request returns 202 with poll url", func(t *testing.T) {
		sender := new(mockEmailSender)
		sender.On("SendEmail", mock.Anything, "key-abc", "welcome_email", mock.AnythingOfType("*domain.SendEmailRequest")).
			Return(&domain.SendEmailResponse{
				JobID:   "7f0d8f3a-0000-0000-0000-000000000001",
				Status:  "queued",
				Message: "Email queued for delivery",
				PollURL: "/api/v1/jobs/7f0d8f3a-0000-0000-0000-000000000001",
			}, nil)

		rec := postSendEmail(newSendEmailServer(t, sender), "key-abc", validBody)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		body := rec.Body.String()
		assert.Equal(t, "queued", gjson.Get(body, "status").String())
		assert.Equal(t, "7f0d8f3a-0000-0000-0000-000000000001", gjson.Get(body, "job_id").String())
		assert.Equal(t, "/api/v1/jobs/7f0d8f3a-0000-0000-0000-000000000001", gjson.Get(body, "poll_url").String())
	})

	t.Run("bad api key returns 401", func(t *testing.T) {
		sender := new(mockEmailSender)
		sender.On("SendEmail", mock.Anything, "bad-key", "welcome_email", mock.Anything).
			Return(nil, &domain.ErrUnauthorized{Message: "Invalid API key"})

		rec := postSendEmail(newSendEmailServer(t, sender), "bad-key", validBody)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid API key", gjson.Get(rec.Body.String(), "detail").String())
	})

	t.Run("validation failure returns 400", func(t *testing.T) {
		sender := new(mockEmailSender)
		sender.On("SendEmail", mock.Anything, "key-abc", "welcome_email", mock.Anything).
			Return(nil, domain.NewValidationError("Invalid email service"))

		rec := postSendEmail(newSendEmailServer(t, sender), "key-abc", validBody)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid email service", gjson.Get(rec.Body.String(), "detail").String())
	})

	t.Run("render failure returns 400", func(t *testing.T) {
		sender := new(mockEmailSender)
		sender.On("SendEmail", mock.Anything, "key-abc", "welcome_email", mock.Anything).
			Return(nil, &templates.RenderError{Err: errors.New("unclosed tag")})

		rec := postSendEmail(newSendEmailServer(t, sender), "key-abc", validBody)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Template rendering error", gjson.Get(rec.Body.String(), "detail").String())
	})

	t.Run("unknown template returns 404", func(t *testing.T) {
		sender := new(mockEmailSender)
		sender.On("SendEmail", mock.Anything, "key-abc", "welcome_email", mock.Anything).
			Return(nil, &domain.ErrNotFound{Entity: "template", ID: "welcome_email"})

		rec := postSendEmail(newSendEmailServer(t, sender), "key-abc", validBody)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Template not found", gjson.Get(rec.Body.String(), "detail").String())
	})

	t.Run("unexpected error returns 500", func(t *testing.T) {
		sender := new(mockEmailSender)
		sender.On("SendEmail", mock.Anything, "key-abc", "welcome_email", mock.Anything).
			Return(nil, errors.New("database exploded"))

		rec := postSendEmail(newSendEmailServer(t, sender), "key-abc", validBody)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal server error", gjson.Get(rec.Body.String(), "detail").String())
	})

	t.Run("malformed body returns 400 without calling the service", func(t *testing.T) {
		sender := new(mockEmailSender)

		rec := postSendEmail(newSendEmailServer(t, sender), "key-abc", "{not json")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		sender.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
