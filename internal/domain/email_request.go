package domain

import (
	"github.com/asaskevich/govalidator"
)

// SendEmailRequest is the intake API body. The template name travels as a
// query parameter, not in the body.
type SendEmailRequest struct {
	ServiceName   string                 `json:"service_name"`
	ToEmail       string                 `json:"to_email"`
	VariablesData map[string]interface{} `json:"variables_data"`
}

// Validate checks the request fields before any lookup happens
func (r *SendEmailRequest) Validate() error {
	if r.ServiceName == "" {
		return NewValidationError("service_name is required")
	}
	if r.ToEmail == "" {
		return NewValidationError("to_email is required")
	}
	if !govalidator.IsEmail(r.ToEmail) {
		return NewValidationError("to_email is not a valid email address")
	}
	return nil
}

// SendEmailResponse is the 202 body returned once a job is accepted
type SendEmailResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
	PollURL string `json:"poll_url"`
}
