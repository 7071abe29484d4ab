package emailerror

// Category classifies a delivery failure for retry decisions and reporting.
type Category string

const (
	// CategoryPermanent indicates a failure further attempts cannot fix
	// (rejected recipient, bad credentials). The job goes terminal.
	CategoryPermanent Category = "permanent"

	// CategoryTemporary indicates a failure eligible for retry with backoff
	// (busy mailbox, greylisting, network trouble).
	CategoryTemporary Category = "temporary"

	// CategorySystem indicates an unexpected internal error. The job goes
	// terminal without retry so a bug cannot loop the worker.
	CategorySystem Category = "system"
)

// ClassifiedError wraps a delivery error with its retry classification.
type ClassifiedError struct {
	// Original is the underlying error
	Original error

	// Category classifies the error as permanent, temporary, or system
	Category Category

	// SMTPCode is the extracted SMTP reply code (0 if not applicable)
	SMTPCode int
}

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	if e.Original == nil {
		return ""
	}
	return e.Original.Error()
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *ClassifiedError) Unwrap() error {
	return e.Original
}

// Retryable reports whether the failure is eligible for another attempt.
func (e *ClassifiedError) Retryable() bool {
	return e.Category == CategoryTemporary
}

// Permanent builds a permanent classified error.
func Permanent(err error) *ClassifiedError {
	return &ClassifiedError{Original: err, Category: CategoryPermanent}
}

// Temporary builds a temporary classified error.
func Temporary(err error) *ClassifiedError {
	return &ClassifiedError{Original: err, Category: CategoryTemporary}
}

// System builds a system classified error.
func System(err error) *ClassifiedError {
	return &ClassifiedError{Original: err, Category: CategorySystem}
}
