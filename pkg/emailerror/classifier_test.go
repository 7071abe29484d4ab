package emailerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyNil(t *testing.T) {
	c := NewClassifier()
	assert.Nil(t, c.Classify(nil))
}

func TestClassifyPermanentReplyCodes(t *testing.T) {
	c := NewClassifier()

	for _, code := range []int{550, 551, 552, 553, 554} {
		t.Run(fmt.Sprintf("code %d", code), func(t *testing.T) {
			err := fmt.Errorf("smtp error: %d rejected", code)
			classified := c.Classify(err)

			assert.Equal(t, CategoryPermanent, classified.Category)
			assert.Equal(t, code, classified.SMTPCode)
			assert.False(t, classified.Retryable())
		})
	}
}

func TestClassifyTemporaryReplyCodes(t *testing.T) {
	c := NewClassifier()

	for _, code := range []int{421, 450, 451, 452} {
		t.Run(fmt.Sprintf("code %d", code), func(t *testing.T) {
			err := fmt.Errorf("smtp error: %d try again later", code)
			classified := c.Classify(err)

			assert.Equal(t, CategoryTemporary, classified.Category)
			assert.Equal(t, code, classified.SMTPCode)
			assert.True(t, classified.Retryable())
		})
	}
}

func TestClassifyUnlistedServerCodeIsTemporary(t *testing.T) {
	c := NewClassifier()

	// 5xx codes outside the permanent list stay retryable
	classified := c.Classify(errors.New("smtp error: 521 server does not accept mail"))
	assert.Equal(t, CategoryTemporary, classified.Category)
	assert.True(t, classified.Retryable())
}

func TestClassifyAuthFailureIsPermanent(t *testing.T) {
	c := NewClassifier()

	for _, msg := range []string{
		"authentication failed",
		"SMTP AUTH failed: invalid credentials",
		"login failed for user smtp@example.com",
	} {
		classified := c.Classify(errors.New(msg))
		assert.Equal(t, CategoryPermanent, classified.Category, msg)
	}
}

func TestClassifyRecipientRefusedIsPermanent(t *testing.T) {
	c := NewClassifier()

	classified := c.Classify(errors.New("recipients refused: bad@invalid"))
	assert.Equal(t, CategoryPermanent, classified.Category)
	assert.False(t, classified.Retryable())
}

func TestClassifyNetworkErrorsAreTemporary(t *testing.T) {
	c := NewClassifier()

	for _, msg := range []string{
		"dial tcp 10.0.0.1:587: connection refused",
		"dial tcp: i/o timeout",
		"read tcp: connection reset by peer",
		"context deadline exceeded",
		"tls handshake failure",
		"dial tcp: lookup smtp.invalid: no such host",
	} {
		classified := c.Classify(errors.New(msg))
		assert.Equal(t, CategoryTemporary, classified.Category, msg)
		assert.True(t, classified.Retryable())
	}
}

func TestClassifyUnknownErrorIsTemporary(t *testing.T) {
	c := NewClassifier()

	classified := c.Classify(errors.New("something odd happened"))
	assert.Equal(t, CategoryTemporary, classified.Category)
	assert.Equal(t, 0, classified.SMTPCode)
}

func TestClassifiedErrorUnwrap(t *testing.T) {
	underlying := errors.New("550 user unknown")
	c := NewClassifier()
	classified := c.Classify(underlying)

	assert.Equal(t, underlying, errors.Unwrap(classified))
	assert.Equal(t, underlying.Error(), classified.Error())
}

func TestConstructors(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, CategoryPermanent, Permanent(err).Category)
	assert.Equal(t, CategoryTemporary, Temporary(err).Category)
	assert.Equal(t, CategorySystem, System(err).Category)
	assert.False(t, System(err).Retryable())
}
