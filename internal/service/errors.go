// Package service talks to the chat platform and Notion.
//
// Errors are wrapped with github.com/pkg/errors rather than fmt.Errorf %w so
// the stack of the failing call survives into logs; errors.Is and errors.As
// still see through the wrapping for not-found and API error classification.
package service

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/slack-go/slack"
)

// ErrMessageNotFound is returned when a historical message cannot be read back
var ErrMessageNotFound = errors.New("message_not_found")

// notFoundCodes are platform error codes meaning the target no longer exists
var notFoundCodes = []string{
	"message_not_found",
	"channel_not_found",
	"thread_not_found",
}

// IsMessageNotFound reports whether err means the addressed message is gone
func IsMessageNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMessageNotFound) {
		return true
	}

	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return isNotFoundCode(slackErr.Err)
	}

	// Some client paths flatten the response into a plain error string
	msg := err.Error()
	for _, code := range notFoundCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

func isNotFoundCode(code string) bool {
	for _, c := range notFoundCodes {
		if code == c {
			return true
		}
	}
	return false
}
