package transport

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// interactionBudget keeps button presses inside the platform's 3s
// acknowledgement window; the response doubles as the acknowledgement.
const interactionBudget = 2500 * time.Millisecond

// LambdaAdapter serves webhook deliveries behind an AWS Lambda function URL.
// Work runs before the response is returned since the runtime freezes the
// process between invocations.
type LambdaAdapter struct {
	logger        *slog.Logger
	signingSecret string
	processor     *processor
	budget        time.Duration
}

// NewLambdaAdapter creates a function URL adapter
func NewLambdaAdapter(logger *slog.Logger, signingSecret string, dispatcher Dispatcher) *LambdaAdapter {
	return &LambdaAdapter{
		logger:        logger,
		signingSecret: signingSecret,
		processor:     &processor{logger: logger, dispatcher: dispatcher},
		budget:        interactionBudget,
	}
}

// Handle is the lambda.Start entry point
func (a *LambdaAdapter) Handle(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			a.logger.Warn("Undecodable request body", "error", err)
			return events.LambdaFunctionURLResponse{StatusCode: http.StatusBadRequest}, nil
		}
		body = decoded
	}

	header := toHeader(req.Headers)
	if err := VerifyRequest(header, body, a.signingSecret); err != nil {
		a.logger.Warn("Rejected unsigned request", "path", req.RawPath, "error", err)
		return events.LambdaFunctionURLResponse{StatusCode: http.StatusUnauthorized}, nil
	}

	if isInteraction(req.RawPath, header) {
		return a.handleInteraction(ctx, body), nil
	}
	return a.handleEvent(ctx, body), nil
}

func (a *LambdaAdapter) handleEvent(ctx context.Context, body []byte) events.LambdaFunctionURLResponse {
	envelope, err := DecodeEnvelope(body)
	if err != nil {
		a.logger.Warn("Malformed event delivery", "error", err)
		return events.LambdaFunctionURLResponse{StatusCode: http.StatusBadRequest}
	}

	if envelope.Challenge != "" {
		return events.LambdaFunctionURLResponse{
			StatusCode: http.StatusOK,
			Headers:    map[string]string{"Content-Type": "text/plain"},
			Body:       envelope.Challenge,
		}
	}

	a.processor.event(ctx, envelope.Event)
	return events.LambdaFunctionURLResponse{StatusCode: http.StatusOK}
}

func (a *LambdaAdapter) handleInteraction(ctx context.Context, body []byte) events.LambdaFunctionURLResponse {
	actions, err := DecodeInteractionForm(body)
	if err != nil {
		a.logger.Warn("Malformed interaction", "error", err)
		return events.LambdaFunctionURLResponse{StatusCode: http.StatusBadRequest}
	}

	budgetCtx, cancel := context.WithTimeout(ctx, a.budget)
	defer cancel()
	a.processor.actions(budgetCtx, actions)
	if budgetCtx.Err() != nil {
		a.logger.Warn("Interaction exceeded acknowledgement budget", "budget", a.budget)
	}
	return events.LambdaFunctionURLResponse{StatusCode: http.StatusOK}
}

func isInteraction(path string, header http.Header) bool {
	if strings.HasSuffix(strings.TrimRight(path, "/"), "/actions") {
		return true
	}
	return strings.HasPrefix(header.Get("Content-Type"), "application/x-www-form-urlencoded")
}

func toHeader(headers map[string]string) http.Header {
	h := make(http.Header, len(headers))
	for k, v := range headers {
		h.Set(k, v)
	}
	return h
}

