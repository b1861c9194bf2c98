package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

// acker acknowledges socket mode envelopes
type acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// SocketRunner consumes deliveries over a Socket Mode connection. Envelopes
// are processed one at a time so edits of an origin apply in arrival order.
type SocketRunner struct {
	logger    *slog.Logger
	client    *socketmode.Client
	acker     acker
	processor *processor
}

// NewSocketRunner creates a runner over an app-level token client
func NewSocketRunner(logger *slog.Logger, api *slack.Client, dispatcher Dispatcher) *SocketRunner {
	client := socketmode.New(api)
	return &SocketRunner{
		logger:    logger,
		client:    client,
		acker:     client,
		processor: &processor{logger: logger, dispatcher: dispatcher},
	}
}

// Run connects and processes envelopes until ctx is cancelled
func (r *SocketRunner) Run(ctx context.Context) error {
	go r.consume(ctx, r.client.Events)

	if err := r.client.RunContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "socket mode connection failed")
	}
	return nil
}

func (r *SocketRunner) consume(ctx context.Context, events <-chan socketmode.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			r.handle(ctx, evt)
		}
	}
}

func (r *SocketRunner) handle(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		r.logger.Info("Connecting to Slack with Socket Mode")
	case socketmode.EventTypeConnectionError:
		r.logger.Warn("Socket Mode connection failed, retrying")
	case socketmode.EventTypeConnected:
		r.logger.Info("Connected to Slack with Socket Mode")
	case socketmode.EventTypeHello:
		r.logger.Debug("Socket Mode hello received")

	case socketmode.EventTypeEventsAPI:
		if evt.Request == nil {
			return
		}
		r.acker.Ack(*evt.Request)

		envelope, err := DecodeEnvelope(evt.Request.Payload)
		if err != nil {
			r.logger.Warn("Malformed event delivery", "error", err)
			return
		}
		r.processor.event(ctx, envelope.Event)

	case socketmode.EventTypeInteractive:
		if evt.Request != nil {
			r.acker.Ack(*evt.Request)
		}
		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			r.logger.Debug("Ignoring interactive event", "data_type", fmt.Sprintf("%T", evt.Data))
			return
		}
		r.processor.actions(ctx, actionsFromCallback(callback))

	default:
		r.logger.Debug("Ignoring socket mode event", "type", string(evt.Type))
	}
}
