package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"notion-fairy-bot/internal/bot"
)

// maxBodyBytes bounds inbound webhook bodies
const maxBodyBytes = 1 << 20

// Dispatcher receives decoded units of work. bot.Handler implements it.
type Dispatcher interface {
	HandleEvent(ctx context.Context, ev *bot.LifecycleEvent) error
	HandleAction(ctx context.Context, action *bot.Action) error
}

// Envelope is a decoded Events API delivery. Exactly one of Challenge and
// Event is set for deliveries the bot understands.
type Envelope struct {
	Challenge string
	Event     *bot.LifecycleEvent
}

// DecodeEnvelope decodes an Events API request body
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var outer slackevents.EventsAPICallbackEvent
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, errors.Wrap(err, "failed to decode event envelope")
	}

	switch outer.Type {
	case slackevents.URLVerification:
		var verification slackevents.EventsAPIURLVerificationEvent
		if err := json.Unmarshal(body, &verification); err != nil {
			return nil, errors.Wrap(err, "failed to decode url verification")
		}
		return &Envelope{Challenge: verification.Challenge}, nil
	case slackevents.CallbackEvent:
		if outer.InnerEvent == nil {
			return nil, errors.New("event callback without an inner event")
		}
		ev, err := bot.ParseMessageEvent(outer.EventID, *outer.InnerEvent)
		if err != nil {
			return nil, err
		}
		return &Envelope{Event: ev}, nil
	default:
		return &Envelope{}, nil
	}
}

// DecodeInteraction decodes the JSON interaction payload into button actions
func DecodeInteraction(payload []byte) ([]*bot.Action, error) {
	var callback slack.InteractionCallback
	if err := json.Unmarshal(payload, &callback); err != nil {
		return nil, errors.Wrap(err, "failed to decode interaction payload")
	}
	return actionsFromCallback(callback), nil
}

// DecodeInteractionForm decodes a form-encoded interaction request body
func DecodeInteractionForm(body []byte) ([]*bot.Action, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse interaction form")
	}
	payload := values.Get("payload")
	if payload == "" {
		return nil, errors.New("interaction form has no payload")
	}
	return DecodeInteraction([]byte(payload))
}

func actionsFromCallback(callback slack.InteractionCallback) []*bot.Action {
	if callback.Type != slack.InteractionTypeBlockActions {
		return nil
	}

	actions := make([]*bot.Action, 0, len(callback.ActionCallback.BlockActions))
	for _, blockAction := range callback.ActionCallback.BlockActions {
		if blockAction == nil {
			continue
		}
		actions = append(actions, &bot.Action{
			ID:          blockAction.ActionID,
			Value:       blockAction.Value,
			ResponseURL: callback.ResponseURL,
			Channel:     callback.Channel.ID,
			User:        callback.User.ID,
		})
	}
	return actions
}

// VerifyRequest checks the platform's request signature over body
func VerifyRequest(header http.Header, body []byte, signingSecret string) error {
	if header.Get("X-Slack-Signature") == "" || header.Get("X-Slack-Request-Timestamp") == "" {
		return errors.New("missing signature headers")
	}

	verifier, err := slack.NewSecretsVerifier(header, signingSecret)
	if err != nil {
		return errors.Wrap(err, "failed to create secrets verifier")
	}
	if _, err := verifier.Write(body); err != nil {
		return errors.Wrap(err, "failed to hash request body")
	}
	if err := verifier.Ensure(); err != nil {
		return errors.Wrap(err, "signature mismatch")
	}
	return nil
}

// processor runs decoded work against the dispatcher. Delivery has already
// been acknowledged by the time it runs, so failures are logged, not returned.
type processor struct {
	logger     *slog.Logger
	dispatcher Dispatcher
}

func (p *processor) event(ctx context.Context, ev *bot.LifecycleEvent) {
	if ev == nil {
		return
	}
	if err := p.dispatcher.HandleEvent(ctx, ev); err != nil {
		p.logger.Warn("Event unit failed",
			"event_id", ev.EventID,
			"kind", ev.Kind.String(),
			"error", err)
	}
}

func (p *processor) actions(ctx context.Context, actions []*bot.Action) {
	for _, action := range actions {
		if err := p.dispatcher.HandleAction(ctx, action); err != nil {
			p.logger.Warn("Action unit failed",
				"action_id", action.ID,
				"channel", action.Channel,
				"error", err)
		}
	}
}
