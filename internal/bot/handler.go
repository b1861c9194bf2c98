package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"notion-fairy-bot/internal/monitor"
)

// MessageHandler reacts to message lifecycle events it matches
type MessageHandler interface {
	Name() string
	Match(ev *LifecycleEvent) bool
	HandleMessage(ctx context.Context, ev *LifecycleEvent) error
}

// ActionHandler reacts to interactive button presses
type ActionHandler interface {
	Actions() []string
	HandleAction(ctx context.Context, action *Action) error
}

// Handler dispatches inbound events to the registered flows. Each event is
// an isolated unit of work: a failing handler never stops the others.
type Handler struct {
	logger          *slog.Logger
	restrictor      *ChannelRestrictor
	dedup           *Deduplicator
	messageHandlers []MessageHandler
	actionHandlers  map[string]ActionHandler
}

// NewHandler creates a new bot event handler
func NewHandler(logger *slog.Logger, restrictor *ChannelRestrictor, dedup *Deduplicator) *Handler {
	return &Handler{
		logger:         logger,
		restrictor:     restrictor,
		dedup:          dedup,
		actionHandlers: make(map[string]ActionHandler),
	}
}

// RegisterMessageHandler adds a message flow
func (h *Handler) RegisterMessageHandler(handler MessageHandler) {
	h.messageHandlers = append(h.messageHandlers, handler)
}

// RegisterActionHandler routes the handler's action ids to it
func (h *Handler) RegisterActionHandler(handler ActionHandler) {
	for _, id := range handler.Actions() {
		h.actionHandlers[id] = handler
	}
}

// HandleEvent runs every matching message flow for ev
func (h *Handler) HandleEvent(ctx context.Context, ev *LifecycleEvent) error {
	kind := ev.Kind.String()

	if ev.Kind == KindOther {
		monitor.EventsTotal.WithLabelValues(kind, monitor.OutcomeIgnored).Inc()
		return nil
	}
	if h.dedup != nil && h.dedup.Seen(ev.EventID) {
		h.logger.Debug("Dropping redelivered event", "event_id", ev.EventID)
		monitor.EventsTotal.WithLabelValues(kind, monitor.OutcomeDup).Inc()
		return nil
	}
	if !h.restrictor.IsChannelAllowed(ev.Origin.Channel) {
		monitor.EventsTotal.WithLabelValues(kind, monitor.OutcomeIgnored).Inc()
		return nil
	}

	unitID := uuid.NewString()
	start := time.Now()
	logger := h.logger.With("unit_id", unitID, "event_id", ev.EventID, "kind", kind)

	var firstErr error
	handled := false
	for _, handler := range h.messageHandlers {
		if !handler.Match(ev) {
			continue
		}
		handled = true
		if err := handler.HandleMessage(ctx, ev); err != nil {
			logger.Error("Message handler failed",
				"handler", handler.Name(),
				"channel", ev.Origin.Channel,
				"origin_ts", ev.Origin.TS,
				"error", err)
			if firstErr == nil {
				firstErr = errors.Wrap(err, handler.Name())
			}
		}
	}

	outcome := monitor.OutcomeHandled
	switch {
	case firstErr != nil:
		outcome = monitor.OutcomeFailed
	case !handled:
		outcome = monitor.OutcomeIgnored
	}
	monitor.EventsTotal.WithLabelValues(kind, outcome).Inc()

	if handled {
		logger.Debug("Event processed",
			"outcome", outcome,
			"duration", time.Since(start))
	}
	return firstErr
}

// HandleAction routes an already acknowledged button press
func (h *Handler) HandleAction(ctx context.Context, action *Action) error {
	handler, ok := h.actionHandlers[action.ID]
	if !ok {
		h.logger.Debug("No handler for action", "action_id", action.ID)
		monitor.EventsTotal.WithLabelValues("action", monitor.OutcomeIgnored).Inc()
		return nil
	}
	if !h.restrictor.IsChannelAllowed(action.Channel) {
		monitor.EventsTotal.WithLabelValues("action", monitor.OutcomeIgnored).Inc()
		return nil
	}

	unitID := uuid.NewString()
	err := handler.HandleAction(ctx, action)
	monitor.EventsTotal.WithLabelValues("action", outcomeOf(err)).Inc()
	if err != nil {
		h.logger.Error("Action handler failed",
			"unit_id", unitID,
			"action_id", action.ID,
			"channel", action.Channel,
			"error", err)
		return errors.Wrap(err, action.ID)
	}

	h.logger.Debug("Action processed",
		"unit_id", unitID,
		"action_id", action.ID,
		"channel", action.Channel)
	return nil
}

func outcomeOf(err error) string {
	if err != nil {
		return monitor.OutcomeFailed
	}
	return monitor.OutcomeHandled
}
