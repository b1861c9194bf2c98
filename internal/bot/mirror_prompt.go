package bot

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"notion-fairy-bot/internal/service"
)

// MirrorPrompt offers authors an app-scheme mirror instead of posting one
// unasked, and mirrors on acceptance
type MirrorPrompt struct {
	logger     *slog.Logger
	chat       service.ChatService
	reconciler *Reconciler
	scheme     string
}

// NewMirrorPrompt creates the prompt flow and routes the reconciler's newly
// seen links through it
func NewMirrorPrompt(logger *slog.Logger, chat service.ChatService, reconciler *Reconciler) *MirrorPrompt {
	p := &MirrorPrompt{
		logger:     logger,
		chat:       chat,
		reconciler: reconciler,
		scheme:     reconciler.links.Scheme(),
	}
	reconciler.UseOfferer(p)
	return p
}

// Offer shows user an ephemeral accept/decline prompt for origin
func (p *MirrorPrompt) Offer(ctx context.Context, origin MessageRef, user string) error {
	offer := mirrorOffer{OriginTS: origin.TS, ThreadTS: origin.ThreadTS}
	err := p.chat.PostPrompt(ctx, origin.Channel, user, origin.ThreadTS, mirrorPromptText(p.scheme), mirrorPromptBlocks(p.scheme, offer))
	if err != nil {
		return errors.Wrapf(err, "failed to offer mirror for %s", origin.TS)
	}

	p.logger.Info("Mirror offered",
		"channel", origin.Channel,
		"origin_ts", origin.TS,
		"user", user)
	return nil
}

// Actions lists the action ids this handler answers
func (p *MirrorPrompt) Actions() []string {
	return []string{ActionAccept, ActionDecline}
}

// HandleAction discards the prompt and, on accept, mirrors the origin as it
// reads now
func (p *MirrorPrompt) HandleAction(ctx context.Context, action *Action) error {
	if err := p.chat.DiscardPrompt(ctx, action.ResponseURL); err != nil {
		p.logger.Warn("Failed to discard mirror prompt", "error", err)
	}

	if action.ID != ActionAccept {
		p.logger.Debug("Mirror offer declined",
			"channel", action.Channel,
			"user", action.User)
		return nil
	}

	offer, err := decodeMirrorOffer(action.Value)
	if err != nil {
		p.logger.Warn("Ignoring malformed mirror offer", "value", action.Value, "error", err)
		return nil
	}
	origin := MessageRef{Channel: action.Channel, TS: offer.OriginTS, ThreadTS: offer.ThreadTS}

	body, err := p.chat.FetchMessage(ctx, origin.Channel, origin.TS, origin.ThreadTS)
	if err != nil {
		if service.IsMessageNotFound(err) {
			p.logger.Info("Offered message is gone, nothing to mirror",
				"channel", origin.Channel,
				"origin_ts", origin.TS)
			return nil
		}
		return errors.Wrapf(err, "failed to read offered message %s", origin.TS)
	}

	return p.reconciler.Mirror(ctx, origin, body)
}
