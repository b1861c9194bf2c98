package bot

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"notion-fairy-bot/internal/link"
	"notion-fairy-bot/internal/monitor"
	"notion-fairy-bot/internal/service"
	"notion-fairy-bot/internal/storage"
)

// State is an origin message's mirror state as seen by the Reconciler
type State int

const (
	StateNoLink State = iota
	StateLinkedNoMirror
	StateLinkedWithMirror
	StateTombstoned
)

func (s State) String() string {
	switch s {
	case StateNoLink:
		return "NO_LINK"
	case StateLinkedNoMirror:
		return "LINKED_NO_MIRROR"
	case StateLinkedWithMirror:
		return "LINKED_WITH_MIRROR"
	case StateTombstoned:
		return "TOMBSTONED"
	default:
		return "UNKNOWN"
	}
}

// Offerer asks an author whether a mirror should be posted
type Offerer interface {
	Offer(ctx context.Context, origin MessageRef, user string) error
}

// Reconciler keeps mirror messages consistent with their origin messages
type Reconciler struct {
	logger *slog.Logger
	chat   service.ChatService
	store  storage.ConnectionStore
	links  *link.Transformer
	// offerer replaces immediate mirroring of newly seen links when set
	offerer Offerer
}

// NewReconciler creates a reconciler mirroring links immediately
func NewReconciler(logger *slog.Logger, chat service.ChatService, store storage.ConnectionStore, links *link.Transformer) *Reconciler {
	return &Reconciler{
		logger: logger,
		chat:   chat,
		store:  store,
		links:  links,
	}
}

// UseOfferer switches newly seen links from immediate mirroring to an
// accept/decline offer
func (r *Reconciler) UseOfferer(offerer Offerer) {
	r.offerer = offerer
}

// Name identifies the handler in logs
func (r *Reconciler) Name() string {
	return "mirror"
}

// Match accepts every posted, changed or deleted message event
func (r *Reconciler) Match(ev *LifecycleEvent) bool {
	return ev.Kind == KindPosted || ev.Kind == KindChanged || ev.Kind == KindDeleted
}

// HandleMessage applies the transition for ev
func (r *Reconciler) HandleMessage(ctx context.Context, ev *LifecycleEvent) error {
	switch ev.Kind {
	case KindPosted:
		if ev.Broadcast {
			r.logger.Debug("Thread broadcast posted",
				"channel", ev.Origin.Channel,
				"origin_ts", ev.Origin.TS,
				"thread_ts", ev.Origin.ThreadTS)
		}
		return r.posted(ctx, ev)
	case KindChanged:
		return r.Edited(ctx, ev.Origin, ev.User, ev.Text, ev.PreviousText)
	case KindDeleted:
		r.logger.Debug("Origin removed",
			"channel", ev.Origin.Channel,
			"origin_ts", ev.Origin.TS,
			"subtype", ev.Subtype,
			"tombstone", ev.Tombstone)
		return r.Deleted(ctx, ev.Origin)
	}
	return nil
}

func (r *Reconciler) posted(ctx context.Context, ev *LifecycleEvent) error {
	if len(r.links.Extract(ev.Text)) == 0 {
		r.logger.Debug("Message has no workspace links",
			"channel", ev.Origin.Channel,
			"origin_ts", ev.Origin.TS)
		return nil
	}
	if r.offerer != nil {
		return r.offer(ctx, ev.Origin, ev.User)
	}
	return r.Mirror(ctx, ev.Origin, ev.Text)
}

func (r *Reconciler) offer(ctx context.Context, origin MessageRef, user string) error {
	if user == "" {
		r.logger.Debug("No author to offer a mirror to", "origin_ts", origin.TS)
		return nil
	}
	return r.offerer.Offer(ctx, origin, user)
}

// Mirror posts a mirror for body under origin and records the Connection.
// An origin that already has a mirror gets it updated in place instead, so
// redelivered events never leave a second, unconnected mirror behind.
func (r *Reconciler) Mirror(ctx context.Context, origin MessageRef, body string) error {
	spans := r.links.Extract(body)
	if len(spans) == 0 {
		return nil
	}

	mirrorTS, found, err := r.store.LookupMirror(ctx, origin.TS)
	if err != nil {
		return errors.Wrapf(err, "failed to look up mirror for %s", origin.TS)
	}
	if found {
		return r.refresh(ctx, origin, mirrorTS, spans)
	}
	return r.create(ctx, origin, spans)
}

func (r *Reconciler) create(ctx context.Context, origin MessageRef, spans []link.Span) error {
	text := r.links.Render(spans)

	mirrorTS, err := r.chat.PostMessage(ctx, origin.Channel, origin.ReplyThread(), text)
	monitor.MirrorOperationsTotal.WithLabelValues("post", monitor.ResultLabel(err)).Inc()
	if err != nil {
		return errors.Wrapf(err, "failed to post mirror for %s", origin.TS)
	}

	if err := r.store.CreateConnection(ctx, origin.TS, mirrorTS); err != nil {
		// A live mirror must not lack a Connection
		delErr := r.chat.DeleteMessage(ctx, origin.Channel, mirrorTS)
		monitor.MirrorOperationsTotal.WithLabelValues("delete", monitor.ResultLabel(delErr)).Inc()
		if delErr != nil {
			r.logger.Error("Failed to withdraw unrecorded mirror",
				"channel", origin.Channel,
				"origin_ts", origin.TS,
				"mirror_ts", mirrorTS,
				"error", delErr)
		}
		return errors.Wrapf(err, "failed to record connection %s -> %s", origin.TS, mirrorTS)
	}

	r.logger.Info("Mirror created",
		"channel", origin.Channel,
		"origin_ts", origin.TS,
		"mirror_ts", mirrorTS,
		"thread_ts", origin.ReplyThread(),
		"links", len(spans),
		"from", StateLinkedNoMirror,
		"to", StateLinkedWithMirror)
	return nil
}

// refresh rewrites an existing mirror. A mirror that turns out to be gone
// loses its Connection and is posted again.
func (r *Reconciler) refresh(ctx context.Context, origin MessageRef, mirrorTS string, spans []link.Span) error {
	err := r.chat.UpdateMessage(ctx, origin.Channel, mirrorTS, r.links.Render(spans))
	monitor.MirrorOperationsTotal.WithLabelValues("update", monitor.ResultLabel(err)).Inc()
	if err == nil {
		r.logger.Info("Mirror updated",
			"channel", origin.Channel,
			"origin_ts", origin.TS,
			"mirror_ts", mirrorTS,
			"links", len(spans))
		return nil
	}
	if !service.IsMessageNotFound(err) {
		return errors.Wrapf(err, "failed to update mirror %s", mirrorTS)
	}

	r.logger.Warn("Mirror vanished, reposting",
		"channel", origin.Channel,
		"origin_ts", origin.TS,
		"mirror_ts", mirrorTS)
	if err := r.store.DeleteConnection(ctx, origin.TS); err != nil {
		return errors.Wrapf(err, "failed to drop stale connection for %s", origin.TS)
	}
	return r.create(ctx, origin, spans)
}

// Edited reconciles an in-place edit of origin from previous to body
func (r *Reconciler) Edited(ctx context.Context, origin MessageRef, user, body, previous string) error {
	spans := r.links.Extract(body)
	if link.Equal(spans, r.links.Extract(previous)) {
		r.logger.Debug("Edit left links unchanged",
			"channel", origin.Channel,
			"origin_ts", origin.TS)
		return nil
	}

	mirrorTS, found, err := r.store.LookupMirror(ctx, origin.TS)
	if err != nil {
		return errors.Wrapf(err, "failed to look up mirror for %s", origin.TS)
	}

	switch {
	case found && len(spans) > 0:
		return r.refresh(ctx, origin, mirrorTS, spans)
	case found:
		return r.unlink(ctx, origin, mirrorTS)
	case len(spans) > 0:
		r.logger.Debug("Edit introduced links",
			"channel", origin.Channel,
			"origin_ts", origin.TS)
		if r.offerer != nil {
			return r.offer(ctx, origin, user)
		}
		return r.create(ctx, origin, spans)
	}
	return nil
}

// unlink removes the mirror of an origin whose links were edited away. The
// Connection survives a failed delete so a later event can retry.
func (r *Reconciler) unlink(ctx context.Context, origin MessageRef, mirrorTS string) error {
	err := r.chat.DeleteMessage(ctx, origin.Channel, mirrorTS)
	monitor.MirrorOperationsTotal.WithLabelValues("delete", monitor.ResultLabel(err)).Inc()
	if err != nil && !service.IsMessageNotFound(err) {
		return errors.Wrapf(err, "failed to delete mirror %s", mirrorTS)
	}

	if err := r.store.DeleteConnection(ctx, origin.TS); err != nil {
		return errors.Wrapf(err, "failed to delete connection for %s", origin.TS)
	}

	r.logger.Info("Mirror removed after links were edited out",
		"channel", origin.Channel,
		"origin_ts", origin.TS,
		"mirror_ts", mirrorTS,
		"from", StateLinkedWithMirror,
		"to", StateNoLink)
	return nil
}

// Deleted removes the mirror of a deleted or tombstoned origin. The
// Connection is dropped even when the remote delete fails.
func (r *Reconciler) Deleted(ctx context.Context, origin MessageRef) error {
	mirrorTS, found, err := r.store.LookupMirror(ctx, origin.TS)
	if err != nil {
		return errors.Wrapf(err, "failed to look up mirror for %s", origin.TS)
	}
	if !found {
		r.logger.Debug("Deleted message had no mirror",
			"channel", origin.Channel,
			"origin_ts", origin.TS)
		return nil
	}

	delErr := r.chat.DeleteMessage(ctx, origin.Channel, mirrorTS)
	monitor.MirrorOperationsTotal.WithLabelValues("delete", monitor.ResultLabel(delErr)).Inc()
	if delErr != nil && !service.IsMessageNotFound(delErr) {
		r.logger.Warn("Failed to delete mirror of deleted message",
			"channel", origin.Channel,
			"origin_ts", origin.TS,
			"mirror_ts", mirrorTS,
			"error", delErr)
	}

	if err := r.store.DeleteConnection(ctx, origin.TS); err != nil {
		return errors.Wrapf(err, "failed to delete connection for %s", origin.TS)
	}

	r.logger.Info("Mirror removed with its origin",
		"channel", origin.Channel,
		"origin_ts", origin.TS,
		"mirror_ts", mirrorTS,
		"from", StateLinkedWithMirror,
		"to", StateTombstoned)
	return nil
}
