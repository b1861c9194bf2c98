package service

import (
	"context"

	"github.com/slack-go/slack"
)

// ChatService defines the outbound operations the bot performs against the
// chat platform. Business logic must depend on this interface, never on the
// platform SDK client directly.
type ChatService interface {
	// PostMessage posts text into channel, threaded under threadTS when it is
	// non-empty, and returns the timestamp of the new message
	PostMessage(ctx context.Context, channel, threadTS, text string) (string, error)

	// UpdateMessage replaces the text of an existing message in place
	UpdateMessage(ctx context.Context, channel, ts, text string) error

	// DeleteMessage removes a message
	DeleteMessage(ctx context.Context, channel, ts string) error

	// ChannelName resolves a channel id to its display name
	ChannelName(ctx context.Context, channel string) (string, error)

	// FetchMessage reads back the body of a historical message. threadTS is
	// the thread root for replies and empty for top-level messages.
	FetchMessage(ctx context.Context, channel, ts, threadTS string) (string, error)

	// PostPrompt shows an interactive prompt visible only to user
	PostPrompt(ctx context.Context, channel, user, threadTS, fallback string, blocks []slack.Block) error

	// DiscardPrompt deletes an ephemeral prompt through its response URL
	DiscardPrompt(ctx context.Context, responseURL string) error
}
