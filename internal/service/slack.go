package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/slack-go/slack"
)

const (
	// channelNameTTL bounds how long a resolved channel name is reused
	channelNameTTL = 30 * time.Minute
)

// SlackChatService implements ChatService on top of the Slack Web API
type SlackChatService struct {
	client       *slack.Client
	logger       *slog.Logger
	channelNames *cache.Cache
}

// NewSlackChatService creates a chat service backed by client
func NewSlackChatService(client *slack.Client, logger *slog.Logger) *SlackChatService {
	return &SlackChatService{
		client:       client,
		logger:       logger,
		channelNames: cache.New(channelNameTTL, 2*channelNameTTL),
	}
}

// PostMessage posts a message, threaded under threadTS when given
func (s *SlackChatService) PostMessage(ctx context.Context, channel, threadTS, text string) (string, error) {
	options := []slack.MsgOption{
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
	}
	if threadTS != "" {
		options = append(options, slack.MsgOptionTS(threadTS))
	}

	_, ts, err := s.client.PostMessageContext(ctx, channel, options...)
	if err != nil {
		return "", errors.Wrapf(err, "failed to post message to %s", channel)
	}

	s.logger.Debug("Posted message",
		"channel", channel,
		"thread_ts", threadTS,
		"ts", ts)
	return ts, nil
}

// UpdateMessage replaces the text of message ts
func (s *SlackChatService) UpdateMessage(ctx context.Context, channel, ts, text string) error {
	_, _, _, err := s.client.UpdateMessageContext(ctx, channel, ts, slack.MsgOptionText(text, false))
	if err != nil {
		return errors.Wrapf(err, "failed to update message %s in %s", ts, channel)
	}
	return nil
}

// DeleteMessage removes message ts
func (s *SlackChatService) DeleteMessage(ctx context.Context, channel, ts string) error {
	_, _, err := s.client.DeleteMessageContext(ctx, channel, ts)
	if err != nil {
		return errors.Wrapf(err, "failed to delete message %s in %s", ts, channel)
	}
	return nil
}

// ChannelName resolves a channel id to its name, caching the result
func (s *SlackChatService) ChannelName(ctx context.Context, channel string) (string, error) {
	if name, found := s.channelNames.Get(channel); found {
		return name.(string), nil
	}

	info, err := s.client.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{
		ChannelID: channel,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to fetch channel info for %s", channel)
	}

	s.channelNames.SetDefault(channel, info.Name)
	return info.Name, nil
}

// FetchMessage reads back the text of message ts. Top-level messages come
// from channel history, thread replies from the thread's replies.
func (s *SlackChatService) FetchMessage(ctx context.Context, channel, ts, threadTS string) (string, error) {
	var messages []slack.Message

	if threadTS == "" || threadTS == ts {
		history, err := s.client.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: channel,
			Latest:    ts,
			Inclusive: true,
			Limit:     1,
		})
		if err != nil {
			return "", errors.Wrapf(err, "failed to read history of %s", channel)
		}
		messages = history.Messages
	} else {
		replies, _, _, err := s.client.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
			ChannelID: channel,
			Timestamp: threadTS,
			Oldest:    ts,
			Latest:    ts,
			Inclusive: true,
		})
		if err != nil {
			return "", errors.Wrapf(err, "failed to read replies of %s in %s", threadTS, channel)
		}
		messages = replies
	}

	for _, msg := range messages {
		if msg.Timestamp == ts {
			return msg.Text, nil
		}
	}
	return "", errors.Wrapf(ErrMessageNotFound, "message %s in %s", ts, channel)
}

// PostPrompt posts an ephemeral block prompt to user
func (s *SlackChatService) PostPrompt(ctx context.Context, channel, user, threadTS, fallback string, blocks []slack.Block) error {
	options := []slack.MsgOption{
		slack.MsgOptionText(fallback, false),
		slack.MsgOptionBlocks(blocks...),
	}
	if threadTS != "" {
		options = append(options, slack.MsgOptionTS(threadTS))
	}

	if _, err := s.client.PostEphemeralContext(ctx, channel, user, options...); err != nil {
		return errors.Wrapf(err, "failed to post prompt to %s in %s", user, channel)
	}
	return nil
}

// DiscardPrompt deletes the ephemeral message behind responseURL
func (s *SlackChatService) DiscardPrompt(ctx context.Context, responseURL string) error {
	if responseURL == "" {
		return errors.New("response url is required")
	}
	if _, _, _, err := s.client.SendMessageContext(ctx, "", slack.MsgOptionDeleteOriginal(responseURL)); err != nil {
		return errors.Wrap(err, "failed to discard prompt")
	}
	return nil
}
