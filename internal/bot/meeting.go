package bot

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"notion-fairy-bot/internal/monitor"
	"notion-fairy-bot/internal/service"
)

const meetingDateTimeLayout = "2006-01-02 15:04"

// Meeting is a meeting intent parsed from a message
type Meeting struct {
	Title string
	Date  string
	Time  string
}

// DateTime renders the meeting's local date and time as "YYYY-MM-DD HH:MM"
func (m Meeting) DateTime() string {
	return m.Date + " " + m.Time
}

// MeetingExtractor recognizes "[title with keyword] YYYY-MM-DD HH:MM"
type MeetingExtractor struct {
	pattern  *regexp.Regexp
	location *time.Location
}

// NewMeetingExtractor builds an extractor whose titles must contain one of
// keywords. Dates and times are read in location.
func NewMeetingExtractor(keywords []string, location *time.Location) *MeetingExtractor {
	quoted := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			quoted = append(quoted, regexp.QuoteMeta(keyword))
		}
	}
	if len(quoted) == 0 {
		quoted = append(quoted, regexp.QuoteMeta("회의"))
	}
	if location == nil {
		location = time.UTC
	}

	// Titles exclude ";" so they can travel inside prompt values
	pattern := `(?i)\[([^\[\]\n;]*(?:` + strings.Join(quoted, "|") + `)[^\[\]\n;]*)\]\s*(\d{4}-\d{2}-\d{2})\s+(\d{2}:\d{2})`
	return &MeetingExtractor{
		pattern:  regexp.MustCompile(pattern),
		location: location,
	}
}

// Extract returns the first valid meeting intent in body
func (e *MeetingExtractor) Extract(body string) (Meeting, bool) {
	for _, match := range e.pattern.FindAllStringSubmatch(body, -1) {
		meeting := Meeting{
			Title: strings.TrimSpace(match[1]),
			Date:  match[2],
			Time:  match[3],
		}
		if meeting.Title == "" {
			continue
		}
		if _, err := e.Start(meeting.DateTime()); err != nil {
			continue
		}
		return meeting, true
	}
	return Meeting{}, false
}

// Start converts a "YYYY-MM-DD HH:MM" string into an instant in the
// extractor's fixed offset
func (e *MeetingExtractor) Start(dateTime string) (time.Time, error) {
	start, err := time.ParseInLocation(meetingDateTimeLayout, dateTime, e.location)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid meeting date-time %q", dateTime)
	}
	return start, nil
}

// MeetingScheduler turns meeting intents into records on confirmation
type MeetingScheduler struct {
	logger    *slog.Logger
	chat      service.ChatService
	pages     service.PageService
	extractor *MeetingExtractor
}

// NewMeetingScheduler creates the meeting flow
func NewMeetingScheduler(logger *slog.Logger, chat service.ChatService, pages service.PageService, extractor *MeetingExtractor) *MeetingScheduler {
	return &MeetingScheduler{
		logger:    logger,
		chat:      chat,
		pages:     pages,
		extractor: extractor,
	}
}

// Name identifies the handler in logs
func (m *MeetingScheduler) Name() string {
	return "meeting"
}

// Match accepts newly posted messages carrying a meeting intent
func (m *MeetingScheduler) Match(ev *LifecycleEvent) bool {
	if ev.Kind != KindPosted || ev.User == "" {
		return false
	}
	_, ok := m.extractor.Extract(ev.Text)
	return ok
}

// HandleMessage asks the author to confirm the parsed meeting
func (m *MeetingScheduler) HandleMessage(ctx context.Context, ev *LifecycleEvent) error {
	meeting, ok := m.extractor.Extract(ev.Text)
	if !ok {
		return nil
	}

	collection, err := m.chat.ChannelName(ctx, ev.Origin.Channel)
	if err != nil {
		return errors.Wrap(err, "failed to resolve collection name")
	}

	proposal := meetingProposal{
		Collection: collection,
		Title:      meeting.Title,
		DateTime:   meeting.DateTime(),
		OriginTS:   ev.Origin.TS,
		ThreadTS:   ev.Origin.ThreadTS,
	}
	err = m.chat.PostPrompt(ctx, ev.Origin.Channel, ev.User, ev.Origin.ThreadTS, meetingPromptText(collection), meetingPromptBlocks(proposal))
	if err != nil {
		return errors.Wrap(err, "failed to post meeting prompt")
	}

	m.logger.Info("Meeting proposed",
		"channel", ev.Origin.Channel,
		"origin_ts", ev.Origin.TS,
		"collection", collection,
		"title", meeting.Title,
		"date_time", proposal.DateTime)
	return nil
}

// Actions lists the action ids this handler answers
func (m *MeetingScheduler) Actions() []string {
	return []string{ActionConfirmMeeting, ActionCancelMeeting}
}

// HandleAction discards the prompt and, on confirmation, creates the record
// and replies under the origin message
func (m *MeetingScheduler) HandleAction(ctx context.Context, action *Action) error {
	if err := m.chat.DiscardPrompt(ctx, action.ResponseURL); err != nil {
		m.logger.Warn("Failed to discard meeting prompt", "error", err)
	}

	if action.ID != ActionConfirmMeeting {
		m.logger.Debug("Meeting cancelled",
			"channel", action.Channel,
			"user", action.User)
		return nil
	}

	proposal, err := decodeMeetingProposal(action.Value)
	if err != nil {
		m.logger.Warn("Ignoring malformed meeting proposal", "value", action.Value, "error", err)
		return nil
	}
	origin := proposal.origin(action.Channel)

	url, err := m.createRecord(ctx, proposal)
	monitor.MeetingRecordsTotal.WithLabelValues(meetingResult(err)).Inc()
	if err != nil {
		m.logger.Warn("Meeting record not created",
			"channel", origin.Channel,
			"origin_ts", origin.TS,
			"collection", proposal.Collection,
			"error", err)

		reason := "Notion 요청이 실패했습니다"
		if errors.Is(err, service.ErrCollectionNotFound) {
			reason = "'#" + proposal.Collection + "' 데이터베이스를 찾을 수 없습니다"
		}
		if _, postErr := m.chat.PostMessage(ctx, origin.Channel, origin.ReplyThread(), meetingFailedText(proposal, reason)); postErr != nil {
			return errors.Wrap(postErr, "failed to post meeting failure notice")
		}
		return nil
	}

	if _, err := m.chat.PostMessage(ctx, origin.Channel, origin.ReplyThread(), meetingCreatedText(proposal, url)); err != nil {
		return errors.Wrap(err, "failed to post meeting confirmation")
	}

	m.logger.Info("Meeting record created",
		"channel", origin.Channel,
		"origin_ts", origin.TS,
		"collection", proposal.Collection,
		"url", url)
	return nil
}

func (m *MeetingScheduler) createRecord(ctx context.Context, proposal meetingProposal) (string, error) {
	start, err := m.extractor.Start(proposal.DateTime)
	if err != nil {
		return "", err
	}

	collectionID, err := m.pages.FindCollection(ctx, proposal.Collection)
	if err != nil {
		return "", err
	}

	return m.pages.CreateRecord(ctx, collectionID, proposal.Title, start)
}

func meetingResult(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, service.ErrCollectionNotFound):
		return "no_collection"
	default:
		return "error"
	}
}
