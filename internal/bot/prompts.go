package bot

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/slack-go/slack"
)

// Interactive action ids
const (
	ActionAccept         = "accept"
	ActionDecline        = "decline"
	ActionConfirmMeeting = "confirm-meeting"
	ActionCancelMeeting  = "cancel-meeting"
)

const (
	mirrorPromptBlockID  = "notion_fairy_dialog"
	meetingPromptBlockID = "meeting_schedule_block"

	// valueSeparator never appears in timestamps, channel names or meeting titles
	valueSeparator = ";"
)

// mirrorOffer is the state carried by the accept button
type mirrorOffer struct {
	OriginTS string
	ThreadTS string
}

func (o mirrorOffer) encode() string {
	return o.OriginTS + valueSeparator + o.ThreadTS
}

func decodeMirrorOffer(value string) (mirrorOffer, error) {
	parts := strings.Split(value, valueSeparator)
	if len(parts) != 2 || parts[0] == "" {
		return mirrorOffer{}, errors.Errorf("malformed mirror offer %q", value)
	}
	return mirrorOffer{OriginTS: parts[0], ThreadTS: parts[1]}, nil
}

// meetingProposal is the state carried by the confirm button
type meetingProposal struct {
	Collection string
	Title      string
	DateTime   string
	OriginTS   string
	ThreadTS   string
}

func (p meetingProposal) encode() string {
	return strings.Join([]string{p.Collection, p.Title, p.DateTime, p.OriginTS, p.ThreadTS}, valueSeparator)
}

func decodeMeetingProposal(value string) (meetingProposal, error) {
	parts := strings.Split(value, valueSeparator)
	if len(parts) != 5 || parts[0] == "" || parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return meetingProposal{}, errors.Errorf("malformed meeting proposal %q", value)
	}
	return meetingProposal{
		Collection: parts[0],
		Title:      parts[1],
		DateTime:   parts[2],
		OriginTS:   parts[3],
		ThreadTS:   parts[4],
	}, nil
}

// origin rebuilds the message the proposal was made for
func (p meetingProposal) origin(channel string) MessageRef {
	return MessageRef{Channel: channel, TS: p.OriginTS, ThreadTS: p.ThreadTS}
}

func mirrorPromptText(scheme string) string {
	return fmt.Sprintf("Web URL(https://)을 사용하셨네요! App URL(%s://)도 필요하신가요?", scheme)
}

// mirrorPromptBlocks builds the accept/decline prompt for a mirror offer
func mirrorPromptBlocks(scheme string, offer mirrorOffer) []slack.Block {
	text := fmt.Sprintf("Web URL(*https://*)을 사용하셨네요! App URL(*%s://*)도 필요하신가요?", scheme)

	accept := slack.NewButtonBlockElement(ActionAccept, offer.encode(),
		slack.NewTextBlockObject(slack.PlainTextType, "네", false, false)).
		WithStyle(slack.StylePrimary)
	decline := slack.NewButtonBlockElement(ActionDecline, "",
		slack.NewTextBlockObject(slack.PlainTextType, "아니요", false, false)).
		WithStyle(slack.StyleDanger)

	return []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
		slack.NewActionBlock(mirrorPromptBlockID, accept, decline),
	}
}

func meetingPromptText(collection string) string {
	return fmt.Sprintf("Notion 데이터베이스 '#%s'에 회의를 등록합니다.", collection)
}

// meetingPromptBlocks builds the confirm/cancel prompt for a meeting
func meetingPromptBlocks(proposal meetingProposal) []slack.Block {
	note := fmt.Sprintf("Notion 데이터베이스 `#%s`에 회의를 등록합니다.", proposal.Collection)
	summary := fmt.Sprintf("[%s]\n%s", proposal.Title, proposal.DateTime)

	confirm := slack.NewButtonBlockElement(ActionConfirmMeeting, proposal.encode(),
		slack.NewTextBlockObject(slack.PlainTextType, "등록", false, false)).
		WithStyle(slack.StylePrimary)
	cancel := slack.NewButtonBlockElement(ActionCancelMeeting, "",
		slack.NewTextBlockObject(slack.PlainTextType, "취소", false, false)).
		WithStyle(slack.StyleDanger)

	return []slack.Block{
		slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, note, false, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, summary, false, false), nil, nil),
		slack.NewActionBlock(meetingPromptBlockID, confirm, cancel),
	}
}

func meetingCreatedText(proposal meetingProposal, url string) string {
	return fmt.Sprintf("회의가 등록되었습니다: [%s] %s\n%s", proposal.Title, proposal.DateTime, url)
}

func meetingFailedText(proposal meetingProposal, reason string) string {
	return fmt.Sprintf("회의를 등록하지 못했습니다: [%s] %s (%s)", proposal.Title, proposal.DateTime, reason)
}
