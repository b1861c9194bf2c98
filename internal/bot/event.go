package bot

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Message subtypes the bot reacts to
const (
	subtypeThreadBroadcast = "thread_broadcast"
	subtypeMessageChanged  = "message_changed"
	subtypeMessageDeleted  = "message_deleted"
	subtypeTombstone       = "tombstone"
	subtypeFileShare       = "file_share"
)

// MessageRef identifies a message within a channel
type MessageRef struct {
	Channel  string
	TS       string
	ThreadTS string
}

// ReplyThread is the thread root a reply to this message belongs under
func (r MessageRef) ReplyThread() string {
	if r.ThreadTS != "" {
		return r.ThreadTS
	}
	return r.TS
}

// EventKind classifies an inbound message lifecycle event
type EventKind int

const (
	KindOther EventKind = iota
	KindPosted
	KindChanged
	KindDeleted
)

func (k EventKind) String() string {
	switch k {
	case KindPosted:
		return "posted"
	case KindChanged:
		return "changed"
	case KindDeleted:
		return "deleted"
	default:
		return "other"
	}
}

// LifecycleEvent is a normalized message event
type LifecycleEvent struct {
	Kind    EventKind
	EventID string
	Origin  MessageRef
	User    string
	// Text is the body for posted events and the new body for edits
	Text         string
	PreviousText string
	Broadcast    bool
	Tombstone    bool
	Subtype      string
}

type innerMessage struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`
	User     string `json:"user"`
	Text     string `json:"text"`
	BotID    string `json:"bot_id"`
}

type messageEvent struct {
	innerMessage
	Channel         string        `json:"channel"`
	Hidden          bool          `json:"hidden"`
	DeletedTS       string        `json:"deleted_ts"`
	Message         *innerMessage `json:"message"`
	PreviousMessage *innerMessage `json:"previous_message"`
}

// ParseMessageEvent normalizes a raw "message" event payload. Payloads that
// are not message events, come from bots, or miss required fields come back
// as KindOther rather than as an error; only undecodable JSON is an error.
func ParseMessageEvent(eventID string, raw []byte) (*LifecycleEvent, error) {
	var msg messageEvent
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrap(err, "failed to decode message event")
	}

	ev := &LifecycleEvent{
		Kind:    KindOther,
		EventID: eventID,
		Subtype: msg.Subtype,
	}
	if msg.Type != "message" || msg.Channel == "" {
		return ev, nil
	}

	switch msg.Subtype {
	case "", subtypeThreadBroadcast, subtypeFileShare:
		if msg.BotID != "" || msg.TS == "" {
			return ev, nil
		}
		ev.Kind = KindPosted
		ev.Origin = MessageRef{Channel: msg.Channel, TS: msg.TS, ThreadTS: msg.ThreadTS}
		ev.User = msg.User
		ev.Text = msg.Text
		ev.Broadcast = msg.Subtype == subtypeThreadBroadcast

	case subtypeMessageChanged:
		if msg.Message == nil || msg.Message.TS == "" || msg.Message.BotID != "" {
			return ev, nil
		}
		ev.Origin = MessageRef{Channel: msg.Channel, TS: msg.Message.TS, ThreadTS: msg.Message.ThreadTS}
		ev.User = msg.Message.User
		if msg.Message.Subtype == subtypeTombstone {
			ev.Kind = KindDeleted
			ev.Tombstone = true
			return ev, nil
		}
		ev.Kind = KindChanged
		ev.Text = msg.Message.Text
		if msg.PreviousMessage != nil {
			ev.PreviousText = msg.PreviousMessage.Text
		}

	case subtypeMessageDeleted:
		if msg.DeletedTS == "" {
			return ev, nil
		}
		ev.Kind = KindDeleted
		ev.Origin = MessageRef{Channel: msg.Channel, TS: msg.DeletedTS}
		if msg.PreviousMessage != nil {
			if msg.PreviousMessage.BotID != "" {
				ev.Kind = KindOther
				return ev, nil
			}
			ev.Origin.ThreadTS = msg.PreviousMessage.ThreadTS
			ev.PreviousText = msg.PreviousMessage.Text
		}
	}

	return ev, nil
}

// Action is an interactive button press
type Action struct {
	ID          string
	Value       string
	ResponseURL string
	Channel     string
	User        string
}
