package bot

import (
	"encoding/json"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buttonValue digs the value of button actionID out of a recorded prompt
func buttonValue(t *testing.T, call chatCall, actionID string) string {
	t.Helper()
	for _, block := range call.Blocks {
		actions, ok := block.(*slack.ActionBlock)
		if !ok {
			continue
		}
		for _, element := range actions.Elements.ElementSet {
			if button, ok := element.(*slack.ButtonBlockElement); ok && button.ActionID == actionID {
				return button.Value
			}
		}
	}
	t.Fatalf("no %s button in prompt", actionID)
	return ""
}

func TestMirrorOffer_RoundTrip(t *testing.T) {
	for _, offer := range []mirrorOffer{
		{OriginTS: "100.000001"},
		{OriginTS: "100.000002", ThreadTS: "90.000001"},
	} {
		decoded, err := decodeMirrorOffer(offer.encode())
		require.NoError(t, err)
		assert.Equal(t, offer, decoded)
	}
}

func TestDecodeMirrorOffer_Malformed(t *testing.T) {
	for _, value := range []string{"", "100", ";90", "1;2;3"} {
		_, err := decodeMirrorOffer(value)
		assert.Error(t, err, value)
	}
}

func TestMeetingProposal_Encoding(t *testing.T) {
	proposal := meetingProposal{
		Collection: "weekly-sync",
		Title:      "Weekly 회의",
		DateTime:   "2024-01-10 14:00",
		OriginTS:   "100.1",
		ThreadTS:   "90.1",
	}
	assert.Equal(t, "weekly-sync;Weekly 회의;2024-01-10 14:00;100.1;90.1", proposal.encode())

	decoded, err := decodeMeetingProposal(proposal.encode())
	require.NoError(t, err)
	assert.Equal(t, proposal, decoded)
	assert.Equal(t, MessageRef{Channel: "C1", TS: "100.1", ThreadTS: "90.1"}, decoded.origin("C1"))
}

func TestDecodeMeetingProposal_Malformed(t *testing.T) {
	for _, value := range []string{"", "a;b;c;d", ";t;2024-01-10 14:00;100.1;", "c;t;2024-01-10 14:00;;", "a;b;c;d;e;f"} {
		_, err := decodeMeetingProposal(value)
		assert.Error(t, err, value)
	}
}

func TestMirrorPromptBlocks(t *testing.T) {
	blocks := mirrorPromptBlocks("notion", mirrorOffer{OriginTS: "100.1", ThreadTS: "90.1"})
	require.Len(t, blocks, 2)

	call := chatCall{Blocks: blocks}
	assert.Equal(t, "100.1;90.1", buttonValue(t, call, ActionAccept))
	assert.Equal(t, "", buttonValue(t, call, ActionDecline))

	raw, err := json.Marshal(slack.Blocks{BlockSet: blocks})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"block_id":"notion_fairy_dialog"`)
	assert.Contains(t, string(raw), `"style":"primary"`)
	assert.Contains(t, string(raw), `"style":"danger"`)
}

func TestMeetingPromptBlocks(t *testing.T) {
	proposal := meetingProposal{Collection: "weekly-sync", Title: "Weekly 회의", DateTime: "2024-01-10 14:00", OriginTS: "100.1"}
	blocks := meetingPromptBlocks(proposal)
	require.Len(t, blocks, 3)

	assert.Equal(t, proposal.encode(), buttonValue(t, chatCall{Blocks: blocks}, ActionConfirmMeeting))

	raw, err := json.Marshal(slack.Blocks{BlockSet: blocks})
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[Weekly 회의]\\n2024-01-10 14:00")
	assert.Contains(t, string(raw), "`#weekly-sync`")
}
