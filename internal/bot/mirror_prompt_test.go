package bot

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notion-fairy-bot/internal/link"
	"notion-fairy-bot/internal/service"
	"notion-fairy-bot/internal/storage"
)

func setupMirrorPrompt(t *testing.T) (*MirrorPrompt, *Reconciler, *MockChatService, *storage.MemoryConnectionStore) {
	t.Helper()
	chat := NewMockChatService()
	store := storage.NewMemoryConnectionStore()
	reconciler := NewReconciler(testLogger(), chat, store, link.NewTransformer(link.DefaultScheme))
	prompt := NewMirrorPrompt(testLogger(), chat, reconciler)
	return prompt, reconciler, chat, store
}

func acceptAction(value string) *Action {
	return &Action{ID: ActionAccept, Value: value, ResponseURL: "https://hooks.slack.test/actions/2", Channel: "C1", User: "U1"}
}

func TestMirrorPrompt_OffersInsteadOfPosting(t *testing.T) {
	_, reconciler, chat, store := setupMirrorPrompt(t)

	require.NoError(t, reconciler.HandleMessage(context.Background(), posted("100.1", "90.1", notionLink)))

	assert.Empty(t, chat.Calls("post"))
	prompts := chat.Calls("prompt")
	require.Len(t, prompts, 1)
	assert.Equal(t, "U1", prompts[0].User)
	assert.Equal(t, "90.1", prompts[0].ThreadTS)
	assert.Equal(t, "100.1;90.1", buttonValue(t, prompts[0], ActionAccept))
	assert.Equal(t, 0, store.Len())
}

func TestMirrorPrompt_EditAddingLinkOffers(t *testing.T) {
	_, reconciler, chat, _ := setupMirrorPrompt(t)

	require.NoError(t, reconciler.HandleMessage(context.Background(), changed("100.1", notionLink, "draft")))

	assert.Empty(t, chat.Calls("post"))
	assert.Len(t, chat.Calls("prompt"), 1)
}

func TestMirrorPrompt_AcceptMirrorsCurrentBody(t *testing.T) {
	prompt, _, chat, store := setupMirrorPrompt(t)
	chat.messages["100.1"] = "edited since: <https://www.notion.so/def>"

	require.NoError(t, prompt.HandleAction(context.Background(), acceptAction("100.1;")))

	assert.Len(t, chat.Calls("discard"), 1)
	fetches := chat.Calls("fetch")
	require.Len(t, fetches, 1)
	assert.Equal(t, "100.1", fetches[0].TS)

	posts := chat.Calls("post")
	require.Len(t, posts, 1)
	assert.Equal(t, "100.1", posts[0].ThreadTS)
	assert.Equal(t, "<notion://www.notion.so/def>", posts[0].Text)

	mirror, found, err := store.LookupMirror(context.Background(), "100.1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "201.000100", mirror)
}

func TestMirrorPrompt_AcceptThreadReply(t *testing.T) {
	prompt, _, chat, _ := setupMirrorPrompt(t)
	chat.messages["100.2"] = notionLink

	require.NoError(t, prompt.HandleAction(context.Background(), acceptAction("100.2;100.1")))

	fetches := chat.Calls("fetch")
	require.Len(t, fetches, 1)
	assert.Equal(t, "100.1", fetches[0].ThreadTS)

	posts := chat.Calls("post")
	require.Len(t, posts, 1)
	assert.Equal(t, "100.1", posts[0].ThreadTS)
}

func TestMirrorPrompt_AcceptTwiceKeepsOneMirror(t *testing.T) {
	prompt, _, chat, store := setupMirrorPrompt(t)
	chat.messages["100.1"] = notionLink

	require.NoError(t, prompt.HandleAction(context.Background(), acceptAction("100.1;")))
	require.NoError(t, prompt.HandleAction(context.Background(), acceptAction("100.1;")))

	assert.Len(t, chat.Calls("post"), 1)
	assert.Equal(t, 1, store.Len())
}

func TestMirrorPrompt_AcceptDeletedMessage(t *testing.T) {
	prompt, _, chat, store := setupMirrorPrompt(t)
	chat.SetError("fetch", errors.Wrap(service.ErrMessageNotFound, "fetch"))

	require.NoError(t, prompt.HandleAction(context.Background(), acceptAction("100.1;")))
	assert.Empty(t, chat.Calls("post"))
	assert.Equal(t, 0, store.Len())
}

func TestMirrorPrompt_AcceptFetchFailure(t *testing.T) {
	prompt, _, chat, _ := setupMirrorPrompt(t)
	chat.SetError("fetch", errors.New("ratelimited"))

	assert.Error(t, prompt.HandleAction(context.Background(), acceptAction("100.1;")))
}

func TestMirrorPrompt_Decline(t *testing.T) {
	prompt, _, chat, store := setupMirrorPrompt(t)

	require.NoError(t, prompt.HandleAction(context.Background(), &Action{ID: ActionDecline, ResponseURL: "https://hooks.slack.test/actions/2", Channel: "C1"}))

	assert.Len(t, chat.Calls("discard"), 1)
	assert.Empty(t, chat.Calls("fetch", "post"))
	assert.Equal(t, 0, store.Len())
}

func TestMirrorPrompt_DiscardFailureDoesNotBlockAccept(t *testing.T) {
	prompt, _, chat, _ := setupMirrorPrompt(t)
	chat.messages["100.1"] = notionLink
	chat.SetError("discard", errors.New("expired_url"))

	require.NoError(t, prompt.HandleAction(context.Background(), acceptAction("100.1;")))
	assert.Len(t, chat.Calls("post"), 1)
}

func TestMirrorPrompt_DeletionStillRemovesMirror(t *testing.T) {
	prompt, reconciler, chat, store := setupMirrorPrompt(t)
	chat.messages["100.1"] = notionLink
	ctx := context.Background()

	require.NoError(t, prompt.HandleAction(ctx, acceptAction("100.1;")))
	require.NoError(t, reconciler.HandleMessage(ctx, deleted("100.1")))

	assert.Len(t, chat.Calls("delete"), 1)
	assert.Equal(t, 0, store.Len())
}

func TestMirrorPrompt_UsesTransformerScheme(t *testing.T) {
	chat := NewMockChatService()
	reconciler := NewReconciler(testLogger(), chat, storage.NewMemoryConnectionStore(), link.NewTransformer("notion-beta"))
	NewMirrorPrompt(testLogger(), chat, reconciler)

	require.NoError(t, reconciler.HandleMessage(context.Background(), posted("100.1", "", notionLink)))

	prompts := chat.Calls("prompt")
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0].Text, "notion-beta://")
}
