package bot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/slack-go/slack"

	"notion-fairy-bot/internal/service"
	"notion-fairy-bot/internal/storage"
)

// chatCall records one outbound chat operation
type chatCall struct {
	Op       string
	Channel  string
	TS       string
	ThreadTS string
	Text     string
	User     string
	Blocks   []slack.Block
}

// MockChatService implements service.ChatService for testing
type MockChatService struct {
	mu       sync.Mutex
	calls    []chatCall
	nextTS   int
	errors   map[string]error
	channels map[string]string
	messages map[string]string
}

func NewMockChatService() *MockChatService {
	return &MockChatService{
		nextTS:   200,
		errors:   make(map[string]error),
		channels: make(map[string]string),
		messages: make(map[string]string),
	}
}

func (m *MockChatService) record(call chatCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.errors[call.Op]
}

func (m *MockChatService) PostMessage(ctx context.Context, channel, threadTS, text string) (string, error) {
	if err := m.record(chatCall{Op: "post", Channel: channel, ThreadTS: threadTS, Text: text}); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTS++
	return fmt.Sprintf("%d.000100", m.nextTS), nil
}

func (m *MockChatService) UpdateMessage(ctx context.Context, channel, ts, text string) error {
	return m.record(chatCall{Op: "update", Channel: channel, TS: ts, Text: text})
}

func (m *MockChatService) DeleteMessage(ctx context.Context, channel, ts string) error {
	return m.record(chatCall{Op: "delete", Channel: channel, TS: ts})
}

func (m *MockChatService) ChannelName(ctx context.Context, channel string) (string, error) {
	if err := m.record(chatCall{Op: "channel", Channel: channel}); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if name, ok := m.channels[channel]; ok {
		return name, nil
	}
	return "general", nil
}

func (m *MockChatService) FetchMessage(ctx context.Context, channel, ts, threadTS string) (string, error) {
	if err := m.record(chatCall{Op: "fetch", Channel: channel, TS: ts, ThreadTS: threadTS}); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[ts], nil
}

func (m *MockChatService) PostPrompt(ctx context.Context, channel, user, threadTS, fallback string, blocks []slack.Block) error {
	return m.record(chatCall{Op: "prompt", Channel: channel, User: user, ThreadTS: threadTS, Text: fallback, Blocks: blocks})
}

func (m *MockChatService) DiscardPrompt(ctx context.Context, responseURL string) error {
	return m.record(chatCall{Op: "discard", Text: responseURL})
}

// SetError makes every later call of op fail with err
func (m *MockChatService) SetError(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[op] = err
}

// Calls returns the recorded calls, optionally filtered by op
func (m *MockChatService) Calls(ops ...string) []chatCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(ops) == 0 {
		return append([]chatCall(nil), m.calls...)
	}
	var filtered []chatCall
	for _, call := range m.calls {
		for _, op := range ops {
			if call.Op == op {
				filtered = append(filtered, call)
			}
		}
	}
	return filtered
}

// Reset forgets recorded calls
func (m *MockChatService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// MockPageService implements service.PageService for testing
type MockPageService struct {
	mu          sync.Mutex
	collections map[string]string
	findErr     error
	createErr   error
	created     []createdRecord
}

type createdRecord struct {
	CollectionID string
	Title        string
	Start        time.Time
}

func NewMockPageService() *MockPageService {
	return &MockPageService{collections: make(map[string]string)}
}

func (m *MockPageService) FindCollection(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return "", m.findErr
	}
	id, ok := m.collections[name]
	if !ok {
		return "", errors.Wrapf(service.ErrCollectionNotFound, "no collection named %q", name)
	}
	return id, nil
}

func (m *MockPageService) CreateRecord(ctx context.Context, collectionID, title string, start time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	m.created = append(m.created, createdRecord{CollectionID: collectionID, Title: title, Start: start})
	return "https://www.notion.so/" + collectionID + "-record", nil
}

func (m *MockPageService) Created() []createdRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]createdRecord(nil), m.created...)
}

// faultyStore wraps a store and fails selected operations
type faultyStore struct {
	storage.ConnectionStore
	lookupErr error
	createErr error
	deleteErr error
}

func (f *faultyStore) LookupMirror(ctx context.Context, originTS string) (string, bool, error) {
	if f.lookupErr != nil {
		return "", false, f.lookupErr
	}
	return f.ConnectionStore.LookupMirror(ctx, originTS)
}

func (f *faultyStore) CreateConnection(ctx context.Context, originTS, mirrorTS string) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.ConnectionStore.CreateConnection(ctx, originTS, mirrorTS)
}

func (f *faultyStore) DeleteConnection(ctx context.Context, originTS string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.ConnectionStore.DeleteConnection(ctx, originTS)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
