package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(dispatcher Dispatcher, health HealthCheck) *Server {
	return NewServer(testLogger(), ":0", testSecret, dispatcher, health)
}

func signedPost(path, body, contentType string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header = signedHeader(body)
	req.Header.Set("Content-Type", contentType)
	return req
}

func TestServer_URLVerification(t *testing.T) {
	server := newTestServer(&fakeDispatcher{}, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, signedPost("/slack/events", challengeBody, "application/json"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P"}`, rec.Body.String())
}

func TestServer_EventIsAcknowledgedThenProcessed(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	server := newTestServer(dispatcher, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, signedPost("/slack/events", messageDelivery, "application/json"))
	require.Equal(t, http.StatusOK, rec.Code)

	server.Wait()
	events := dispatcher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "Ev1", events[0].EventID)
}

func TestServer_RejectsBadSignature(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	server := newTestServer(dispatcher, nil)

	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(messageDelivery))
	req.Header = signedHeader(`{"other":"body"}`)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	server.Wait()
	assert.Empty(t, dispatcher.Events())
}

func TestServer_MalformedEvent(t *testing.T) {
	server := newTestServer(&fakeDispatcher{}, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, signedPost("/slack/events", `{"type":`, "application/json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Actions(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	server := newTestServer(dispatcher, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, signedPost("/slack/actions", actionForm(blockActions), "application/x-www-form-urlencoded"))
	require.Equal(t, http.StatusOK, rec.Code)

	server.Wait()
	actions := dispatcher.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, "accept", actions[0].ID)
	assert.Equal(t, "C1", actions[0].Channel)
}

func TestServer_FailedUnitIsStillAcknowledged(t *testing.T) {
	dispatcher := &fakeDispatcher{eventErr: errors.New("post failed")}
	server := newTestServer(dispatcher, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, signedPost("/slack/events", messageDelivery, "application/json"))

	assert.Equal(t, http.StatusOK, rec.Code)
	server.Wait()
	assert.Len(t, dispatcher.Events(), 1)
}

func TestServer_Health(t *testing.T) {
	healthy := newTestServer(&fakeDispatcher{}, func(ctx context.Context) error { return nil })
	rec := httptest.NewRecorder()
	healthy.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	failing := newTestServer(&fakeDispatcher{}, func(ctx context.Context) error { return errors.New("store down") })
	rec = httptest.NewRecorder()
	failing.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	server := newTestServer(&fakeDispatcher{}, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServer_MethodNotAllowed(t *testing.T) {
	server := newTestServer(&fakeDispatcher{}, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slack/events", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_ShutdownWithoutListening(t *testing.T) {
	server := newTestServer(&fakeDispatcher{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}
