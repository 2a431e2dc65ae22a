package router_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-chat/cmd/docchat/chat"
	"doc-chat/cmd/docchat/clients/chatclient"
	"doc-chat/cmd/docchat/clients/ingestclient"
	"doc-chat/cmd/docchat/establisher"
	"doc-chat/cmd/docchat/workspace"
	"doc-chat/cmd/server/services"
)

func startServer(t *testing.T, model services.ChatModel) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(newTestHandler(t, model))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	srv := startServer(t, services.EchoModel{})
	ctx := context.Background()

	ingest := ingestclient.NewWithClient(srv.Client(), srv.URL)
	require.NoError(t, ingest.Health(ctx))

	chats := chatclient.NewWithClient(srv.Client(), srv.URL)
	ws := workspace.New(ctx, establisher.New(ingest), chats, chat.WithTimeout(5*time.Second))
	defer ws.Abandon()

	cs, err := ws.Open(ctx, establisher.Document{
		Name:        "lease.txt",
		ContentType: "text/plain",
		Data:        []byte("The tenant pays rent monthly."),
	})
	require.NoError(t, err)
	assert.Equal(t, "lease.txt", cs.DisplayName())
	assert.Empty(t, cs.History())

	msg, err := cs.Ask(ctx, "When is rent due?")
	require.NoError(t, err)
	assert.Equal(t, chat.RoleAssistant, msg.Role)
	assert.Equal(t, "[lease.txt #1] When is rent due?", msg.Content)
	assert.False(t, msg.Failed)

	msg, err = cs.Ask(ctx, "How much?")
	require.NoError(t, err)
	assert.Equal(t, "[lease.txt #2] How much?", msg.Content)
	assert.Len(t, cs.History(), 4)

	info, err := chats.GetSession(ctx, cs.ID())
	require.NoError(t, err)
	assert.Equal(t, 4, info.MessageCount)
}

func TestClientRoundTripRejectedUpload(t *testing.T) {
	srv := startServer(t, services.EchoModel{})
	ctx := context.Background()

	est := establisher.New(ingestclient.NewWithClient(srv.Client(), srv.URL))
	_, err := est.Submit(ctx, establisher.Document{
		Name:        "legacy.doc",
		ContentType: "application/msword",
		Data:        []byte{0xd0, 0xcf, 0x11, 0xe0},
	})

	var upErr *establisher.UploadError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, establisher.UploadRejected, upErr.Kind)
	assert.Equal(t, 400, upErr.StatusCode)
	assert.Equal(t, "Failed to extract text from file: unsupported document format (.doc)", upErr.Reason)
}

func TestClientRoundTripModelFailureBecomesErrorMessage(t *testing.T) {
	srv := startServer(t, failingModel{})
	ctx := context.Background()

	chats := chatclient.NewWithClient(srv.Client(), srv.URL)
	ws := workspace.New(ctx, establisher.New(ingestclient.NewWithClient(srv.Client(), srv.URL)), chats)
	defer ws.Abandon()

	cs, err := ws.Open(ctx, establisher.Document{Name: "a.txt", ContentType: "text/plain", Data: []byte("content")})
	require.NoError(t, err)

	msg, err := cs.Ask(ctx, "hello?")
	require.NoError(t, err)
	assert.True(t, msg.Failed)
	assert.Equal(t, "Error: Failed to generate a response", msg.Content)
	assert.Equal(t, chat.Idle, cs.State())

	info, err := chats.GetSession(ctx, cs.ID())
	require.NoError(t, err)
	assert.Equal(t, 0, info.MessageCount)
}
