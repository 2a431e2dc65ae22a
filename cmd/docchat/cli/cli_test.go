package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-chat/cmd/docchat/clients/chatclient"
	"doc-chat/cmd/docchat/clients/ingestclient"
	"doc-chat/cmd/docchat/establisher"
	"doc-chat/cmd/docchat/workspace"
	"doc-chat/dto"
)

// fakeBackend 는 업로드/채팅/세션 조회 엔드포인트를 흉내낸다.
type fakeBackend struct {
	mu        sync.Mutex
	next      int
	names     map[string]string
	counts    map[string]int
	chatError *dto.ErrorResponse
	chatCode  int
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	b := &fakeBackend{names: map[string]string{}, counts: map[string]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "File name is required"})
			return
		}
		b.mu.Lock()
		b.next++
		id := fmt.Sprintf("s%d", b.next)
		b.names[id] = header.Filename
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, dto.UploadResponse{
			Message:   "File processed successfully",
			SessionID: id,
			FileName:  header.Filename,
		})
	})
	mux.HandleFunc("POST /api/chat/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var req dto.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Message is required"})
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.chatError != nil {
			writeJSON(w, b.chatCode, b.chatError)
			return
		}
		b.counts[id] += 2
		writeJSON(w, http.StatusOK, dto.ChatResponse{Response: "answer: " + req.Message, SessionID: id})
	})
	mux.HandleFunc("GET /api/chat/session/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		b.mu.Lock()
		defer b.mu.Unlock()
		name, ok := b.names[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Session not found: " + id})
			return
		}
		writeJSON(w, http.StatusOK, dto.SessionResponse{SessionID: id, FileName: name, MessageCount: b.counts[id]})
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "ok"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// scriptedReader 는 미리 정한 줄을 차례로 돌려주고 끝나면 io.EOF 를 반환한다.
type scriptedReader struct {
	lines []string
}

func (s *scriptedReader) Readline() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestApp(t *testing.T, srv *httptest.Server, out io.Writer) *app {
	t.Helper()
	chats := chatclient.NewWithClient(srv.Client(), srv.URL)
	ingest := ingestclient.NewWithClient(srv.Client(), srv.URL)
	ws := workspace.New(context.Background(), establisher.New(ingest), chats)
	t.Cleanup(ws.Abandon)
	return &app{ws: ws, sessions: chats, out: newRenderer(out, true)}
}

func TestReplSendsQuestionsAndPrintsReplies(t *testing.T) {
	_, srv := newFakeBackend(t)
	var out bytes.Buffer
	a := newTestApp(t, srv, &out)
	path := writeDoc(t, t.TempDir(), "notes.txt", "meeting notes")

	_, err := a.open(context.Background(), []string{path})
	require.NoError(t, err)

	in := &scriptedReader{lines: []string{"What is this?", "   ", "/history", "/quit", "never read"}}
	require.NoError(t, a.repl(context.Background(), in))

	text := out.String()
	assert.Contains(t, text, "Ready: notes.txt")
	assert.Contains(t, text, "answer: What is this?")
	assert.Contains(t, text, "you> What is this?")
	assert.Contains(t, text, "Goodbye!")
	assert.Equal(t, []string{"never read"}, in.lines)

	history := a.ws.Current().History()
	require.Len(t, history, 2)
	assert.Equal(t, "answer: What is this?", history[1].Content)
}

func TestReplNewReplacesDocument(t *testing.T) {
	_, srv := newFakeBackend(t)
	var out bytes.Buffer
	a := newTestApp(t, srv, &out)
	dir := t.TempDir()
	first := writeDoc(t, dir, "first.txt", "one")
	second := writeDoc(t, dir, "second.txt", "two")

	s1, err := a.open(context.Background(), []string{first})
	require.NoError(t, err)

	in := &scriptedReader{lines: []string{"hello", "/new " + second, "/info"}}
	require.NoError(t, a.repl(context.Background(), in))

	assert.True(t, s1.Closed())
	current := a.ws.Current()
	require.NotNil(t, current)
	assert.Equal(t, "s2", current.ID())
	assert.Empty(t, current.History())

	text := out.String()
	assert.Contains(t, text, "Ready: second.txt")
	assert.Contains(t, text, "Document:  second.txt")
	assert.Contains(t, text, "Messages:  0")
}

func TestReplShowsBackendRejection(t *testing.T) {
	b, srv := newFakeBackend(t)
	b.chatCode = http.StatusNotFound
	b.chatError = &dto.ErrorResponse{Error: "Session not found: s1"}

	var out bytes.Buffer
	a := newTestApp(t, srv, &out)
	path := writeDoc(t, t.TempDir(), "doc.txt", "x")
	_, err := a.open(context.Background(), []string{path})
	require.NoError(t, err)

	require.NoError(t, a.repl(context.Background(), &scriptedReader{lines: []string{"anything"}}))

	assert.Contains(t, out.String(), "Error: Session not found: s1")
	history := a.ws.Current().History()
	require.Len(t, history, 2)
	assert.True(t, history[1].Failed)
}

func TestReplCommandsWithoutDocument(t *testing.T) {
	_, srv := newFakeBackend(t)
	var out bytes.Buffer
	a := newTestApp(t, srv, &out)

	in := &scriptedReader{lines: []string{"question", "/history", "/info", "/new", "/bogus", "/help"}}
	require.NoError(t, a.repl(context.Background(), in))

	text := out.String()
	assert.Contains(t, text, "No document is open. Use /new <file> to upload one.")
	assert.Contains(t, text, "Usage: /new <file>")
	assert.Contains(t, text, "Unknown command: /bogus")
	assert.Contains(t, text, "Available commands:")
	assert.Contains(t, text, "Supported files: .pdf, .docx, .doc, .txt")
}

func TestReplNewWithUnsupportedFileKeepsNoSession(t *testing.T) {
	_, srv := newFakeBackend(t)
	var out bytes.Buffer
	a := newTestApp(t, srv, &out)
	path := writeDoc(t, t.TempDir(), "image.png", "png")

	require.NoError(t, a.repl(context.Background(), &scriptedReader{lines: []string{"/new " + path}}))

	assert.Nil(t, a.ws.Current())
	assert.Contains(t, out.String(), establisher.ErrUnsupportedType.Error())
}

func TestAskCommandPrintsReply(t *testing.T) {
	_, srv := newFakeBackend(t)
	path := writeDoc(t, t.TempDir(), "report.txt", "quarterly report")

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"ask", path, "what", "changed?", "--server", srv.URL, "--plain"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Ready: report.txt")
	assert.Contains(t, out.String(), "answer: what changed?")
}

func TestAskCommandFailsOnRejectedTurn(t *testing.T) {
	b, srv := newFakeBackend(t)
	b.chatCode = http.StatusBadGateway
	b.chatError = &dto.ErrorResponse{Error: "Failed to generate a response"}
	path := writeDoc(t, t.TempDir(), "report.txt", "quarterly report")

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"ask", path, "why?", "--server", srv.URL, "--plain"})

	assert.ErrorIs(t, cmd.Execute(), errTurnFailed)
	assert.Contains(t, out.String(), "Error: Failed to generate a response")
}

func TestChatCommandRejectsMultipleFiles(t *testing.T) {
	_, srv := newFakeBackend(t)
	dir := t.TempDir()
	a := writeDoc(t, dir, "a.txt", "a")
	b := writeDoc(t, dir, "b.txt", "b")

	cmd := NewRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"chat", a, b, "--server", srv.URL, "--plain"})

	assert.ErrorIs(t, cmd.Execute(), establisher.ErrTooManyDocuments)
}

func TestPingCommand(t *testing.T) {
	_, srv := newFakeBackend(t)

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"ping", "--server", srv.URL, "--plain"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Server "+srv.URL+" is up")
}

func TestPingCommandUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cmd := NewRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"ping", "--server", url})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not reachable")
}
