package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-chat/cmd/docchat/httpclient"
)

type reply struct {
	text string
	err  error
}

// gatedReplier 는 release 로 응답을 내보낼 때까지 요청을 붙잡아 둔다.
type gatedReplier struct {
	release  chan reply
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32

	mu       sync.Mutex
	sessions []string
	messages []string
}

func newGatedReplier() *gatedReplier {
	return &gatedReplier{release: make(chan reply)}
}

func (g *gatedReplier) Chat(ctx context.Context, sessionID, message string) (string, error) {
	g.calls.Add(1)
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		m := g.maxSeen.Load()
		if n <= m || g.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	g.mu.Lock()
	g.sessions = append(g.sessions, sessionID)
	g.messages = append(g.messages, message)
	g.mu.Unlock()

	select {
	case r := <-g.release:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type funcReplier func(ctx context.Context, sessionID, message string) (string, error)

func (f funcReplier) Chat(ctx context.Context, sessionID, message string) (string, error) {
	return f(ctx, sessionID, message)
}

func staticReplier(text string, err error) Replier {
	return funcReplier(func(context.Context, string, string) (string, error) {
		return text, err
	})
}

func waitIdle(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func contents(history []Message) []string {
	out := make([]string, 0, len(history))
	for _, m := range history {
		out = append(out, string(m.Role)+":"+m.Content)
	}
	return out
}

func TestNewSessionStartsEmptyAndIdle(t *testing.T) {
	s := NewSession(context.Background(), "s1", "doc.pdf", staticReplier("x", nil))

	assert.Equal(t, "s1", s.ID())
	assert.Equal(t, "doc.pdf", s.DisplayName())
	assert.Empty(t, s.History())
	assert.False(t, s.Pending())
	assert.Equal(t, Idle, s.State())
}

func TestSendSuccessAppendsUserThenAssistant(t *testing.T) {
	s := NewSession(context.Background(), "s1", "doc.pdf", staticReplier("Section 2 covers...", nil))

	require.NoError(t, s.Send("Summarize section 2"))
	waitIdle(t, s)

	assert.Equal(t, []string{
		"user:Summarize section 2",
		"assistant:Section 2 covers...",
	}, contents(s.History()))
	assert.False(t, s.Pending())
}

func TestUserMessageVisibleBeforeReply(t *testing.T) {
	g := newGatedReplier()
	s := NewSession(context.Background(), "s1", "doc.pdf", g)

	require.NoError(t, s.Send("  hello  "))

	assert.True(t, s.Pending())
	assert.Equal(t, Awaiting, s.State())
	assert.Equal(t, []string{"user:hello"}, contents(s.History()))

	g.release <- reply{text: "hi there"}
	waitIdle(t, s)

	history := s.History()
	assert.Equal(t, []string{"user:hello", "assistant:hi there"}, contents(history))
	assert.False(t, history[1].Failed)
	assert.Equal(t, []string{"hello"}, g.messages)
}

func TestSendWhileAwaitingIsRejected(t *testing.T) {
	g := newGatedReplier()
	s := NewSession(context.Background(), "s1", "doc.pdf", g)

	require.NoError(t, s.Send("first"))
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, s.Send(fmt.Sprintf("extra %d", i)), ErrBusy)
	}
	assert.Len(t, s.History(), 1)

	g.release <- reply{text: "one"}
	waitIdle(t, s)

	require.NoError(t, s.Send("second"))
	g.release <- reply{text: "two"}
	waitIdle(t, s)

	assert.Equal(t, []string{
		"user:first", "assistant:one",
		"user:second", "assistant:two",
	}, contents(s.History()))
	assert.EqualValues(t, 2, g.calls.Load())
	assert.EqualValues(t, 1, g.maxSeen.Load())
}

func TestConcurrentSendsKeepOneRequestInFlight(t *testing.T) {
	g := newGatedReplier()
	s := NewSession(context.Background(), "s1", "doc.pdf", g)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if s.Send(fmt.Sprintf("q%d", i)) == nil {
				accepted.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, accepted.Load())
	g.release <- reply{text: "answer"}
	waitIdle(t, s)

	assert.Len(t, s.History(), 2)
	assert.EqualValues(t, 1, g.maxSeen.Load())
}

func TestEmptyOrWhitespaceMessageIsNoop(t *testing.T) {
	g := newGatedReplier()
	s := NewSession(context.Background(), "s1", "doc.pdf", g)

	for _, text := range []string{"", "   ", "\n\t "} {
		assert.ErrorIs(t, s.Send(text), ErrEmptyMessage)
	}
	assert.Empty(t, s.History())
	assert.False(t, s.Pending())
	assert.Zero(t, g.calls.Load())
}

func TestNetworkFailureAppendsFixedPhrase(t *testing.T) {
	var gotErr *ChatError
	s := NewSession(context.Background(), "s1", "doc.pdf",
		staticReplier("", errors.New("dial tcp: connection refused")),
		WithCallbacks(Callbacks{OnError: func(e *ChatError) { gotErr = e }}),
	)

	require.NoError(t, s.Send("What next?"))
	waitIdle(t, s)

	assert.Equal(t, []string{
		"user:What next?",
		"assistant:" + NetworkErrorMessage,
	}, contents(s.History()))
	assert.False(t, s.Pending())
	assert.True(t, s.History()[1].Failed)
	require.NotNil(t, gotErr)
	assert.Equal(t, ChatNetwork, gotErr.Kind)
}

func TestRejectedReplyUsesBackendReason(t *testing.T) {
	testCases := []struct {
		name        string
		err         error
		wantContent string
	}{
		{
			name:        "backend reason",
			err:         &httpclient.HTTPError{StatusCode: http.StatusNotFound, Reason: "Session not found: s1"},
			wantContent: "Error: Session not found: s1",
		},
		{
			name:        "no reason",
			err:         &httpclient.HTTPError{StatusCode: http.StatusInternalServerError},
			wantContent: "Error: Failed to get response",
		},
		{
			name:        "wrapped",
			err:         fmt.Errorf("chat: %w", &httpclient.HTTPError{StatusCode: http.StatusTooManyRequests, Reason: "Chat quota exhausted"}),
			wantContent: "Error: Chat quota exhausted",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			s := NewSession(context.Background(), "s1", "doc.pdf", staticReplier("", testCase.err))

			require.NoError(t, s.Send("hi"))
			waitIdle(t, s)

			history := s.History()
			require.Len(t, history, 2)
			assert.Equal(t, RoleAssistant, history[1].Role)
			assert.Equal(t, testCase.wantContent, history[1].Content)
		})
	}
}

func TestEmptyReplyIsTreatedAsFailure(t *testing.T) {
	s := NewSession(context.Background(), "s1", "doc.pdf", staticReplier("", nil))

	msg, err := s.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Error: "+DefaultFailureReason, msg.Content)
}

func TestTimeoutResolvesToNetworkError(t *testing.T) {
	g := newGatedReplier()
	s := NewSession(context.Background(), "s1", "doc.pdf", g, WithTimeout(20*time.Millisecond))

	msg, err := s.Ask(context.Background(), "slow question")
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Equal(t, NetworkErrorMessage, msg.Content)
	assert.False(t, s.Pending())
}

func TestCloseDropsLateReply(t *testing.T) {
	released := make(chan struct{})
	replier := funcReplier(func(ctx context.Context, _, _ string) (string, error) {
		<-released
		return "late reply", nil
	})
	s := NewSession(context.Background(), "s1", "doc.pdf", replier)

	require.NoError(t, s.Send("question"))
	s.Close()
	close(released)
	waitIdle(t, s)

	assert.Equal(t, []string{"user:question"}, contents(s.History()))
	assert.True(t, s.Closed())
	assert.ErrorIs(t, s.Send("again"), ErrClosed)
}

func TestCloseDropsLateReplyButReportsIdle(t *testing.T) {
	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	released := make(chan struct{})
	replier := funcReplier(func(ctx context.Context, _, _ string) (string, error) {
		<-released
		return "late reply", nil
	})
	s := NewSession(context.Background(), "s1", "doc.pdf", replier,
		WithCallbacks(Callbacks{
			OnMessage:     func(m Message) { record("message:" + string(m.Role)) },
			OnStateChange: func(st State) { record("state:" + st.String()) },
		}),
	)

	require.NoError(t, s.Send("question"))
	s.Close()
	close(released)
	waitIdle(t, s)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"message:user",
		"state:awaiting",
		"state:idle",
	}, events)
	assert.Equal(t, Idle, s.State())
}

func TestCloseCancelsInFlightRequest(t *testing.T) {
	g := newGatedReplier()
	s := NewSession(context.Background(), "s1", "doc.pdf", g)

	require.NoError(t, s.Send("question"))
	s.Close()
	waitIdle(t, s)

	assert.Len(t, s.History(), 1)
	assert.False(t, s.Pending())
}

func TestParentCancellationClosesSession(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	g := newGatedReplier()
	s := NewSession(parent, "s1", "doc.pdf", g)

	require.NoError(t, s.Send("question"))
	cancel()
	waitIdle(t, s)

	assert.Len(t, s.History(), 1)
	assert.True(t, s.Closed())
}

func TestCallbacksFireInOrder(t *testing.T) {
	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	s := NewSession(context.Background(), "s1", "doc.pdf", staticReplier("answer", nil),
		WithCallbacks(Callbacks{
			OnMessage:     func(m Message) { record("message:" + string(m.Role)) },
			OnStateChange: func(st State) { record("state:" + st.String()) },
		}),
	)

	_, err := s.Ask(context.Background(), "question")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"message:user",
		"state:awaiting",
		"message:assistant",
		"state:idle",
	}, events)
}

func TestRequestsAreTaggedWithSessionID(t *testing.T) {
	g := newGatedReplier()
	s := NewSession(context.Background(), "s-42", "doc.pdf", g)

	require.NoError(t, s.Send("hi"))
	g.release <- reply{text: "hello"}
	waitIdle(t, s)

	assert.Equal(t, []string{"s-42"}, g.sessions)
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := NewSession(context.Background(), "s1", "doc.pdf", staticReplier("answer", nil))
	_, err := s.Ask(context.Background(), "question")
	require.NoError(t, err)

	h := s.History()
	h[0].Content = "mutated"

	assert.Equal(t, "question", s.History()[0].Content)
}
