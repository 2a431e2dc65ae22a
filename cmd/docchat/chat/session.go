// Package chat 는 문서 하나에 묶인 대화 상태(히스토리, 대기 여부)와
// 추론 백엔드와의 요청/응답 교환을 관리한다.
//
// 세션은 Idle 과 Awaiting 두 상태만 가진다. Send 는 Idle 에서만 받아들여지고,
// 사용자 메시지를 즉시 히스토리에 추가한 뒤 백그라운드에서 요청을 보낸다.
// 요청이 어떤 식으로 끝나든 정확히 하나의 assistant 메시지가 추가되고 Idle 로 돌아온다.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"doc-chat/cmd/internal/logger"
	"doc-chat/cmd/internal/trace"
)

const defaultTimeout = 2 * time.Minute

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a reply is still pending")
	ErrClosed       = errors.New("chat session is closed")
)

type State int

const (
	Idle State = iota
	Awaiting
)

func (s State) String() string {
	if s == Awaiting {
		return "awaiting"
	}
	return "idle"
}

// Replier 는 추론 백엔드 호출을 추상화한다. chatclient.Client 가 구현한다.
type Replier interface {
	Chat(ctx context.Context, sessionID, message string) (string, error)
}

// Callbacks 는 세션 이벤트 콜백이다. 모두 선택 사항이며 nil 은 무시된다.
// 콜백은 세션 락 밖에서 호출되므로 콜백 안에서 History() 등을 불러도 된다.
type Callbacks struct {
	// OnMessage 는 히스토리에 메시지가 추가될 때마다 호출된다.
	OnMessage func(Message)

	// OnStateChange 는 Idle <-> Awaiting 전환 시 호출된다.
	// 닫힌 세션에서 늦은 응답이 버려질 때도 Idle 이 한 번 전달된다.
	OnStateChange func(State)

	// OnError 는 요청이 실패해 오류 메시지로 대체될 때 호출된다.
	OnError func(*ChatError)
}

type Option func(*Session)

// WithTimeout 은 한 턴의 최대 대기 시간을 정한다. 초과하면 네트워크 오류로 처리된다.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithCallbacks(cb Callbacks) Option {
	return func(s *Session) {
		s.callbacks = cb
	}
}

// Session 은 문서 하나에 대한 대화다. 동시 사용에 안전하다.
type Session struct {
	id          string
	displayName string
	replier     Replier
	timeout     time.Duration
	callbacks   Callbacks

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	history []Message
	pending bool
	closed  bool
	done    chan struct{}
}

// NewSession 은 establisher 가 발급한 세션 ID/표시 이름으로 빈 대화를 만든다.
// parent 가 취소되면 세션도 닫힌 것과 같이 진행 중인 응답을 버린다.
func NewSession(parent context.Context, id, displayName string, replier Replier, opts ...Option) *Session {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:          id,
		displayName: displayName,
		replier:     replier,
		timeout:     defaultTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string          { return s.id }
func (s *Session) DisplayName() string { return s.displayName }

// Send 는 text 를 앞뒤 공백 제거 후 전송한다. 반환 시점에 사용자 메시지는 이미
// 히스토리에 있고 세션은 Awaiting 상태다. 응답은 백그라운드에서 추가된다.
//
// 빈 메시지는 ErrEmptyMessage, 대기 중이면 ErrBusy, 닫힌 세션이면 ErrClosed 를
// 반환하며 이 경우 히스토리는 변하지 않는다.
func (s *Session) Send(text string) error {
	_, err := s.send(text)
	return err
}

// send 는 응답이 들어갈 히스토리 인덱스를 함께 반환한다.
func (s *Session) send(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	if s.pending {
		s.mu.Unlock()
		return 0, ErrBusy
	}
	userMsg := newMessage(RoleUser, text)
	s.history = append(s.history, userMsg)
	replyIndex := len(s.history)
	s.pending = true
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	s.emitMessage(userMsg)
	s.emitState(Awaiting)

	go s.exchange(text, done)
	return replyIndex, nil
}

// Ask 는 Send 후 응답이 추가될 때까지 기다려 그 메시지를 반환한다.
// ctx 가 먼저 끝나면 ctx.Err() 를 반환하지만 요청 자체는 계속 진행된다.
func (s *Session) Ask(ctx context.Context, text string) (Message, error) {
	replyIndex, err := s.send(text)
	if err != nil {
		return Message{}, err
	}
	if err := s.Wait(ctx); err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || replyIndex >= len(s.history) {
		return Message{}, ErrClosed
	}
	return s.history[replyIndex], nil
}

// Wait 은 진행 중인 요청이 끝날 때까지 기다린다. 대기 중이 아니면 즉시 반환한다.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// History 는 히스토리의 복사본을 반환한다.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Pending 은 요청이 진행 중인지 반환한다. 입력 UI 는 true 인 동안 비활성화해야 한다.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Session) State() State {
	if s.Pending() {
		return Awaiting
	}
	return Idle
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close 는 세션을 버린다. 진행 중인 요청은 취소되고, 이후 도착하는 응답은 히스토리에 추가되지 않는다.
// 서버 쪽 세션은 삭제하지 않는다.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	logger.DebugWithFields("chat session closed", logger.Fields{"session_id": s.id})
}

func (s *Session) exchange(text string, done chan struct{}) {
	defer close(done)

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	ctx = trace.WithSession(trace.WithRequest(ctx), s.id)

	start := time.Now()
	reply, err := s.replier.Chat(ctx, s.id, text)

	var chatErr *ChatError
	var msg Message
	if err != nil {
		chatErr = classify(err)
	} else if reply == "" {
		chatErr = &ChatError{Kind: ChatRejected, Reason: DefaultFailureReason, Cause: errEmptyReply}
	}
	if chatErr != nil {
		msg = newMessage(RoleAssistant, chatErr.Content())
		msg.Failed = true
	} else {
		msg = newMessage(RoleAssistant, reply)
	}

	fields := logger.Fields{
		"session_id": s.id,
		"request_id": trace.RequestIDFromContext(ctx),
		"duration":   time.Since(start).String(),
	}

	s.mu.Lock()
	if s.closed || s.ctx.Err() != nil {
		s.closed = true
		// 버려진 세션의 늦은 응답: 아무도 보지 않는 히스토리에 추가하지 않는다.
		s.pending = false
		s.mu.Unlock()
		logger.DebugWithFields("dropped reply for closed chat session", fields)
		// 메시지는 버리지만 상태 관찰자는 Awaiting 에 머무르지 않아야 한다.
		s.emitState(Idle)
		return
	}
	s.history = append(s.history, msg)
	s.pending = false
	s.mu.Unlock()

	if chatErr != nil {
		fields["kind"] = chatErr.Kind.String()
		fields["error"] = chatErr.Error()
		logger.WarnWithFields("chat turn failed", fields)
		if s.callbacks.OnError != nil {
			s.callbacks.OnError(chatErr)
		}
	} else {
		fields["reply_length"] = len(reply)
		logger.DebugWithFields("chat turn completed", fields)
	}

	s.emitMessage(msg)
	s.emitState(Idle)
}

func (s *Session) emitMessage(m Message) {
	if s.callbacks.OnMessage != nil {
		s.callbacks.OnMessage(m)
	}
}

func (s *Session) emitState(st State) {
	if s.callbacks.OnStateChange != nil {
		s.callbacks.OnStateChange(st)
	}
}
