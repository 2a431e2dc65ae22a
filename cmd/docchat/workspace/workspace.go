// Package workspace 는 "현재 문서" 슬롯을 관리한다.
// 문서를 열면 이전 채팅 세션을 버리고 업로드부터 다시 시작한다.
package workspace

import (
	"context"
	"sync"

	"doc-chat/cmd/docchat/chat"
	"doc-chat/cmd/docchat/establisher"
	"doc-chat/cmd/internal/logger"
)

// Establisher 는 문서 업로드로 세션을 만든다. *establisher.Establisher 가 구현한다.
type Establisher interface {
	Submit(ctx context.Context, doc establisher.Document) (establisher.Session, error)
}

type Workspace struct {
	establisher Establisher
	replier     chat.Replier
	ctx         context.Context
	opts        []chat.Option

	// openMu 는 Open 을 직렬화한다. 업로드 중에는 다른 문서를 열 수 없다.
	openMu  sync.Mutex
	mu      sync.Mutex
	current *chat.Session
}

// New 는 ctx 가 살아 있는 동안 유효한 워크스페이스를 만든다.
// opts 는 새로 만드는 모든 채팅 세션에 적용된다.
func New(ctx context.Context, est Establisher, replier chat.Replier, opts ...chat.Option) *Workspace {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Workspace{
		establisher: est,
		replier:     replier,
		ctx:         ctx,
		opts:        opts,
	}
}

// Open 은 현재 세션을 버리고 doc 을 업로드해 새 채팅 세션을 만든다.
// 업로드가 실패하면 현재 세션은 비어 있는 상태로 남고 에러를 그대로 반환한다.
func (w *Workspace) Open(ctx context.Context, doc establisher.Document) (*chat.Session, error) {
	w.openMu.Lock()
	defer w.openMu.Unlock()

	w.Abandon()

	sess, err := w.establisher.Submit(ctx, doc)
	if err != nil {
		return nil, err
	}

	cs := chat.NewSession(w.ctx, sess.ID, sess.DisplayName, w.replier, w.opts...)

	w.mu.Lock()
	w.current = cs
	w.mu.Unlock()

	logger.InfoWithFields("workspace opened document", logger.Fields{
		"session_id":   sess.ID,
		"display_name": sess.DisplayName,
	})
	return cs, nil
}

// Current 는 현재 채팅 세션을 반환한다. 없으면 nil.
func (w *Workspace) Current() *chat.Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Abandon 은 현재 세션을 닫고 슬롯을 비운다. 진행 중인 응답은 버려진다.
func (w *Workspace) Abandon() {
	w.mu.Lock()
	prev := w.current
	w.current = nil
	w.mu.Unlock()

	if prev != nil {
		prev.Close()
		logger.InfoWithFields("workspace abandoned session", logger.Fields{"session_id": prev.ID()})
	}
}
