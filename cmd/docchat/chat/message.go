package chat

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 는 히스토리의 한 항목이다. 추가된 뒤에는 바뀌지 않는다.
type Message struct {
	Role    Role
	Content string
	// Failed 는 실패한 턴을 대신하는 assistant 메시지일 때 true 다.
	Failed    bool
	CreatedAt time.Time
}

func newMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, CreatedAt: time.Now()}
}
