package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"doc-chat/cmd/docchat/chat"
	"doc-chat/cmd/docchat/establisher"
	"doc-chat/dto"
)

const markdownStyle = "dark"

// renderer 는 대화 화면 출력을 담당한다. 로그는 별도 writer 로 나간다.
type renderer struct {
	out   io.Writer
	plain bool

	user      *color.Color
	assistant *color.Color
	failure   *color.Color
	notice    *color.Color
	faint     *color.Color
}

func newRenderer(out io.Writer, plain bool) *renderer {
	r := &renderer{
		out:       out,
		plain:     plain,
		user:      color.New(color.FgCyan, color.Bold),
		assistant: color.New(color.FgGreen, color.Bold),
		failure:   color.New(color.FgRed),
		notice:    color.New(color.FgYellow),
		faint:     color.New(color.Faint),
	}
	if plain {
		for _, c := range []*color.Color{r.user, r.assistant, r.failure, r.notice, r.faint} {
			c.DisableColor()
		}
	}
	return r
}

func (r *renderer) ready(displayName string) {
	r.notice.Fprintf(r.out, "Ready: %s\n", displayName)
	r.faint.Fprintln(r.out, "Ask a question about the document. /help lists commands.")
}

func (r *renderer) status(format string, args ...any) {
	r.faint.Fprintf(r.out, format+"\n", args...)
}

func (r *renderer) warn(format string, args ...any) {
	r.notice.Fprintf(r.out, format+"\n", args...)
}

func (r *renderer) fail(err error) {
	r.failure.Fprintf(r.out, "%v\n", err)
}

func (r *renderer) thinking() {
	r.faint.Fprintln(r.out, "...")
}

// message 는 히스토리 한 항목을 출력한다.
// 실패 턴의 문구는 마크다운 렌더링 없이 그대로 빨간색으로 보여준다.
func (r *renderer) message(m chat.Message) {
	switch {
	case m.Role == chat.RoleUser:
		r.user.Fprint(r.out, "you> ")
		fmt.Fprintln(r.out, m.Content)
	case m.Failed:
		r.assistant.Fprint(r.out, "assistant> ")
		r.failure.Fprintln(r.out, m.Content)
	default:
		r.assistant.Fprintln(r.out, "assistant>")
		fmt.Fprintln(r.out, r.markdown(m.Content))
	}
}

func (r *renderer) history(messages []chat.Message) {
	if len(messages) == 0 {
		r.status("No messages yet.")
		return
	}
	for _, m := range messages {
		r.message(m)
	}
}

func (r *renderer) sessionInfo(info dto.SessionResponse) {
	fmt.Fprintf(r.out, "Document:  %s\n", info.FileName)
	fmt.Fprintf(r.out, "Session:   %s\n", info.SessionID)
	fmt.Fprintf(r.out, "Messages:  %d\n", info.MessageCount)
	if info.CreatedAt != "" {
		fmt.Fprintf(r.out, "Created:   %s\n", info.CreatedAt)
	}
}

func (r *renderer) help() {
	fmt.Fprintln(r.out, "Available commands:")
	for _, c := range slashCommands {
		fmt.Fprintf(r.out, "  %-18s %s\n", c.usage, c.description)
	}
	fmt.Fprintf(r.out, "Supported files: %s\n", strings.Join(establisher.AcceptedExtensions(), ", "))
}

func (r *renderer) markdown(text string) string {
	if r.plain {
		return text
	}
	styled, err := glamour.Render(text, markdownStyle)
	if err != nil {
		return text
	}
	return strings.TrimRight(styled, "\n")
}
