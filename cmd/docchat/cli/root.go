// Package cli 는 docchat 터미널 클라이언트의 cobra 커맨드를 정의한다.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"doc-chat/cmd/docchat/chat"
	"doc-chat/cmd/docchat/clients/chatclient"
	"doc-chat/cmd/docchat/clients/ingestclient"
	"doc-chat/cmd/docchat/establisher"
	"doc-chat/cmd/docchat/workspace"
	"doc-chat/cmd/internal/logger"
	"doc-chat/config"
	"doc-chat/dto"
)

// options 는 전역 플래그와 로드된 설정이다.
type options struct {
	server   string
	timeout  time.Duration
	plain    bool
	logLevel string
	logFile  string

	cfg     config.AppConfig
	logSink io.Closer
}

// NewRootCmd 는 docchat 루트 커맨드를 만든다.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "docchat",
		Short: "Chat with a document from the terminal",
		Long: `docchat uploads a single document (PDF, DOCX, DOC or TXT) to a doc-chat
server and starts a conversation about its contents.

  docchat chat report.pdf
  docchat ask notes.txt "What are the action items?"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return opts.setup()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return opts.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.server, "server", "", "doc-chat server base URL (default from config or DOCCHAT_BASE_URL)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "maximum time to wait for one reply (default from config)")
	flags.BoolVar(&opts.plain, "plain", false, "print replies without colors or markdown rendering")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVarP(&opts.logFile, "logfile", "l", "", "write logs to this file instead of stderr")

	root.AddCommand(newChatCmd(opts), newAskCmd(opts), newPingCmd(opts))
	return root
}

// Execute 는 os.Args 로 루트 커맨드를 실행한다.
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *options) setup() error {
	cfg, err := config.Load(config.GetBasePath())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.server != "" {
		cfg.Client.BaseURL = o.server
	}
	if o.timeout > 0 {
		cfg.Client.ChatTimeout = o.timeout
	}
	o.cfg = cfg

	// 대화 화면이 로그로 어지럽지 않도록 stderr 에는 error 만 기본으로 남긴다.
	level := o.logLevel
	if o.logFile != "" {
		f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		if level == "" {
			level = cfg.Logging.Level
		}
		logger.InitWithWriter(level, f)
		o.logSink = f
		return nil
	}
	if level == "" {
		level = "error"
	}
	logger.InitWithWriter(level, os.Stderr)
	return nil
}

func (o *options) teardown() error {
	if o.logSink == nil {
		return nil
	}
	err := o.logSink.Close()
	o.logSink = nil
	return err
}

// app 은 커맨드 하나가 실행되는 동안의 클라이언트 구성이다.
type app struct {
	ws       *workspace.Workspace
	sessions sessionInfoFetcher
	out      *renderer
}

type sessionInfoFetcher interface {
	GetSession(ctx context.Context, sessionID string) (dto.SessionResponse, error)
}

func (o *options) newApp(ctx context.Context, out io.Writer) *app {
	ingest := ingestclient.New(o.cfg.Client.BaseURL, o.cfg.Client.UploadTimeout)
	chats := chatclient.New(o.cfg.Client.BaseURL)
	ws := workspace.New(ctx, establisher.New(ingest), chats, chat.WithTimeout(o.cfg.Client.ChatTimeout))
	return &app{ws: ws, sessions: chats, out: newRenderer(out, o.plain)}
}

// open 은 path 들에 단일 파일 정책을 적용하고 업로드해 현재 세션으로 만든다.
func (a *app) open(ctx context.Context, paths []string) (*chat.Session, error) {
	docs := make([]establisher.Document, 0, len(paths))
	for _, p := range paths {
		doc, err := establisher.LoadDocument(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	doc, err := establisher.SelectDocument(docs)
	if err != nil {
		return nil, err
	}

	a.out.status("Uploading %s ...", doc.Name)
	cs, err := a.ws.Open(ctx, doc)
	if err != nil {
		return nil, err
	}
	a.out.ready(cs.DisplayName())
	return cs, nil
}
