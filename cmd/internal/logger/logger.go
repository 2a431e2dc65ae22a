package logger

import (
	"io"
	"os"
	"strings"

	"github.com/gookit/slog"
	"github.com/gookit/slog/handler"
)

// Logger 는 클라이언트/서버 양쪽에서 공통으로 사용하는 최소 로거 인터페이스다.
type Logger interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Fields 는 구조화 로그를 위한 공통 필드 타입이다.
type Fields map[string]any

// Log 는 전역 로거 인스턴스다.
// Init 이 호출되지 않더라도 기본 info 레벨로 동작하도록 초기화한다.
var Log Logger = NewLogger("info")

// Init 은 전역 로거를 주어진 레벨로 교체한다. 비어 있으면 info.
func Init(level string) {
	if level == "" {
		level = "info"
	}
	Log = NewLogger(strings.ToLower(level))
}

// InitWithWriter 는 콘솔 대신 w 로 로그를 쓴다. CLI 에서 대화 화면과 로그를 분리할 때 사용한다.
func InitWithWriter(level string, w io.Writer) {
	if level == "" {
		level = "info"
	}
	h := handler.NewIOWriterHandler(w, levelsUpTo(strings.ToLower(level)))
	h.SetFormatter(newFormatter())
	Log = slog.NewWithHandlers(h)
}

// NewLogger 는 주어진 레벨로 gookit/slog 기반 로거를 생성한다.
func NewLogger(level string) Logger {
	h := handler.NewConsoleHandler(levelsUpTo(level))
	h.SetFormatter(newFormatter())

	logger := slog.NewWithHandlers(h)
	return logger
}

func levelsUpTo(level string) slog.Levels {
	logLevel := slog.LevelByName(level)

	var levels slog.Levels
	for _, lv := range slog.AllLevels {
		if lv <= logLevel {
			levels = append(levels, lv)
		}
	}
	return levels
}

// 기본 필드는 datetime/level/message 로만 제한하고 나머지 정보는
// Fields(top-level 키)로만 출력한다.
func newFormatter() *slog.JSONFormatter {
	return slog.NewJSONFormatter(func(f *slog.JSONFormatter) {
		f.Fields = []string{
			slog.FieldKeyDatetime,
			slog.FieldKeyLevel,
			slog.FieldKeyMessage,
		}
		f.Aliases = slog.StringMap{
			slog.FieldKeyDatetime: "datetime",
			slog.FieldKeyLevel:    "level",
			slog.FieldKeyMessage:  "message",
		}
		f.TimeFormat = "2006-01-02T15:04:05"
	})
}

// withServiceName 은 service_name 필드를 SERVICE_NAME 환경변수 기준으로 보강한다.
func withServiceName(fields Fields) Fields {
	if fields == nil {
		fields = Fields{}
	}
	if _, ok := fields["service_name"]; !ok {
		if sn := os.Getenv("SERVICE_NAME"); sn != "" {
			fields["service_name"] = sn
		}
	}
	return fields
}

// InfoWithFields 는 request_id, session_id, service_name 등 구조화 필드를 포함한
// JSON 로그를 출력하기 위한 헬퍼 함수다.
func InfoWithFields(msg string, fields Fields) { logWithFields(slog.InfoLevel, msg, fields) }

func DebugWithFields(msg string, fields Fields) { logWithFields(slog.DebugLevel, msg, fields) }

func WarnWithFields(msg string, fields Fields) { logWithFields(slog.WarnLevel, msg, fields) }

func ErrorWithFields(msg string, fields Fields) { logWithFields(slog.ErrorLevel, msg, fields) }

// Log 가 slog.Logger 가 아니면 필드 없이 메시지만 남긴다.
func logWithFields(level slog.Level, msg string, fields Fields) {
	fields = withServiceName(fields)
	if lg, ok := Log.(*slog.Logger); ok {
		rec := lg.WithFields(slog.M(fields))
		switch level {
		case slog.DebugLevel:
			rec.Debug(msg)
		case slog.WarnLevel:
			rec.Warn(msg)
		case slog.ErrorLevel:
			rec.Error(msg)
		default:
			rec.Info(msg)
		}
		return
	}

	switch level {
	case slog.DebugLevel:
		Log.Debug(msg)
	case slog.WarnLevel:
		Log.Warn(msg)
	case slog.ErrorLevel:
		Log.Error(msg)
	default:
		Log.Info(msg)
	}
}
