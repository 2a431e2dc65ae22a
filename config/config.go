package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const ENV_FILE = ".env"
const CONFIG_FILE = "config.yaml"

type AppConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Client  ClientConfig  `yaml:"client"`
	Server  ServerConfig  `yaml:"server"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ClientConfig 는 docchat 클라이언트(업로드/채팅)가 사용하는 백엔드 접속 설정이다.
type ClientConfig struct {
	BaseURL       string        `yaml:"base_url"`
	UploadTimeout time.Duration `yaml:"upload_timeout"`
	// ChatTimeout 은 채팅 한 턴의 최대 대기 시간이다.
	// 초과하면 네트워크 오류와 동일하게 처리되어 세션이 Idle 로 돌아온다.
	ChatTimeout time.Duration `yaml:"chat_timeout"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	// SessionStore 는 "memory" 또는 "mongo".
	SessionStore string          `yaml:"session_store"`
	MongoURI     string          `yaml:"mongo_uri"`
	MongoDBName  string          `yaml:"mongo_db"`
	LLM          LLMConfig       `yaml:"llm"`
	ChatQuota    ChatQuotaConfig `yaml:"chat_quota"`
}

type LLMConfig struct {
	// Provider 는 "gemini" 또는 "echo".
	Provider  string `yaml:"provider"`
	ModelName string `yaml:"model_name"`
	APIKey    string `yaml:"-"`
}

// ChatQuotaConfig 는 채팅용 LLM 호출에 대한 속도/일일 한도를 정의한다.
type ChatQuotaConfig struct {
	// RequestsPerMinute 는 분당 최대 요청 수이다. 0 이하면 제한 없음으로 간주한다.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// RequestsPerDay 는 일일 최대 요청 수이다. 0 이하면 제한 없음으로 간주한다.
	RequestsPerDay int `yaml:"requests_per_day"`
}

var config *AppConfig

// Default 는 config.yaml 이 없을 때 사용하는 기본 설정을 반환한다.
func Default() AppConfig {
	return AppConfig{
		Logging: LoggingConfig{Level: "info"},
		Client: ClientConfig{
			BaseURL:       "http://localhost:8080",
			UploadTimeout: time.Minute,
			ChatTimeout:   2 * time.Minute,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 20 << 20,
			SessionStore:   "memory",
			MongoDBName:    "docchat",
			LLM: LLMConfig{
				Provider:  "gemini",
				ModelName: "gemini-2.5-flash",
			},
		},
	}
}

func InitApp() {
	c, err := Load(GetBasePath())
	if err != nil {
		panic(err)
	}
	config = &c
}

// Load 는 dir 의 .env 와 config.yaml 을 읽어 기본값 위에 덮어쓴다.
// config.yaml 이 없으면 기본값과 환경변수만으로 구성한다.
func Load(dir string) (AppConfig, error) {
	// load environment variables
	godotenv.Load(filepath.Join(dir, ENV_FILE))

	c := Default()
	data, err := os.ReadFile(filepath.Join(dir, CONFIG_FILE))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return AppConfig{}, err
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return AppConfig{}, err
	}

	applyEnv(&c)
	return c, nil
}

func applyEnv(c *AppConfig) {
	if v := os.Getenv("DOCCHAT_BASE_URL"); v != "" {
		c.Client.BaseURL = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Server.MongoURI = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	c.Server.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
}

func GetConfig() AppConfig {
	if config == nil {
		InitApp()
	}

	return *config
}

func GetBasePath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		cfgPath := filepath.Join(dir, CONFIG_FILE)
		if info, err := os.Stat(cfgPath); err == nil && !info.IsDir() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return cwd
}
