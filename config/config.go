package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const version = "1.2.0"

type LogLevel string

const (
	Debug LogLevel = "debug"
	Info  LogLevel = "info"
	Warn  LogLevel = "warn"
	Error LogLevel = "error"
)

// fileConfig mirrors the optional TOML file; environment variables take
// precedence over it.
type fileConfig struct {
	Listen        string `toml:"listen"`
	Port          int    `toml:"port"`
	DBPath        string `toml:"dbPath"`
	RemoteBaseURL string `toml:"remoteBaseURL"`
	TgBotToken    string `toml:"tgBotToken"`
	TgChatId      int64  `toml:"tgChatId"`
}

var fileCfg fileConfig

func init() {
	godotenv.Load()
	path := os.Getenv("LSP_CONFIG_FILE")
	if path == "" {
		path = "lottery-panel.toml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	// A broken config file is ignored rather than fatal; env defaults
	// still apply.
	_ = toml.Unmarshal(data, &fileCfg)
}

func GetVersion() string {
	return version
}

func GetName() string {
	return "lottery-panel"
}

func IsDebug() bool {
	return os.Getenv("LSP_DEBUG") == "true"
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("LSP_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func GetListen() string {
	listen := os.Getenv("LSP_LISTEN")
	if listen == "" {
		listen = fileCfg.Listen
	}
	return listen
}

func GetPort() int {
	if port := os.Getenv("LSP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			return p
		}
	}
	if fileCfg.Port != 0 {
		return fileCfg.Port
	}
	return 8080
}

func GetDBFolderPath() string {
	dbFolderPath := os.Getenv("LSP_DB_FOLDER")
	if dbFolderPath == "" {
		dbFolderPath = "data"
	}
	return dbFolderPath
}

func GetDBPath() string {
	if fileCfg.DBPath != "" {
		return fileCfg.DBPath
	}
	return GetDBFolderPath() + "/" + GetName() + ".db"
}

// GetRemoteBaseURL returns the document-store endpoint. Empty means
// local mode: the in-process store backs the sync client.
func GetRemoteBaseURL() string {
	url := os.Getenv("LSP_REMOTE_URL")
	if url == "" {
		url = fileCfg.RemoteBaseURL
	}
	return url
}

// GetRemoteTimeout bounds every remote call; on expiry the call
// degrades to Unavailable instead of blocking.
func GetRemoteTimeout() time.Duration {
	if v := os.Getenv("LSP_REMOTE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return 5 * time.Second
}

func GetTgBotToken() string {
	token := os.Getenv("LSP_TG_TOKEN")
	if token == "" {
		token = fileCfg.TgBotToken
	}
	return token
}

func GetTgChatId() int64 {
	if v := os.Getenv("LSP_TG_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return id
		}
	}
	return fileCfg.TgChatId
}

// GetOutboxThreshold is the queue depth past which the depth job starts
// warning about pending sync.
func GetOutboxThreshold() int64 {
	if v := os.Getenv("LSP_OUTBOX_THRESHOLD"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 100
}
