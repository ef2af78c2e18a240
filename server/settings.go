package server

import (
	"time"

	"github.com/nicklauri/aden/config"
	"github.com/nicklauri/aden/protocol"
	"github.com/nicklauri/aden/router"
)

const (
	EngineNet     = "net"
	EngineIOUring = "iouring"
	EngineStd     = "std"
	EngineUring   = "uring"
)

const (
	defaultAddress       = "localhost"
	defaultPort          = "8080"
	defaultMaxAlive      = 10
	defaultHeadPoll      = 50 * time.Millisecond
	defaultMaxHeaderSize = 64 * 1024
	defaultMaxBodySize   = 8 * 1024 * 1024
	defaultRingEntries   = 256
)

// Settings is everything a Server reads from the configuration
type Settings struct {
	Address string
	Port    string

	// MaxAlive caps concurrent connection handlers; zero means unbounded.
	MaxAlive int

	Router        router.Settings
	Timeouts      protocol.TimeoutPolicy
	MaxHeaderSize int
	MaxBodySize   int64
	SocketEngine  string
	FileEngine    string
	RingEntries   uint
}

// SettingsFromConfig reads server settings from cfg. Roots in the
// configuration are resolved against baseDir.
func SettingsFromConfig(cfg *config.Configuration, baseDir string) Settings {
	forbidden := cfg.GetList("forbidden_dir", ";")
	if len(forbidden) == 0 {
		forbidden = cfg.GetList("forbinden_dir", ";")
	}

	readTimeout := cfg.GetMillis("tcp_read_timeout", 0)
	headRest := readTimeout
	if cfg.GetBool("tcpstream_nonblocking", false) {
		headRest = cfg.GetMillis("tcp_head_poll_timeout", defaultHeadPoll)
	}

	return Settings{
		Address:  cfg.GetValueOr("server_address", defaultAddress),
		Port:     cfg.GetValueOr("server_port", defaultPort),
		MaxAlive: cfg.GetInt("max_alive_thread", defaultMaxAlive),
		Router: router.Settings{
			BaseDir:           baseDir,
			HomeDir:           cfg.GetValueOr("home_dir", "/www"),
			ErrorDir:          cfg.GetValueOr("home_dir_err", "/error"),
			IndexFile:         cfg.GetValueOr("default_index_file", "index.html"),
			ForbiddenPrefixes: forbidden,
			BufferFloor:       int(cfg.GetBytes("content_buffer_floor", protocol.DefaultBufferFloor)),
		},
		Timeouts: protocol.TimeoutPolicy{
			FirstByte: readTimeout,
			HeadRest:  headRest,
			Body:      cfg.GetMillis("tcp_body_timeout", 0),
			Write:     cfg.GetMillis("tcp_write_timeout", 0),
		},
		MaxHeaderSize: int(cfg.GetBytes("max_header_size", defaultMaxHeaderSize)),
		MaxBodySize:   int64(cfg.GetBytes("max_body_size", defaultMaxBodySize)),
		SocketEngine:  cfg.GetValueOr("socket_engine", EngineNet),
		FileEngine:    cfg.GetValueOr("file_engine", EngineStd),
		RingEntries:   defaultRingEntries,
	}
}
