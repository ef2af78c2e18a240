package server

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nicklauri/aden/config"
	"github.com/nicklauri/aden/protocol"
)

func parseConfig(t *testing.T, text string) *config.Configuration {
	t.Helper()

	cfg, err := config.Parse(strings.NewReader(text), zerolog.Nop())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return cfg
}

func TestSettingsFromConfig_Defaults(t *testing.T) {
	s := SettingsFromConfig(config.New(), "/srv/aden")

	if s.Address != "localhost" || s.Port != "8080" {
		t.Errorf("Expected localhost:8080, got %s:%s", s.Address, s.Port)
	}
	if s.MaxAlive != 10 {
		t.Errorf("Expected MaxAlive 10, got %d", s.MaxAlive)
	}
	if s.Router.BaseDir != "/srv/aden" || s.Router.HomeDir != "/www" || s.Router.ErrorDir != "/error" {
		t.Errorf("Unexpected roots: %+v", s.Router)
	}
	if s.Router.IndexFile != "index.html" {
		t.Errorf("Expected index.html, got %q", s.Router.IndexFile)
	}
	if s.Router.BufferFloor != protocol.DefaultBufferFloor {
		t.Errorf("Expected buffer floor %d, got %d", protocol.DefaultBufferFloor, s.Router.BufferFloor)
	}
	if s.Timeouts != (protocol.TimeoutPolicy{}) {
		t.Errorf("Expected no timeouts, got %+v", s.Timeouts)
	}
	if s.SocketEngine != EngineNet || s.FileEngine != EngineStd {
		t.Errorf("Expected net/std engines, got %s/%s", s.SocketEngine, s.FileEngine)
	}
}

func TestSettingsFromConfig_Values(t *testing.T) {
	cfg := parseConfig(t, `
# server
server_address = 0.0.0.0
server_port = 9090
max_alive_thread = 0
home_dir = /public
forbinden_dir = /public/secret;/admin
tcpstream_nonblocking = true
tcp_read_timeout = 1500
tcp_body_timeout = 250
content_buffer_floor = 64 KiB
max_body_size = 1 MB
socket_engine = iouring
`)

	s := SettingsFromConfig(cfg, "/base")

	if s.Address != "0.0.0.0" || s.Port != "9090" {
		t.Errorf("Expected 0.0.0.0:9090, got %s:%s", s.Address, s.Port)
	}
	if s.MaxAlive != 0 {
		t.Errorf("Expected unbounded workers, got %d", s.MaxAlive)
	}
	if s.Router.HomeDir != "/public" {
		t.Errorf("Expected /public, got %q", s.Router.HomeDir)
	}
	if len(s.Router.ForbiddenPrefixes) != 2 || s.Router.ForbiddenPrefixes[1] != "/admin" {
		t.Errorf("Expected legacy forbidden list, got %v", s.Router.ForbiddenPrefixes)
	}

	want := protocol.TimeoutPolicy{
		FirstByte: 1500 * time.Millisecond,
		HeadRest:  50 * time.Millisecond,
		Body:      250 * time.Millisecond,
	}
	if s.Timeouts != want {
		t.Errorf("Expected %+v, got %+v", want, s.Timeouts)
	}

	if s.Router.BufferFloor != 64*1024 {
		t.Errorf("Expected 65536, got %d", s.Router.BufferFloor)
	}
	if s.MaxBodySize != 1000000 {
		t.Errorf("Expected 1000000, got %d", s.MaxBodySize)
	}
	if s.SocketEngine != EngineIOUring {
		t.Errorf("Expected iouring, got %s", s.SocketEngine)
	}
}

func TestSettingsFromConfig_BlockingHeadUsesReadTimeout(t *testing.T) {
	cfg := parseConfig(t, "tcp_read_timeout = 700\nforbidden_dir = /a\nforbinden_dir = /b\n")

	s := SettingsFromConfig(cfg, "")

	if s.Timeouts.HeadRest != 700*time.Millisecond {
		t.Errorf("Expected head timeout 700ms, got %v", s.Timeouts.HeadRest)
	}
	if len(s.Router.ForbiddenPrefixes) != 1 || s.Router.ForbiddenPrefixes[0] != "/a" {
		t.Errorf("Expected forbidden_dir to win, got %v", s.Router.ForbiddenPrefixes)
	}
}
