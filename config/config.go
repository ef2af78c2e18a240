package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Entry is one key/value pair of a configuration
type Entry struct {
	Key   string
	Value string
}

// Configuration is an ordered key/value store loaded from a `key = value`
// file. Reloading a key overwrites its value in place.
type Configuration struct {
	entries []Entry
}

// New returns an empty configuration
func New() *Configuration {
	return &Configuration{}
}

// Load reads a configuration file
func Load(path string) (*Configuration, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't find %q: %w", path, err)
	}
	defer file.Close()

	return Parse(file, log.Logger)
}

// Parse reads `key = value` lines. Blank lines and lines starting with `#`
// are skipped; lines without `=` are reported to logger and skipped.
func Parse(r io.Reader, logger zerolog.Logger) (*Configuration, error) {
	c := New()
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			logger.Warn().Int("line", lineNum).Str("text", raw).Msg("config line has no '='")
			continue
		}

		c.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return c, nil
}

// Set stores value under key, keeping the key's original position
func (c *Configuration) Set(key, value string) {
	for i := range c.entries {
		if c.entries[i].Key == key {
			c.entries[i].Value = value
			return
		}
	}
	c.entries = append(c.entries, Entry{Key: key, Value: value})
}

// Lookup returns the value stored under key
func (c *Configuration) Lookup(key string) (string, bool) {
	for _, e := range c.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// GetValueOr returns the value stored under key, or def
func (c *Configuration) GetValueOr(key, def string) string {
	if value, ok := c.Lookup(key); ok {
		return value
	}
	return def
}

// GetInt returns key as an int, or def when absent or unparsable
func (c *Configuration) GetInt(key string, def int) int {
	n, err := strconv.Atoi(c.GetValueOr(key, ""))
	if err != nil {
		return def
	}
	return n
}

// GetBool is true only for the literal value "true"
func (c *Configuration) GetBool(key string, def bool) bool {
	value, ok := c.Lookup(key)
	if !ok {
		return def
	}
	return value == "true"
}

// GetMillis reads key as a millisecond count. Zero, negative or unparsable
// values yield zero.
func (c *Configuration) GetMillis(key string, def time.Duration) time.Duration {
	value, ok := c.Lookup(key)
	if !ok {
		return def
	}
	millis, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return time.Duration(millis) * time.Millisecond
}

// GetBytes reads key as a byte size such as "5 MiB" or "65536"
func (c *Configuration) GetBytes(key string, def uint64) uint64 {
	value, ok := c.Lookup(key)
	if !ok {
		return def
	}
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return def
	}
	return n
}

// GetList splits the value of key on sep, dropping empty items
func (c *Configuration) GetList(key, sep string) []string {
	var out []string
	for _, item := range strings.Split(c.GetValueOr(key, ""), sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Entries returns a copy of all entries in load order
func (c *Configuration) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Clone returns an independent deep copy
func (c *Configuration) Clone() *Configuration {
	return &Configuration{entries: c.Entries()}
}
