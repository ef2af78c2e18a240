package mimetype

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMimetype is returned by LookupDefault for unknown extensions
const DefaultMimetype = "text/plain"

type entry struct {
	extension string
	mimetype  string
}

// Table maps file extensions to content types. Earlier entries win, so a
// custom table loaded first overrides the stock one.
type Table struct {
	entries []entry
}

// New returns an empty table
func New() *Table {
	return &Table{}
}

// Builtin returns a small table covering common static content
func Builtin() *Table {
	t := New()
	for _, e := range [][2]string{
		{".html", "text/html"},
		{".htm", "text/html"},
		{".css", "text/css"},
		{".js", "application/javascript"},
		{".json", "application/json"},
		{".txt", "text/plain"},
		{".xml", "application/xml"},
		{".png", "image/png"},
		{".jpg", "image/jpeg"},
		{".jpeg", "image/jpeg"},
		{".gif", "image/gif"},
		{".svg", "image/svg+xml"},
		{".ico", "image/x-icon"},
		{".pdf", "application/pdf"},
		{".zip", "application/zip"},
		{".mp4", "video/mp4"},
		{".mp3", "audio/mpeg"},
		{".woff", "font/woff"},
		{".woff2", "font/woff2"},
	} {
		t.Add(e[0], e[1])
	}
	return t
}

// Load reads each file in order into one table
func Load(paths ...string) (*Table, error) {
	t := New()
	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("can't find %q: %w", path, err)
		}
		err = t.Read(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
	}
	return t, nil
}

// Read appends `extension mimetype` lines from r. Fields may be separated by
// tabs or spaces; `#` starts a comment line.
func (t *Table) Read(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		t.Add(fields[0], fields[1])
	}
	return scanner.Err()
}

// Add appends an entry. The extension may be given with or without the dot.
func (t *Table) Add(extension, mimetype string) {
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	t.entries = append(t.entries, entry{extension: strings.ToLower(extension), mimetype: mimetype})
}

// Len is the number of entries
func (t *Table) Len() int {
	return len(t.entries)
}

// Lookup returns the content type for filename's extension
func (t *Table) Lookup(filename string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return "", false
	}
	for _, e := range t.entries {
		if e.extension == ext {
			return e.mimetype, true
		}
	}
	return "", false
}

// LookupOr returns the content type for filename, or def
func (t *Table) LookupOr(filename, def string) string {
	if mt, ok := t.Lookup(filename); ok {
		return mt
	}
	return def
}

// LookupDefault returns the content type for filename, or DefaultMimetype
func (t *Table) LookupDefault(filename string) string {
	return t.LookupOr(filename, DefaultMimetype)
}

// Clone returns an independent deep copy
func (t *Table) Clone() *Table {
	entries := make([]entry, len(t.entries))
	copy(entries, t.entries)
	return &Table{entries: entries}
}
