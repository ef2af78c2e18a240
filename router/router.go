package router

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nicklauri/aden/errors"
	"github.com/nicklauri/aden/mimetype"
	"github.com/nicklauri/aden/protocol"
)

// Kind is the decision the router reached for a request path
type Kind int

const (
	Forbidden Kind = iota + 1
	DirectoryRedirect
	DirectoryServed
	FileServed
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Forbidden:
		return "forbidden"
	case DirectoryRedirect:
		return "directory-redirect"
	case DirectoryServed:
		return "directory"
	case FileServed:
		return "file"
	case NotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

// Settings are the path rules of a document tree. HomeDir and ErrorDir are
// wire-style paths relative to BaseDir.
type Settings struct {
	BaseDir           string
	HomeDir           string
	ErrorDir          string
	IndexFile         string
	ForbiddenPrefixes []string
	BufferFloor       int
}

// Filesystem is what the router needs from the host filesystem
type Filesystem interface {
	Stat(path string) (fs.FileInfo, error)
	Open(path string) (protocol.ContentSource, error)
}

type osFilesystem struct {
	protocol.FileOpener
}

// NewFilesystem stats with the os package and opens through opener
func NewFilesystem(opener protocol.FileOpener) Filesystem {
	return osFilesystem{opener}
}

func (osFilesystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Outcome is the result of resolving one request path. Content is owned by
// the Response built from it.
type Outcome struct {
	Kind        Kind
	RequestPath string
	Query       string
	FilePath    string
	Location    string
	Content     protocol.ContentSource
}

// Router resolves request paths against a document tree
type Router struct {
	settings Settings
	fs       Filesystem
	mimes    *mimetype.Table
}

// New creates a router. The MIME table is only read.
func New(settings Settings, filesystem Filesystem, mimes *mimetype.Table) *Router {
	return &Router{
		settings: settings,
		fs:       filesystem,
		mimes:    mimes,
	}
}

// Route resolves requestPath and builds the matching response
func (r *Router) Route(requestPath string) (*protocol.Response, Outcome, error) {
	outcome, err := r.Resolve(requestPath)
	if err != nil {
		return nil, outcome, err
	}
	return r.Respond(outcome), outcome, nil
}

// Resolve decides what requestPath maps to. The only error is a missing
// error page, which leaves nothing to serve.
func (r *Router) Resolve(requestPath string) (Outcome, error) {
	realPath, query, _ := strings.Cut(requestPath, "?")
	cleaned := path.Clean("/" + realPath)

	outcome := Outcome{RequestPath: realPath, Query: query}

	unaliased := r.settings.HomeDir + cleaned
	if r.forbidden(unaliased, cleaned) {
		return r.errorPage(outcome, Forbidden, "403.html")
	}

	target := r.hostPath(r.settings.HomeDir, cleaned)

	if info, err := r.fs.Stat(target); err == nil && info.IsDir() {
		indexPath := filepath.Join(target, r.settings.IndexFile)
		src, err := r.fs.Open(indexPath)
		if err != nil {
			return r.errorPage(outcome, NotFound, "404.html")
		}

		if !strings.HasSuffix(realPath, "/") {
			src.Close()
			outcome.Kind = DirectoryRedirect
			outcome.Location = strings.TrimSuffix(cleaned, "/") + "/"
			return outcome, nil
		}

		outcome.Kind = DirectoryServed
		outcome.FilePath = indexPath
		outcome.Content = src
		return outcome, nil
	}

	src, err := r.fs.Open(target)
	if err != nil {
		return r.errorPage(outcome, NotFound, "404.html")
	}

	outcome.Kind = FileServed
	outcome.FilePath = target
	outcome.Content = src
	return outcome, nil
}

// Respond maps an outcome to a complete response
func (r *Router) Respond(o Outcome) *protocol.Response {
	res := protocol.NewResponse()
	res.SetBufferFloor(r.settings.BufferFloor)
	res.AddHeader("Server", protocol.ServerName)

	switch o.Kind {
	case Forbidden:
		res.SetStatus(protocol.HTTPVersion, protocol.StatusForbidden)
		res.AddHeader("Content-Type", "text/html")
		res.SetContentSource(o.Content)
	case NotFound:
		res.SetStatus(protocol.HTTPVersion, protocol.StatusNotFound)
		res.AddHeader("Content-Type", "text/html")
		res.SetContentSource(o.Content)
	case DirectoryRedirect:
		res.SetStatus(protocol.HTTPVersion, protocol.StatusMovedPermanently)
		res.AddHeader("Location", o.Location)
		res.AddHeader("Content-Type", "text/html")
		res.SetContentBytes(redirectBody(o.Location))
	case DirectoryServed, FileServed:
		res.SetStatus(protocol.HTTPVersion, protocol.StatusOK)
		res.AddHeader("Content-Type", r.mimes.LookupOr(o.FilePath, "text/html"))
		res.SetContentSource(o.Content)
	}

	return res
}

// RespondBadRequest builds the minimal 400 response for unparsable requests
func RespondBadRequest() *protocol.Response {
	res := protocol.NewResponse()
	res.SetStatus(protocol.HTTPVersion, protocol.StatusBadRequest)
	res.AddHeader("Server", protocol.ServerName)
	res.AddHeader("Content-Type", "text/html")
	res.SetContentBytes([]byte("<html><body><h1>400 Bad Request</h1></body></html>\r\n"))
	return res
}

func (r *Router) forbidden(unaliased, cleaned string) bool {
	for _, prefix := range r.settings.ForbiddenPrefixes {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(unaliased, prefix) || strings.HasPrefix(cleaned, prefix) {
			return true
		}
	}
	return false
}

func (r *Router) errorPage(outcome Outcome, kind Kind, name string) (Outcome, error) {
	outcome.Kind = kind
	page := r.hostPath(r.settings.ErrorDir, "/"+name)
	src, err := r.fs.Open(page)
	if err != nil {
		return outcome, errors.NewResolutionError(
			errors.ResolutionErrorErrorPageMissing,
			fmt.Sprintf("can't load error page %s", page),
			err,
		)
	}

	outcome.FilePath = page
	outcome.Content = src
	return outcome, nil
}

// hostPath joins wire-style root and request paths onto the base directory
func (r *Router) hostPath(root, wirePath string) string {
	return filepath.Join(r.settings.BaseDir, filepath.FromSlash(root), filepath.FromSlash(wirePath))
}

func redirectBody(location string) []byte {
	return []byte(fmt.Sprintf(
		"<html><body><h1>301 Moved Permanently</h1><a href=\"%s\">%s</a></body></html>\r\n",
		location, location,
	))
}
