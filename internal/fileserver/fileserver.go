// Package fileserver serves files and directory listings from a single
// root directory. Requests can never read outside that root.
package fileserver

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// indexFiles are served in place of a listing when present in a directory.
var indexFiles = []string{"index.html", "index.htm"}

// Handler serves the contents of Root for GET and HEAD requests.
type Handler struct {
	root   string
	logger *slog.Logger
}

// New creates a Handler for root. The root must be an existing directory.
func New(root string, logger *slog.Logger) (*Handler, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}
	return &Handler{root: abs, logger: logger}, nil
}

// Root returns the absolute served root.
func (h *Handler) Root() string {
	return h.root
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
	case http.MethodOptions:
		// Preflight; the CORS headers are already on the response.
		w.Header().Set("Allow", "GET, HEAD, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		w.Header().Set("Allow", "GET, HEAD, OPTIONS")
		http.Error(w, "unsupported method "+r.Method, http.StatusNotImplemented)
		return
	}

	upath := r.URL.Path
	if !strings.HasPrefix(upath, "/") {
		upath = "/" + upath
	}
	if containsDotDot(upath) {
		http.NotFound(w, r)
		return
	}

	full, err := h.resolve(upath)
	if err != nil {
		h.logger.Debug("path resolution failed", "path", upath, "error", err)
		h.fail(w, r, err)
		return
	}

	info, err := os.Stat(full)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if info.IsDir() {
		if !strings.HasSuffix(upath, "/") {
			redirectToSlash(w, r)
			return
		}
		for _, name := range indexFiles {
			index := filepath.Join(full, name)
			if fi, err := os.Stat(index); err == nil && fi.Mode().IsRegular() {
				h.serveFile(w, r, index, fi)
				return
			}
		}
		h.serveListing(w, r, full, upath)
		return
	}

	if !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}
	h.serveFile(w, r, full, info)
}

// resolve maps a cleaned URL path onto the filesystem. Symlinks are
// evaluated as if the root were the filesystem root, so a link pointing
// outside resolves to a path inside.
func (h *Handler) resolve(upath string) (string, error) {
	return securejoin.SecureJoin(h.root, filepath.FromSlash(path.Clean(upath)))
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, name string, info fs.FileInfo) {
	f, err := os.Open(name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", ContentType(name))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// fail converts a filesystem error into an HTTP error response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		http.NotFound(w, r)
	case errors.Is(err, fs.ErrPermission):
		http.Error(w, "403 forbidden", http.StatusForbidden)
	default:
		h.logger.Warn("filesystem error", "path", r.URL.Path, "error", err)
		http.NotFound(w, r)
	}
}

// ContentType guesses a MIME type from the file extension, falling back
// to application/octet-stream.
func ContentType(name string) string {
	if ctype := mime.TypeByExtension(filepath.Ext(name)); ctype != "" {
		return ctype
	}
	return "application/octet-stream"
}

func redirectToSlash(w http.ResponseWriter, r *http.Request) {
	target := url.URL{Path: path.Clean("/"+r.URL.Path) + "/", RawQuery: r.URL.RawQuery}
	w.Header().Set("Location", target.String())
	w.WriteHeader(http.StatusMovedPermanently)
}

func containsDotDot(v string) bool {
	if !strings.Contains(v, "..") {
		return false
	}
	for _, seg := range strings.FieldsFunc(v, isSlashRune) {
		if seg == ".." {
			return true
		}
	}
	return false
}

func isSlashRune(r rune) bool { return r == '/' || r == '\\' }
