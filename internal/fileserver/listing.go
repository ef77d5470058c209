package fileserver

import (
	"bytes"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

var listingTemplate = template.Must(template.New("listing").Parse(`<!DOCTYPE HTML>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Directory listing for {{.Path}}</title>
</head>
<body>
<h1>Directory listing for {{.Path}}</h1>
<hr>
<ul>
{{range .Entries}}<li><a href="{{.Href}}">{{.Display}}</a></li>
{{end}}</ul>
<hr>
</body>
</html>
`))

// Entry is one line of a directory listing.
type Entry struct {
	Name    string
	Display string // name with "/" for directories, "@" for symlinks
	Href    string
}

type listingData struct {
	Path    string
	Entries []Entry
}

// ListDir returns the immediate entries of dir, sorted case-insensitively.
func ListDir(dir string) ([]Entry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		name := d.Name()
		display, link := name, name

		isDir := d.IsDir()
		if d.Type()&fs.ModeSymlink != 0 {
			if fi, err := os.Stat(filepath.Join(dir, name)); err == nil {
				isDir = fi.IsDir()
			}
		}
		if isDir {
			display += "/"
			link += "/"
		}
		if d.Type()&fs.ModeSymlink != 0 {
			display = name + "@"
		}

		entries = append(entries, Entry{
			Name:    name,
			Display: display,
			Href:    escapeLink(link),
		})
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return entries, nil
}

func (h *Handler) serveListing(w http.ResponseWriter, r *http.Request, dir, upath string) {
	entries, err := ListDir(dir)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := listingTemplate.Execute(&buf, listingData{Path: upath, Entries: entries}); err != nil {
		h.logger.Error("listing render failed", "path", upath, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(buf.Bytes())
	}
}

// escapeLink percent-encodes a single path segment, keeping a trailing slash.
func escapeLink(name string) string {
	trimmed := strings.TrimSuffix(name, "/")
	escaped := url.PathEscape(trimmed)
	if len(trimmed) != len(name) {
		escaped += "/"
	}
	// A leading "name:" would otherwise be read as a URL scheme.
	if strings.Contains(escaped, ":") {
		escaped = "./" + escaped
	}
	return escaped
}
