package gate

import (
	"net/http"
	"path"
	"strings"
)

// IsPageRequest reports whether r asks for an HTML page, as opposed to an
// asset or an API response. An explicit format parameter wins, then the path
// extension, then the Accept header. A missing Accept header or a bare */*
// counts as a page.
func IsPageRequest(r *http.Request) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		return strings.EqualFold(f, "html")
	}

	switch strings.ToLower(path.Ext(r.URL.Path)) {
	case "", ".html", ".htm":
	default:
		return false
	}

	accept := r.Header.Get("Accept")
	if strings.TrimSpace(accept) == "" {
		return true
	}
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, _ := strings.Cut(part, ";")
		switch strings.ToLower(strings.TrimSpace(mediaType)) {
		case "text/html", "application/xhtml+xml", "*/*":
			return true
		}
	}
	return false
}
