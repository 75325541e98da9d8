package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/malezjaa/palladin/internal/chunks"
	"github.com/malezjaa/palladin/internal/errors"
	"github.com/malezjaa/palladin/internal/hmr"
)

// immutableCacheControl marks hashed chunk responses as permanently
// cacheable; a content change produces a new name, never a new body
// for an old name.
const immutableCacheControl = "public, max-age=31536000, immutable"

func (s *DevServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/__livereload", s.handleLiveReload)
	mux.HandleFunc("/__chunks/", s.handleChunk)
	mux.HandleFunc("/", s.handleFile)
	return s.withRequestLogging(mux)
}

// handleFile serves project files through the content cache, with
// index fallback for navigation-style paths.
func (s *DevServer) handleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	urlPath := r.URL.Path
	if urlPath == "/" {
		s.serveIndex(w, r)
		return
	}

	// Hashed bundler output may be referenced from the page root;
	// short-circuit to the chunk store before touching the disk.
	base := path.Base(urlPath)
	if chunks.IsChunkName(base) {
		if content, ok := s.chunks.Get(base); ok {
			s.writeChunk(w, r, base, content)
			return
		}
	}

	resolved, err := s.serveCtx.ResolvePath(urlPath)
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}

	info, statErr := os.Stat(resolved)
	switch {
	case statErr == nil && info.IsDir():
		s.serveIndex(w, r)
		return
	case statErr != nil:
		// SPA routes look like paths without extensions; serve the
		// index for those and a real 404 for missing assets.
		if !strings.Contains(base, ".") {
			s.serveIndex(w, r)
			return
		}
		errors.WriteHTTP(w, &errors.FileNotFoundError{Path: urlPath})
		return
	}

	file, err := s.cache.GetOrLoad(resolved)
	if err != nil {
		errors.WriteHTTP(w, err)
		return
	}

	body := file.Transformed
	contentType := file.Kind.ContentType()
	if contentType == "text/html" {
		body = hmr.InjectClient(body)
	}

	w.Header().Set("Content-Type", contentTypeWithCharset(contentType))
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	if r.Method == http.MethodHead {
		return
	}
	w.Write(body)
}

// handleChunk serves bundler output by name with immutable caching.
func (s *DevServer) handleChunk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/__chunks/")
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "\\") {
		errors.WriteHTTP(w, &errors.FileNotFoundError{Path: r.URL.Path})
		return
	}

	// Only the installed generation is served here. The immutable cache
	// header is honest solely for content-derived names the coordinator
	// put in the store; anything else is a miss.
	content, ok := s.chunks.Get(name)
	if !ok {
		errors.WriteHTTP(w, &errors.FileNotFoundError{Path: r.URL.Path})
		return
	}

	s.writeChunk(w, r, name, content)
}

func (s *DevServer) writeChunk(w http.ResponseWriter, r *http.Request, name string, content []byte) {
	contentType := "application/javascript"
	if strings.HasSuffix(name, ".css") {
		contentType = "text/css"
	}
	w.Header().Set("Content-Type", contentTypeWithCharset(contentType))
	w.Header().Set("Cache-Control", immutableCacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	if r.Method == http.MethodHead {
		return
	}
	w.Write(content)
}

// serveIndex renders the root index.html with the live-reload client
// injected.
func (s *DevServer) serveIndex(w http.ResponseWriter, r *http.Request) {
	indexPath := filepath.Join(s.serveCtx.Root(), "index.html")
	file, err := s.cache.GetOrLoad(indexPath)
	if err != nil {
		if errors.IsNotFound(err) {
			http.Error(w, "no index.html in project root", http.StatusNotFound)
			return
		}
		errors.WriteHTTP(w, err)
		return
	}

	body := hmr.InjectClient(file.Transformed)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	if r.Method == http.MethodHead {
		return
	}
	w.Write(body)
}

func contentTypeWithCharset(contentType string) string {
	switch contentType {
	case "text/html", "text/css", "application/javascript":
		return contentType + "; charset=utf-8"
	default:
		return contentType
	}
}
