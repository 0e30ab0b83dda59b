package server

import (
	"embed"
	"io/fs"
	"log"
	"net/http"

	"github.com/privscope/privscope/pkg/storage"
)

//go:embed web
var WebFS embed.FS

type Server struct {
	DB       *storage.DB
	Username string
	Password string
}

func New(db *storage.DB, user, pass string) *Server {
	return &Server{
		DB:       db,
		Username: user,
		Password: pass,
	}
}

func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	// API Group
	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))
	mux.HandleFunc("GET /api/snapshots", s.basicAuth(s.handleSnapshots))
	mux.HandleFunc("GET /api/snapshots/latest", s.basicAuth(s.handleLatestSnapshot))
	mux.HandleFunc("GET /api/changes", s.basicAuth(s.handleChanges))
	mux.HandleFunc("GET /api/templates", s.basicAuth(s.handleTemplates))

	// Static Files
	webRoot, err := fs.Sub(WebFS, "web")
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(webRoot))
	mux.Handle("/", s.basicAuthMiddlewareForStatic(fileServer))

	log.Printf("Starting server on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) basicAuthMiddlewareForStatic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
