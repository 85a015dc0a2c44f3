package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/coffersTech/jsonsink/internal/logstore"
	"github.com/valyala/fastjson"
	"golang.org/x/crypto/bcrypt"
)

// AckMessage is the body returned for every accepted payload.
const AckMessage = "Data received and written to file"

// Appender persists one raw payload.
type Appender interface {
	Append(payload []byte) error
}

// StatsProvider is implemented by stores that can report their state.
type StatsProvider interface {
	Stats() logstore.Stats
}

// Options tunes the ingest server.
type Options struct {
	// Strict rejects payloads that are not a single JSON value.
	Strict bool
	// TokenHash is a bcrypt hash. When set, requests must carry the matching bearer token.
	TokenHash string
}

type IngestServer struct {
	store         Appender
	opts          Options
	srv           *http.Server
	ingestCounter int64 // accepted payloads
	rejectCounter int64 // failed or rejected payloads
}

func NewIngestServer(store Appender, opts Options) *IngestServer {
	s := &IngestServer{
		store: store,
		opts:  opts,
	}
	s.srv = &http.Server{Handler: s.Handler()}
	return s
}

// Handler returns the routes served by the ingest server.
func (s *IngestServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/", s.handleIngest)

	if s.opts.TokenHash != "" {
		return s.AuthMiddleware(mux)
	}
	return mux
}

// Start runs the HTTP server until Shutdown is called. It returns nil at
// once if Shutdown already ran.
func (s *IngestServer) Start(addr string) error {
	s.srv.Addr = addr
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *IngestServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// AuthMiddleware checks the bearer token against the configured bcrypt hash.
func (s *IngestServer) AuthMiddleware(next http.Handler) http.Handler {
	hash := []byte(s.opts.TokenHash)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		var token string
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			token = r.URL.Query().Get("token")
		}

		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="jsonsink"`)
			http.Error(w, "Unauthorized: Missing token", http.StatusUnauthorized)
			return
		}

		if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="jsonsink"`)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleIngest appends the unmodified request body as one log entry.
func (s *IngestServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Failed to read body: %v", err)
		atomic.AddInt64(&s.rejectCounter, 1)
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if s.opts.Strict {
		if err := fastjson.ValidateBytes(body); err != nil {
			atomic.AddInt64(&s.rejectCounter, 1)
			http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
			return
		}
	}

	if err := s.store.Append(body); err != nil {
		log.Printf("Append error: %v", err)
		atomic.AddInt64(&s.rejectCounter, 1)
		http.Error(w, "Failed to write payload", http.StatusInternalServerError)
		return
	}
	atomic.AddInt64(&s.ingestCounter, 1)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, AckMessage)
}

type statusResponse struct {
	logstore.Stats
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
}

// handleStatus reports the store state and request counters.
func (s *IngestServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sp, ok := s.store.(StatsProvider)
	if !ok {
		http.NotFound(w, r)
		return
	}

	resp := statusResponse{
		Stats:    sp.Stats(),
		Accepted: atomic.LoadInt64(&s.ingestCounter),
		Rejected: atomic.LoadInt64(&s.rejectCounter),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("JSON encode error: %v", err)
	}
}
