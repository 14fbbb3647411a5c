// Package mockserver serves canned GraphQL responses for trying out and
// testing the query pipeline without a real backend.
package mockserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
)

// Path is the route of the GraphQL endpoint.
const Path = "/graphql"

// Server answers GraphQL requests from Fixtures.
type Server struct {
	fixtures Fixtures
	logger   *slog.Logger
	requests atomic.Int64
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// New creates a server for fixtures.
func New(fixtures Fixtures, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{fixtures: fixtures, logger: logger}
}

// Requests returns the number of GraphQL requests served so far.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Router returns the HTTP routes of the server.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc(Path, s.handlePost).Methods(http.MethodPost)
	router.HandleFunc(Path, s.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	return router
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	s.respond(w, req)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := graphQLRequest{Query: q.Get("query")}
	if vars := q.Get("variables"); vars != "" {
		if err := json.Unmarshal([]byte(vars), &req.Variables); err != nil {
			writeErrors(w, http.StatusBadRequest, "malformed variables: "+err.Error())
			return
		}
	}
	s.respond(w, req)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "healthy",
		"requests": s.Requests(),
	})
}

func (s *Server) respond(w http.ResponseWriter, req graphQLRequest) {
	s.requests.Add(1)
	if req.Query == "" {
		writeErrors(w, http.StatusBadRequest, "missing query")
		return
	}

	res, ok := s.fixtures.find(req.Query, req.Variables)
	if !ok {
		s.logger.Warn("no fixture for request", "query", req.Query)
		writeErrors(w, http.StatusOK, "no fixture matches query")
		return
	}
	if res.Delay > 0 {
		time.Sleep(res.Delay)
	}

	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	s.logger.Debug("serving fixture", "match", res.Match, "status", status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res.Body)
}

func writeErrors(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]any{{"message": message}},
	})
}
