package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// Failed auth attempts allowed per IP before blocking.
	maxAuthFailures = 5
	// How long a blocked IP stays blocked.
	authBlockDuration = 60 * time.Second
	// Stories can embed a lot of lore; keep the body limit generous.
	maxBodyBytes = 100 << 20
)

type authFailure struct {
	count int
	last  time.Time
}

// Server answers sync requests against a story store.
type Server struct {
	token    string
	exporter Exporter
	log      *slog.Logger

	mu       sync.Mutex
	events   []Event
	failures map[string]authFailure
}

// NewServer builds a sync server. The token is typically a fresh UUID per
// serving session.
func NewServer(token string, exp Exporter, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		token:    token,
		exporter: exp,
		log:      log,
		failures: make(map[string]authFailure),
	}
}

// TokenToConnectCode derives a 6-digit numeric code from a UUID token for
// manual pairing: first 8 hex chars of the dashless token, base 16,
// mod 1e6.
func TokenToConnectCode(token string) string {
	clean := strings.ReplaceAll(token, "-", "")
	if len(clean) > 8 {
		clean = clean[:8]
	}
	val, err := strconv.ParseUint(clean, 16, 64)
	if err != nil {
		val = 0
	}
	return fmt.Sprintf("%06d", val%1_000_000)
}

// ValidateToken accepts either the full token or its derived connect code.
func ValidateToken(requestToken, serverToken string) bool {
	return requestToken == serverToken || requestToken == TokenToConnectCode(serverToken)
}

// Handler returns the HTTP handler for the sync endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sync", s.handleSync)
	return mux
}

// Events drains the accumulated activity events.
func (s *Server) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

func (s *Server) recordEvent(eventType, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Type: eventType, Message: message})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	clientIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		clientIP = r.RemoteAddr
	}

	if remaining, blocked := s.checkBlocked(clientIP); blocked {
		writeResponse(w, Response{
			Type:    "error",
			Message: fmt.Sprintf("Too many failed attempts. Try again in %d seconds.", remaining),
		})
		return
	}

	var req Request
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeResponse(w, Response{Type: "error", Message: "Malformed sync request"})
		return
	}

	if !ValidateToken(req.Token, s.token) {
		s.recordFailure(clientIP)
		writeResponse(w, Response{Type: "error", Message: "Invalid authentication token"})
		return
	}
	s.clearFailures(clientIP)

	ctx := r.Context()
	switch req.Action.Type {
	case "listStories":
		s.handleListStories(ctx, w)
	case "pullStory":
		s.handlePullStory(ctx, w, req.Action.StoryID)
	case "pushStory":
		s.handlePushStory(ctx, w, req.Action.StoryData)
	default:
		writeResponse(w, Response{Type: "error", Message: fmt.Sprintf("Unknown action: %s", req.Action.Type)})
	}
}

func (s *Server) handleListStories(ctx context.Context, w http.ResponseWriter) {
	previews, err := s.exporter.ListPreviews(ctx)
	if err != nil {
		s.log.Error("sync list failed", "error", err)
		writeResponse(w, Response{Type: "error", Message: "Failed to list stories"})
		return
	}
	s.recordEvent("connected", fmt.Sprintf("Device connected — %d stories available", len(previews)))
	writeResponse(w, Response{Type: "storiesList", Stories: previews})
}

func (s *Server) handlePullStory(ctx context.Context, w http.ResponseWriter, storyID string) {
	data, title, err := s.exporter.ExportStory(ctx, storyID)
	if err != nil {
		s.log.Error("sync pull failed", "story", storyID, "error", err)
		writeResponse(w, Response{Type: "error", Message: fmt.Sprintf("Story not found: %s", storyID)})
		return
	}
	s.recordEvent("pulled", fmt.Sprintf("Sent %q to other device", title))
	writeResponse(w, Response{Type: "storyData", Data: data})
}

func (s *Server) handlePushStory(ctx context.Context, w http.ResponseWriter, storyData string) {
	title, err := s.exporter.ImportStory(ctx, storyData)
	if err != nil {
		s.log.Error("sync push failed", "error", err)
		writeResponse(w, Response{Type: "error", Message: "Failed to import pushed story"})
		return
	}
	s.recordEvent("pushed", fmt.Sprintf("Received %q from other device", title))
	writeResponse(w, Response{Type: "success", Message: fmt.Sprintf("Story %q received", title)})
}

func (s *Server) checkBlocked(ip string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.failures[ip]
	if !ok || f.count < maxAuthFailures {
		return 0, false
	}
	elapsed := time.Since(f.last)
	if elapsed >= authBlockDuration {
		return 0, false
	}
	return int((authBlockDuration - elapsed).Seconds()), true
}

func (s *Server) recordFailure(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.failures[ip]
	if time.Since(f.last) >= authBlockDuration {
		f = authFailure{}
	}
	f.count++
	f.last = time.Now()
	s.failures[ip] = f
}

func (s *Server) clearFailures(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, ip)
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
