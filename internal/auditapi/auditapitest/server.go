// Package auditapitest provides an in-memory audit API for tests.
package auditapitest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"reviewdesk/internal/auditapi"
	"reviewdesk/internal/config"

	"github.com/goccy/go-json"
)

// Decision is one approve or reject request the server received.
type Decision struct {
	Action   string // "approve" or "reject"
	Category string // "song", "post" or "reply"
	ID       int64
	Reason   *string
}

// Server serves the pending queues and records decisions. Decided items
// leave their queue.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	songs     []auditapi.SongItem
	posts     []auditapi.PostItem
	replies   []auditapi.ReplyItem
	decisions []Decision
	failing   map[int64]string
	gate      chan struct{}
	held      int
}

// NewServer starts a server that is closed when t finishes.
func NewServer(t testing.TB) *Server {
	s := &Server{failing: make(map[int64]string)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Client returns an API client pointed at the server.
func (s *Server) Client(t testing.TB) *auditapi.Client {
	c, err := auditapi.NewClient(s.URL)
	if err != nil {
		t.Fatalf("auditapitest: %v", err)
	}
	return c
}

func (s *Server) AddSongs(items ...auditapi.SongItem) {
	s.mu.Lock()
	s.songs = append(s.songs, items...)
	s.mu.Unlock()
}

func (s *Server) AddPosts(items ...auditapi.PostItem) {
	s.mu.Lock()
	s.posts = append(s.posts, items...)
	s.mu.Unlock()
}

func (s *Server) AddReplies(items ...auditapi.ReplyItem) {
	s.mu.Lock()
	s.replies = append(s.replies, items...)
	s.mu.Unlock()
}

// FailDecision makes decisions on id fail with a server rejection.
func (s *Server) FailDecision(id int64, message string) {
	s.mu.Lock()
	s.failing[id] = message
	s.mu.Unlock()
}

// HoldLists makes queue listings wait until the returned release function
// is called. Release may be called more than once.
func (s *Server) HoldLists() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Held returns how many listings are waiting on HoldLists.
func (s *Server) Held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}

func (s *Server) waitGate() {
	s.mu.Lock()
	gate := s.gate
	if gate != nil {
		s.held++
	}
	s.mu.Unlock()
	if gate == nil {
		return
	}
	<-gate
	s.mu.Lock()
	s.held--
	s.mu.Unlock()
}

// Decisions returns the decisions received so far.
func (s *Server) Decisions() []Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Decision(nil), s.decisions...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	endpoints := config.DefaultEndpoints()
	path := r.URL.Path

	switch {
	case r.Method == http.MethodGet && path == endpoints.PendingSongs:
		s.waitGate()
		s.mu.Lock()
		writePage(w, r, s.songs)
		s.mu.Unlock()
	case r.Method == http.MethodGet && path == endpoints.PendingPosts:
		s.waitGate()
		s.mu.Lock()
		writePage(w, r, s.posts)
		s.mu.Unlock()
	case r.Method == http.MethodGet && path == endpoints.PendingReplies:
		s.waitGate()
		s.mu.Lock()
		writePage(w, r, s.replies)
		s.mu.Unlock()
	case r.Method == http.MethodPatch && strings.HasPrefix(path, "/admin/audit/"):
		s.decide(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/song/getSongDetail/"):
		s.songDetail(w, path)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/forum/postDetail/"):
		s.postDetail(w, path)
	case r.Method == http.MethodPost && path == endpoints.PostReplies:
		s.postReplies(w, r)
	default:
		http.NotFound(w, r)
	}
}

// item is implemented by every queue row type.
type item interface {
	ItemID() int64
}

// decide handles /admin/audit/{category}/{action}/{id}.
func (s *Server) decide(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/admin/audit/"), "/")
	if len(parts) != 3 {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	d := Decision{Category: parts[0], Action: parts[1], ID: id}
	if values, ok := r.URL.Query()["reason"]; ok && len(values) > 0 {
		reason := values[0]
		d.Reason = &reason
	}

	s.mu.Lock()
	s.decisions = append(s.decisions, d)
	message, fail := s.failing[id]
	if !fail {
		s.remove(d.Category, id)
	}
	s.mu.Unlock()

	if fail {
		writeEnvelope(w, 500, message, nil)
		return
	}
	writeEnvelope(w, auditapi.CodeSuccess, "success", nil)
}

func (s *Server) remove(category string, id int64) {
	switch category {
	case "song":
		s.songs = without(s.songs, id)
	case "post":
		s.posts = without(s.posts, id)
	case "reply":
		s.replies = without(s.replies, id)
	}
}

func (s *Server) songDetail(w http.ResponseWriter, path string) {
	id, _ := strconv.ParseInt(path[strings.LastIndex(path, "/")+1:], 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, song := range s.songs {
		if song.SongID == id {
			writeEnvelope(w, auditapi.CodeSuccess, "success", auditapi.SongDetail{
				SongID:      song.SongID,
				SongName:    song.SongName,
				Style:       song.Style,
				CreatorName: song.CreatorName,
				CreateTime:  song.CreateTime,
			})
			return
		}
	}
	writeEnvelope(w, 404, "song not found", nil)
}

func (s *Server) postDetail(w http.ResponseWriter, path string) {
	id, _ := strconv.ParseInt(path[strings.LastIndex(path, "/")+1:], 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, post := range s.posts {
		if post.PostID == id {
			writeEnvelope(w, auditapi.CodeSuccess, "success", auditapi.PostDetail{
				PostID:   post.PostID,
				Title:    post.Title,
				Content:  post.Content,
				Username: post.Username,
			})
			return
		}
	}
	writeEnvelope(w, auditapi.CodeSuccess, "success", auditapi.PostDetail{PostID: id, Title: "post " + strconv.FormatInt(id, 10)})
}

func (s *Server) postReplies(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PostID int64 `json:"postId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []auditapi.ReplyItem{}
	for _, reply := range s.replies {
		if reply.PostID == req.PostID {
			items = append(items, reply)
		}
	}
	writeEnvelope(w, auditapi.CodeSuccess, "success", auditapi.Page[auditapi.ReplyItem]{Items: items, Total: int64(len(items))})
}

func writePage[T item](w http.ResponseWriter, r *http.Request, all []T) {
	pageNum, _ := strconv.Atoi(r.URL.Query().Get("pageNum"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageNum < 1 {
		pageNum = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	start := (pageNum - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	items := append([]T{}, all[start:end]...)
	writeEnvelope(w, auditapi.CodeSuccess, "success", auditapi.Page[T]{Items: items, Total: int64(len(all))})
}

func writeEnvelope(w http.ResponseWriter, code int, message string, data interface{}) {
	body := map[string]interface{}{"code": code, "message": message}
	if data != nil {
		body["data"] = data
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func without[T item](items []T, id int64) []T {
	out := items[:0]
	for _, item := range items {
		if item.ItemID() != id {
			out = append(out, item)
		}
	}
	return out
}
