package review

import (
	"context"
	"sync"
	"testing"
	"time"

	"reviewdesk/internal/auditapi"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

// MockBackend is a mock implementing Backend.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) PendingSongs(ctx context.Context, pageNum, pageSize int) (*auditapi.Page[auditapi.SongItem], error) {
	args := m.Called(ctx, pageNum, pageSize)
	if page, ok := args.Get(0).(*auditapi.Page[auditapi.SongItem]); ok {
		return page, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) PendingPosts(ctx context.Context, pageNum, pageSize int) (*auditapi.Page[auditapi.PostItem], error) {
	args := m.Called(ctx, pageNum, pageSize)
	if page, ok := args.Get(0).(*auditapi.Page[auditapi.PostItem]); ok {
		return page, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) PendingReplies(ctx context.Context, pageNum, pageSize int) (*auditapi.Page[auditapi.ReplyItem], error) {
	args := m.Called(ctx, pageNum, pageSize)
	if page, ok := args.Get(0).(*auditapi.Page[auditapi.ReplyItem]); ok {
		return page, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) ApproveSong(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockBackend) RejectSong(ctx context.Context, id int64, reason *string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *MockBackend) ApprovePost(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockBackend) RejectPost(ctx context.Context, id int64, reason *string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *MockBackend) ApproveReply(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockBackend) RejectReply(ctx context.Context, id int64, reason *string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *MockBackend) SongDetail(ctx context.Context, id int64) (*auditapi.SongDetail, error) {
	args := m.Called(ctx, id)
	if song, ok := args.Get(0).(*auditapi.SongDetail); ok {
		return song, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) PostDetail(ctx context.Context, id int64) (*auditapi.PostDetail, error) {
	args := m.Called(ctx, id)
	if post, ok := args.Get(0).(*auditapi.PostDetail); ok {
		return post, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) PostReplies(ctx context.Context, postID int64, pageNum, pageSize int) (*auditapi.Page[auditapi.ReplyItem], error) {
	args := m.Called(ctx, postID, pageNum, pageSize)
	if page, ok := args.Get(0).(*auditapi.Page[auditapi.ReplyItem]); ok {
		return page, args.Error(1)
	}
	return nil, args.Error(1)
}

// noticeRecorder is a Notifier that keeps every notice.
type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *noticeRecorder) all() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

func (r *noticeRecorder) byLevel(level Level) []Notice {
	var out []Notice
	for _, n := range r.all() {
		if n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

// --- Helpers ---

type testSession struct {
	backend *MockBackend
	notices *noticeRecorder
	clock   *clock.Mock
	ctrl    *Controller
}

func newTestSession(t *testing.T, opts Options) *testSession {
	t.Helper()
	s := &testSession{
		backend: new(MockBackend),
		notices: &noticeRecorder{},
		clock:   clock.NewMock(),
	}
	opts.Clock = s.clock
	s.ctrl = NewController(NewRegistry(s.backend), s.notices, opts)
	t.Cleanup(s.ctrl.Close)
	return s
}

func songsPage(n int, total int64) *auditapi.Page[auditapi.SongItem] {
	page := &auditapi.Page[auditapi.SongItem]{Total: total}
	for i := 1; i <= n; i++ {
		page.Items = append(page.Items, auditapi.SongItem{SongID: int64(i), SongName: "song"})
	}
	return page
}

func strPtr(s string) *string { return &s }

func nilReason() interface{} {
	return mock.MatchedBy(func(r *string) bool { return r == nil })
}

func reasonEq(want string) interface{} {
	return mock.MatchedBy(func(r *string) bool { return r != nil && *r == want })
}

// barrier lets n concurrent callers meet. wait returns false when fewer
// than n arrived before the timeout.
type barrier struct {
	mu      sync.Mutex
	n       int
	arrived int
	all     chan struct{}
}

func newBarrier(n int) *barrier {
	return &barrier{n: n, all: make(chan struct{})}
}

func (b *barrier) arrive() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.arrived++
	if b.arrived == b.n {
		close(b.all)
	}
}

func (b *barrier) wait(timeout time.Duration) bool {
	select {
	case <-b.all:
		return true
	case <-time.After(timeout):
		return false
	}
}
