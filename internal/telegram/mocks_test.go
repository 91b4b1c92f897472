package telegram

import (
	"context"
	"os"
	"sync"
	"testing"

	"reviewdesk/internal/auditapi"
	"reviewdesk/internal/auditapi/auditapitest"
	"reviewdesk/internal/locales"
	"reviewdesk/internal/review"

	"github.com/benbjohnson/clock"
	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := locales.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// --- Mocks ---

// MockBot is a mock implementing the telegoapi.BotAPI interface.
type MockBot struct {
	mock.Mock
}

func (m *MockBot) GetMe(ctx context.Context) (*telego.User, error) {
	args := m.Called(ctx)
	if user, ok := args.Get(0).(*telego.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error {
	return m.Called(ctx, params).Error(0)
}

func (m *MockBot) SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error {
	return m.Called(ctx, params).Error(0)
}

func (m *MockBot) GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	args := m.Called(ctx, params)
	if member, ok := args.Get(0).(telego.ChatMember); ok {
		return member, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAdminChecker is a mock for auth.AdminCheckerInterface.
type MockAdminChecker struct {
	mock.Mock
}

func (m *MockAdminChecker) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// MockUserActionLogger is a mock for database.UserActionLogger.
type MockUserActionLogger struct {
	mock.Mock
}

func (m *MockUserActionLogger) LogUserAction(userID int64, action string, details interface{}) error {
	return m.Called(userID, action, details).Error(0)
}

// MockUserRepository is a mock for database.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) UpdateUser(ctx context.Context, userID int64, username, firstName, lastName string, isAdmin bool, action string) error {
	return m.Called(ctx, userID, username, firstName, lastName, isAdmin, action).Error(0)
}

// --- Helpers ---

const (
	adminID    = int64(7)
	outsiderID = int64(8)
)

type testBot struct {
	*Bot
	api     *MockBot
	admin   *MockAdminChecker
	actions *MockUserActionLogger
	users   *MockUserRepository
	backend *auditapitest.Server

	mu     sync.Mutex
	sent   []*telego.SendMessageParams
	edited []*telego.EditMessageTextParams
}

// newTestBot wires a Bot to mocks and an in-memory audit API. The review
// clock is a mock that is never advanced, so no background refresh runs.
func newTestBot(t *testing.T) *testBot {
	t.Helper()
	tb := &testBot{
		api:     new(MockBot),
		admin:   new(MockAdminChecker),
		actions: new(MockUserActionLogger),
		users:   new(MockUserRepository),
		backend: auditapitest.NewServer(t),
	}
	tb.backend.AddSongs(
		auditapi.SongItem{SongID: 1, SongName: "Lemon", Style: "pop", CreatorName: "kenshi"},
		auditapi.SongItem{SongID: 2, SongName: "Uchiage", Style: "ballad", CreatorName: "daoko"},
	)

	tb.admin.On("IsAdmin", mock.Anything, adminID).Return(true, nil)
	tb.admin.On("IsAdmin", mock.Anything, outsiderID).Return(false, nil)
	tb.users.On("UpdateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tb.api.On("SendMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			tb.mu.Lock()
			tb.sent = append(tb.sent, args.Get(1).(*telego.SendMessageParams))
			tb.mu.Unlock()
		}).
		Return(&telego.Message{MessageID: 100}, nil)
	tb.api.On("EditMessageText", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			tb.mu.Lock()
			tb.edited = append(tb.edited, args.Get(1).(*telego.EditMessageTextParams))
			tb.mu.Unlock()
		}).
		Return(&telego.Message{MessageID: 100}, nil).Maybe()
	tb.api.On("AnswerCallbackQuery", mock.Anything, mock.Anything).Return(nil).Maybe()

	bot, err := New(BotDeps{
		Bot:           tb.api,
		UpdatesChan:   make(chan telego.Update),
		AdminChecker:  tb.admin,
		ActionLogger:  tb.actions,
		UserRepo:      tb.users,
		Registry:      review.NewRegistry(tb.backend.Client(t)),
		ReviewOptions: review.Options{Clock: clock.NewMock()},
	})
	require.NoError(t, err)
	tb.Bot = bot
	t.Cleanup(bot.Stop)
	return tb
}

func (tb *testBot) texts() []string {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	out := make([]string, len(tb.sent))
	for i, p := range tb.sent {
		out[i] = p.Text
	}
	return out
}

func (tb *testBot) lastSent() *telego.SendMessageParams {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if len(tb.sent) == 0 {
		return nil
	}
	return tb.sent[len(tb.sent)-1]
}

func (tb *testBot) command(from int64, text string) {
	tb.processUpdate(context.Background(), telego.Update{Message: &telego.Message{
		MessageID: 1,
		From:      &telego.User{ID: from, Username: "mod"},
		Chat:      telego.Chat{ID: from},
		Text:      text,
	}})
}

func (tb *testBot) press(from int64, data string) {
	tb.processUpdate(context.Background(), telego.Update{CallbackQuery: &telego.CallbackQuery{
		ID:      "q-" + data,
		From:    telego.User{ID: from},
		Message: &telego.Message{MessageID: 55, Chat: telego.Chat{ID: from}, Text: "prompt"},
		Data:    data,
	}})
}

func (tb *testBot) pending(t *testing.T, chatID int64) *review.PendingDecision {
	t.Helper()
	s, ok := tb.sessions.get(chatID)
	require.True(t, ok)
	d := s.ctrl.Pending()
	require.NotNil(t, d)
	return d
}
