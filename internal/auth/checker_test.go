package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

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

func TestIsAdmin(t *testing.T) {
	ctx := context.Background()
	const channelID = int64(-100123)

	forUser := func(userID int64) interface{} {
		return mock.MatchedBy(func(p *telego.GetChatMemberParams) bool {
			return p.ChatID.ID == channelID && p.UserID == userID
		})
	}

	bot := new(MockBot)
	bot.On("GetChatMember", ctx, forUser(1)).Return(&telego.ChatMemberOwner{Status: telego.MemberStatusCreator}, nil)
	bot.On("GetChatMember", ctx, forUser(2)).Return(&telego.ChatMemberAdministrator{Status: telego.MemberStatusAdministrator}, nil)
	bot.On("GetChatMember", ctx, forUser(3)).Return(&telego.ChatMemberMember{Status: telego.MemberStatusMember}, nil)
	bot.On("GetChatMember", ctx, forUser(4)).Return(nil, errors.New("Bad Request: user not found"))
	bot.On("GetChatMember", ctx, forUser(5)).Return(nil, errors.New("connection reset"))

	checker, err := NewAdminChecker(bot, channelID, WithStatusTTL(0))
	require.NoError(t, err)

	tests := []struct {
		name    string
		userID  int64
		want    bool
		wantErr bool
	}{
		{"Creator", 1, true, false},
		{"Administrator", 2, true, false},
		{"Member", 3, false, false},
		{"NotFound", 4, false, false},
		{"APIError", 5, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checker.IsAdmin(ctx, tt.userID)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewAdminCheckerValidation(t *testing.T) {
	_, err := NewAdminChecker(nil, 1)
	assert.Error(t, err)
	_, err = NewAdminChecker(new(MockBot), 0)
	assert.Error(t, err)
}

func TestIsAdminCachesStatus(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()

	bot := new(MockBot)
	bot.On("GetChatMember", ctx, mock.Anything).
		Return(&telego.ChatMemberAdministrator{Status: telego.MemberStatusAdministrator}, nil).Twice()
	bot.On("GetChatMember", ctx, mock.Anything).
		Return(nil, errors.New("connection reset")).Once()

	checker, err := NewAdminChecker(bot, -100123, WithClock(clk), WithStatusTTL(time.Minute))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := checker.IsAdmin(ctx, 7)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	bot.AssertNumberOfCalls(t, "GetChatMember", 1)

	clk.Add(time.Minute)
	ok, err := checker.IsAdmin(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	bot.AssertNumberOfCalls(t, "GetChatMember", 2)

	checker.Forget(7)
	_, err = checker.IsAdmin(ctx, 7)
	assert.Error(t, err)
	bot.AssertNumberOfCalls(t, "GetChatMember", 3)
}
