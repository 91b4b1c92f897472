package telegram

import (
	"strings"
	"testing"

	"reviewdesk/internal/locales"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func buttonData(markup telego.ReplyMarkup) []string {
	keyboard, ok := markup.(*telego.InlineKeyboardMarkup)
	if !ok {
		return nil
	}
	var data []string
	for _, row := range keyboard.InlineKeyboard {
		for _, b := range row {
			data = append(data, b.CallbackData)
		}
	}
	return data
}

func TestCommands(t *testing.T) {
	t.Run("UnknownCommand", func(t *testing.T) {
		tb := newTestBot(t)
		tb.command(adminID, "/frobnicate")
		assert.Equal(t, []string{locales.Text("en", "MsgErrorUnknownCommand", nil)}, tb.texts())
	})

	t.Run("HelpIsPublic", func(t *testing.T) {
		tb := newTestBot(t)
		tb.command(outsiderID, "/help")
		assert.Equal(t, []string{locales.Text("en", "MsgHelp", nil)}, tb.texts())
		tb.admin.AssertNotCalled(t, "IsAdmin", mock.Anything, outsiderID)
	})

	t.Run("ReviewRequiresAdmin", func(t *testing.T) {
		tb := newTestBot(t)
		tb.command(outsiderID, "/review")
		assert.Equal(t, []string{locales.Text("en", "MsgErrorRequiresAdmin", nil)}, tb.texts())
		_, ok := tb.sessions.get(outsiderID)
		assert.False(t, ok)
	})

	t.Run("ReviewShowsQueue", func(t *testing.T) {
		tb := newTestBot(t)
		tb.command(adminID, "/review songs")

		last := tb.lastSent()
		require.NotNil(t, last)
		assert.Equal(t, telego.ModeHTML, last.ParseMode)
		assert.Contains(t, last.Text, "#1")
		assert.Contains(t, last.Text, "Lemon")
		assert.Contains(t, last.Text, "#2")
		assert.Contains(t, buttonData(last.ReplyMarkup), "rv:a:1")
		assert.Contains(t, buttonData(last.ReplyMarkup), "rv:r:2")
		assert.Contains(t, buttonData(last.ReplyMarkup), "ct:posts")
		tb.users.AssertCalled(t, "UpdateUser", mock.Anything, adminID, "mod", "", "", true, "command_review")
	})

	t.Run("UnknownCategory", func(t *testing.T) {
		tb := newTestBot(t)
		tb.command(adminID, "/review memes")
		assert.Equal(t, []string{locales.Text("en", "MsgUnknownCategory", nil)}, tb.texts())
	})

	t.Run("PageWithoutSession", func(t *testing.T) {
		tb := newTestBot(t)
		tb.command(adminID, "/page 2")
		assert.Equal(t, []string{locales.Text("en", "MsgNoSession", nil)}, tb.texts())
	})

	t.Run("PageNeedsNumber", func(t *testing.T) {
		tb := newTestBot(t)
		tb.command(adminID, "/review")
		tb.command(adminID, "/page zero")
		assert.Equal(t, locales.Text("en", "MsgInvalidNumber", nil), tb.lastSent().Text)
	})

	t.Run("BatchWithEmptySelection", func(t *testing.T) {
		tb := newTestBot(t)
		tb.command(adminID, "/review")
		tb.command(adminID, "/approveall")
		assert.True(t, strings.HasSuffix(tb.lastSent().Text, locales.Text("en", "MsgEmptySelection", nil)))
		assert.Empty(t, tb.backend.Decisions())
	})

	t.Run("Stop", func(t *testing.T) {
		tb := newTestBot(t)
		tb.command(adminID, "/review")
		tb.command(adminID, "/stop")
		assert.Equal(t, locales.Text("en", "MsgSessionClosed", nil), tb.lastSent().Text)
		_, ok := tb.sessions.get(adminID)
		assert.False(t, ok)
	})
}

func TestRejectWithTypedReason(t *testing.T) {
	tb := newTestBot(t)
	tb.actions.On("LogUserAction", adminID, "review_reject", mock.MatchedBy(func(details interface{}) bool {
		m, ok := details.(map[string]interface{})
		return ok && m["reason"] == "duplicate" && m["processed"] == 1
	})).Return(nil).Once()

	tb.command(adminID, "/review")
	tb.press(adminID, "rv:r:1")

	d := tb.pending(t, adminID)
	prompt := tb.lastSent()
	assert.Contains(t, buttonData(prompt.ReplyMarkup), "dc:"+d.ID+":none")
	assert.Contains(t, buttonData(prompt.ReplyMarkup), "dc:"+d.ID+":empty")

	tb.command(adminID, "  duplicate ")

	decisions := tb.backend.Decisions()
	require.Len(t, decisions, 1)
	assert.Equal(t, "reject", decisions[0].Action)
	assert.Equal(t, "song", decisions[0].Category)
	assert.Equal(t, int64(1), decisions[0].ID)
	require.NotNil(t, decisions[0].Reason)
	assert.Equal(t, "duplicate", *decisions[0].Reason)
	tb.actions.AssertExpectations(t)

	s, _ := tb.sessions.get(adminID)
	assert.Empty(t, s.awaitingReason())
	assert.Len(t, s.ctrl.Snapshot().Page.Items, 1, "the queue is fetched again after the decision")
}

func TestRejectReasonButtons(t *testing.T) {
	tests := []struct {
		name       string
		choice     string
		wantReason *string
	}{
		{"NoReason", choiceNoReason, nil},
		{"EmptyReason", choiceEmptyReason, new(string)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBot(t)
			tb.actions.On("LogUserAction", adminID, "review_reject", mock.Anything).Return(nil).Once()

			tb.command(adminID, "/review")
			tb.press(adminID, "rv:r:2")
			d := tb.pending(t, adminID)
			tb.press(adminID, decisionData(d.ID, tt.choice))

			decisions := tb.backend.Decisions()
			require.Len(t, decisions, 1)
			assert.Equal(t, tt.wantReason, decisions[0].Reason)
		})
	}
}

func TestReasonTooLongKeepsPrompt(t *testing.T) {
	tb := newTestBot(t)
	tb.command(adminID, "/review")
	tb.press(adminID, "rv:r:1")
	d := tb.pending(t, adminID)

	tb.command(adminID, strings.Repeat("x", 501))

	assert.Empty(t, tb.backend.Decisions())
	assert.Equal(t, d.ID, tb.pending(t, adminID).ID)
	s, _ := tb.sessions.get(adminID)
	assert.Equal(t, d.ID, s.awaitingReason())
	assert.Contains(t, tb.lastSent().Text, "500")
}

func TestApproveSelection(t *testing.T) {
	tb := newTestBot(t)
	tb.actions.On("LogUserAction", adminID, "review_approve", mock.Anything).Return(nil).Once()

	tb.command(adminID, "/review")
	tb.press(adminID, "rv:s:1")
	tb.press(adminID, "rv:s:2")
	tb.press(adminID, "ba:approve")

	d := tb.pending(t, adminID)
	assert.True(t, d.Batch)
	assert.ElementsMatch(t, []int64{1, 2}, d.Targets)

	tb.press(adminID, decisionData(d.ID, choiceConfirm))

	decisions := tb.backend.Decisions()
	assert.Len(t, decisions, 2)
	for _, dec := range decisions {
		assert.Equal(t, "approve", dec.Action)
		assert.Nil(t, dec.Reason)
	}
	s, _ := tb.sessions.get(adminID)
	assert.Empty(t, s.ctrl.Snapshot().Selection)
	assert.Empty(t, s.ctrl.Snapshot().Page.Items)
}

func TestCancelPrompt(t *testing.T) {
	tb := newTestBot(t)
	tb.command(adminID, "/review")
	tb.press(adminID, "rv:a:1")
	d := tb.pending(t, adminID)

	tb.press(adminID, decisionData(d.ID, choiceCancel))
	tb.press(adminID, decisionData(d.ID, choiceConfirm))

	assert.Empty(t, tb.backend.Decisions())
	tb.actions.AssertNotCalled(t, "LogUserAction", mock.Anything, mock.Anything, mock.Anything)
	tb.api.AssertCalled(t, "AnswerCallbackQuery", mock.Anything, mock.MatchedBy(func(p *telego.AnswerCallbackQueryParams) bool {
		return p.Text == locales.Text("en", "MsgDecisionExpired", nil)
	}))
}

func TestDetailButton(t *testing.T) {
	tb := newTestBot(t)
	tb.command(adminID, "/review")
	tb.press(adminID, "rv:d:1")

	last := tb.lastSent()
	assert.Equal(t, telego.ModeHTML, last.ParseMode)
	assert.Contains(t, last.Text, "<b>Lemon</b>")
	assert.Contains(t, last.Text, "kenshi")
}

func TestCallbackFromOutsider(t *testing.T) {
	tb := newTestBot(t)
	tb.command(adminID, "/review")
	tb.press(outsiderID, "rv:a:1")

	tb.api.AssertCalled(t, "AnswerCallbackQuery", mock.Anything, mock.MatchedBy(func(p *telego.AnswerCallbackQueryParams) bool {
		return p.CallbackQueryID == "q-rv:a:1" && p.Text == locales.Text("en", "MsgErrorRequiresAdmin", nil)
	}))
	s, _ := tb.sessions.get(adminID)
	assert.Nil(t, s.ctrl.Pending())
}

func TestSplitCommand(t *testing.T) {
	cmd, args := splitCommand("/Page@reviewdesk_bot  3 ")
	assert.Equal(t, "page", cmd)
	assert.Equal(t, "3", args)

	cmd, args = splitCommand("/review")
	assert.Equal(t, "review", cmd)
	assert.Empty(t, args)
}
