package telegram

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	"reviewdesk/internal/locales"
	"reviewdesk/internal/review"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

type commandHandler struct {
	fn            func(ctx context.Context, req *request) error
	adminOnly     bool
	descriptionID string
}

// commandOrder is the order commands are listed in the client menu.
var commandOrder = []string{
	"start", "help", "review", "page", "size", "refresh", "pause", "resume",
	"select", "clear", "approveall", "rejectall", "stop",
}

func defaultCommands() map[string]commandHandler {
	return map[string]commandHandler{
		"start":      {fn: handleHelp, descriptionID: "CmdStartDescription"},
		"help":       {fn: handleHelp, descriptionID: "CmdHelpDescription"},
		"review":     {fn: handleReview, adminOnly: true, descriptionID: "CmdReviewDescription"},
		"page":       {fn: handlePage, adminOnly: true, descriptionID: "CmdPageDescription"},
		"size":       {fn: handleSize, adminOnly: true, descriptionID: "CmdSizeDescription"},
		"refresh":    {fn: handleRefresh, adminOnly: true, descriptionID: "CmdRefreshDescription"},
		"pause":      {fn: handleVisibility(false), adminOnly: true, descriptionID: "CmdPauseDescription"},
		"resume":     {fn: handleVisibility(true), adminOnly: true, descriptionID: "CmdResumeDescription"},
		"select":     {fn: handleSelect, adminOnly: true, descriptionID: "CmdSelectDescription"},
		"clear":      {fn: handleClear, adminOnly: true, descriptionID: "CmdClearDescription"},
		"approveall": {fn: handleBatch(review.ActionApprove), adminOnly: true, descriptionID: "CmdApproveAllDescription"},
		"rejectall":  {fn: handleBatch(review.ActionReject), adminOnly: true, descriptionID: "CmdRejectAllDescription"},
		"stop":       {fn: handleStop, adminOnly: true, descriptionID: "CmdStopDescription"},
	}
}

// request is one command, button press or typed reason from a moderator.
type request struct {
	bot     *Bot
	chatID  int64
	user    *telego.User
	lang    string
	args    string
	queryID string
	// answered is set once the callback query got its answer.
	answered bool
}

// say tells the moderator msgID: as the callback answer for button
// presses, as a chat message otherwise.
func (r *request) say(ctx context.Context, msgID string, data map[string]interface{}) {
	text := locales.Text(r.lang, msgID, data)
	if r.queryID != "" && !r.answered {
		r.answered = true
		if err := r.bot.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{CallbackQueryID: r.queryID, Text: text}); err != nil {
			log.Printf("[Callback User:%d] Failed to answer query: %v", r.user.ID, err)
		}
		return
	}
	r.bot.reply(ctx, r.chatID, text)
}

// session returns the chat's review session, telling the moderator when
// there is none.
func (r *request) session(ctx context.Context) (*session, bool) {
	s, ok := r.bot.sessions.get(r.chatID)
	if !ok {
		r.say(ctx, "MsgNoSession", nil)
	}
	return s, ok
}

// explain reports a review error the controller did not already notify.
func (r *request) explain(ctx context.Context, err error) {
	switch {
	case err == nil:
	case errors.Is(err, review.ErrUnknownItem):
		r.say(ctx, "MsgItemGone", nil)
	case errors.Is(err, review.ErrDecisionNotPending):
		r.say(ctx, "MsgDecisionExpired", nil)
	case errors.Is(err, review.ErrInvalidPage):
		r.say(ctx, "MsgInvalidNumber", nil)
	case errors.Is(err, review.ErrClosed):
		r.say(ctx, "MsgNoSession", nil)
	default:
		// Empty selections, long reasons and backend failures were
		// already reported through the session's notifier.
		log.Printf("[Review Chat:%d] %s: %v", r.chatID, review.Classify(err), err)
	}
}

func (r *request) showPrompt(ctx context.Context, s *session, d *review.PendingDecision) error {
	text, keyboard := renderPrompt(d, r.lang)
	if d.Action == review.ActionReject {
		s.awaitReason(d.ID)
	}
	_, err := r.bot.bot.SendMessage(ctx, tu.Message(tu.ID(r.chatID), text).WithReplyMarkup(keyboard))
	return err
}

// confirm executes the pending decision and records it in the action log.
func (r *request) confirm(ctx context.Context, s *session, decisionID string, reason *string) error {
	outcome, err := s.ctrl.Confirm(ctx, decisionID, reason)
	if errors.Is(err, review.ErrReasonTooLong) {
		return nil
	}
	s.stopAwaiting(decisionID)
	if outcome == nil {
		r.explain(ctx, err)
		return nil
	}

	details := map[string]interface{}{
		"decision_id": outcome.DecisionID,
		"category":    outcome.Category.Key(),
		"ids":         outcome.Targets,
		"batch":       outcome.Batch,
		"processed":   outcome.Processed,
		"failed":      outcome.Failed,
		"chat_id":     r.chatID,
	}
	if outcome.Reason != nil {
		details["reason"] = *outcome.Reason
	}
	if logErr := r.bot.actionLogger.LogUserAction(r.user.ID, "review_"+string(outcome.Action), details); logErr != nil {
		log.Printf("[Review User:%d] Failed to log decision %s: %v", r.user.ID, outcome.DecisionID, logErr)
	}
	r.bot.recordActivity(ctx, r.user, "review_"+string(outcome.Action), true)
	r.explain(ctx, err)
	return r.bot.sessions.showQueue(ctx, s, false)
}

func handleHelp(ctx context.Context, req *request) error {
	req.say(ctx, "MsgHelp", nil)
	return nil
}

func handleReview(ctx context.Context, req *request) error {
	c := review.CategorySong
	if req.args != "" {
		parsed, err := review.ParseCategory(req.args)
		if err != nil {
			req.say(ctx, "MsgUnknownCategory", nil)
			return nil
		}
		c = parsed
	}
	s, err := req.bot.sessions.open(ctx, req.chatID, req.lang, c)
	req.explain(ctx, err)
	if s == nil {
		return nil
	}
	return req.bot.sessions.showQueue(ctx, s, true)
}

func handlePage(ctx context.Context, req *request) error {
	return withNumber(ctx, req, func(s *session, n int) error { return s.ctrl.SetPage(ctx, n) })
}

func handleSize(ctx context.Context, req *request) error {
	return withNumber(ctx, req, func(s *session, n int) error { return s.ctrl.SetPageSize(ctx, n) })
}

func withNumber(ctx context.Context, req *request, apply func(*session, int) error) error {
	s, ok := req.session(ctx)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(req.args))
	if err != nil || n < 1 {
		req.say(ctx, "MsgInvalidNumber", nil)
		return nil
	}
	if err := apply(s, n); err != nil {
		req.explain(ctx, err)
		return nil
	}
	return req.bot.sessions.showQueue(ctx, s, true)
}

func handleRefresh(ctx context.Context, req *request) error {
	s, ok := req.session(ctx)
	if !ok {
		return nil
	}
	if err := s.ctrl.Search(ctx); err != nil {
		req.explain(ctx, err)
		return nil
	}
	return req.bot.sessions.showQueue(ctx, s, true)
}

// handleVisibility pauses or resumes the background refresh. Pausing marks
// the chat's queue view hidden; resuming refreshes at once.
func handleVisibility(visible bool) func(context.Context, *request) error {
	return func(ctx context.Context, req *request) error {
		s, ok := req.session(ctx)
		if !ok {
			return nil
		}
		s.visibility.Set(visible)
		if visible {
			req.say(ctx, "MsgResumed", nil)
		} else {
			req.say(ctx, "MsgPaused", nil)
		}
		return req.bot.sessions.showQueue(ctx, s, false)
	}
}

func handleSelect(ctx context.Context, req *request) error {
	s, ok := req.session(ctx)
	if !ok {
		return nil
	}
	var ids []int64
	for _, field := range strings.FieldsFunc(req.args, func(r rune) bool { return r == ',' || r == ' ' }) {
		id, err := strconv.ParseInt(strings.TrimPrefix(field, "#"), 10, 64)
		if err != nil {
			req.say(ctx, "MsgInvalidNumber", nil)
			return nil
		}
		ids = append(ids, id)
	}
	s.ctrl.SetSelection(ids)
	req.say(ctx, "MsgSelectionSet", map[string]interface{}{"Count": len(s.ctrl.Snapshot().Selection)})
	return req.bot.sessions.showQueue(ctx, s, false)
}

func handleClear(ctx context.Context, req *request) error {
	s, ok := req.session(ctx)
	if !ok {
		return nil
	}
	s.ctrl.ClearSelection()
	req.say(ctx, "MsgSelectionCleared", nil)
	return req.bot.sessions.showQueue(ctx, s, false)
}

func handleBatch(action review.Action) func(context.Context, *request) error {
	return func(ctx context.Context, req *request) error {
		s, ok := req.session(ctx)
		if !ok {
			return nil
		}
		d, err := s.ctrl.BeginBatch(ctx, action)
		if err != nil {
			req.explain(ctx, err)
			return nil
		}
		return req.showPrompt(ctx, s, d)
	}
}

func handleStop(ctx context.Context, req *request) error {
	if !req.bot.sessions.close(req.chatID) {
		req.say(ctx, "MsgNoSession", nil)
		return nil
	}
	req.say(ctx, "MsgSessionClosed", nil)
	return nil
}
