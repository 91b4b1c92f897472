package telegram

import (
	"context"
	"fmt"
	"log"

	"reviewdesk/internal/locales"
	"reviewdesk/internal/review"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// handleCallbackQuery processes a press on one of the review keyboards.
func (b *Bot) handleCallbackQuery(ctx context.Context, query telego.CallbackQuery) {
	logPrefix := fmt.Sprintf("[Callback User:%d QueryID:%s]", query.From.ID, query.ID)
	if b.debug {
		log.Printf("%s Received callback query with data: %q", logPrefix, query.Data)
	}

	req := &request{bot: b, user: &query.From, lang: userLanguage(&query.From), queryID: query.ID}
	defer func() {
		if !req.answered {
			_ = b.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{CallbackQueryID: query.ID})
		}
	}()

	msg, ok := query.Message.(*telego.Message)
	if !ok || msg == nil {
		log.Printf("%s Callback without an accessible message", logPrefix)
		req.say(ctx, "MsgCallbackNotHandled", nil)
		return
	}
	req.chatID = msg.Chat.ID

	data, err := parseCallbackData(query.Data)
	if err != nil {
		log.Printf("%s %v", logPrefix, err)
		req.say(ctx, "MsgCallbackNotHandled", nil)
		return
	}

	isAdmin, err := b.adminChecker.IsAdmin(ctx, query.From.ID)
	if err != nil {
		log.Printf("%s Error checking admin status: %v", logPrefix, err)
		req.say(ctx, "MsgErrorGeneral", nil)
		return
	}
	if !isAdmin {
		req.say(ctx, "MsgErrorRequiresAdmin", nil)
		return
	}

	s, ok := req.session(ctx)
	if !ok {
		return
	}

	if err := b.dispatchCallback(ctx, req, s, data, msg); err != nil {
		log.Printf("%s Handler error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s callback handler error: %w", logPrefix, err))
		req.say(ctx, "MsgErrorGeneral", nil)
	}
}

func (b *Bot) dispatchCallback(ctx context.Context, req *request, s *session, data callbackData, msg *telego.Message) error {
	switch data.kind {
	case dataRefresh:
		if err := s.ctrl.Search(ctx); err != nil {
			req.explain(ctx, err)
			return nil
		}
		return b.sessions.showQueue(ctx, s, false)

	case prefixPage:
		if err := s.ctrl.SetPage(ctx, data.n); err != nil {
			req.explain(ctx, err)
			return nil
		}
		return b.sessions.showQueue(ctx, s, false)

	case prefixCategory:
		if err := s.ctrl.SwitchCategory(ctx, data.category); err != nil {
			req.explain(ctx, err)
			return nil
		}
		return b.sessions.showQueue(ctx, s, false)

	case prefixBatch:
		d, err := s.ctrl.BeginBatch(ctx, data.action)
		if err != nil {
			req.explain(ctx, err)
			return nil
		}
		return req.showPrompt(ctx, s, d)

	case prefixRow:
		return b.handleRowCallback(ctx, req, s, data)

	case prefixDecision:
		return b.handleDecisionCallback(ctx, req, s, data, msg)
	}
	return fmt.Errorf("unhandled callback kind %q", data.kind)
}

func (b *Bot) handleRowCallback(ctx context.Context, req *request, s *session, data callbackData) error {
	switch data.op {
	case opSelect:
		s.ctrl.ToggleSelection(data.id)
		return b.sessions.showQueue(ctx, s, false)

	case opApprove, opReject:
		action := review.ActionApprove
		if data.op == opReject {
			action = review.ActionReject
		}
		d, err := s.ctrl.Begin(action, data.id)
		if err != nil {
			req.explain(ctx, err)
			return nil
		}
		return req.showPrompt(ctx, s, d)

	case opDetail:
		row, ok := s.ctrl.Find(data.id)
		if !ok {
			req.say(ctx, "MsgItemGone", nil)
			return nil
		}
		view, err := s.ctrl.ViewDetail(ctx, row)
		if err != nil {
			req.explain(ctx, err)
			return nil
		}
		_, err = b.bot.SendMessage(ctx, tu.Message(tu.ID(req.chatID), renderDetail(view, req.lang)).WithParseMode(telego.ModeHTML))
		return err
	}
	return fmt.Errorf("unhandled row operation %q", data.op)
}

func (b *Bot) handleDecisionCallback(ctx context.Context, req *request, s *session, data callbackData, msg *telego.Message) error {
	if data.choice == choiceCancel {
		s.stopAwaiting(data.decision)
		if err := s.ctrl.Cancel(data.decision); err != nil {
			req.explain(ctx, err)
			return nil
		}
		b.closePrompt(ctx, req, msg, "MsgDecisionCancelled")
		return nil
	}

	pending := s.ctrl.Pending()
	if pending == nil || pending.ID != data.decision {
		req.say(ctx, "MsgDecisionExpired", nil)
		return nil
	}

	var reason *string
	switch data.choice {
	case choiceConfirm, choiceNoReason:
	case choiceEmptyReason:
		empty := ""
		reason = &empty
	}
	b.closePrompt(ctx, req, msg, "")
	return req.confirm(ctx, s, data.decision, reason)
}

// closePrompt removes the prompt's buttons and, with msgID, replaces its
// text so the prompt cannot be pressed twice.
func (b *Bot) closePrompt(ctx context.Context, req *request, msg *telego.Message, msgID string) {
	text := msg.Text
	if msgID != "" {
		text = locales.Text(req.lang, msgID, nil)
	}
	if text == "" {
		return
	}
	if _, err := b.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    tu.ID(req.chatID),
		MessageID: msg.MessageID,
		Text:      text,
	}); err != nil {
		log.Printf("[Callback User:%d] Failed to close prompt %d: %v", req.user.ID, msg.MessageID, err)
	}
}
