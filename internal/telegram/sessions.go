package telegram

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"reviewdesk/internal/review"
	"reviewdesk/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// session is one chat's review session.
type session struct {
	chatID     int64
	lang       string
	ctrl       *review.Controller
	visibility *review.Visibility

	mu          sync.Mutex
	awaiting    string // decision id waiting for a typed reason
	queueMsgID  int
	rendered    string
	unsubscribe func()
}

func (s *session) awaitReason(decisionID string) {
	s.mu.Lock()
	s.awaiting = decisionID
	s.mu.Unlock()
}

func (s *session) awaitingReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting
}

func (s *session) stopAwaiting(decisionID string) {
	s.mu.Lock()
	if s.awaiting == decisionID {
		s.awaiting = ""
	}
	s.mu.Unlock()
}

// Sessions keeps one review controller per chat.
type Sessions struct {
	mu       sync.Mutex
	byChat   map[int64]*session
	lifetime context.Context

	bot      telegoapi.BotAPI
	registry *review.Registry
	opts     review.Options
}

// NewSessions creates an empty session table. opts is the template for
// every controller; Category, Visibility and Clock are set per session.
func NewSessions(bot telegoapi.BotAPI, registry *review.Registry, opts review.Options) *Sessions {
	return &Sessions{
		byChat:   make(map[int64]*session),
		lifetime: context.Background(),
		bot:      bot,
		registry: registry,
		opts:     opts,
	}
}

// bind sets the context background refreshes of new sessions run under.
func (m *Sessions) bind(ctx context.Context) {
	m.mu.Lock()
	m.lifetime = ctx
	m.mu.Unlock()
}

func (m *Sessions) get(chatID int64) (*session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byChat[chatID]
	return s, ok
}

// open returns the chat's session switched to c, creating and mounting it
// when the chat has none.
func (m *Sessions) open(ctx context.Context, chatID int64, lang string, c review.Category) (*session, error) {
	if s, ok := m.get(chatID); ok {
		if s.ctrl.Category() == c {
			return s, s.ctrl.Search(ctx)
		}
		return s, s.ctrl.SwitchCategory(ctx, c)
	}

	opts := m.opts
	opts.Category = c
	opts.Visibility = review.NewVisibility(true)
	s := &session{
		chatID:     chatID,
		lang:       lang,
		visibility: opts.Visibility,
	}
	s.ctrl = review.NewController(m.registry, &chatNotifier{bot: m.bot, chatID: chatID, lang: lang}, opts)

	m.mu.Lock()
	lifetime := m.lifetime
	m.mu.Unlock()

	s.unsubscribe = s.ctrl.Subscribe(func(snap review.Snapshot) {
		if snap.Page.Loading {
			return
		}
		go func() {
			if err := m.showQueue(lifetime, s, false); err != nil {
				log.Printf("[Session Chat:%d] Failed to update queue message: %v", chatID, err)
			}
		}()
	})

	m.mu.Lock()
	if existing, ok := m.byChat[chatID]; ok {
		m.mu.Unlock()
		s.unsubscribe()
		s.ctrl.Close()
		return existing, existing.ctrl.SwitchCategory(ctx, c)
	}
	m.byChat[chatID] = s
	m.mu.Unlock()

	log.Printf("[Session Chat:%d] Opened review session for %s", chatID, c)
	return s, s.ctrl.Mount(lifetime)
}

// close ends the chat's session. It reports whether one was open.
func (m *Sessions) close(chatID int64) bool {
	m.mu.Lock()
	s, ok := m.byChat[chatID]
	delete(m.byChat, chatID)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.unsubscribe()
	s.ctrl.Close()
	log.Printf("[Session Chat:%d] Closed review session", chatID)
	return true
}

// CloseAll ends every session.
func (m *Sessions) CloseAll() {
	m.mu.Lock()
	chats := make([]int64, 0, len(m.byChat))
	for chatID := range m.byChat {
		chats = append(chats, chatID)
	}
	m.mu.Unlock()
	for _, chatID := range chats {
		m.close(chatID)
	}
}

// showQueue renders the queue. With fresh it always sends a new message,
// otherwise it edits the last queue message when the rendering changed and
// does nothing when no queue message was sent yet.
func (m *Sessions) showQueue(ctx context.Context, s *session, fresh bool) error {
	text, keyboard := renderQueue(s.ctrl.Snapshot(), s.lang)
	signature := text + keyboardSignature(keyboard)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !fresh {
		if s.queueMsgID == 0 || signature == s.rendered {
			return nil
		}
		_, err := m.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
			ChatID:      tu.ID(s.chatID),
			MessageID:   s.queueMsgID,
			Text:        text,
			ParseMode:   telego.ModeHTML,
			ReplyMarkup: keyboard,
		})
		if err == nil || strings.Contains(err.Error(), "message is not modified") {
			s.rendered = signature
			return nil
		}
		log.Printf("[Session Chat:%d] Edit of queue message %d failed, sending a new one: %v", s.chatID, s.queueMsgID, err)
	}

	msg, err := m.bot.SendMessage(ctx, tu.Message(tu.ID(s.chatID), text).WithParseMode(telego.ModeHTML).WithReplyMarkup(keyboard))
	if err != nil {
		return err
	}
	if msg == nil {
		return errors.New("send returned no message")
	}
	s.queueMsgID = msg.MessageID
	s.rendered = signature
	return nil
}

func keyboardSignature(k *telego.InlineKeyboardMarkup) string {
	var sb strings.Builder
	for _, row := range k.InlineKeyboard {
		for _, b := range row {
			sb.WriteString("|" + b.Text + "=" + b.CallbackData)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
