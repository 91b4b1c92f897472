package telegram

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"reviewdesk/internal/auth"
	"reviewdesk/internal/database"
	"reviewdesk/internal/locales"
	"reviewdesk/internal/review"
	"reviewdesk/pkg/telegoapi"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/ratelimit"
)

// Bot is the Telegram front-end of the review desk. It runs the update
// loop, checks that senders are channel administrators and routes
// commands, callback buttons and typed reject reasons to the chat's
// review session.
type Bot struct {
	bot          telegoapi.BotAPI
	updatesChan  <-chan telego.Update
	debug        bool
	adminChecker auth.AdminCheckerInterface
	actionLogger database.UserActionLogger
	userRepo     database.UserRepository
	sessions     *Sessions
	commands     map[string]commandHandler
	ratelimiter  ratelimit.Limiter
}

// BotDeps holds the dependencies required by the Bot.
type BotDeps struct {
	Bot           telegoapi.BotAPI
	UpdatesChan   <-chan telego.Update
	Debug         bool
	AdminChecker  auth.AdminCheckerInterface
	ActionLogger  database.UserActionLogger
	UserRepo      database.UserRepository
	Registry      *review.Registry
	ReviewOptions review.Options
}

// New creates a new Bot instance from its dependencies.
func New(deps BotDeps) (*Bot, error) {
	if deps.Bot == nil {
		return nil, fmt.Errorf("telego bot (BotAPI) instance cannot be nil")
	}
	if deps.UpdatesChan == nil {
		return nil, fmt.Errorf("updates channel cannot be nil")
	}
	if deps.AdminChecker == nil {
		return nil, fmt.Errorf("admin checker cannot be nil")
	}
	if deps.ActionLogger == nil {
		return nil, fmt.Errorf("action logger cannot be nil")
	}
	if deps.UserRepo == nil {
		return nil, fmt.Errorf("user repository cannot be nil")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("review registry cannot be nil")
	}

	return &Bot{
		bot:          deps.Bot,
		updatesChan:  deps.UpdatesChan,
		debug:        deps.Debug,
		adminChecker: deps.AdminChecker,
		actionLogger: deps.ActionLogger,
		userRepo:     deps.UserRepo,
		sessions:     NewSessions(deps.Bot, deps.Registry, deps.ReviewOptions),
		commands:     defaultCommands(),
		ratelimiter:  ratelimit.New(20),
	}, nil
}

// Start runs the update loop until ctx is done or the updates channel closes.
func (b *Bot) Start(ctx context.Context) {
	b.sessions.bind(ctx)
	if err := b.setupCommands(ctx); err != nil {
		log.Printf("Failed to set bot commands: %v", err)
		sentry.CaptureException(err)
	}
	log.Println("Listening for updates...")

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			log.Println("Context done, stopping update processing...")
			wg.Wait()
			log.Println("All update processing finished.")
			return
		case update, ok := <-b.updatesChan:
			if !ok {
				log.Println("Updates channel closed.")
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(up telego.Update) {
				defer wg.Done()
				b.processUpdate(ctx, up)
			}(update)
		}
	}
}

// Stop closes every review session.
func (b *Bot) Stop() {
	b.sessions.CloseAll()
	log.Println("Bot stopped, review sessions closed.")
}

// processUpdate routes incoming updates to the appropriate handlers.
func (b *Bot) processUpdate(ctx context.Context, update telego.Update) {
	b.ratelimiter.Take()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC recovered in processUpdate: %v\n%s", r, debug.Stack())
			sentry.CurrentHub().Recover(r)
			sentry.Flush(time.Second * 2)
		}
	}()

	processingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch {
	case update.Message != nil:
		message := *update.Message
		if message.From == nil {
			log.Printf("Ignoring message %d from chat %d without sender", message.MessageID, message.Chat.ID)
			return
		}
		if strings.HasPrefix(message.Text, "/") {
			b.handleCommandUpdate(processingCtx, message)
		} else if message.Text != "" {
			b.handleTextUpdate(processingCtx, message)
		} else if b.debug {
			log.Printf("Ignoring unhandled message type (ID: %d)", message.MessageID)
		}

	case update.CallbackQuery != nil:
		b.handleCallbackQuery(processingCtx, *update.CallbackQuery)

	default:
		if b.debug {
			log.Printf("Ignoring unhandled update type: %+v", update)
		}
	}
}

// handleCommandUpdate processes a message identified as a command.
func (b *Bot) handleCommandUpdate(ctx context.Context, message telego.Message) {
	command, args := splitCommand(message.Text)
	logPrefix := fmt.Sprintf("[Cmd:%s User:%d]", command, message.From.ID)
	lang := userLanguage(message.From)

	handler, ok := b.commands[command]
	if !ok {
		log.Printf("%s No handler found", logPrefix)
		b.reply(ctx, message.Chat.ID, locales.Text(lang, "MsgErrorUnknownCommand", nil))
		return
	}

	if handler.adminOnly && !b.requireAdmin(ctx, message.Chat.ID, message.From) {
		return
	}
	if b.debug {
		log.Printf("%s Executing handler", logPrefix)
	}

	req := &request{bot: b, chatID: message.Chat.ID, user: message.From, lang: lang, args: args}
	if err := handler.fn(ctx, req); err != nil {
		log.Printf("%s Handler error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s handler error: %w", logPrefix, err))
		b.reply(ctx, message.Chat.ID, locales.Text(lang, "MsgErrorGeneral", nil))
		return
	}
	b.recordActivity(ctx, message.From, "command_"+command, handler.adminOnly)
}

// handleTextUpdate takes a plain message as the reject reason when the chat's
// session is waiting for one.
func (b *Bot) handleTextUpdate(ctx context.Context, message telego.Message) {
	s, ok := b.sessions.get(message.Chat.ID)
	if !ok {
		return
	}
	decisionID := s.awaitingReason()
	if decisionID == "" {
		return
	}
	if !b.requireAdmin(ctx, message.Chat.ID, message.From) {
		return
	}

	reason := message.Text
	req := &request{bot: b, chatID: message.Chat.ID, user: message.From, lang: s.lang}
	if err := req.confirm(ctx, s, decisionID, &reason); err != nil {
		log.Printf("[Text User:%d Msg:%d] Reason confirmation error: %v", message.From.ID, message.MessageID, err)
	}
}

// requireAdmin reports whether user may moderate and tells them when not.
func (b *Bot) requireAdmin(ctx context.Context, chatID int64, user *telego.User) bool {
	isAdmin, err := b.adminChecker.IsAdmin(ctx, user.ID)
	if err != nil {
		log.Printf("[Admin User:%d] Admin check failed: %v", user.ID, err)
		b.reply(ctx, chatID, locales.Text(userLanguage(user), "MsgErrorGeneral", nil))
		return false
	}
	if !isAdmin {
		log.Printf("[Admin User:%d] Non-admin attempted to review", user.ID)
		b.reply(ctx, chatID, locales.Text(userLanguage(user), "MsgErrorRequiresAdmin", nil))
		return false
	}
	return true
}

// recordActivity updates the sender's user record. isAdmin is only known
// for senders that passed the admin check.
func (b *Bot) recordActivity(ctx context.Context, user *telego.User, action string, isAdmin bool) {
	if err := b.userRepo.UpdateUser(ctx, user.ID, user.Username, user.FirstName, user.LastName, isAdmin, action); err != nil {
		log.Printf("[Activity User:%d] Failed to update user record: %v", user.ID, err)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text).WithParseMode(telego.ModeHTML)); err != nil {
		log.Printf("[Reply Chat:%d] Failed to send message: %v", chatID, err)
	}
}

func (b *Bot) setupCommands(ctx context.Context) error {
	lang := locales.GetDefaultLanguageTag().String()
	cmds := make([]telego.BotCommand, 0, len(commandOrder))
	for _, name := range commandOrder {
		cmds = append(cmds, telego.BotCommand{
			Command:     name,
			Description: locales.Text(lang, b.commands[name].descriptionID, nil),
		})
	}
	if err := b.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: cmds}); err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	log.Println("Bot commands successfully set.")
	return nil
}

func userLanguage(user *telego.User) string {
	if user != nil && user.LanguageCode != "" {
		return user.LanguageCode
	}
	return locales.GetDefaultLanguageTag().String()
}

// splitCommand turns "/page@mybot 3" into ("page", "3").
func splitCommand(text string) (string, string) {
	fields := strings.SplitN(strings.TrimSpace(text), " ", 2)
	command := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	args := ""
	if len(fields) == 2 {
		args = strings.TrimSpace(fields[1])
	}
	return strings.ToLower(command), args
}
