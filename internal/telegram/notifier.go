package telegram

import (
	"context"
	"log"

	"reviewdesk/internal/locales"
	"reviewdesk/internal/review"
	"reviewdesk/pkg/telegoapi"

	tu "github.com/mymmrac/telego/telegoutil"
)

var levelIcons = map[review.Level]string{
	review.LevelSuccess: "✅ ",
	review.LevelInfo:    "ℹ️ ",
	review.LevelWarning: "⚠️ ",
	review.LevelError:   "❗ ",
}

// chatNotifier delivers review notices as chat messages.
type chatNotifier struct {
	bot    telegoapi.BotAPI
	chatID int64
	lang   string
}

func (n *chatNotifier) Notify(ctx context.Context, notice review.Notice) {
	text := levelIcons[notice.Level] + locales.Text(n.lang, notice.MessageID, localizeNoticeData(n.lang, notice.Data))
	if _, err := n.bot.SendMessage(ctx, tu.Message(tu.ID(n.chatID), text)); err != nil {
		log.Printf("[Notify Chat:%d] Failed to send %s notice: %v", n.chatID, notice.MessageID, err)
	}
}

// localizeNoticeData replaces a category key with its localized name.
func localizeNoticeData(lang string, data map[string]interface{}) map[string]interface{} {
	key, ok := data["Category"].(string)
	if !ok {
		return data
	}
	c, err := review.ParseCategory(key)
	if err != nil {
		return data
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	out["Category"] = categoryName(lang, c)
	return out
}
