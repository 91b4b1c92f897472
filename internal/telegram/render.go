package telegram

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"reviewdesk/internal/auditapi"
	"reviewdesk/internal/locales"
	"reviewdesk/internal/review"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const (
	maxSnippet         = 60
	maxRenderedReplies = 10
)

var categoryMsgIDs = map[review.Category]string{
	review.CategorySong:  "CategorySongs",
	review.CategoryPost:  "CategoryPosts",
	review.CategoryReply: "CategoryReplies",
}

func categoryName(lang string, c review.Category) string {
	return locales.Text(lang, categoryMsgIDs[c], nil)
}

// renderQueue draws the queue message: one line and one button row per item,
// then batch, paging and category rows.
func renderQueue(snap review.Snapshot, lang string) (string, *telego.InlineKeyboardMarkup) {
	page := snap.Page
	pages := 1
	if page.PageSize > 0 && page.Total > 0 {
		pages = int((page.Total + int64(page.PageSize) - 1) / int64(page.PageSize))
	}

	var sb strings.Builder
	sb.WriteString(locales.Text(lang, "MsgQueueHeader", map[string]interface{}{
		"Category": categoryName(lang, snap.Category),
		"Page":     page.PageNum,
		"Pages":    pages,
		"Total":    page.Total,
	}))
	if !snap.Visible {
		sb.WriteString("\n<i>" + locales.Text(lang, "MsgQueuePaused", nil) + "</i>")
	}
	if page.Loading && len(page.Items) == 0 {
		sb.WriteString("\n<i>" + locales.Text(lang, "MsgQueueLoading", nil) + "</i>")
	}
	sb.WriteString("\n\n")

	selected := make(map[int64]bool, len(snap.Selection))
	for _, id := range snap.Selection {
		selected[id] = true
	}

	var rows [][]telego.InlineKeyboardButton
	if len(page.Items) == 0 {
		sb.WriteString(locales.Text(lang, "MsgQueueEmpty", nil))
	}
	for _, item := range page.Items {
		id := item.ItemID()
		mark := "☐"
		if selected[id] {
			mark = "☑"
		}
		fmt.Fprintf(&sb, "%s <code>#%d</code> %s\n", mark, id, summarize(item))
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(fmt.Sprintf("%s #%d", mark, id)).WithCallbackData(rowData(opSelect, id)),
			tu.InlineKeyboardButton("✅").WithCallbackData(rowData(opApprove, id)),
			tu.InlineKeyboardButton("❌").WithCallbackData(rowData(opReject, id)),
			tu.InlineKeyboardButton("🔍").WithCallbackData(rowData(opDetail, id)),
		))
	}

	if n := len(snap.Selection); n > 0 {
		count := map[string]interface{}{"Count": n}
		sb.WriteString("\n<i>" + locales.Text(lang, "MsgQueueSelected", count) + "</i>")
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(locales.Text(lang, "BtnApproveSelected", count)).WithCallbackData(batchData(review.ActionApprove)),
			tu.InlineKeyboardButton(locales.Text(lang, "BtnRejectSelected", count)).WithCallbackData(batchData(review.ActionReject)),
		))
	}

	nav := []telego.InlineKeyboardButton{}
	if page.PageNum > 1 {
		nav = append(nav, tu.InlineKeyboardButton(locales.Text(lang, "BtnPrev", nil)).WithCallbackData(pageData(page.PageNum-1)))
	}
	nav = append(nav, tu.InlineKeyboardButton(locales.Text(lang, "BtnRefresh", nil)).WithCallbackData(dataRefresh))
	if page.PageNum < pages {
		nav = append(nav, tu.InlineKeyboardButton(locales.Text(lang, "BtnNext", nil)).WithCallbackData(pageData(page.PageNum+1)))
	}
	rows = append(rows, nav)

	cats := []telego.InlineKeyboardButton{}
	for _, c := range review.Categories {
		label := categoryName(lang, c)
		if c == snap.Category {
			label = "• " + label
		}
		cats = append(cats, tu.InlineKeyboardButton(label).WithCallbackData(categoryData(c)))
	}
	rows = append(rows, cats)

	return strings.TrimRight(sb.String(), "\n"), tu.InlineKeyboard(rows...)
}

func summarize(item review.Item) string {
	switch row := item.(type) {
	case auditapi.SongItem:
		return joinNonEmpty(html.EscapeString(row.SongName), html.EscapeString(row.Style), html.EscapeString(row.CreatorName), row.CreateTime.String())
	case auditapi.PostItem:
		return joinNonEmpty(html.EscapeString(snippet(row.Title)), html.EscapeString(row.Username), row.CreateTime.String())
	case auditapi.ReplyItem:
		return joinNonEmpty(html.EscapeString(snippet(row.Content)), html.EscapeString(row.Username), "post #"+strconv.FormatInt(row.PostID, 10))
	}
	return ""
}

// renderPrompt draws the confirmation message for a pending decision.
func renderPrompt(d *review.PendingDecision, lang string) (string, *telego.InlineKeyboardMarkup) {
	ids := make([]string, len(d.Targets))
	for i, id := range d.Targets {
		ids[i] = "#" + strconv.FormatInt(id, 10)
	}
	data := map[string]interface{}{
		"Count":    len(d.Targets),
		"Category": categoryName(lang, d.Category),
		"IDs":      strings.Join(ids, ", "),
		"Limit":    review.MaxReasonLength,
	}
	cancel := tu.InlineKeyboardButton(locales.Text(lang, "BtnCancel", nil)).WithCallbackData(decisionData(d.ID, choiceCancel))

	if d.Action == review.ActionApprove {
		return locales.Text(lang, "MsgConfirmApprove", data), tu.InlineKeyboard(tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(locales.Text(lang, "BtnConfirm", nil)).WithCallbackData(decisionData(d.ID, choiceConfirm)),
			cancel,
		))
	}
	return locales.Text(lang, "MsgConfirmReject", data), tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(locales.Text(lang, "BtnNoReason", nil)).WithCallbackData(decisionData(d.ID, choiceNoReason)),
			tu.InlineKeyboardButton(locales.Text(lang, "BtnEmptyReason", nil)).WithCallbackData(decisionData(d.ID, choiceEmptyReason)),
		),
		tu.InlineKeyboardRow(cancel),
	)
}

// renderDetail draws the detail panel as HTML.
func renderDetail(view *review.DetailView, lang string) string {
	var sb strings.Builder
	if song, ok := view.Song(); ok {
		sb.WriteString(locales.Text(lang, "MsgDetailSong", map[string]interface{}{
			"Name":     html.EscapeString(song.SongName),
			"Artist":   html.EscapeString(song.ArtistName),
			"Album":    html.EscapeString(song.Album),
			"Style":    html.EscapeString(song.Style),
			"Duration": html.EscapeString(song.Duration),
			"Creator":  html.EscapeString(song.CreatorName),
			"Time":     song.CreateTime.String(),
			"Audio":    html.EscapeString(song.AudioURL),
		}))
		return sb.String()
	}

	if post, ok := view.Post(); ok {
		sb.WriteString(locales.Text(lang, "MsgDetailPost", map[string]interface{}{
			"Title":   html.EscapeString(post.Title),
			"User":    html.EscapeString(post.Username),
			"Time":    post.CreateTime.String(),
			"Content": html.EscapeString(post.Content),
		}))
	}
	if reply, ok := view.Reply(); ok {
		sb.WriteString("\n\n" + locales.Text(lang, "MsgDetailReplySubject", map[string]interface{}{
			"ID":      reply.ReplyID,
			"User":    html.EscapeString(reply.Username),
			"Content": html.EscapeString(reply.Content),
		}))
	}

	sb.WriteString("\n\n")
	if len(view.Replies) == 0 {
		sb.WriteString(locales.Text(lang, "MsgDetailNoReplies", nil))
		return sb.String()
	}
	sb.WriteString(locales.Text(lang, "MsgDetailRepliesHeader", map[string]interface{}{"Count": len(view.Replies)}))
	for i, r := range view.Replies {
		if i == maxRenderedReplies {
			sb.WriteString("\n" + locales.Text(lang, "MsgDetailMoreReplies", map[string]interface{}{"Count": len(view.Replies) - i}))
			break
		}
		fmt.Fprintf(&sb, "\n<code>#%d</code> %s: %s", r.ReplyID, html.EscapeString(r.Username), html.EscapeString(snippet(r.Content)))
	}
	return sb.String()
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxSnippet {
		return s
	}
	return string(runes[:maxSnippet-1]) + "…"
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " · ")
}
