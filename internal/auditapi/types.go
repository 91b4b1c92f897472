package auditapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the wall-clock layout the admin API uses for timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// Audit status values carried by pending items.
const (
	AuditPending  = 0
	AuditApproved = 1
	AuditRejected = 2
)

// Post types.
const (
	PostTypeDiscussion = 0
	PostTypeRequest    = 1
)

// Timestamp decodes the API's "yyyy-MM-dd HH:mm:ss" strings. It also accepts
// RFC 3339 strings and epoch milliseconds; null and "" decode to the zero time.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}
	if s[0] != '"' {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", s, err)
		}
		t.Time = time.UnixMilli(ms)
		return nil
	}
	raw, err := strconv.Unquote(s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", s, err)
	}
	if parsed, err := time.ParseInLocation(TimeLayout, raw, time.Local); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q", raw)
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.Format(TimeLayout))), nil
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

// Page is the {items,total} payload of every list endpoint.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

// SongItem is one row of the pending songs queue.
type SongItem struct {
	SongID      int64     `json:"songId"`
	SongName    string    `json:"songName"`
	ArtistName  string    `json:"artistName"`
	Album       string    `json:"album"`
	Style       string    `json:"style"`
	Duration    string    `json:"duration"`
	CoverURL    string    `json:"coverUrl"`
	AudioURL    string    `json:"audioUrl"`
	CreatorID   int64     `json:"creatorId"`
	CreatorName string    `json:"creatorName"`
	AuditStatus int       `json:"auditStatus"`
	CreateTime  Timestamp `json:"createTime"`
}

func (s SongItem) ItemID() int64 { return s.SongID }

// PostItem is one row of the pending posts queue.
type PostItem struct {
	PostID      int64     `json:"postId"`
	UserID      int64     `json:"userId"`
	Username    string    `json:"username"`
	UserAvatar  string    `json:"userAvatar"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Type        int       `json:"type"`
	AuditStatus int       `json:"auditStatus"`
	CreateTime  Timestamp `json:"createTime"`
}

func (p PostItem) ItemID() int64 { return p.PostID }

// ReplyItem is a forum reply, both as a pending queue row and as an entry
// in a post's reply listing.
type ReplyItem struct {
	ReplyID        int64       `json:"replyId"`
	PostID         int64       `json:"postId"`
	UserID         int64       `json:"userId"`
	Username       string      `json:"username"`
	UserAvatar     string      `json:"userAvatar"`
	Content        string      `json:"content"`
	ParentID       *int64      `json:"parentId,omitempty"`
	ParentUsername string      `json:"parentUsername,omitempty"`
	LikeCount      int64       `json:"likeCount"`
	AuditStatus    int         `json:"auditStatus"`
	AuditReason    string      `json:"auditReason,omitempty"`
	CreateTime     Timestamp   `json:"createTime"`
	Children       []ReplyItem `json:"children,omitempty"`
}

func (r ReplyItem) ItemID() int64 { return r.ReplyID }

// SongDetail is the full song record shown in the detail panel.
type SongDetail struct {
	SongID      int64     `json:"songId"`
	SongName    string    `json:"songName"`
	ArtistName  string    `json:"artistName"`
	Album       string    `json:"album"`
	Style       string    `json:"style"`
	Duration    string    `json:"duration"`
	CoverURL    string    `json:"coverUrl"`
	AudioURL    string    `json:"audioUrl"`
	ReleaseTime string    `json:"releaseTime"`
	IsOriginal  bool      `json:"isOriginal"`
	CreatorID   int64     `json:"creatorId"`
	CreatorName string    `json:"creatorName"`
	AuditStatus int       `json:"auditStatus"`
	CreateTime  Timestamp `json:"createTime"`
}

// PostDetail is the full forum post record shown in the detail panel.
type PostDetail struct {
	PostID      int64     `json:"postId"`
	UserID      int64     `json:"userId"`
	Username    string    `json:"username"`
	UserAvatar  string    `json:"userAvatar"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ViewCount   int64     `json:"viewCount"`
	ReplyCount  int64     `json:"replyCount"`
	LikeCount   int64     `json:"likeCount"`
	Type        int       `json:"type"`
	AuditStatus int       `json:"auditStatus"`
	AuditReason string    `json:"auditReason,omitempty"`
	CreateTime  Timestamp `json:"createTime"`
}
