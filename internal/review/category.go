// Package review implements the pending-content review queue: paging,
// selection, decisions, detail aggregation and background refresh for one
// moderator session.
package review

import (
	"fmt"
	"strings"
)

// Category is the kind of content a queue holds.
type Category int

const (
	CategorySong Category = iota
	CategoryPost
	CategoryReply
)

// Categories lists every category in display order.
var Categories = []Category{CategorySong, CategoryPost, CategoryReply}

var categoryKeys = map[Category]string{
	CategorySong:  "songs",
	CategoryPost:  "posts",
	CategoryReply: "replies",
}

// Key returns the category's stable identifier ("songs", "posts", "replies").
func (c Category) Key() string {
	if key, ok := categoryKeys[c]; ok {
		return key
	}
	return fmt.Sprintf("category(%d)", int(c))
}

func (c Category) String() string { return c.Key() }

var categoryAliases = map[string]Category{
	"songs": CategorySong, "song": CategorySong,
	"posts": CategoryPost, "post": CategoryPost,
	"replies": CategoryReply, "reply": CategoryReply,
}

// ParseCategory resolves a category key. Singular forms are accepted.
func ParseCategory(s string) (Category, error) {
	if c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("%w: unknown category %q", ErrValidation, s)
}

// MarshalText lets categories appear as their key in JSON.
func (c Category) MarshalText() ([]byte, error) { return []byte(c.Key()), nil }

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
