package config

import (
	"errors"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// Endpoints lists the admin API paths used by the review queue.
// Paths containing {id} have it substituted with the item identifier.
type Endpoints struct {
	PendingSongs   string `yaml:"pending_songs"`
	PendingPosts   string `yaml:"pending_posts"`
	PendingReplies string `yaml:"pending_replies"`

	ApproveSong  string `yaml:"approve_song"`
	RejectSong   string `yaml:"reject_song"`
	ApprovePost  string `yaml:"approve_post"`
	RejectPost   string `yaml:"reject_post"`
	ApproveReply string `yaml:"approve_reply"`
	RejectReply  string `yaml:"reject_reply"`

	SongDetail  string `yaml:"song_detail"`
	PostDetail  string `yaml:"post_detail"`
	PostReplies string `yaml:"post_replies"`
}

// DefaultEndpoints returns the paths served by the platform's admin API.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		PendingSongs:   "/admin/audit/pending/songs",
		PendingPosts:   "/admin/audit/pending/posts",
		PendingReplies: "/admin/audit/pending/replies",

		ApproveSong:  "/admin/audit/song/approve/{id}",
		RejectSong:   "/admin/audit/song/reject/{id}",
		ApprovePost:  "/admin/audit/post/approve/{id}",
		RejectPost:   "/admin/audit/post/reject/{id}",
		ApproveReply: "/admin/audit/reply/approve/{id}",
		RejectReply:  "/admin/audit/reply/reject/{id}",

		SongDetail:  "/song/getSongDetail/{id}",
		PostDetail:  "/forum/postDetail/{id}",
		PostReplies: "/forum/replies",
	}
}

// LoadEndpoints returns DefaultEndpoints with any keys present in the YAML
// file at path applied on top. An empty path yields the defaults.
func LoadEndpoints(path string) (Endpoints, error) {
	endpoints := DefaultEndpoints()
	if path == "" {
		return endpoints, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("Endpoints file %s not found, using defaults", path)
			return endpoints, nil
		}
		return endpoints, fmt.Errorf("failed to read endpoints file: %w", err)
	}
	if err := yaml.Unmarshal(data, &endpoints); err != nil {
		return DefaultEndpoints(), fmt.Errorf("failed to parse endpoints file %s: %w", path, err)
	}
	return endpoints, nil
}
