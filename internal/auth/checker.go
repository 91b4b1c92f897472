package auth

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"reviewdesk/pkg/telegoapi"

	"github.com/benbjohnson/clock"
	"github.com/mymmrac/telego"
)

// DefaultStatusTTL is how long a looked-up moderator status is reused.
const DefaultStatusTTL = time.Minute

// AdminCheckerInterface reports whether a Telegram user may moderate.
type AdminCheckerInterface interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

type memberStatus struct {
	isAdmin bool
	expires time.Time
}

// AdminChecker decides who may moderate: the creator and the administrators
// of the review channel. Every button press asks, so answers are cached for
// a short while; failed lookups are not cached.
type AdminChecker struct {
	bot       telegoapi.BotAPI
	channelID int64
	clock     clock.Clock
	ttl       time.Duration

	mu     sync.Mutex
	status map[int64]memberStatus
}

// Option configures an AdminChecker.
type Option func(*AdminChecker)

// WithStatusTTL sets how long statuses are cached. Zero disables caching.
func WithStatusTTL(ttl time.Duration) Option {
	return func(ac *AdminChecker) { ac.ttl = ttl }
}

// WithClock replaces the wall clock used for cache expiry.
func WithClock(c clock.Clock) Option {
	return func(ac *AdminChecker) { ac.clock = c }
}

// NewAdminChecker creates a checker for the channel channelID.
func NewAdminChecker(bot telegoapi.BotAPI, channelID int64, opts ...Option) (*AdminChecker, error) {
	if bot == nil {
		return nil, fmt.Errorf("telego bot instance cannot be nil")
	}
	if channelID == 0 {
		return nil, fmt.Errorf("target channel ID cannot be zero")
	}
	ac := &AdminChecker{
		bot:       bot,
		channelID: channelID,
		clock:     clock.New(),
		ttl:       DefaultStatusTTL,
		status:    make(map[int64]memberStatus),
	}
	for _, opt := range opts {
		opt(ac)
	}
	return ac, nil
}

// IsAdmin reports whether userID is the creator or an administrator of the
// channel. Users Telegram cannot find in the channel are not.
func (ac *AdminChecker) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	now := ac.clock.Now()
	ac.mu.Lock()
	cached, ok := ac.status[userID]
	ac.mu.Unlock()
	if ok && now.Before(cached.expires) {
		return cached.isAdmin, nil
	}

	isAdmin, err := ac.lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	if ac.ttl > 0 {
		ac.mu.Lock()
		ac.status[userID] = memberStatus{isAdmin: isAdmin, expires: now.Add(ac.ttl)}
		ac.mu.Unlock()
	}
	return isAdmin, nil
}

// Forget drops the cached status of userID.
func (ac *AdminChecker) Forget(userID int64) {
	ac.mu.Lock()
	delete(ac.status, userID)
	ac.mu.Unlock()
}

func (ac *AdminChecker) lookup(ctx context.Context, userID int64) (bool, error) {
	member, err := ac.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: telego.ChatID{ID: ac.channelID},
		UserID: userID,
	})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "user not found") {
			return false, nil
		}
		log.Printf("[AdminCheck User:%d Channel:%d] Member lookup failed: %v", userID, ac.channelID, err)
		return false, fmt.Errorf("failed to get chat member info: %w", err)
	}

	switch member.MemberStatus() {
	case telego.MemberStatusCreator, telego.MemberStatusAdministrator:
		return true, nil
	}
	return false, nil
}
