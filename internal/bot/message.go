package bot

import (
	"strconv"
	"strings"
	"time"

	"github.com/kapu/markov-kakao-bot-go/internal/domain"
	"github.com/kapu/markov-kakao-bot-go/internal/iris"
)

// toCommandContext converts an inbound Iris event. ok is false for events
// that carry no routable text.
func (b *Bot) toCommandContext(msg *iris.Message) (*domain.CommandContext, bool) {
	if msg == nil {
		return nil, false
	}

	text := msg.Msg
	if text == "" && msg.JSON != nil {
		text = msg.JSON.Message
	}
	if strings.TrimSpace(text) == "" {
		return nil, false
	}

	room := msg.Room
	var userID, messageID, createdAt string
	if msg.JSON != nil {
		if msg.JSON.ChatID != "" {
			room = msg.JSON.ChatID
		}
		userID = msg.JSON.UserID
		messageID = msg.JSON.ID
		createdAt = msg.JSON.CreatedAt
	}
	if room == "" {
		return nil, false
	}

	author := domain.Identity{
		ID:   userID,
		Name: msg.SenderName(),
	}
	if b.isAdmin(userID) {
		author.Permissions = []domain.Permission{domain.PermissionManageServer}
	}

	cmdCtx := domain.NewCommandContext(room, msg.Room, author, messageID, text, msg.Room != author.Name)
	if ts, ok := parseTimestamp(createdAt); ok {
		cmdCtx.Timestamp = ts
	} else {
		cmdCtx.Timestamp = b.now()
	}
	return cmdCtx, true
}

func (b *Bot) isSelf(msg *iris.Message) bool {
	return b.selfID != "" && msg != nil && msg.JSON != nil && msg.JSON.UserID == b.selfID
}

func (b *Bot) isAdmin(userID string) bool {
	if userID == "" {
		return false
	}
	_, ok := b.admins[userID]
	return ok
}

// parseTimestamp accepts unix seconds, unix milliseconds or RFC 3339.
func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n), true
		}
		return time.Unix(n, 0), true
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, true
	}
	return time.Time{}, false
}
