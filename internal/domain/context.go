package domain

import (
	"strings"
	"time"
)

// Identity is the invoking user as seen by the platform.
type Identity struct {
	ID          string
	Name        string
	Permissions []Permission
}

// Has reports whether the identity holds p. Administrators hold everything.
func (i Identity) Has(p Permission) bool {
	for _, held := range i.Permissions {
		if held == p || held == PermissionAdministrator {
			return true
		}
	}
	return false
}

// Mention formats the identity the way replies address it.
func (i Identity) Mention() string {
	name := strings.TrimSpace(i.Name)
	if name == "" {
		name = i.ID
	}
	return "@" + name
}

type CommandContext struct {
	Room        string
	RoomName    string
	MessageID   string
	Author      Identity
	IsGroupChat bool
	Message     string
	Timestamp   time.Time
}

func NewCommandContext(room, roomName string, author Identity, messageID, message string, isGroupChat bool) *CommandContext {
	return &CommandContext{
		Room:        room,
		RoomName:    roomName,
		MessageID:   messageID,
		Author:      author,
		IsGroupChat: isGroupChat,
		Message:     message,
		Timestamp:   time.Now(),
	}
}
