package adapter

import (
	"regexp"
	"strings"
)

var (
	controlCharsPattern = regexp.MustCompile(`[\x00-\x09\x0B-\x1F\x7F]`)
	whitespacePattern   = regexp.MustCompile(`[ \t]+`)
)

// MessageAdapter extracts prefixed commands from chat messages.
type MessageAdapter struct {
	prefix string
}

// NewMessageAdapter creates a new MessageAdapter
func NewMessageAdapter(prefix string) *MessageAdapter {
	if strings.TrimSpace(prefix) == "" {
		prefix = "!"
	}
	return &MessageAdapter{prefix: prefix}
}

// Prefix returns the configured command prefix.
func (ma *MessageAdapter) Prefix() string {
	return ma.prefix
}

// ParsedCommand represents a parsed command. Name is empty when the message is
// not addressed to the bot at all.
type ParsedCommand struct {
	Name       string
	Args       []string
	RawMessage string
}

// IsCommand reports whether the message carried the prefix and a name.
func (pc *ParsedCommand) IsCommand() bool {
	return pc != nil && pc.Name != ""
}

// ParseMessage splits "<prefix><name> <args...>" into its parts. The name is
// lowercased; arguments keep their case.
func (ma *MessageAdapter) ParseMessage(message string) *ParsedCommand {
	text := strings.TrimSpace(ma.sanitize(message))
	if text == "" || !strings.HasPrefix(text, ma.prefix) {
		return &ParsedCommand{RawMessage: text}
	}

	// Prefix followed by whitespace ("! ping") is not a command.
	commandText := text[len(ma.prefix):]
	if commandText == "" || strings.TrimLeft(commandText, " \t\n") != commandText {
		return &ParsedCommand{RawMessage: text}
	}

	parts := strings.Fields(commandText)
	if len(parts) == 0 {
		return &ParsedCommand{RawMessage: text}
	}

	return &ParsedCommand{
		Name:       strings.ToLower(parts[0]),
		Args:       parts[1:],
		RawMessage: text,
	}
}

func (ma *MessageAdapter) sanitize(input string) string {
	withoutControl := controlCharsPattern.ReplaceAllString(input, " ")
	return whitespacePattern.ReplaceAllString(withoutControl, " ")
}
