package adapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/kapu/markov-kakao-bot-go/internal/domain"
	"github.com/kapu/markov-kakao-bot-go/internal/util"
)

const maxReplyRunes = 2000

// HelpEntry is one line of the help listing.
type HelpEntry struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
}

// ResponseFormatter formats bot responses
type ResponseFormatter struct {
	prefix string
}

// NewResponseFormatter creates a new ResponseFormatter
func NewResponseFormatter(prefix string) *ResponseFormatter {
	if strings.TrimSpace(prefix) == "" {
		prefix = "!"
	}
	return &ResponseFormatter{prefix: prefix}
}

// Mention addresses text to the identity.
func (f *ResponseFormatter) Mention(who domain.Identity, text string) string {
	return util.TruncateString(fmt.Sprintf("%s %s", who.Mention(), text), maxReplyRunes)
}

func (f *ResponseFormatter) PermissionDenied(who domain.Identity) string {
	return f.Mention(who, "You don't have permission to use this command.")
}

func (f *ResponseFormatter) MissingArguments(who domain.Identity, command, usage string) string {
	return fmt.Sprintf("%s\n%s", f.Mention(who, "You are missing required arguments."), f.Usage(command, usage))
}

// CooldownWarning tells the invoker how long ago the command ran and when it
// frees up again.
func (f *ResponseFormatter) CooldownWarning(who domain.Identity, usedAgo, retryAfter time.Duration) string {
	return f.Mention(who, fmt.Sprintf("This command was used %.2fs ago and is on cooldown. Try again in %.2fs.",
		usedAgo.Seconds(), retryAfter.Seconds()))
}

func (f *ResponseFormatter) CommandFailed(command string) string {
	return fmt.Sprintf("An error occurred while processing the `%s` command.", command)
}

func (f *ResponseFormatter) TextChainFailed(who domain.Identity) string {
	return f.Mention(who, "Unable to build text chain.")
}

func (f *ResponseFormatter) UserNotFound(who domain.Identity) string {
	return f.Mention(who, "User not found.")
}

func (f *ResponseFormatter) Pong() string {
	return "Pong!"
}

func (f *ResponseFormatter) PongLatency(latency time.Duration) string {
	return fmt.Sprintf("Pong! `%dms`", latency.Milliseconds())
}

func (f *ResponseFormatter) Restarting(who domain.Identity) string {
	return f.Mention(who, "Restarting...")
}

// Usage renders "<prefix><command> <usage>".
func (f *ResponseFormatter) Usage(command, usage string) string {
	line := f.prefix + command
	if usage != "" {
		line += " " + usage
	}
	return line
}

// FormatHelp lists the registered commands.
func (f *ResponseFormatter) FormatHelp(name, version string, entries []HelpEntry) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s - %s\n", name, version))

	for _, entry := range entries {
		sb.WriteString("\n")
		sb.WriteString(f.Usage(entry.Name, entry.Usage))
		if entry.Description != "" {
			sb.WriteString(" : ")
			sb.WriteString(entry.Description)
		}
		if len(entry.Aliases) > 0 {
			sb.WriteString(fmt.Sprintf(" (%s)", strings.Join(entry.Aliases, ", ")))
		}
	}

	return sb.String()
}
