// Package discord adapts the teacher's Discord bot notification path
// (apps/discord/internal/bot/notifications.go, apps/discord/main.go) into a
// single hooks.Hook: rather than a full bot with commands and per-user
// session management, it posts one embed per lifecycle event to a fixed
// channel, fitting the narrower "hook" capability seam SPEC_FULL.md §11
// scopes Discord integration to.
package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/kubaliski/cycletimer/hooks"
	"github.com/kubaliski/cycletimer/timer"
)

// Hook posts a Discord embed to ChannelID for every occurrence its owning
// server.Builder subscribes it to. It is fire-and-forget per spec.md §5's
// "hooks therefore must be short": each call spawns the Discord API request
// in its own goroutine rather than blocking the timer lock on network I/O,
// and always returns nil so a slow or failing webhook never trips the
// fatal-hook policy.
type Hook struct {
	Session   *discordgo.Session
	ChannelID string
}

// New opens a Discord session using token and returns a Hook posting to
// channelID. Callers are responsible for calling Session.Close when done.
func New(token, channelID string) (*Hook, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: new session: %w", err)
	}
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	return &Hook{Session: session, ChannelID: channelID}, nil
}

func (h *Hook) Call(occ timer.Occurrence, snapshot timer.Snapshot) error {
	embed := h.embedFor(occ, snapshot)
	go func() {
		_, _ = h.Session.ChannelMessageSendEmbed(h.ChannelID, embed)
	}()
	return nil
}

func (h *Hook) embedFor(occ timer.Occurrence, snapshot timer.Snapshot) *discordgo.MessageEmbed {
	title := titleFor(occ)
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("cycle=%s elapsed=%ds", snapshot.Cycle.Name, snapshot.ElapsedSeconds),
		Color:       colorFor(occ.Kind),
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func titleFor(occ timer.Occurrence) string {
	switch occ.Kind {
	case timer.EventBeginCycle:
		return fmt.Sprintf("Started: %s", occ.CycleName)
	case timer.EventEndCycle:
		return fmt.Sprintf("Finished: %s", occ.CycleName)
	default:
		return occ.Kind.String()
	}
}

func colorFor(kind timer.EventKind) int {
	switch kind {
	case timer.EventBeginCycle, timer.EventStarted, timer.EventResumed:
		return 0x2ecc71
	case timer.EventEndCycle, timer.EventStopped:
		return 0xe74c3c
	case timer.EventPaused:
		return 0xf1c40f
	default:
		return 0x95a5a6
	}
}

var _ hooks.Hook = (*Hook)(nil)
