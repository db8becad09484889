// Package notify provides ready-made hooks.Hook implementations: one that
// writes structured log lines, and (in notify/discord) one that posts to a
// Discord channel. Both are opt-in hooks a server.Builder registers, per
// SPEC_FULL.md §12.
package notify

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"

	"github.com/kubaliski/cycletimer/hooks"
	"github.com/kubaliski/cycletimer/timer"
)

// LogHook is a hooks.Hook that writes one structured log line per
// occurrence. It never returns an error, so it never triggers the
// fatal/recoverable hook policy.
type LogHook struct {
	Logger *logiface.Logger[*stumpy.Event]
}

// NewLogHook returns a LogHook writing through logger.
func NewLogHook(logger *logiface.Logger[*stumpy.Event]) *LogHook {
	return &LogHook{Logger: logger}
}

func (h *LogHook) Call(occ timer.Occurrence, snapshot timer.Snapshot) error {
	b := h.Logger.Info().
		Str("event", occ.Kind.String()).
		Str("state", snapshot.State.String()).
		Str("cycle", snapshot.Cycle.Name).
		Uint64("elapsed_seconds", uint64(snapshot.ElapsedSeconds))
	if occ.CycleName != "" {
		b = b.Str("occurrence_cycle", occ.CycleName)
	}
	b.Log("timer event")
	return nil
}

var _ hooks.Hook = (*LogHook)(nil)
