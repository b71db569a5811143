// Package reel derives highlight windows from a session's commentary log and
// archives finished sessions for the downstream reel job.
package reel

import (
	"strings"

	"github.com/hypecast-live/hypecast/pkg/core/session"
)

const (
	// PreRoll widens each highlight window backwards so the clip catches the
	// play leading into the call.
	PreRoll = 2.0
	// PostRoll widens each window forwards to let the moment land.
	PostRoll = 3.0
)

// DeriveHighlights folds the commentary log into highlight windows.
// Consecutive highlight entries merge into a single window; each window is
// padded by the pre and post roll and keeps the peak energy score of its run.
// Windows are clamped so they never start before zero. The input log is
// assumed to be in timestamp order, which is how the tracker appends it.
func DeriveHighlights(log []session.CommentaryEntry) []session.Highlight {
	var out []session.Highlight
	var run []session.CommentaryEntry

	flush := func() {
		if len(run) == 0 {
			return
		}
		start := run[0].Timestamp - PreRoll
		if start < 0 {
			start = 0
		}
		end := run[len(run)-1].Timestamp + PostRoll
		peak := 0.0
		texts := make([]string, 0, len(run))
		for _, e := range run {
			if e.EnergyLevel > peak {
				peak = e.EnergyLevel
			}
			texts = append(texts, e.Text)
		}
		out = append(out, session.Highlight{
			StartTime:      start,
			EndTime:        end,
			EnergyScore:    peak,
			CommentaryText: strings.Join(texts, " "),
		})
		run = run[:0]
	}

	for _, e := range log {
		if !e.IsHighlight {
			flush()
			continue
		}
		// A gap longer than the combined roll means the clips would not
		// overlap, so the runs stay separate windows.
		if len(run) > 0 && e.Timestamp-run[len(run)-1].Timestamp > PreRoll+PostRoll {
			flush()
		}
		run = append(run, e)
	}
	flush()
	return out
}
