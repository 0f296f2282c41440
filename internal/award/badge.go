// Package award holds the rules for badge progress and award winners.
package award

import (
	"time"

	"github.com/dukerupert/frisfocus/internal/model"
)

// ApplyProgress adds delta to a badge's progress, flooring at zero. A badge
// becomes earned the first time progress reaches the requirement and stays
// earned even if progress later drops. justEarned is true only on that
// first transition.
func ApplyProgress(b model.CircleBadge, delta int, now time.Time) (updated model.CircleBadge, justEarned bool) {
	b.Progress += delta
	if b.Progress < 0 {
		b.Progress = 0
	}
	if !b.Earned && b.Required > 0 && b.Progress >= b.Required {
		b.Earned = true
		earnedAt := now
		b.EarnedAt = &earnedAt
		justEarned = true
	}
	return b, justEarned
}
