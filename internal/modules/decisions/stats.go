package decisions

import (
	"math"
	"time"

	"github.com/aristath/compass/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// StatsWindow is the trailing window covered by weekly stats
const StatsWindow = 7 * 24 * time.Hour

// ComputeWeeklyStats summarizes decisions created within StatsWindow before now.
// A decision is rational when all three discipline flags are set. The
// percentage is rounded to the nearest integer and is 0 for an empty window.
func ComputeWeeklyStats(decisions []domain.Decision, now time.Time) domain.WeeklyStats {
	cutoff := now.Add(-StatsWindow)

	var stats domain.WeeklyStats
	emotions := make([]float64, 0, len(decisions))
	for _, d := range decisions {
		if d.CreatedAt.Before(cutoff) {
			continue
		}
		stats.TotalDecisions++
		if d.IsRational() {
			stats.RationalDecisions++
		}
		emotions = append(emotions, float64(d.EmotionalState))
	}

	if stats.TotalDecisions > 0 {
		stats.RationalPercentage = int(math.Round(float64(stats.RationalDecisions) / float64(stats.TotalDecisions) * 100))
		stats.AverageEmotionalState = math.Round(stat.Mean(emotions, nil)*10) / 10
	}
	return stats
}
