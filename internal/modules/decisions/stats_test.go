package decisions

import (
	"testing"
	"time"

	"github.com/aristath/compass/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestComputeWeeklyStats(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	rational := func(ago time.Duration, emotion int) domain.Decision {
		return domain.Decision{CreatedAt: now.Add(-ago), EmotionalState: emotion, FollowedPlan: true, DidResearch: true, CheckedEmotions: true}
	}
	impulsive := func(ago time.Duration, emotion int) domain.Decision {
		d := rational(ago, emotion)
		d.CheckedEmotions = false
		return d
	}

	tests := []struct {
		name      string
		decisions []domain.Decision
		want      domain.WeeklyStats
	}{
		{
			name: "empty window",
			want: domain.WeeklyStats{},
		},
		{
			name:      "two of three rational",
			decisions: []domain.Decision{rational(time.Hour, 2), rational(2*24*time.Hour, 3), impulsive(6*24*time.Hour, 7)},
			want:      domain.WeeklyStats{TotalDecisions: 3, RationalDecisions: 2, RationalPercentage: 67, AverageEmotionalState: 4},
		},
		{
			name:      "older decisions ignored",
			decisions: []domain.Decision{impulsive(8*24*time.Hour, 9), rational(time.Minute, 1)},
			want:      domain.WeeklyStats{TotalDecisions: 1, RationalDecisions: 1, RationalPercentage: 100, AverageEmotionalState: 1},
		},
		{
			name:      "exactly seven days is inside",
			decisions: []domain.Decision{impulsive(StatsWindow, 5)},
			want:      domain.WeeklyStats{TotalDecisions: 1, RationalPercentage: 0, AverageEmotionalState: 5},
		},
		{
			name:      "one of three rounds down",
			decisions: []domain.Decision{rational(time.Hour, 1), impulsive(time.Hour, 2), impulsive(time.Hour, 2)},
			want:      domain.WeeklyStats{TotalDecisions: 3, RationalDecisions: 1, RationalPercentage: 33, AverageEmotionalState: 1.7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeWeeklyStats(tt.decisions, now))
		})
	}
}
