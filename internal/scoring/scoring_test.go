package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int {
	return &v
}

func TestEffectiveScore(t *testing.T) {
	cases := []struct {
		name   string
		mentor *int
		ai     *int
		want   int
	}{
		{name: "ungraded", want: 0},
		{name: "ai only", ai: intPtr(70), want: 70},
		{name: "mentor overrides ai", mentor: intPtr(90), ai: intPtr(70), want: 90},
		{name: "mentor zero still overrides", mentor: intPtr(0), ai: intPtr(70), want: 0},
		{name: "mentor without ai", mentor: intPtr(55), want: 55},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, EffectiveScore(tc.mentor, tc.ai))
		})
	}
}

func TestComputeZeroState(t *testing.T) {
	stats := Compute(nil)
	require.Equal(t, Stats{TotalScore: 0, AverageScore: 0.0, TotalAssignments: 0}, stats)
}

func TestComputeAggregates(t *testing.T) {
	stats := Compute([]Graded{
		{AIScore: intPtr(70)},
		{AIScore: intPtr(40), MentorScore: intPtr(95)},
		{},
	})

	require.Equal(t, 165, stats.TotalScore)
	require.Equal(t, 3, stats.TotalAssignments)
	require.InDelta(t, 55.0, stats.AverageScore, 1e-9)
	require.Equal(t, float64(stats.TotalScore)/float64(stats.TotalAssignments), stats.AverageScore)
}

func TestQualifiesBoundary(t *testing.T) {
	require.True(t, Qualifies(80.0, DefaultQualificationThreshold))
	require.True(t, Qualifies(100, DefaultQualificationThreshold))
	require.False(t, Qualifies(79.999, DefaultQualificationThreshold))
	require.False(t, Qualifies(0, DefaultQualificationThreshold))
}

func TestAssignRanksPositionalDense(t *testing.T) {
	rows := []Standing{
		{StudentID: 6, TotalScore: 70},
		{StudentID: 3, TotalScore: 80},
		{StudentID: 2, TotalScore: 90},
		{StudentID: 5, TotalScore: 80},
		{StudentID: 1, TotalScore: 90},
		{StudentID: 4, TotalScore: 80},
	}

	AssignRanks(rows)

	ids := make([]uint, 0, len(rows))
	ranks := make([]int, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.StudentID)
		ranks = append(ranks, row.Rank)
	}

	require.Equal(t, []uint{1, 2, 3, 4, 5, 6}, ids)
	require.Equal(t, []int{1, 1, 3, 3, 3, 6}, ranks)
}

func TestAssignRanksEmptyAndSingle(t *testing.T) {
	AssignRanks(nil)

	rows := []Standing{{StudentID: 9, TotalScore: 0}}
	AssignRanks(rows)
	require.Equal(t, 1, rows[0].Rank)
}
