// Package scoring holds the side-effect free parts of score aggregation:
// effective scores, per-student statistics, leaderboard ranking and the
// certification threshold check. Callers own persistence and transactions.
package scoring

import "sort"

// DefaultQualificationThreshold is the average score, on the 0-100 scale, a
// student needs to qualify for a certificate.
const DefaultQualificationThreshold = 80.0

// Graded is the minimal view of a submission needed for aggregation.
type Graded struct {
	AIScore     *int
	MentorScore *int
}

// Stats is the aggregate of one student's submissions.
type Stats struct {
	TotalScore       int
	AverageScore     float64
	TotalAssignments int
}

// EffectiveScore returns the mentor override when present, the automated score
// otherwise, and zero for an ungraded submission.
func EffectiveScore(mentor, ai *int) int {
	if mentor != nil {
		return *mentor
	}
	if ai != nil {
		return *ai
	}
	return 0
}

// Compute aggregates submissions into Stats. No submissions yield the zero state.
func Compute(submissions []Graded) Stats {
	if len(submissions) == 0 {
		return Stats{}
	}

	total := 0
	for _, s := range submissions {
		total += EffectiveScore(s.MentorScore, s.AIScore)
	}

	return Stats{
		TotalScore:       total,
		AverageScore:     float64(total) / float64(len(submissions)),
		TotalAssignments: len(submissions),
	}
}

// Qualifies reports whether an average meets the threshold. The boundary is inclusive.
func Qualifies(average, threshold float64) bool {
	return average >= threshold
}

// Standing is one leaderboard row as seen by the ranking pass.
type Standing struct {
	StudentID  uint
	TotalScore int
	Rank       int
}

// SortStandings orders rows by total score descending, then student id ascending.
func SortStandings(rows []Standing) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalScore != rows[j].TotalScore {
			return rows[i].TotalScore > rows[j].TotalScore
		}
		return rows[i].StudentID < rows[j].StudentID
	})
}

// AssignRanks sorts rows and assigns positional dense ranks: a row tied with its
// predecessor shares its rank, any other row takes its 1-based position.
// Totals [90 90 80 80 80 70] rank as [1 1 3 3 3 6].
func AssignRanks(rows []Standing) {
	SortStandings(rows)

	for idx := range rows {
		if idx > 0 && rows[idx].TotalScore == rows[idx-1].TotalScore {
			rows[idx].Rank = rows[idx-1].Rank
			continue
		}
		rows[idx].Rank = idx + 1
	}
}
