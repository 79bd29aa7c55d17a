// Package rating implements the ELO model used to pair and settle players.
package rating

import "math"

const (
	// Base is the rating every player starts from in a sport.
	Base = 1200
	// DefaultTolerance is the rating gap accepted when a queue entry names none.
	DefaultTolerance = 200
)

// ExpectedScore is the probability that a player rated a beats one rated b.
func ExpectedScore(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// Delta is the rating change for a player rated a after playing b.
func Delta(a, b int, aWon bool, k int) int {
	actual := 0.0
	if aWon {
		actual = 1
	}
	return int(math.Round(float64(k) * (actual - ExpectedScore(a, b))))
}

// KFactor moves new and low rated players faster than established ones.
func KFactor(gamesPlayed, rating int) int {
	switch {
	case gamesPlayed < 10:
		return 40
	case gamesPlayed < 30 || rating < 1400:
		return 32
	case rating < 1800:
		return 24
	default:
		return 16
	}
}

// Compatible reports whether two ratings are within tolerance of each other.
func Compatible(r1, r2, tolerance int) bool {
	return abs(r1-r2) <= tolerance
}

// MatchQuality scores a pairing in [0, 1]; equal ratings score 1.
func MatchQuality(r1, r2 int) float64 {
	return math.Max(0, 1-float64(abs(r1-r2))/500)
}

// Tier names the band a rating falls into.
func Tier(rating int) string {
	switch {
	case rating < 1000:
		return "Beginner"
	case rating < 1200:
		return "Novice"
	case rating < 1400:
		return "Intermediate"
	case rating < 1600:
		return "Advanced"
	case rating < 1800:
		return "Expert"
	case rating < 2000:
		return "Master"
	default:
		return "Grandmaster"
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
