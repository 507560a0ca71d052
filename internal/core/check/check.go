// Package check holds the arithmetic shared by every contested roll:
// ability modifiers, skill mastery and margins.
package check

// BaselineScore is the stat score that yields a zero modifier.
const BaselineScore = 10

// Modifier returns floor((score-10)/2), rounding toward negative infinity
// so that a score of 9 yields -1.
func Modifier(score int) int {
	return floorDiv(score-BaselineScore, 2)
}

// MasteryBonus returns floor(rank/3) for a skill rank. Negative ranks are
// treated as zero.
func MasteryBonus(rank int) int {
	if rank < 0 {
		return 0
	}
	return rank / 3
}

// Margin calculates the margin of success or failure.
// Positive values indicate success, negative indicate failure.
func Margin(total, difficulty int) int {
	return total - difficulty
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
