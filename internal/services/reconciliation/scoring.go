package reconciliation

import (
	"math"
	"strings"
	"time"
)

// Suggestion score weights. Internal tunables, not an API contract: the only
// pinned behavior is that exact amount on the same day scores 100 and
// everything else lands below it.
const (
	weightAmount = 0.55
	weightDate   = 0.25
	weightText   = 0.20
)

// amountKey converts a float amount to minor units so equality checks are
// exact instead of float comparisons.
func amountKey(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// amountCloseness scores how near two absolute amounts are. Exact match
// scores highest; a tolerance band decays below it.
func amountCloseness(bankAmount, recordAmount float64) float64 {
	a := math.Abs(bankAmount)
	b := math.Abs(recordAmount)
	if amountKey(a) == amountKey(b) {
		return 100
	}
	if a == 0 && b == 0 {
		return 100
	}
	diff := math.Abs(a-b) / math.Max(a, b)
	switch {
	case diff <= 0.01:
		return 80
	case diff <= 0.025:
		return 60
	case diff <= 0.05:
		return 40
	case diff <= 0.10:
		return 20
	default:
		return 0
	}
}

func computeDateScore(txDate, recordDate time.Time) float64 {
	days := math.Abs(txDate.Sub(recordDate).Hours() / 24)
	switch {
	case days <= 3:
		return 100
	case days <= 7:
		return 80
	case days <= 15:
		return 60
	case days <= 30:
		return 40
	default:
		return 20
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// computeTextSimilarity scores token overlap between the bank description and
// the record's descriptive text, best-levenshtein per token.
func computeTextSimilarity(bankDesc, recordText string) float64 {
	bTokens := strings.Fields(normalizeText(bankDesc))
	rTokens := strings.Fields(normalizeText(recordText))

	if len(rTokens) == 0 {
		return 0
	}

	totalScore := 0.0
	for _, recTok := range rTokens {
		best := 0.0
		for _, bankTok := range bTokens {
			dist := levenshtein(recTok, bankTok)
			maxLen := math.Max(float64(len(recTok)), float64(len(bankTok)))
			sim := 1 - float64(dist)/maxLen
			if sim > best {
				best = sim
			}
		}
		totalScore += best
	}
	return (totalScore / float64(len(rTokens))) * 100
}

func normalizeText(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.TrimSpace(s)
	return s
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	dp := make([][]int, len(a)+1)
	for i := range dp {
		dp[i] = make([]int, len(b)+1)
	}

	for i := 0; i <= len(a); i++ {
		dp[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		dp[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			dp[i][j] = minOf3(
				dp[i-1][j]+1,
				dp[i][j-1]+1,
				dp[i-1][j-1]+cost,
			)
		}
	}
	return dp[len(a)][len(b)]
}

func minOf3(a, b, c int) int {
	if a < b && a < c {
		return a
	}
	if b < c {
		return b
	}
	return c
}
