package fraud

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"actms/models"
)

var (
	syntheticDeadline = time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)
	syntheticDay      = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// syntheticRows fakes a bid history when the store is too small to learn
// from: 90% ordinary bids and 10% with tiny amounts, one-line proposals,
// poor text quality and a 02:00 submission time.
func syntheticRows(n int, rng *rand.Rand) []models.ScoringRow {
	rows := make([]models.ScoringRow, 0, n)
	normal := n * 9 / 10
	for i := range n {
		row := models.ScoringRow{
			BidID:          i,
			TenderID:       1 + rng.IntN(10),
			TenderBudget:   decimal.NewFromFloat(uniform(rng, 50_000, 1_000_000)),
			TenderDeadline: syntheticDeadline,
		}
		if i < normal {
			row.CompanyName = fmt.Sprintf("Company_%d", i)
			row.BidAmount = decimal.NewFromFloat(uniform(rng, 10_000, 500_000))
			row.ProposalText = strings.Repeat("A", 100+rng.IntN(901))
			row.NLPScore = uniform(rng, 0.4, 0.8)
			row.CreatedAt = syntheticDay.Add(10 * time.Hour)
		} else {
			row.CompanyName = fmt.Sprintf("SuspiciousCompany_%d", i)
			row.BidAmount = decimal.NewFromFloat(uniform(rng, 1_000, 10_000))
			row.ProposalText = "Short proposal"
			row.NLPScore = uniform(rng, 0.1, 0.3)
			row.CreatedAt = syntheticDay.Add(2 * time.Hour)
			row.IsSuspicious = true
		}
		rows = append(rows, row)
	}
	return rows
}
