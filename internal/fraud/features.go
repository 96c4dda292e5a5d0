package fraud

import (
	"math"
	"unicode/utf8"

	"actms/models"
)

// FeatureNames lists the model inputs in vector order.
var FeatureNames = []string{
	"bid_amount",
	"bid_amount_normalized",
	"proposal_length",
	"company_name_length",
	"submission_hour",
	"submission_day_of_week",
	"nlp_score",
	"time_to_deadline_hours",
}

// Features turns a bid into the model's input vector.
func Features(row models.ScoringRow) []float64 {
	amount := row.BidAmount.InexactFloat64()
	budget := math.Max(row.TenderBudget.InexactFloat64(), 1)

	submitted := row.CreatedAt.UTC()
	// Monday is day 0
	weekday := (int(submitted.Weekday()) + 6) % 7

	hoursLeft := 0.0
	if !row.TenderDeadline.IsZero() {
		hoursLeft = math.Max(row.TenderDeadline.Sub(submitted).Hours(), 0)
	}

	return []float64{
		amount,
		amount / budget,
		float64(utf8.RuneCountInString(row.ProposalText)),
		float64(utf8.RuneCountInString(row.CompanyName)),
		float64(submitted.Hour()),
		float64(weekday),
		row.NLPScore,
		hoursLeft,
	}
}
