package fraud

import (
	"context"
	"fmt"
	"math"
	"time"
)

// FeatureStat compares one feature between flagged and unflagged bids.
type FeatureStat struct {
	SuspiciousMean  float64 `json:"suspicious_mean"`
	NormalMean      float64 `json:"normal_mean"`
	SuspiciousStd   float64 `json:"suspicious_std"`
	NormalStd       float64 `json:"normal_std"`
	DifferenceRatio float64 `json:"difference_ratio"`
}

type FeatureReport struct {
	Features        map[string]FeatureStat `json:"feature_analysis,omitempty"`
	SuspiciousCount int                    `json:"suspicious_count"`
	NormalCount     int                    `json:"normal_count"`
	Error           string                 `json:"error,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
}

// FeatureAnalysis contrasts the feature means of flagged bids with those of
// at most twice as many unflagged bids.
func (d *Detector) FeatureAnalysis(ctx context.Context) (FeatureReport, error) {
	rows, err := d.store.ListScoringRows(ctx)
	if err != nil {
		return FeatureReport{}, fmt.Errorf("load bids: %w", err)
	}

	var suspicious, normal [][]float64
	for _, r := range rows {
		if r.IsSuspicious {
			suspicious = append(suspicious, Features(r))
		} else {
			normal = append(normal, Features(r))
		}
	}
	report := FeatureReport{
		SuspiciousCount: len(suspicious),
		NormalCount:     len(normal),
		Timestamp:       d.now().UTC(),
	}
	if len(suspicious) == 0 || len(normal) == 0 {
		report.Error = "Insufficient data for feature analysis"
		return report, nil
	}
	if len(normal) > 2*len(suspicious) {
		normal = normal[:2*len(suspicious)]
	}

	report.Features = make(map[string]FeatureStat, len(FeatureNames))
	for j, name := range FeatureNames {
		sm, ss := meanStd(suspicious, j)
		nm, ns := meanStd(normal, j)
		ratio := 1.0
		if nm != 0 {
			ratio = sm / nm
		}
		report.Features[name] = FeatureStat{
			SuspiciousMean:  sm,
			NormalMean:      nm,
			SuspiciousStd:   ss,
			NormalStd:       ns,
			DifferenceRatio: ratio,
		}
	}
	return report, nil
}

func meanStd(X [][]float64, col int) (mean, std float64) {
	if len(X) == 0 {
		return 0, 0
	}
	for _, row := range X {
		mean += row[col]
	}
	mean /= float64(len(X))
	for _, row := range X {
		d := row[col] - mean
		std += d * d
	}
	return mean, math.Sqrt(std / float64(len(X)))
}
