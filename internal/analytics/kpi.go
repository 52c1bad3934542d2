package analytics

import (
	"database/sql"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/lox/hoteldash/internal/models"
)

// KPIs are the headline metrics of a subset.
type KPIs struct {
	AvgReviewScore float64 `json:"avg_review_score"`
	ADR            float64 `json:"adr"`
	OccupancyRate  float64 `json:"occupancy_rate"`
	RevPAR         float64 `json:"revpar"`
}

// ComputeKPIs derives the headline metrics. Every metric is 0 when it has no
// inputs, so an empty subset yields the zero value.
func ComputeKPIs(records []models.Record) KPIs {
	adr := ADR(records)
	occ := OccupancyRate(records)
	return KPIs{
		AvgReviewScore: AvgReviewScore(records),
		ADR:            adr,
		OccupancyRate:  occ,
		RevPAR:         RevPAR(adr, occ),
	}
}

// Round2 rounds half to even at two decimals, matching numpy's round.
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// AvgReviewScore is the rounded mean of non-null review scores, or 0.
func AvgReviewScore(records []models.Record) float64 {
	return safeMean(records, func(r models.Record) sql.NullFloat64 { return r.ReviewScore })
}

// ADR is the rounded mean of non-null prices, or 0.
func ADR(records []models.Record) float64 {
	return safeMean(records, func(r models.Record) sql.NullFloat64 { return r.Price })
}

// OccupancyRate is the percentage of distinct hotels with at least one price,
// rounded to two decimals. It is 0 when there are no named hotels.
func OccupancyRate(records []models.Record) float64 {
	all := make(map[string]struct{})
	priced := make(map[string]struct{})
	for _, r := range records {
		if r.HotelName == "" {
			continue
		}
		all[r.HotelName] = struct{}{}
		if r.Price.Valid {
			priced[r.HotelName] = struct{}{}
		}
	}
	if len(all) == 0 {
		return 0
	}
	return Round2(float64(len(priced)) / float64(len(all)) * 100)
}

// RevPAR multiplies the already rounded ADR and occupancy rate and rounds
// again. The double rounding is kept for compatibility with published figures.
func RevPAR(adr, occupancyRate float64) float64 {
	return Round2(adr * (occupancyRate / 100))
}

func safeMean(records []models.Record, field func(models.Record) sql.NullFloat64) float64 {
	m, ok := mean(records, field)
	if !ok {
		return 0
	}
	return Round2(m)
}

// mean is the unrounded mean of the non-null values of field.
func mean(records []models.Record, field func(models.Record) sql.NullFloat64) (float64, bool) {
	vals := make([]float64, 0, len(records))
	for _, r := range records {
		if v := field(r); v.Valid {
			vals = append(vals, v.Float64)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	return stat.Mean(vals, nil), true
}
