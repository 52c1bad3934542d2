package ingest

import (
	"github.com/lox/hoteldash/internal/models"
)

const (
	FlagPriceNegative       = "price_negative"
	FlagReviewOutOfRange    = "review_out_of_range"
	FlagDistanceNegative    = "distance_negative"
	FlagNightsInvalid       = "nights_invalid"
	FlagPersonsInvalid      = "persons_invalid"
	FlagHotelNameMissing    = "hotel_name_missing"
	FlagPriceDateUnparsable = "price_date_unparsable"
)

// ValidateRecord reports quality flags for a normalized record. Flags are
// informational only; the record is kept as-is.
func ValidateRecord(rec models.Record) []string {
	var flags []string

	if rec.HotelName == "" {
		flags = append(flags, FlagHotelNameMissing)
	}

	if rec.Nights <= 0 {
		flags = append(flags, FlagNightsInvalid)
	}
	if rec.Persons <= 0 {
		flags = append(flags, FlagPersonsInvalid)
	}

	if rec.Price.Valid && rec.Price.Float64 < 0 {
		flags = append(flags, FlagPriceNegative)
	}

	if rec.ReviewScore.Valid {
		if rec.ReviewScore.Float64 < 0 || rec.ReviewScore.Float64 > 10 {
			flags = append(flags, FlagReviewOutOfRange)
		}
	}

	if rec.Distance.Valid && rec.Distance.Float64 < 0 {
		flags = append(flags, FlagDistanceNegative)
	}

	if rec.PriceDateRaw != "" && !rec.PriceDate.Valid {
		flags = append(flags, FlagPriceDateUnparsable)
	}

	return flags
}
