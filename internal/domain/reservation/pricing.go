package reservation

import (
	"math"

	"github.com/ema-residences/service-reservation/internal/platform/domain"
)

// PricingStrategy defines the interface for calculating reservation prices.
type PricingStrategy interface {
	// Calculate returns the total price for the stay at the given nightly rate.
	Calculate(stay StayRange, nightlyRate int64) (int64, error)
}

// NightlyPricingStrategy charges nights × nightly rate, nothing else.
type NightlyPricingStrategy struct{}

// NewNightlyPricingStrategy creates a new NightlyPricingStrategy.
func NewNightlyPricingStrategy() *NightlyPricingStrategy {
	return &NightlyPricingStrategy{}
}

// Calculate computes the total price. The listing rate must be positive so the total is too.
func (s *NightlyPricingStrategy) Calculate(stay StayRange, nightlyRate int64) (int64, error) {
	if nightlyRate <= 0 {
		return 0, domain.NewValidationError("listing has no valid nightly price")
	}
	nights := stay.Nights()
	if nights <= 0 {
		return 0, domain.NewInvalidDateRangeError("stay must span at least one night")
	}
	if nights > math.MaxInt64/nightlyRate {
		return 0, domain.NewValidationError("total price overflows")
	}
	return nights * nightlyRate, nil
}

// CheckClientTotal compares an advisory client total with the computed one. The client figure
// is rounded to the nearest integer before comparison.
func CheckClientTotal(client *float64, computed int64) error {
	if client == nil {
		return nil
	}
	rounded := math.Round(*client)
	if rounded != float64(computed) {
		return domain.NewPriceMismatchError(computed, int64(rounded))
	}
	return nil
}
