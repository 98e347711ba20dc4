// Package fees computes what a registration owes for the NieboCross race.
package fees

import (
	"errors"
	"fmt"
	"math"

	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
)

type Category string

const (
	Category3kmRun  Category = "3km_run"
	Category3kmNW   Category = "3km_nw"
	Category9kmRun  Category = "9km_run"
	Category9kmNW   Category = "9km_nw"
	CategoryKidsRun Category = "kids_run"
)

// Categories lists every race category in display order.
var Categories = []Category{CategoryKidsRun, Category3kmRun, Category3kmNW, Category9kmRun, Category9kmNW}

// DefaultTshirtCharityRatio is the part of a t-shirt price that goes to charity (10 of 80 zł).
const DefaultTshirtCharityRatio = 10.0 / 80.0

var ErrUnknownCategory = errors.New("unknown race category")

// Valid reports whether c is one of the known race categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Line is one participant as far as pricing is concerned.
type Line struct {
	Category Category
	Tshirt   bool
}

type Schedule struct {
	CategoryPrices               map[Category]float64
	TshirtPrice                  float64
	TshirtFeesEnabled            bool
	TshirtCharityRatio           float64
	ExtraDonationCountsAsCharity bool
}

// DefaultSchedule is the 2026 price list.
func DefaultSchedule() Schedule {
	return Schedule{
		CategoryPrices: map[Category]float64{
			CategoryKidsRun: 20,
			Category3kmRun:  60,
			Category3kmNW:   60,
			Category9kmRun:  60,
			Category9kmNW:   60,
		},
		TshirtPrice:                  80,
		TshirtFeesEnabled:            true,
		TshirtCharityRatio:           DefaultTshirtCharityRatio,
		ExtraDonationCountsAsCharity: true,
	}
}

// Breakdown is the amount owed by one registration, in złoty.
type Breakdown struct {
	RaceFees      float64 `json:"raceFees"`
	TshirtFees    float64 `json:"tshirtFees"`
	ExtraDonation float64 `json:"extraDonation"`
	CharityAmount float64 `json:"charityAmount"`
	TotalAmount   float64 `json:"totalAmount"`
}

// Calculate prices a full set of participants. An unknown category is an
// error; it is never priced as an adult.
func Calculate(lines []Line, extraDonation float64, s Schedule) (Breakdown, error) {
	if extraDonation < 0 || math.IsNaN(extraDonation) || math.IsInf(extraDonation, 0) {
		return Breakdown{}, apperrors.Invalid("extraDonation", "Darowizna nie może być ujemna")
	}

	var race, tshirt float64
	for _, l := range lines {
		price, ok := s.CategoryPrices[l.Category]
		if !ok || !l.Category.Valid() {
			return Breakdown{}, fmt.Errorf("%w: %q", ErrUnknownCategory, l.Category)
		}
		race += price
		if l.Tshirt && s.TshirtFeesEnabled {
			tshirt += s.TshirtPrice
		}
	}

	charity := race + tshirt*s.TshirtCharityRatio
	if s.ExtraDonationCountsAsCharity {
		charity += extraDonation
	}

	return Breakdown{
		RaceFees:      round(race),
		TshirtFees:    round(tshirt),
		ExtraDonation: round(extraDonation),
		CharityAmount: round(charity),
		TotalAmount:   round(race + tshirt + extraDonation),
	}, nil
}

// Reconcile recomputes the amounts for the current participants and keeps
// whatever extra donation was already recorded on the previous breakdown,
// adding newExtra on top.
func Reconcile(lines []Line, previous *Breakdown, newExtra float64, s Schedule) (Breakdown, error) {
	if newExtra < 0 {
		return Breakdown{}, apperrors.Invalid("extraDonation", "Darowizna nie może być ujemna")
	}
	return Calculate(lines, PreviousExtra(previous)+newExtra, s)
}

// PreviousExtra returns the extra donation held by a stored breakdown. Rows
// written before the donation had its own column carry it only implicitly
// in the total.
func PreviousExtra(previous *Breakdown) float64 {
	if previous == nil {
		return 0
	}
	if previous.ExtraDonation > 0 {
		return previous.ExtraDonation
	}
	return math.Max(0, round(previous.TotalAmount-previous.RaceFees-previous.TshirtFees))
}

// MinorUnits converts złoty to grosze for payment gateways.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

// IsUnknownCategory reports whether err came from an unpriced category.
func IsUnknownCategory(err error) bool {
	return errors.Is(err, ErrUnknownCategory)
}
