// Package eligibility validates NieboCross participants before they are priced.
package eligibility

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
	"github.com/zatyrani/zatyrani-backend/internal/fees"
	"github.com/zatyrani/zatyrani-backend/internal/slug"
)

// TshirtSizes are the sizes on offer: children's heights first, then adult sizes.
var TshirtSizes = []string{"116", "128", "134", "140", "146", "152", "XS", "S", "M", "L", "XL", "XXL"}

var phonePattern = regexp.MustCompile(`^\d{9}$`)

// Band is an inclusive age range. Max of zero means no upper limit.
type Band struct {
	Min     int
	Max     int
	Message string
}

func (b Band) contains(age int) bool {
	return age >= b.Min && (b.Max == 0 || age <= b.Max)
}

// DefaultBands returns the age limits for each race category.
func DefaultBands() map[fees.Category]Band {
	adult := Band{Min: 16, Message: "Minimalny wiek dla tras 3km i 9km to 16 lat"}
	return map[fees.Category]Band{
		fees.CategoryKidsRun: {Min: 0, Max: 14, Message: "Biegi dzieci dla uczestników do 14 lat"},
		fees.Category3kmRun:  adult,
		fees.Category3kmNW:   adult,
		fees.Category9kmRun:  adult,
		fees.Category9kmNW:   adult,
	}
}

type Rules struct {
	EventDate time.Time
	Bands     map[fees.Category]Band
}

// ParticipantInput is a participant as submitted in the registration form.
type ParticipantInput struct {
	FullName       string  `json:"fullName"`
	BirthDate      string  `json:"birthDate"`
	City           string  `json:"city"`
	Nationality    string  `json:"nationality"`
	Club           string  `json:"club"`
	RaceCategory   string  `json:"raceCategory"`
	TshirtSize     *string `json:"tshirtSize"`
	HideNamePublic bool    `json:"hideNamePublic"`
	PhoneNumber    string  `json:"phoneNumber"`
}

// Participant is a validated participant ready to be stored and priced.
type Participant struct {
	FullName       string
	BirthDate      time.Time
	City           string
	Nationality    string
	Club           string
	Category       fees.Category
	TshirtSize     *string
	HideNamePublic bool
	PhoneNumber    string
}

// AgeAt returns the age in whole years on the given day.
func AgeAt(birth, on time.Time) int {
	age := on.Year() - birth.Year()
	if on.Month() < birth.Month() || (on.Month() == birth.Month() && on.Day() < birth.Day()) {
		age--
	}
	return age
}

// CheckCategory verifies the participant's age on race day fits the category.
func CheckCategory(cat fees.Category, birth time.Time, rules Rules) error {
	band, ok := rules.Bands[cat]
	if !ok {
		return apperrors.Invalid("raceCategory", "Nieprawidłowa kategoria biegu")
	}
	if !band.contains(AgeAt(birth, rules.EventDate)) {
		return apperrors.Invalid("birthDate", band.Message)
	}
	return nil
}

// ValidTshirtSize reports whether size is on offer.
func ValidTshirtSize(size string) bool {
	for _, s := range TshirtSizes {
		if s == size {
			return true
		}
	}
	return false
}

// Validate checks one participant and returns its normalised form.
func Validate(in ParticipantInput, rules Rules) (Participant, error) {
	fullName := strings.TrimSpace(in.FullName)
	city := strings.TrimSpace(in.City)
	nationality := strings.TrimSpace(in.Nationality)
	phone := strings.TrimSpace(in.PhoneNumber)

	if fullName == "" || in.BirthDate == "" || city == "" || nationality == "" || in.RaceCategory == "" || phone == "" {
		return Participant{}, apperrors.Invalid("", "Wszystkie wymagane pola muszą być wypełnione")
	}

	cat := fees.Category(in.RaceCategory)
	if !cat.Valid() {
		return Participant{}, apperrors.Invalid("raceCategory", "Nieprawidłowa kategoria biegu")
	}

	var size *string
	if in.TshirtSize != nil && *in.TshirtSize != "" {
		if !ValidTshirtSize(*in.TshirtSize) {
			return Participant{}, apperrors.Invalid("tshirtSize", "Nieprawidłowy rozmiar koszulki")
		}
		s := *in.TshirtSize
		size = &s
	}

	if !phonePattern.MatchString(phone) {
		return Participant{}, apperrors.Invalid("phoneNumber", "Numer telefonu musi składać się z 9 cyfr")
	}

	birth, err := slug.ParseDate(in.BirthDate)
	if err != nil {
		return Participant{}, apperrors.Invalid("birthDate", "Nieprawidłowa data urodzenia")
	}
	if !birth.Before(rules.EventDate) {
		return Participant{}, apperrors.Invalid("birthDate", "Nieprawidłowa data urodzenia")
	}

	if err := CheckCategory(cat, birth, rules); err != nil {
		return Participant{}, err
	}

	return Participant{
		FullName:       fullName,
		BirthDate:      birth,
		City:           city,
		Nationality:    nationality,
		Club:           strings.TrimSpace(in.Club),
		Category:       cat,
		TshirtSize:     size,
		HideNamePublic: in.HideNamePublic,
		PhoneNumber:    phone,
	}, nil
}

// ValidateAll validates every participant and stops at the first failure,
// naming its position in the list.
func ValidateAll(in []ParticipantInput, rules Rules) ([]Participant, error) {
	if len(in) == 0 {
		return nil, apperrors.Invalid("participants", "Brak uczestników")
	}
	out := make([]Participant, 0, len(in))
	for i, p := range in {
		v, err := Validate(p, rules)
		if err != nil {
			return nil, apperrors.Invalid(fmt.Sprintf("participants[%d]", i), fmt.Sprintf("Uczestnik %d: %s", i+1, apperrors.Message(err)))
		}
		out = append(out, v)
	}
	return out, nil
}
