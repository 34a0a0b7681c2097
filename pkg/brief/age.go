package brief

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	AgeAll = "All"

	MinAge = 0
	MaxAge = 100
)

// AgeMode selects how the target age is entered.
type AgeMode string

const (
	AgeText   AgeMode = "text"
	AgeMinMax AgeMode = "minmax"
)

func ParseAgeMode(s string) (AgeMode, error) {
	switch AgeMode(s) {
	case AgeText, "":
		return AgeText, nil
	case AgeMinMax:
		return AgeMinMax, nil
	}
	return "", fmt.Errorf("%w: age mode %q", ErrInvalidSetting, s)
}

var (
	agePlusRe  = regexp.MustCompile(`^(\d{1,3})\+$`)
	ageRangeRe = regexp.MustCompile(`^(\d{1,3})-(\d{1,3})$`)
)

// AgeRange is a parsed target age. Open means "Min and above".
type AgeRange struct {
	Min  int
	Max  int
	Open bool
}

func (r AgeRange) String() string {
	switch {
	case r.Min <= MinAge && r.Max >= MaxAge:
		return AgeAll
	case r.Open:
		return strconv.Itoa(r.Min) + "+"
	default:
		return fmt.Sprintf("%d-%d", r.Min, r.Max)
	}
}

// ParseAgeRange validates a single-field age value: "All", "25+" or "18-65".
func ParseAgeRange(s string) (AgeRange, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, AgeAll) {
		return AgeRange{Min: MinAge, Max: MaxAge}, nil
	}
	if m := agePlusRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n >= MaxAge {
			return AgeRange{}, invalid(ErrInvalidAge, "Invalid Age Range", "Start age %d must be below %d.", n, MaxAge)
		}
		return AgeRange{Min: n, Max: MaxAge, Open: true}, nil
	}
	if m := ageRangeRe.FindStringSubmatch(s); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if lo >= hi {
			return AgeRange{}, invalid(ErrInvalidAge, "Invalid Age Range", "Start age %d must be lower than end age %d.", lo, hi)
		}
		if hi > MaxAge {
			return AgeRange{}, invalid(ErrInvalidAge, "Invalid Age Range", "End age %d must not exceed %d.", hi, MaxAge)
		}
		return AgeRange{Min: lo, Max: hi}, nil
	}
	return AgeRange{}, invalid(ErrInvalidAge, "Invalid Age Range", "Age %q must be \"All\", \"N+\" or \"N-M\".", s)
}

// ParseAge returns the normalized form of a single-field age value.
func ParseAge(s string) (string, error) {
	r, err := ParseAgeRange(s)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(strings.TrimSpace(s), AgeAll) {
		return AgeAll, nil
	}
	if r.Open {
		return strconv.Itoa(r.Min) + "+", nil
	}
	return fmt.Sprintf("%d-%d", r.Min, r.Max), nil
}

// AgeFromBounds normalizes the two numeric inputs. Values are clamped to
// [0,100]; the full range becomes "All".
func AgeFromBounds(min, max int) (string, error) {
	min = clamp(min, MinAge, MaxAge)
	max = clamp(max, MinAge, MaxAge)
	if min >= max {
		return "", invalid(ErrInvalidAge, "Invalid Age Range", "Minimum age %d must be lower than maximum age %d.", min, max)
	}
	if min == MinAge && max == MaxAge {
		return AgeAll, nil
	}
	return fmt.Sprintf("%d-%d", min, max), nil
}

// SpanAges collapses several age values into the range covering all of them.
func SpanAges(values []string) (string, error) {
	if len(values) == 0 {
		return AgeAll, nil
	}
	span := AgeRange{Min: MaxAge + 1, Max: MinAge - 1}
	for _, v := range values {
		r, err := ParseAgeRange(v)
		if err != nil {
			return "", err
		}
		if r.Min < span.Min {
			span.Min = r.Min
		}
		if r.Max > span.Max || (r.Max == span.Max && r.Open) {
			span.Max = r.Max
			span.Open = r.Open
		}
	}
	return span.String(), nil
}

// SetTargetAge validates input for mode text and stores the normalized value.
// The brief is unchanged on error.
func (b *Brief) SetTargetAge(input string) error {
	norm, err := ParseAge(input)
	if err != nil {
		return err
	}
	b.TargetAge = norm
	return nil
}

// SetTargetAgeBounds is the min/max input variant of SetTargetAge.
func (b *Brief) SetTargetAgeBounds(min, max int) error {
	norm, err := AgeFromBounds(min, max)
	if err != nil {
		return err
	}
	b.TargetAge = norm
	return nil
}

// AgeBounds reports the stored age as min/max numbers for the numeric inputs.
func (b *Brief) AgeBounds() (int, int) {
	r, err := ParseAgeRange(b.TargetAge)
	if err != nil {
		return MinAge, MaxAge
	}
	return r.Min, r.Max
}

// ValidateAge reports whether the stored age may be sent upstream.
func (b *Brief) ValidateAge() error {
	_, err := ParseAgeRange(b.TargetAge)
	return err
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
