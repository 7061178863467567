package validator

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	// MinAge and MaxAge bound a candidate's age on the day of validation
	MinAge = 18
	MaxAge = 100

	// DateLayout is the wire format for dates in the form document
	DateLayout = "2006-01-02"
)

var (
	panRegex     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]{1}$`)
	aadhaarRegex = regexp.MustCompile(`^[0-9]{12}$`)
	pincodeRegex = regexp.MustCompile(`^[0-9]{6}$`)
)

var (
	// ErrInvalidDate indicates a date that is not YYYY-MM-DD
	ErrInvalidDate = errors.New("date must be in YYYY-MM-DD format")

	// ErrAgeOutOfRange indicates an age outside MinAge..MaxAge
	ErrAgeOutOfRange = errors.New("age must be between 18 and 100")
)

// IsValidPAN matches the PAN format exactly. Lower-case input is rejected; use NormalizePAN first.
func IsValidPAN(pan string) bool {
	return panRegex.MatchString(pan)
}

// NormalizePAN trims and upper-cases a PAN
func NormalizePAN(pan string) string {
	return strings.ToUpper(strings.TrimSpace(pan))
}

// IsValidAadhaar reports whether s is exactly 12 digits
func IsValidAadhaar(s string) bool {
	return aadhaarRegex.MatchString(s)
}

// NormalizeAadhaar strips the spaces and dashes people type between digit groups
func NormalizeAadhaar(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

// IsValidPincode reports whether s is a 6 digit postal code
func IsValidPincode(s string) bool {
	return pincodeRegex.MatchString(s)
}

// ParseDate parses a YYYY-MM-DD date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// Age returns completed years between dob and today, counting a birthday
// only once today's month and day have reached it.
func Age(dob, today time.Time) int {
	years := today.Year() - dob.Year()
	if today.Month() < dob.Month() || (today.Month() == dob.Month() && today.Day() < dob.Day()) {
		years--
	}
	return years
}

// CheckAge parses dob and verifies the age bounds against today
func CheckAge(dob string, today time.Time) error {
	t, err := ParseDate(dob)
	if err != nil {
		return err
	}
	age := Age(t, today)
	if age < MinAge || age > MaxAge {
		return ErrAgeOutOfRange
	}
	return nil
}
