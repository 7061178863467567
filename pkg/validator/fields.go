package validator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/crewhire/onboarding-backend/internal/models"
	playground "github.com/go-playground/validator/v10"
)

// FieldErrors maps a field path to a user-facing message. An empty map means valid.
type FieldErrors map[string]string

// Valid reports whether there are no errors
func (e FieldErrors) Valid() bool {
	return len(e) == 0
}

// Error lists the failing fields in a stable order so FieldErrors can travel as an error
func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e FieldErrors) add(field, msg string) {
	if _, exists := e[field]; !exists {
		e[field] = msg
	}
}

func (e FieldErrors) required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		e.add(field, "This field is required")
		return false
	}
	return true
}

func (e FieldErrors) merge(other FieldErrors) {
	for k, v := range other {
		e.add(k, v)
	}
}

var (
	genders     = []string{"male", "female", "other"}
	sizes       = []string{"XS", "S", "M", "L", "XL", "XXL"}
	structCheck = playground.New()
	phones      = NewPhoneValidator()
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// ValidateStep checks one wizard step. It is pure: flags carry the outcome of
// OTP, PAN and Aadhaar checks and today anchors the age rules.
func ValidateStep(step int, data *models.ApplicationData, flags models.VerificationFlags, today time.Time) FieldErrors {
	errs := FieldErrors{}

	switch step {
	case models.StepPersonal:
		validatePersonal(errs, data, flags, today)
	case models.StepContact:
		validateContact(errs, data)
	case models.StepEducation:
		validateEducation(errs, data, today)
	case models.StepSizing:
		validateSizing(errs, data)
	case models.StepEmployment:
		validateEmployment(errs, data, flags)
	case models.StepIdentity:
		validateIdentity(errs, data, flags)
	default:
		errs.add("current_step", fmt.Sprintf("step must be between %d and %d", models.FirstStep, models.LastStep))
	}

	return errs
}

// ValidateThrough merges the errors of steps 1..last
func ValidateThrough(last int, data *models.ApplicationData, flags models.VerificationFlags, today time.Time) FieldErrors {
	errs := FieldErrors{}
	for step := models.FirstStep; step <= last && step <= models.LastStep; step++ {
		errs.merge(ValidateStep(step, data, flags, today))
	}
	return errs
}

// ValidateAll checks every step, as required before submission
func ValidateAll(data *models.ApplicationData, flags models.VerificationFlags, today time.Time) FieldErrors {
	return ValidateThrough(models.LastStep, data, flags, today)
}

func validatePersonal(errs FieldErrors, d *models.ApplicationData, flags models.VerificationFlags, today time.Time) {
	errs.required("full_name", d.FullName)

	if errs.required("date_of_birth", d.DateOfBirth) {
		switch err := CheckAge(d.DateOfBirth, today); err {
		case nil:
		case ErrAgeOutOfRange:
			errs.add("date_of_birth", fmt.Sprintf("Age must be between %d and %d", MinAge, MaxAge))
		default:
			errs.add("date_of_birth", "Enter a valid date (YYYY-MM-DD)")
		}
	}

	if errs.required("gender", d.Gender) && !oneOf(d.Gender, genders) {
		errs.add("gender", "Select male, female or other")
	}

	if errs.required("phone", d.Phone) && !phones.IsValid(d.Phone) {
		errs.add("phone", "Enter a valid 10-digit mobile number")
	}

	if errs.required("email", d.Email) && structCheck.Var(d.Email, "email") != nil {
		errs.add("email", "Enter a valid email address")
	}

	if !flags.PhoneVerified {
		errs.add("phone_verified", "Verify your phone number with the OTP")
	}
}

func validateAddress(errs FieldErrors, prefix string, a models.Address) {
	errs.required(prefix+".line1", a.Line1)
	errs.required(prefix+".city", a.City)
	errs.required(prefix+".state", a.State)
	if errs.required(prefix+".pincode", a.Pincode) && !IsValidPincode(a.Pincode) {
		errs.add(prefix+".pincode", "Pincode must be 6 digits")
	}
}

func validateContact(errs FieldErrors, d *models.ApplicationData) {
	if d.SecondaryPhone != "" {
		secondary, err := phones.Validate(d.SecondaryPhone)
		switch {
		case err != nil:
			errs.add("secondary_phone", "Enter a valid 10-digit mobile number")
		case secondary == phones.Sanitize(d.Phone):
			errs.add("secondary_phone", "Secondary number must differ from the primary number")
		}
	}

	validateAddress(errs, "current_address", d.CurrentAddress)
	validateAddress(errs, "permanent_address", d.PermanentAddress)
}

func validateEducation(errs FieldErrors, d *models.ApplicationData, today time.Time) {
	errs.required("highest_qualification", d.HighestQualification)
	errs.required("institution", d.Institution)

	switch {
	case d.YearOfPassing == 0:
		errs.add("year_of_passing", "This field is required")
	case d.YearOfPassing < 1950 || d.YearOfPassing > today.Year():
		errs.add("year_of_passing", fmt.Sprintf("Year must be between 1950 and %d", today.Year()))
	}

	for i, w := range d.WorkHistory {
		prefix := fmt.Sprintf("work_history[%d]", i)
		errs.required(prefix+".employer", w.Employer)
		errs.required(prefix+".designation", w.Designation)
	}
}

func validateSizing(errs FieldErrors, d *models.ApplicationData) {
	if errs.required("uniform_size", d.UniformSize) && !oneOf(d.UniformSize, sizes) {
		errs.add("uniform_size", "Select a size from XS to XXL")
	}

	switch {
	case d.ShoeSize == 0:
		errs.add("shoe_size", "This field is required")
	case d.ShoeSize < 3 || d.ShoeSize > 14:
		errs.add("shoe_size", "Shoe size must be between 3 and 14")
	}

	if d.HasMedicalCondition {
		errs.required("medical_details", d.MedicalDetails)
	}

	errs.required("emergency_contact_name", d.EmergencyContactName)
	if errs.required("emergency_contact_phone", d.EmergencyContactPhone) && !phones.IsValid(d.EmergencyContactPhone) {
		errs.add("emergency_contact_phone", "Enter a valid 10-digit mobile number")
	}
}

func validateEmployment(errs FieldErrors, d *models.ApplicationData, flags models.VerificationFlags) {
	errs.required("role", d.Role)
	errs.required("outlet_code", d.OutletCode)

	if errs.required("date_of_joining", d.DateOfJoining) {
		if _, err := ParseDate(d.DateOfJoining); err != nil {
			errs.add("date_of_joining", "Enter a valid date (YYYY-MM-DD)")
		}
	}

	if errs.required("pan_number", d.PANNumber) && !IsValidPAN(d.PANNumber) {
		errs.add("pan_number", "PAN must look like ABCDE1234F")
	}

	if !flags.PANVerified {
		errs.add("pan_verified", "Verify your PAN before continuing")
	}
}

func validateIdentity(errs FieldErrors, d *models.ApplicationData, flags models.VerificationFlags) {
	if errs.required("aadhaar_number", d.AadhaarNumber) && !IsValidAadhaar(d.AadhaarNumber) {
		errs.add("aadhaar_number", "Aadhaar number must be 12 digits")
	}

	if !flags.AadhaarVerified {
		errs.add("aadhaar_verified", "Complete Aadhaar e-Sign verification")
	}
}
