// Package validation checks and normalizes the personal fields of a
// submission. Nothing here performs I/O.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"kycgate/internal/verification/models"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	namePattern     = regexp.MustCompile(`^[a-zA-ZğĞıİöÖüÜşŞçÇ\s]+$`)
	phonePattern    = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	phoneStripper   = strings.NewReplacer(" ", "", "-", "")
)

// Error reports the first field that failed validation.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// applicantForm mirrors models.Applicant with the field rules attached. Field
// order is the order errors are reported in.
type applicantForm struct {
	Username  string `json:"username" validate:"required,min=3,max=50,kyc_username"`
	FirstName string `json:"first_name" validate:"required,min=2,max=100,kyc_name"`
	LastName  string `json:"last_name" validate:"required,min=2,max=100,kyc_name"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,min=10,max=20,kyc_phone"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	mustRegister(v, "kyc_username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "kyc_name", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "kyc_phone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s: %v", tag, err))
	}
}

// Validate trims and checks every field, returning the normalized applicant
// or an *Error for the first failing field.
func Validate(in models.Applicant) (models.Applicant, error) {
	form := applicantForm{
		Username:  strings.TrimSpace(in.Username),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
	}
	if err := validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return models.Applicant{}, toError(verrs[0])
		}
		return models.Applicant{}, err
	}

	return models.Applicant{
		Username:  NormalizeUsername(form.Username),
		FirstName: NormalizeName(form.FirstName),
		LastName:  NormalizeName(form.LastName),
		Email:     NormalizeEmail(form.Email),
		Phone:     form.Phone,
	}, nil
}

// NormalizeUsername lowercases a username.
func NormalizeUsername(u string) string {
	return strings.ToLower(u)
}

// NormalizeName title-cases a name. A Caser keeps state, so one is built per
// call.
func NormalizeName(n string) string {
	return cases.Title(language.Und).String(n)
}

// NormalizeEmail lowercases an address.
func NormalizeEmail(e string) string {
	return strings.ToLower(e)
}

// ValidPhone strips spaces and hyphens and checks the E.164-like shape.
func ValidPhone(p string) bool {
	return phonePattern.MatchString(phoneStripper.Replace(p))
}

func toError(fe validator.FieldError) *Error {
	var reason string
	switch fe.Tag() {
	case "required":
		reason = "field required"
	case "min":
		reason = fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		reason = fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		reason = "must be a valid email address"
	case "kyc_username":
		reason = "may only contain letters, digits, hyphens and underscores"
	case "kyc_name":
		reason = "may only contain letters and spaces"
	case "kyc_phone":
		reason = "must be a valid phone number"
	default:
		reason = "is invalid"
	}
	return &Error{Field: fe.Field(), Reason: reason}
}
