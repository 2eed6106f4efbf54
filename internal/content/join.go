package content

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidForm is returned when the onboarding form is incomplete.
var ErrInvalidForm = errors.New("invalid form")

// JoinForm is the login or signup form of the onboarding screen. Name, phone, the password
// confirmation and the terms only apply to a signup.
type JoinForm struct {
	Signup          bool
	Email           string `validate:"required,email"`
	Password        string `validate:"required"`
	Name            string `validate:"required_if=Signup true"`
	Phone           string `validate:"required_if=Signup true"`
	ConfirmPassword string
	AgreeToTerms    bool `validate:"required_if=Signup true"`
	Language        string
}

// joinMessages lists the message shown for each invalid field, in the order they are reported.
var joinMessages = []struct {
	field string
	text  string
}{
	{"Email", "a valid email is required"},
	{"Password", "password is required"},
	{"Name", "name is required"},
	{"Phone", "phone is required"},
	{"ConfirmPassword", "passwords do not match"},
	{"AgreeToTerms", "please accept the terms"},
}

var joinValidator = newJoinValidator()

func newJoinValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		f, _ := sl.Current().Interface().(JoinForm)
		if f.Signup && f.Password != f.ConfirmPassword {
			sl.ReportError(f.ConfirmPassword, "ConfirmPassword", "ConfirmPassword", "eqfield", "Password")
		}
	}, JoinForm{})
	return v
}

// Profile validates the form and returns the profile to keep with the session. No account is created.
func (f JoinForm) Profile() (models.Profile, error) {
	f.Email = strings.TrimSpace(f.Email)
	f.Name = strings.TrimSpace(f.Name)
	f.Phone = strings.TrimSpace(f.Phone)

	if err := joinValidator.Struct(f); err != nil {
		return models.Profile{}, joinFormError(err)
	}

	lang := f.Language
	if !ValidLanguage(lang) {
		lang = Languages[0].Code
	}
	name := f.Name
	if name == "" {
		name, _, _ = strings.Cut(f.Email, "@")
	}
	return models.Profile{Name: name, Email: f.Email, Phone: f.Phone, Language: lang}, nil
}

func joinFormError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrInvalidForm, err)
	}
	for _, m := range joinMessages {
		for _, fe := range fieldErrs {
			if fe.StructField() == m.field {
				return fmt.Errorf("%w: %s", ErrInvalidForm, m.text)
			}
		}
	}
	return fmt.Errorf("%w: %w", ErrInvalidForm, fieldErrs)
}
