package http

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/AlibekovAA/social-auth/internal/common/constants"
	commonerrors "github.com/AlibekovAA/social-auth/internal/common/errors"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationResult struct {
	Valid  bool
	Errors []FieldError
}

// ValidationError is returned to the error handler when a request body
// fails field validation. Details lists every failing field.
type ValidationError struct {
	commonerrors.DomainError
	Fields []FieldError
}

func (e *ValidationError) Details() map[string]any {
	return map[string]any{"fields": e.Fields}
}

func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{DomainError: commonerrors.ErrValidationFailed, Fields: r.Errors}
}

// Length rules come from constants through the custom tags below, so the
// tags carry no numbers of their own.
type registerRequest struct {
	Username    string  `json:"username" validate:"required,username"`
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,password"`
	FirstName   *string `json:"firstName" validate:"omitempty,name"`
	LastName    *string `json:"lastName" validate:"omitempty,name"`
	DisplayName *string `json:"displayName" validate:"omitempty,displayname"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return runesBetween(s, constants.UsernameMinLength, constants.UsernameMaxLength) && usernamePattern.MatchString(s)
	})
	// bcrypt refuses input longer than PasswordMaxLength bytes, whatever the
	// rune count.
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return utf8.RuneCountInString(s) >= constants.PasswordMinLength && len(s) <= constants.PasswordMaxLength
	})
	_ = v.RegisterValidation("name", func(fl validator.FieldLevel) bool {
		return runesBetween(fl.Field().String(), 0, constants.NameMaxLength)
	})
	_ = v.RegisterValidation("displayname", func(fl validator.FieldLevel) bool {
		return runesBetween(fl.Field().String(), 0, constants.DisplayNameMaxLength)
	})
	return &Validator{validate: v}
}

func runesBetween(s string, lo, hi int) bool {
	n := utf8.RuneCountInString(s)
	return n >= lo && n <= hi
}

func (v *Validator) ValidateRegister(req registerRequest) ValidationResult {
	return v.check(req)
}

func (v *Validator) ValidateLogin(req loginRequest) ValidationResult {
	return v.check(req)
}

func (v *Validator) check(req any) ValidationResult {
	err := v.validate.Struct(req)
	if err == nil {
		return ValidationResult{Valid: true}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationResult{Errors: []FieldError{{Field: "body", Message: "invalid request"}}}
	}

	result := ValidationResult{Errors: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		result.Errors = append(result.Errors, FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return result
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "must be a valid email address"
	case "username":
		return fmt.Sprintf("must be %d to %d letters, digits, dots, underscores or hyphens",
			constants.UsernameMinLength, constants.UsernameMaxLength)
	case "password":
		return fmt.Sprintf("must be at least %d characters and at most %d bytes",
			constants.PasswordMinLength, constants.PasswordMaxLength)
	case "name":
		return fmt.Sprintf("must be at most %d characters", constants.NameMaxLength)
	case "displayname":
		return fmt.Sprintf("must be at most %d characters", constants.DisplayNameMaxLength)
	default:
		return "is invalid"
	}
}
