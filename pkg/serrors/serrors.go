package serrors

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// BaseError is the structured error carried across service boundaries. Code is a
// stable machine identifier, Message the fallback text, LocaleKey the bundle key
// used when a localizer is available.
type BaseError struct {
	Code      string
	Message   string
	LocaleKey string
}

func (e *BaseError) Error() string {
	return e.Message
}

func (e *BaseError) Localized(l *i18n.Localizer) string {
	if l == nil || e.LocaleKey == "" {
		return e.Message
	}
	msg, err := l.Localize(&i18n.LocalizeConfig{MessageID: e.LocaleKey})
	if err != nil {
		return e.Message
	}
	return msg
}

func NewError(code, message, localeKey string) *BaseError {
	return &BaseError{
		Code:      code,
		Message:   message,
		LocaleKey: localeKey,
	}
}

// WithDetail returns a copy with detail appended to the fallback message. The
// code and locale key are preserved so callers can still match on them.
func (e *BaseError) WithDetail(detail string) *BaseError {
	if detail == "" {
		return e
	}
	return &BaseError{
		Code:      e.Code,
		Message:   fmt.Sprintf("%s: %s", e.Message, detail),
		LocaleKey: e.LocaleKey,
	}
}

func (e *BaseError) Is(target error) bool {
	other, ok := target.(*BaseError)
	if !ok {
		return false
	}
	return other.Code == e.Code
}

// ValidationError describes a single failed field.
type ValidationError struct {
	Field     string
	LocaleKey string
	Message   string
}

// ValidationErrors maps field name to its error.
type ValidationErrors map[string]*ValidationError

func (v ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed for %d field(s)", len(v))
}

// ProcessValidatorErrors converts go-playground validator errors into
// ValidationErrors keyed by struct field.
func ProcessValidatorErrors(err error) ValidationErrors {
	out := ValidationErrors{}
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return out
	}
	for _, fe := range vErrs {
		out[fe.Field()] = &ValidationError{
			Field:   fe.Field(),
			Message: fmt.Sprintf("%s failed on the %q rule", fe.Field(), fe.Tag()),
		}
	}
	return out
}

// LocalizeValidationErrors renders each field error through the localizer,
// falling back to the raw message when the key is missing.
func LocalizeValidationErrors(errs ValidationErrors, l *i18n.Localizer) map[string]string {
	out := make(map[string]string, len(errs))
	for field, ve := range errs {
		if l != nil && ve.LocaleKey != "" {
			if msg, err := l.Localize(&i18n.LocalizeConfig{MessageID: ve.LocaleKey}); err == nil {
				out[field] = msg
				continue
			}
		}
		out[field] = ve.Message
	}
	return out
}
