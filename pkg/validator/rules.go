package validator

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// Custom validation tags.
const (
	// TagNotBlank rejects strings that are empty after trimming whitespace.
	TagNotBlank = "notblank"
)

func (v *Validator) registerCustomRules() {
	_ = v.validate.RegisterValidation(TagNotBlank, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	messages := map[string]string{
		LangEN: "{0} must not be blank",
		LangZH: "{0}不能为空白",
	}
	for lang, msg := range messages {
		registerTranslation(v.validate, v.trans[lang], TagNotBlank, msg)
	}
}

func registerTranslation(validate *validator.Validate, trans ut.Translator, tag, message string) {
	_ = validate.RegisterTranslation(tag, trans,
		func(t ut.Translator) error {
			return t.Add(tag, message, true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		},
	)
}
