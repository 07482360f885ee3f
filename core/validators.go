package core

import (
	"reflect"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	alphaNumUnderRegex = regexp.MustCompile(`^\w+$`)

	// tags whose default translations we replace
	validationTexts = map[string]string{
		"required":  "this field is required",
		"alphanum_": "only alphanumeric characters and underscores are allowed",
	}
)

// InitValidators readies validate for request validation: errors are keyed
// by JSON field names and our custom tags are registered.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// alphanum_ allows alphanumeric characters and underscores; section
	// codes and the like use it.
	_ = validate.RegisterValidation("alphanum_", func(fl validator.FieldLevel) bool {
		return alphaNumUnderRegex.MatchString(fl.Field().String())
	})

	for tag, text := range validationTexts {
		registerTranslation(validate, translator, tag, text)
	}
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true /* override */) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}
