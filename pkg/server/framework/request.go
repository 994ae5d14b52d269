package framework

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/affinity-network/exchange-service/internal/util"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"gopkg.in/go-playground/validator.v9"
	entranslations "gopkg.in/go-playground/validator.v9/translations/en"
)

// validate holds the settings and caches for validating request payloads
var validate *validator.Validate

// translator is a cache of locale and translation information
var translator *ut.UniversalTranslator

func init() {
	validate = validator.New()

	enLocale := en.New()
	translator = ut.New(enLocale, enLocale)
	lang, _ := translator.GetTranslator("en")
	_ = entranslations.RegisterDefaultTranslations(validate, lang)

	// use JSON tag names for errors instead of Go struct field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Decode reads an HTTP request body looking for a JSON document. The body is
// decoded into the value provided, which is then checked for validation tags.
func Decode(r *http.Request, val any) error {
	if !util.IsStructPtr(val) {
		return NewRequestError(errors.New("decode target must be a struct pointer"), http.StatusInternalServerError)
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(val); err != nil {
		return NewRequestError(err, http.StatusBadRequest)
	}

	if err := validate.Struct(val); err != nil {
		vErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		lang, _ := translator.GetTranslator("en")

		fieldErrors := make([]FieldError, 0, len(vErrors))
		for _, vError := range vErrors {
			fieldErrors = append(fieldErrors, FieldError{
				Field: vError.Field(),
				Error: vError.Translate(lang),
			})
		}
		return &SafeError{
			Err:        errors.New("field validation error"),
			StatusCode: http.StatusBadRequest,
			Fields:     fieldErrors,
		}
	}
	return nil
}
