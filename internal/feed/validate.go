package feed

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// newValidator builds a validator that reports json field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// collectFieldErrors runs struct validation and folds the result into a
// field-keyed report using dotted record paths ("amounts.3.item.code").
func collectFieldErrors(v *validator.Validate, payload any, verrs *ValidationError) {
	err := v.Struct(payload)
	if err == nil {
		return
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		verrs.Add("non_field_errors", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		verrs.Add(recordPath(fe.Namespace()), messageFor(fe))
	}
}

// recordPath turns a validator namespace such as
// "FeedPayload.amounts[3].item.code" into "amounts.3.item.code".
func recordPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	ns = strings.ReplaceAll(ns, "[", ".")
	ns = strings.ReplaceAll(ns, "]", "")
	return ns
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	default:
		return "failed validation on " + fe.Tag()
	}
}
