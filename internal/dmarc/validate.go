package dmarc

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// use the json or xml names so errors point at the report element
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, key := range []string{"json", "xml"} {
			name, _, _ := strings.Cut(fld.Tag.Get(key), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	// between=min max, inclusive
	if err := v.RegisterValidation("between", func(fl validator.FieldLevel) bool {
		lo, hi, err := parseBounds(fl.Param())
		if err != nil {
			return false
		}
		var n int64
		switch fl.Field().Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n = fl.Field().Int()
		case reflect.String:
			n, err = strconv.ParseInt(fl.Field().String(), 10, 64)
			if err != nil {
				return false
			}
		default:
			return false
		}
		return n >= lo && n <= hi
	}); err != nil {
		panic(err)
	}
	return v
}

func parseBounds(param string) (int64, int64, error) {
	parts := strings.Fields(param)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid bounds %q", param)
	}
	lo, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	hi, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// validateStruct runs the struct tags of v and translates the first failure
// into one of the report errors. root replaces the type name in the locator.
func validateStruct(root string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	return translateFieldError(root, verrs[0])
}

func translateFieldError(root string, fe validator.FieldError) error {
	locator := fieldLocator(root, fe.Namespace())
	raw := fmt.Sprint(fe.Value())
	switch fe.Tag() {
	case "required":
		return &MissingFieldError{Locator: locator}
	case "min":
		// a repeated element that has to occur at least once
		if fe.Kind() == reflect.Slice {
			return &MissingFieldError{Locator: locator}
		}
		lo, err := strconv.ParseInt(fe.Param(), 10, 64)
		if err != nil {
			return err
		}
		return rangeError(locator, raw, lo, math.MaxInt64)
	case "gte":
		lo, err := strconv.ParseInt(fe.Param(), 10, 64)
		if err != nil {
			return err
		}
		return rangeError(locator, raw, lo, math.MaxInt64)
	case "between":
		lo, hi, err := parseBounds(fe.Param())
		if err != nil {
			return err
		}
		return rangeError(locator, raw, lo, hi)
	case "oneof":
		return &InvalidEnumError{Field: locator, Raw: raw, Allowed: strings.Fields(fe.Param())}
	}
	return &MalformedValueError{Field: locator, Raw: raw}
}

func rangeError(locator, raw string, lo, hi int64) error {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return &MalformedValueError{Field: locator, Raw: raw}
	}
	return &RangeViolationError{Field: locator, Value: n, Min: lo, Max: hi}
}

// fieldLocator turns Record.auth_results.spf[0].scope into
// <root>/auth_results/spf[0]/scope
func fieldLocator(root, namespace string) string {
	parts := strings.Split(namespace, ".")
	if root != "" {
		parts[0] = root
	} else {
		parts = parts[1:]
	}
	return strings.Join(parts, "/")
}
