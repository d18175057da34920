package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/offerloader/internal/domain"
)

// ErrValidation is wrapped by every error returned from validateStruct.
var ErrValidation = errors.New("validation failed")

// validate is shared by all services. The custom tags check values against
// the domain vocabularies so that request validation and the codec agree.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	mustRegister(v, "city", func(fl validator.FieldLevel) bool {
		return domain.City(fl.Field().String()).Valid()
	})
	mustRegister(v, "housing", func(fl validator.FieldLevel) bool {
		return domain.HousingType(fl.Field().String()).Valid()
	})
	mustRegister(v, "amenity", func(fl validator.FieldLevel) bool {
		return domain.Amenity(fl.Field().String()).Valid()
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// validateStruct runs struct tag validation and flattens the result into one
// error listing every failing field.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "max", "len":
		return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	case "email":
		return field + " must be a valid email"
	case "city":
		return fmt.Sprintf("%s: invalid enum value %q, want one of %s",
			field, fe.Value(), strings.Join(domain.CityNames(), ", "))
	case "housing":
		return fmt.Sprintf("%s: invalid enum value %q, want one of %s",
			field, fe.Value(), strings.Join(domain.HousingTypeNames(), ", "))
	case "amenity":
		return fmt.Sprintf("%s: invalid enum value %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
