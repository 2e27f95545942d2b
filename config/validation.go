package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("koanf"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		// Column names are spliced into renderer SQL, so keep them to plain identifiers.
		_ = validate.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
			return identifierPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Validate checks cfg and returns every violation as a *ConfigError joined
// with errors.Join.
func Validate(cfg *Config) error {
	if cfg == nil {
		return NewMissingFieldError("config")
	}
	err := configValidator().Struct(cfg)
	if err == nil {
		return validateZoom(&cfg.Zoom)
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation: %w", err)
	}
	errs := make([]error, 0, len(verrs)+1)
	for _, fe := range verrs {
		errs = append(errs, toConfigError(fe))
	}
	if zerr := validateZoom(&cfg.Zoom); zerr != nil {
		errs = append(errs, zerr)
	}
	return errors.Join(errs...)
}

// validateZoom keeps the initial zoom inside the map zoom range.
func validateZoom(z *ZoomConfig) error {
	if z.Initial.Min < z.Min || z.Initial.Max > z.Max {
		return NewInvalidFieldError("zoom.initial",
			fmt.Sprintf("initial zoom %d-%d outside zoom bounds %d-%d", z.Initial.Min, z.Initial.Max, z.Min, z.Max), nil)
	}
	return nil
}

func toConfigError(fe validator.FieldError) *ConfigError {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	field = strings.ToLower(field)

	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	case "min", "gte":
		return NewInvalidFieldError(field, fmt.Sprintf("must be at least %s", fe.Param()), nil)
	case "max", "lte":
		return NewInvalidFieldError(field, fmt.Sprintf("must be at most %s", fe.Param()), nil)
	case "gt":
		return NewInvalidFieldError(field, fmt.Sprintf("must be greater than %s", fe.Param()), nil)
	case "gtefield":
		return NewInvalidFieldError(field, fmt.Sprintf("must not be lower than %s", strings.ToLower(fe.Param())), nil)
	case "hexcolor":
		return NewInvalidFieldError(field, fmt.Sprintf("%q is not a hex color", fmt.Sprint(fe.Value())), nil)
	case "identifier":
		return NewInvalidFieldError(field, fmt.Sprintf("%q is not a plain column name", fmt.Sprint(fe.Value())), nil)
	default:
		return NewInvalidFieldError(field, fmt.Sprintf("failed %q validation", fe.Tag()), nil)
	}
}
