package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	rerrors "github.com/julianstephens/routined/internal/errors"
	"github.com/julianstephens/routined/internal/models"
	"github.com/julianstephens/routined/internal/utils"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Validate returns the shared validator with the routine rules registered.
func Validate() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			return utils.ValidateTimeFormat(fl.Field().String())
		})
		_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
			n := fl.Field().Int()
			return n >= int64(time.Sunday) && n <= int64(time.Saturday)
		})
		validate = v
	})
	return validate
}

// Struct validates s against its `validate` tags and flattens the result into
// a single readable error.
func Struct(s interface{}) error {
	err := Validate().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s needs at least %s item(s)", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s exceeds the maximum of %s", field, fe.Param())
	case "unique":
		return fmt.Sprintf("%s contains duplicates", field)
	case "hhmm":
		return fmt.Sprintf("%s must be a time in HH:MM format (got %q)", field, fe.Value())
	case "weekday":
		return fmt.Sprintf("%s contains an invalid weekday", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a host:port address (got %q)", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// ValidateRoutine checks a routine definition before it is stored. Windows
// that cross midnight are rejected: the end must be strictly after the start
// on the same day.
func ValidateRoutine(r models.Routine) error {
	if err := Struct(r); err != nil {
		return fmt.Errorf("%w: %v", rerrors.ErrInvalidRoutine, err)
	}
	if r.EndTime != "" {
		start, _ := utils.ParseTimeToMinutes(r.StartTime)
		end, _ := utils.ParseTimeToMinutes(r.EndTime)
		if end <= start {
			return fmt.Errorf("%w: end time %s must be after start time %s", rerrors.ErrInvalidRoutine, r.EndTime, r.StartTime)
		}
	}
	return nil
}
