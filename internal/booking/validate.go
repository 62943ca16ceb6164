package booking

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrBadClock = errors.New(`time must look like "HH:MM"`)

// ParseClock converts "HH:MM" into minutes from midnight. "24:00" is the end of day.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, ErrBadClock
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, ErrBadClock
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, ErrBadClock
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, ErrBadClock
	}
	return h*60 + m, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := ParseClock(fl.Field().String())
		return err == nil
	})
	if err != nil {
		panic("booking: register hhmm validation: " + err.Error())
	}
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid input"
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "email is invalid"
	case "hhmm":
		return fmt.Sprintf("%s: %s", field, ErrBadClock)
	case "len":
		return fmt.Sprintf("%s must contain exactly %s entries", field, fe.Param())
	case "min", "max":
		return fmt.Sprintf("%s is out of range", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
