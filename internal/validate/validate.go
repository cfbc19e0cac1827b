// Package validate registers waterboard's custom validation tags on gin's
// validator engine and turns validation errors into short client messages.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/civicwater/waterboard/pkg/schema"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	areaCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 /-]{0,15}$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,19}$`)
)

var once sync.Once

// Register installs the custom tags once per process:
//
//	sector   citizen | industrial
//	role     citizen | authority | admin
//	areacode short ward or zone code, e.g. "W-12"
//	phone    digits with optional +, spaces, dashes, parentheses
func Register() error {
	var err error
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		err = RegisterOn(v)
	})
	return err
}

// RegisterOn installs the custom tags on v.
func RegisterOn(v *validator.Validate) error {
	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})

	tags := map[string]validator.Func{
		"sector": func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == schema.SectorCitizen || s == schema.SectorIndustrial
		},
		"role": func(fl validator.FieldLevel) bool {
			return schema.Role(fl.Field().String()).Valid()
		},
		"areacode": func(fl validator.FieldLevel) bool {
			return areaCodePattern.MatchString(strings.TrimSpace(fl.Field().String()))
		},
		"phone": func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(strings.TrimSpace(fl.Field().String()))
		},
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

// Message renders a binding error as one line naming the offending fields.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "email":
			parts = append(parts, fe.Field()+" must be a valid email address")
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is not a valid %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
