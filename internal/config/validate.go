package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xtxerr/velinterp/internal/errors"
)

var validate = newValidator()

// newValidator returns a validator that names fields by their yaml tag, so
// a failing field is reported as e.g. Config.pipeline.batch_size.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	errs := errors.NewValidationErrors()

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return errors.Wrap(errors.ErrInvalidConfig, err.Error())
		}
		for _, fe := range fieldErrs {
			field := fieldPath(fe.Namespace())
			if fe.Tag() == "required" {
				errs.AddMissing(field)
				continue
			}
			errs.Add(errors.NewInvalidValue(field, fe.Value(), ruleText(fe)))
		}
	}

	errs.Add(c.Paths.Validate())
	return errs.Err()
}

// Validate checks cross-field path constraints.
func (c *PathsConfig) Validate() error {
	errs := errors.NewValidationErrors()

	switch strings.ToLower(filepath.Ext(c.CheckpointName)) {
	case ".csv", ".parquet":
	default:
		errs.AddField("paths.checkpoint_name", fmt.Sprintf("%q: extension must be .csv or .parquet", c.CheckpointName))
	}

	if c.CheckpointName != filepath.Base(c.CheckpointName) {
		errs.AddField("paths.checkpoint_name", fmt.Sprintf("%q: must be a file name, not a path", c.CheckpointName))
	}

	return errs.Err()
}

// fieldPath drops the root type name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func ruleText(fe validator.FieldError) string {
	if fe.Param() == "" {
		return "failed " + fe.Tag()
	}
	return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
}
