package validation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	stagekiterrors "github.com/foundrybuild/pipeline/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	semverPattern  = regexp.MustCompile(`^\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z-.]+)?(?:\+[0-9A-Za-z-.]+)?$`)
	stageIDPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("semver", func(fl validator.FieldLevel) bool {
			return semverPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("stage_id", func(fl validator.FieldLevel) bool {
			return stageIDPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})
	return validateInst
}

// GetValidator returns the shared validator instance for callers that
// need to validate a kind-specific config block directly.
func GetValidator() *validator.Validate {
	return validatorInstance()
}

// Validate checks manifest's schema and cross-stage references: unique
// stage ids, a populated config block matching each stage's kind, and
// (for command stages) that at least Build is set.
func Validate(manifest *Manifest) error {
	if manifest == nil {
		return stagekiterrors.NewValidationError("manifest", "manifest is nil", nil)
	}

	v := validatorInstance()
	if err := v.Struct(manifest); err != nil {
		return convertValidationError(err)
	}

	seen := make(map[string]bool, len(manifest.Stages))
	for i, stage := range manifest.Stages {
		if seen[stage.ID] {
			return stagekiterrors.NewValidationError(fieldForStage(i, "id"), fmt.Sprintf("duplicate stage id %q", stage.ID), nil)
		}
		seen[stage.ID] = true

		if err := validateStage(stage, i); err != nil {
			return err
		}
	}

	return nil
}

func validateStage(stage Stage, index int) error {
	v := validatorInstance()

	switch stage.Kind {
	case "command":
		if stage.Command == nil {
			return stagekiterrors.NewValidationError(fieldForStage(index, "command"), "command configuration is required", nil)
		}
		if strings.TrimSpace(stage.Command.Command) == "" {
			return stagekiterrors.NewValidationError(fieldForStage(index, "command.command"), "command is required", nil)
		}
	case "git-checkout":
		if stage.Git == nil {
			return stagekiterrors.NewValidationError(fieldForStage(index, "git"), "git configuration is required", nil)
		}
		if err := v.Struct(stage.Git); err != nil {
			return convertValidationError(err)
		}
	case "package":
		if stage.Package == nil {
			return stagekiterrors.NewValidationError(fieldForStage(index, "package"), "package configuration is required", nil)
		}
		if err := v.Struct(stage.Package); err != nil {
			return convertValidationError(err)
		}
	case "archive":
		if stage.Archive == nil {
			return stagekiterrors.NewValidationError(fieldForStage(index, "archive"), "archive configuration is required", nil)
		}
		if err := v.Struct(stage.Archive); err != nil {
			return convertValidationError(err)
		}
	case "purge-path":
		if strings.TrimSpace(stage.Path) == "" {
			return stagekiterrors.NewValidationError(fieldForStage(index, "path"), "path is required", nil)
		}
	default:
		return stagekiterrors.NewValidationError(fieldForStage(index, "kind"), fmt.Sprintf("unknown stage kind %q", stage.Kind), nil)
	}

	return nil
}

func convertValidationError(err error) error {
	if err == nil {
		return nil
	}
	if ves, ok := err.(validator.ValidationErrors); ok && len(ves) > 0 {
		fe := ves[0]
		field := fieldName(fe)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, fe.Tag())
		return stagekiterrors.NewValidationError(field, msg, err)
	}
	return stagekiterrors.NewValidationError("manifest", err.Error(), err)
}

func fieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	parts := strings.Split(ns, ".")
	lowered := make([]string, 0, len(parts))
	for _, part := range parts {
		lowered = append(lowered, strings.ToLower(part))
	}
	return strings.Join(lowered, ".")
}

func fieldForStage(index int, field string) string {
	return fmt.Sprintf("stages[%d].%s", index, field)
}
