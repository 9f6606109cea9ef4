// Package metric manages herd metric definitions and calculates them in
// batches with the formula engine.
package metric

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics"
)

// Category groups definitions on the dashboard.
type Category string

const (
	CategoryReproductive Category = "reproductive"
	CategoryInventory    Category = "inventory"
	CategoryQuality      Category = "quality"
)

// Format says how a value is displayed.
type Format string

const (
	FormatPercentage Format = "percentage"
	FormatDecimal    Format = "decimal"
	FormatInteger    Format = "integer"
)

// Scope says what a definition is calculated over.
type Scope string

const (
	ScopeFarm   Scope = "farm"
	ScopeLot    Scope = "lot"
	ScopeAnimal Scope = "animal"
)

// Defaults applied to new definitions.
const (
	DefaultName        = "new_metric"
	DefaultDisplayName = "Nova Métrica"
	DefaultFormula     = "0"
)

// Definition is one user-defined herd metric. Changing the formula of a
// stored definition creates a new version; the old one stays in history.
type Definition struct {
	ID                string    `json:"id" yaml:"id"`
	FarmID            string    `json:"farm_id,omitempty" yaml:"farm_id"`
	Name              string    `json:"name" yaml:"name" validate:"required,max=100,metric_name"`
	DisplayName       string    `json:"display_name" yaml:"display_name" validate:"required,max=200"`
	Category          Category  `json:"category" yaml:"category" validate:"required,oneof=reproductive inventory quality"`
	Formula           string    `json:"formula" yaml:"formula" validate:"required,max=2000"`
	Unit              string    `json:"unit,omitempty" yaml:"unit" validate:"max=20"`
	Format            Format    `json:"format,omitempty" yaml:"format" validate:"omitempty,oneof=percentage decimal integer"`
	Decimals          *int      `json:"decimals,omitempty" yaml:"decimals" validate:"omitempty,gte=0,lte=10"`
	TargetValue       *float64  `json:"target_value,omitempty" yaml:"target_value"`
	WarningThreshold  *float64  `json:"warning_threshold,omitempty" yaml:"warning_threshold"`
	CriticalThreshold *float64  `json:"critical_threshold,omitempty" yaml:"critical_threshold"`
	HigherIsBetter    *bool     `json:"higher_is_better,omitempty" yaml:"higher_is_better"`
	Scope             Scope     `json:"scope" yaml:"scope" validate:"required,oneof=farm lot animal"`
	Version           int       `json:"version" yaml:"version" validate:"gte=1"`
	IsCurrent         bool      `json:"is_current" yaml:"is_current"`
	IsActive          bool      `json:"is_active" yaml:"is_active"`
	CreatedAt         time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" yaml:"updated_at"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// metric_name keeps names usable as identifiers in exports and URLs.
	_ = v.RegisterValidation("metric_name", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		for i, r := range s {
			switch {
			case r >= 'a' && r <= 'z', r == '_':
			case r >= '0' && r <= '9' && i > 0:
			default:
				return false
			}
		}
		return s != ""
	})
	return v
}

var messages = map[string]string{
	"required":    "the field '%s' is required",
	"max":         "the field '%s' must be at most %s characters long",
	"gte":         "the field '%s' must be greater than or equal to %s",
	"lte":         "the field '%s' must be less than or equal to %s",
	"oneof":       "the field '%s' must be one of [%s]",
	"metric_name": "the field '%s' must be lower_snake_case",
}

func message(fe validator.FieldError) string {
	msg, ok := messages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("the field '%s' is invalid: %s", fe.Field(), fe.Tag())
	}
	if strings.Count(msg, "%s") == 2 {
		return fmt.Sprintf(msg, fe.Field(), fe.Param())
	}
	return fmt.Sprintf(msg, fe.Field())
}

// Validate checks the field constraints and that the formula parses.
// It returns a *ValidationError describing every invalid field.
func (d *Definition) Validate() error {
	fields := make(map[string]string)

	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate definition: %w", err)
		}
		for _, fe := range verrs {
			fields[fe.Field()] = message(fe)
		}
	}

	if _, bad := fields["formula"]; !bad {
		if result := herdmetrics.Validate(d.Formula); !result.Valid {
			fields["formula"] = fmt.Sprintf("the field 'formula' does not parse: %s", result.Error)
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ApplyDefaults fills empty fields the way a freshly created definition
// starts out.
func (d *Definition) ApplyDefaults() {
	if d.Name == "" {
		d.Name = DefaultName
	}
	if d.DisplayName == "" {
		d.DisplayName = DefaultDisplayName
	}
	if d.Category == "" {
		d.Category = CategoryReproductive
	}
	if d.Formula == "" {
		d.Formula = DefaultFormula
	}
	if d.Scope == "" {
		d.Scope = ScopeFarm
	}
	if d.Version == 0 {
		d.Version = 1
	}
	if d.HigherIsBetter == nil {
		higher := true
		d.HigherIsBetter = &higher
	}
}

// PrefersHigher reports whether larger values are better. Unset means true.
func (d *Definition) PrefersHigher() bool {
	return d.HigherIsBetter == nil || *d.HigherIsBetter
}

// merge overlays the non-empty fields of patch onto d.
func (d Definition) merge(patch Definition) Definition {
	if patch.Name != "" {
		d.Name = patch.Name
	}
	if patch.DisplayName != "" {
		d.DisplayName = patch.DisplayName
	}
	if patch.Category != "" {
		d.Category = patch.Category
	}
	if patch.Formula != "" {
		d.Formula = patch.Formula
	}
	if patch.Unit != "" {
		d.Unit = patch.Unit
	}
	if patch.Format != "" {
		d.Format = patch.Format
	}
	if patch.Decimals != nil {
		d.Decimals = patch.Decimals
	}
	if patch.TargetValue != nil {
		d.TargetValue = patch.TargetValue
	}
	if patch.WarningThreshold != nil {
		d.WarningThreshold = patch.WarningThreshold
	}
	if patch.CriticalThreshold != nil {
		d.CriticalThreshold = patch.CriticalThreshold
	}
	if patch.HigherIsBetter != nil {
		d.HigherIsBetter = patch.HigherIsBetter
	}
	if patch.Scope != "" {
		d.Scope = patch.Scope
	}
	return d
}
