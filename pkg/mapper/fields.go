package mapper

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/araddon/dateparse"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/factgraph/backend/pkg/common"
)

// Validation rule kinds.
const (
	RuleRegex = "regex"
	RuleRange = "range"
	RuleEnum  = "enum"
)

// Coercion kinds declared on a field mapping.
const (
	CoerceDecimal  = "decimal"
	CoerceInt      = "int"
	CoerceDatetime = "datetime"
	CoerceBool     = "bool"
)

// ValidationRule is one declarative check applied to a raw field value
// before it is set on an entity.
type ValidationRule struct {
	Type    string   `yaml:"type" validate:"required,oneof=regex range enum"`
	Pattern string   `yaml:"pattern,omitempty"`
	Min     *float64 `yaml:"min,omitempty"`
	Max     *float64 `yaml:"max,omitempty"`
	Allowed []string `yaml:"allowed,omitempty"`
}

// FieldMapping configures how one extracted attribute is validated and
// coerced before reaching the knowledge graph. Facts whose name has no
// mapping skip validation entirely.
type FieldMapping struct {
	Name   string           `yaml:"name" validate:"required"`
	Coerce string           `yaml:"coerce,omitempty" validate:"omitempty,oneof=decimal int datetime bool"`
	Rules  []ValidationRule `yaml:"rules,omitempty" validate:"dive"`
}

// TypeMapping configures the mapper for one document type: the primary
// entity type the document maps onto, and the per-field rules.
type TypeMapping struct {
	DocumentType  string         `yaml:"document_type" validate:"required"`
	PrimaryEntity string         `yaml:"primary_entity" validate:"required"`
	Fields        []FieldMapping `yaml:"fields,omitempty" validate:"dive"`
}

// Config is the mapper configuration surface, loadable from YAML.
type Config struct {
	Mappings []TypeMapping `yaml:"mappings" validate:"required,min=1,dive"`
}

var validate = validator.New()

// Compiled regex rules are cached; mappings are shared across parallel
// batch workers so the cache must be concurrent.
var patternCache sync.Map

func matchPattern(pattern, value string) (bool, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp).MatchString(value), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	patternCache.Store(pattern, re)
	return re.MatchString(value), nil
}

// ParseConfig parses and validates YAML mapper configuration.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse mapper config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid mapper config: %w", err)
	}
	return Config{Mappings: cfg.Mappings}, nil
}

// LoadConfig reads mapper configuration from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read mapper config: %w", err)
	}
	return ParseConfig(data)
}

// DefaultConfig returns the built-in type mappings used when no
// configuration file is provided.
func DefaultConfig() Config {
	minZero := 0.0
	return Config{
		Mappings: []TypeMapping{
			{
				DocumentType:  "invoice",
				PrimaryEntity: "invoice",
				Fields: []FieldMapping{
					{Name: "invoice_number", Rules: []ValidationRule{{Type: RuleRegex, Pattern: `^[A-Za-z0-9][A-Za-z0-9/-]*$`}}},
					{Name: "invoice_date", Coerce: CoerceDatetime},
					{Name: "due_date", Coerce: CoerceDatetime},
					{Name: "total_amount", Coerce: CoerceDecimal, Rules: []ValidationRule{{Type: RuleRange, Min: &minZero}}},
					{Name: "tax_amount", Coerce: CoerceDecimal, Rules: []ValidationRule{{Type: RuleRange, Min: &minZero}}},
					{Name: "currency", Rules: []ValidationRule{{Type: RuleEnum, Allowed: []string{"EUR", "USD", "GBP", "CHF", "JPY"}}}},
				},
			},
			{
				DocumentType:  "purchase_order",
				PrimaryEntity: "purchase_order",
				Fields: []FieldMapping{
					{Name: "po_number", Rules: []ValidationRule{{Type: RuleRegex, Pattern: `^[A-Za-z0-9][A-Za-z0-9/-]*$`}}},
					{Name: "order_date", Coerce: CoerceDatetime},
					{Name: "delivery_date", Coerce: CoerceDatetime},
					{Name: "total_amount", Coerce: CoerceDecimal, Rules: []ValidationRule{{Type: RuleRange, Min: &minZero}}},
				},
			},
			{
				DocumentType:  "job_card",
				PrimaryEntity: "job_card",
				Fields: []FieldMapping{
					{Name: "scheduled_date", Coerce: CoerceDatetime},
					{Name: "completed_date", Coerce: CoerceDatetime},
					{Name: "labor_hours", Coerce: CoerceDecimal, Rules: []ValidationRule{{Type: RuleRange, Min: &minZero}}},
				},
			},
			{
				DocumentType:  "vendor_master",
				PrimaryEntity: "vendor",
				Fields: []FieldMapping{
					{Name: "iban", Rules: []ValidationRule{{Type: RuleRegex, Pattern: `^[A-Z]{2}[0-9]{2}[A-Za-z0-9 ]{8,30}$`}}},
					{Name: "contact_email", Rules: []ValidationRule{{Type: RuleRegex, Pattern: `^[^@\s]+@[^@\s]+\.[^@\s]+$`}}},
				},
			},
			{DocumentType: "csv", PrimaryEntity: "table"},
			{DocumentType: "spreadsheet", PrimaryEntity: "table"},
			{DocumentType: "document", PrimaryEntity: "document"},
		},
	}
}

// Validate runs the mapping's rules in order against the raw value and
// returns the first failure.
func (m FieldMapping) Validate(value common.AttributeValue) error {
	raw := value.Text()

	for _, rule := range m.Rules {
		switch rule.Type {
		case RuleRegex:
			ok, err := matchPattern(rule.Pattern, raw)
			if err != nil {
				return fmt.Errorf("field %q: bad regex rule: %w", m.Name, err)
			}
			if !ok {
				return fmt.Errorf("field %q: value %q does not match %q", m.Name, raw, rule.Pattern)
			}
		case RuleRange:
			num, err := cast.ToFloat64E(strings.ReplaceAll(raw, ",", ""))
			if err != nil {
				return fmt.Errorf("field %q: value %q is not numeric", m.Name, raw)
			}
			if rule.Min != nil && num < *rule.Min {
				return fmt.Errorf("field %q: value %v below minimum %v", m.Name, num, *rule.Min)
			}
			if rule.Max != nil && num > *rule.Max {
				return fmt.Errorf("field %q: value %v above maximum %v", m.Name, num, *rule.Max)
			}
		case RuleEnum:
			found := false
			for _, allowed := range rule.Allowed {
				if strings.EqualFold(raw, allowed) {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("field %q: value %q not in allowed set", m.Name, raw)
			}
		default:
			return fmt.Errorf("field %q: unknown rule type %q", m.Name, rule.Type)
		}
	}
	return nil
}

// Apply coerces the raw value to the mapping's declared type. Coercion
// failure is non-fatal: the raw value is returned unchanged alongside the
// error so callers can record a warning.
func (m FieldMapping) Apply(value common.AttributeValue) (common.AttributeValue, error) {
	raw := value.Text()

	switch m.Coerce {
	case "":
		return value, nil
	case CoerceDecimal:
		num, err := cast.ToFloat64E(strings.ReplaceAll(raw, ",", ""))
		if err != nil {
			return value, fmt.Errorf("field %q: cannot coerce %q to decimal", m.Name, raw)
		}
		return common.NumberValue(num), nil
	case CoerceInt:
		n, err := cast.ToInt64E(strings.ReplaceAll(raw, ",", ""))
		if err != nil {
			return value, fmt.Errorf("field %q: cannot coerce %q to int", m.Name, raw)
		}
		return common.NumberValue(float64(n)), nil
	case CoerceDatetime:
		ts, err := dateparse.ParseAny(raw)
		if err != nil {
			return value, fmt.Errorf("field %q: cannot coerce %q to datetime", m.Name, raw)
		}
		return common.TimestampValue(ts.UTC()), nil
	case CoerceBool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return value, fmt.Errorf("field %q: cannot coerce %q to bool", m.Name, raw)
		}
		return common.BoolValue(b), nil
	default:
		return value, fmt.Errorf("field %q: unknown coercion %q", m.Name, m.Coerce)
	}
}
