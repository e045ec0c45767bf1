package classify

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultMinConfidence is applied to document types that do not declare
// their own acceptance threshold.
const DefaultMinConfidence = 0.7

// TypeConfig describes one classifiable document type: the keywords that
// hint at it and the minimum combined score required to accept it.
type TypeConfig struct {
	Name          string   `yaml:"name" validate:"required"`
	Keywords      []string `yaml:"keywords" validate:"required,min=1"`
	MinConfidence float64  `yaml:"min_confidence" validate:"gte=0,lte=1"`
}

// Config is the classifier configuration surface, loadable from YAML.
type Config struct {
	Types []TypeConfig `yaml:"document_types" validate:"required,min=1,dive"`
}

var validate = validator.New()

// ParseConfig parses and validates YAML classifier configuration. Types
// without an explicit threshold get DefaultMinConfidence.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse classifier config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid classifier config: %w", err)
	}
	for i := range cfg.Types {
		if cfg.Types[i].MinConfidence == 0 {
			cfg.Types[i].MinConfidence = DefaultMinConfidence
		}
	}
	return cfg, nil
}

// LoadConfig reads classifier configuration from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read classifier config: %w", err)
	}
	return ParseConfig(data)
}

// DefaultConfig returns the built-in document-type registry used when no
// configuration file is provided.
func DefaultConfig() Config {
	return Config{
		Types: []TypeConfig{
			{
				Name: "invoice",
				Keywords: []string{
					"invoice", "invoice number", "invoice date", "bill to",
					"amount due", "subtotal", "tax", "total", "payment terms", "due date",
				},
				MinConfidence: DefaultMinConfidence,
			},
			{
				Name: "purchase_order",
				Keywords: []string{
					"purchase order", "po number", "ship to", "order date",
					"quantity", "unit price", "line item", "delivery date", "buyer", "terms",
				},
				MinConfidence: DefaultMinConfidence,
			},
			{
				Name: "job_card",
				Keywords: []string{
					"job card", "work order", "job number", "technician",
					"labor hours", "parts used", "machine", "maintenance", "completed", "scheduled",
				},
				MinConfidence: DefaultMinConfidence,
			},
			{
				Name: "vendor_master",
				Keywords: []string{
					"vendor", "supplier", "vendor id", "tax id", "payment terms",
					"bank account", "iban", "contact", "address", "registration",
				},
				MinConfidence: DefaultMinConfidence,
			},
		},
	}
}
