package diagnostics

import (
	"fmt"
	"time"

	processor "github.com/goliatone/go-processor"
)

// Type is the process type the diagnostic processor registers under.
const Type = "diagnostics"

// CategoryConfig assigns a category to the next Count items.
type CategoryConfig struct {
	Name         string `yaml:"name" json:"name"`
	IsSuccessful bool   `yaml:"is_successful" json:"is_successful"`
	Count        int    `yaml:"count" json:"count"`
}

// Config drives what the diagnostic processor does in each stage.
type Config struct {
	NumberOfItems int              `yaml:"number_of_items" json:"number_of_items"`
	CanCountItems bool             `yaml:"can_count_items" json:"can_count_items"`
	Categories    []CategoryConfig `yaml:"categories,omitempty" json:"categories,omitempty"`

	// FailIn names the stage that returns a DiagnosticError. Item stages fail
	// for every item.
	FailIn processor.Stage `yaml:"fail_in,omitempty" json:"fail_in,omitempty"`

	// FailFirstAttempts makes the first attempts of every item fail, to
	// exercise retries.
	FailFirstAttempts int           `yaml:"fail_first_attempts,omitempty" json:"fail_first_attempts,omitempty"`
	ItemDelay         time.Duration `yaml:"item_delay,omitempty" json:"item_delay,omitempty"`
	Sequential        bool          `yaml:"sequential,omitempty" json:"sequential,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		NumberOfItems: 10,
		CanCountItems: true,
	}
}

func (c Config) Validate() error {
	if c.NumberOfItems < 0 {
		return processor.CloneError(processor.ErrInvalidConfig,
			fmt.Sprintf("number_of_items must not be negative, got %d", c.NumberOfItems), nil, nil)
	}
	if c.FailIn != "" {
		if _, ok := processor.ParseStage(string(c.FailIn)); !ok {
			return processor.CloneError(processor.ErrInvalidConfig,
				fmt.Sprintf("unknown stage %q", c.FailIn), nil, map[string]any{"field": "fail_in"})
		}
	}
	for _, cat := range c.Categories {
		if cat.Count < 0 {
			return processor.CloneError(processor.ErrInvalidConfig,
				fmt.Sprintf("category %q count must not be negative", cat.Name), nil, nil)
		}
	}
	return nil
}

// plan resolves the result every item index will report.
func (c Config) plan(index int) processor.Result {
	offset := 0
	for _, cat := range c.Categories {
		if index < offset+cat.Count {
			return processor.Result{IsSuccessful: cat.IsSuccessful, Category: cat.Name}
		}
		offset += cat.Count
	}
	return processor.Success()
}
