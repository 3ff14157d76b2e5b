// Package topics serves the catalog of suggested study topics.
package topics

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed topics.toml
var defaultCatalog []byte

// Category is a named group of suggested topics.
type Category struct {
	Category string   `json:"category" toml:"name" yaml:"category"`
	Topics   []string `json:"topics" toml:"topics" yaml:"topics"`
}

// Catalog is an ordered list of categories.
type Catalog struct {
	Categories []Category `toml:"category"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// MustDefault is like Default but panics on error.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes a TOML catalog and validates it.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("failed to parse topic catalog: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown catalog keys: %v", undecoded)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every category is named, non-empty and unique.
func (c *Catalog) Validate() error {
	if len(c.Categories) == 0 {
		return errors.New("topic catalog is empty")
	}
	seen := make(map[string]bool, len(c.Categories))
	var errs []error
	for i, cat := range c.Categories {
		name := strings.TrimSpace(cat.Category)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("category %d has no name", i))
		case seen[name]:
			errs = append(errs, fmt.Errorf("duplicate category %q", name))
		case len(cat.Topics) == 0:
			errs = append(errs, fmt.Errorf("category %q has no topics", name))
		}
		seen[name] = true
	}
	return errors.Join(errs...)
}

// Suggested returns a copy of the categories for serialization.
func (c *Catalog) Suggested() []Category {
	out := make([]Category, len(c.Categories))
	for i, cat := range c.Categories {
		out[i] = Category{Category: cat.Category, Topics: append([]string(nil), cat.Topics...)}
	}
	return out
}

// Find returns the category containing topic, matched case-insensitively.
func (c *Catalog) Find(topic string) (string, bool) {
	topic = strings.TrimSpace(topic)
	for _, cat := range c.Categories {
		for _, t := range cat.Topics {
			if strings.EqualFold(t, topic) {
				return cat.Category, true
			}
		}
	}
	return "", false
}
