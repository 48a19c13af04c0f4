package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// BarberConfig is one barber entry in catalog.yaml.
type BarberConfig struct {
	Name     string `yaml:"name"`
	IsActive *bool  `yaml:"is_active,omitempty"`
}

// ServiceConfig is one service entry in catalog.yaml.
type ServiceConfig struct {
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes"`
	PriceCents      int    `yaml:"price_cents"`
	IsActive        *bool  `yaml:"is_active,omitempty"`
}

// CatalogConfig is the root of catalog.yaml.
type CatalogConfig struct {
	Barbers  []BarberConfig  `yaml:"barbers"`
	Services []ServiceConfig `yaml:"services"`
}

// Active reports the effective flag; entries are active unless disabled.
func (b BarberConfig) Active() bool {
	return b.IsActive == nil || *b.IsActive
}

func (s ServiceConfig) Active() bool {
	return s.IsActive == nil || *s.IsActive
}

// LoadCatalog loads and validates the catalog file.
func LoadCatalog(path string) (*CatalogConfig, error) {
	if path == "" {
		path = "configs/catalog.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var cfg CatalogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	return &cfg, nil
}

// Validate checks names are present and unique and durations positive.
func (c *CatalogConfig) Validate() error {
	var errs []error
	barbers := make(map[string]struct{})
	for i, b := range c.Barbers {
		name := strings.TrimSpace(b.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("barber %d: name is required", i))
			continue
		}
		if _, dup := barbers[name]; dup {
			errs = append(errs, fmt.Errorf("barber %q: duplicate name", name))
		}
		barbers[name] = struct{}{}
	}

	services := make(map[string]struct{})
	for i, s := range c.Services {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("service %d: name is required", i))
			continue
		}
		if _, dup := services[name]; dup {
			errs = append(errs, fmt.Errorf("service %q: duplicate name", name))
		}
		services[name] = struct{}{}
		if s.DurationMinutes <= 0 {
			errs = append(errs, fmt.Errorf("service %q: duration_minutes must be positive", name))
		}
		if s.PriceCents < 0 {
			errs = append(errs, fmt.Errorf("service %q: negative price", name))
		}
	}
	return errors.Join(errs...)
}
