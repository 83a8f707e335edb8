// Package content loads the marketing copy shown on the public pages.
package content

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/somersetwc/website/internal/pricing"
)

// Business is the contact block shown in the header, footer and estimates.
type Business struct {
	Name        string `yaml:"name"`
	Tagline     string `yaml:"tagline"`
	Phone       string `yaml:"phone"`
	Email       string `yaml:"email"`
	Website     string `yaml:"website"`
	Hours       string `yaml:"hours"`
	AreaSummary string `yaml:"area_summary"`
}

// PhoneHref is the phone number as a tel: link target.
func (b Business) PhoneHref() string {
	return "tel:" + strings.ReplaceAll(b.Phone, " ", "")
}

// Service is the copy for one catalogue service.
type Service struct {
	Key     pricing.Service `yaml:"key"`
	Summary string          `yaml:"summary"`
	Details []string        `yaml:"details"`
	FromGBP int             `yaml:"from"`
}

// Label is the catalogue name of the service.
func (s Service) Label() string { return s.Key.Label() }

// FAQ is a question on the services page.
type FAQ struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

// Testimonial is a customer quote on the home page.
type Testimonial struct {
	Name  string `yaml:"name"`
	Town  string `yaml:"town"`
	Quote string `yaml:"quote"`
}

// Site is everything in site.yaml.
type Site struct {
	Business     Business      `yaml:"business"`
	Services     []Service     `yaml:"services"`
	FAQs         []FAQ         `yaml:"faqs"`
	Testimonials []Testimonial `yaml:"testimonials"`
}

// Load reads and validates the site content file.
func Load(fsys fs.FS, path string) (*Site, error) {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read site content: %w", err)
	}

	var site Site
	if err := yaml.Unmarshal(raw, &site); err != nil {
		return nil, fmt.Errorf("parse site content %s: %w", path, err)
	}
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("invalid site content %s: %w", path, err)
	}
	return &site, nil
}

// Validate checks the copy refers only to services the calculator knows.
func (s *Site) Validate() error {
	if strings.TrimSpace(s.Business.Name) == "" {
		return errors.New("business.name is required")
	}

	seen := make(map[pricing.Service]bool, len(s.Services))
	for i, svc := range s.Services {
		key, ok := pricing.ParseService(string(svc.Key))
		if !ok {
			return fmt.Errorf("services[%d]: unknown service %q", i, svc.Key)
		}
		if seen[key] {
			return fmt.Errorf("services[%d]: duplicate service %q", i, key)
		}
		seen[key] = true
		s.Services[i].Key = key
	}

	for i, f := range s.FAQs {
		if f.Question == "" || f.Answer == "" {
			return fmt.Errorf("faqs[%d]: question and answer are required", i)
		}
	}
	return nil
}

// Service returns the copy for key, if any.
func (s *Site) Service(key pricing.Service) (Service, bool) {
	for _, svc := range s.Services {
		if svc.Key == key {
			return svc, true
		}
	}
	return Service{}, false
}
