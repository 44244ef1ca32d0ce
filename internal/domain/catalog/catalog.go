package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrTierNotFound    = errors.New("price tier not found")
	ErrInvalidID       = errors.New("product id is required")
	ErrInvalidTitle    = errors.New("title is required")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrNoTiers         = errors.New("product must have at least one price tier")
	ErrDuplicateTier   = errors.New("duplicate price tier")
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Tier is one purchasable variant of a product, e.g. "Basic" or "Premium".
type Tier struct {
	Name  string `json:"name" yaml:"name"`
	Price int64  `json:"price" yaml:"price"`
}

type Product struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Image       string    `json:"image,omitempty" yaml:"image"`
	Category    string    `json:"category,omitempty" yaml:"category"`
	Tiers       []Tier    `json:"tiers" yaml:"tiers"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// Tier resolves a tier by name. An empty name selects the first tier.
func (p Product) Tier(name string) (Tier, error) {
	if name == "" && len(p.Tiers) > 0 {
		return p.Tiers[0], nil
	}
	for _, t := range p.Tiers {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return Tier{}, fmt.Errorf("%w: %s/%s", ErrTierNotFound, p.ID, name)
}

func (p Product) validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrInvalidID
	}
	if strings.TrimSpace(p.Title) == "" {
		return ErrInvalidTitle
	}
	if len(p.Tiers) == 0 {
		return ErrNoTiers
	}
	seen := make(map[string]struct{}, len(p.Tiers))
	for _, t := range p.Tiers {
		if t.Price <= 0 {
			return ErrInvalidPrice
		}
		key := strings.ToLower(t.Name)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateTier, t.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Reader is the read view the cart and checkout depend on.
type Reader interface {
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]Product, error)
}

// Service is an in-memory catalog seeded from YAML and editable by admins.
type Service struct {
	mu       sync.RWMutex
	products map[string]Product
	now      func() time.Time
}

func NewService() *Service {
	return &Service{
		products: make(map[string]Product),
		now:      time.Now,
	}
}

// NewDefaultService returns a catalog seeded with the built-in product list.
func NewDefaultService() (*Service, error) {
	s := NewService()
	if err := s.Load(defaultCatalog); err != nil {
		return nil, fmt.Errorf("load default catalog: %w", err)
	}
	return s, nil
}

type catalogFile struct {
	Products []Product `yaml:"products"`
}

// LoadFile replaces the catalog content with the products in a YAML file.
func (s *Service) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}
	return s.Load(data)
}

func (s *Service) Load(data []byte) error {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}

	products := make(map[string]Product, len(file.Products))
	now := s.now()
	for _, p := range file.Products {
		if err := p.validate(); err != nil {
			return fmt.Errorf("product %q: %w", p.ID, err)
		}
		p.UpdatedAt = now
		products[p.ID] = p
	}

	s.mu.Lock()
	s.products = products
	s.mu.Unlock()
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	p.Tiers = append([]Tier(nil), p.Tiers...)
	return &p, nil
}

// List returns products ordered by category, then title.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	products := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		p.Tiers = append([]Tier(nil), p.Tiers...)
		products = append(products, p)
	}
	s.mu.RUnlock()

	sort.Slice(products, func(i, j int) bool {
		if products[i].Category != products[j].Category {
			return products[i].Category < products[j].Category
		}
		return products[i].Title < products[j].Title
	})
	return products, nil
}

// Upsert creates or replaces a product.
func (s *Service) Upsert(ctx context.Context, p Product) (*Product, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.Tiers = append([]Tier(nil), p.Tiers...)
	p.UpdatedAt = s.now()

	s.mu.Lock()
	s.products[p.ID] = p
	s.mu.Unlock()
	return &p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	delete(s.products, id)
	return nil
}
