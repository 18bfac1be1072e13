package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// SeedFile describes demo stores loaded by the seed command.
type SeedFile struct {
	Owner  SeedOwner   `yaml:"owner"`
	Stores []SeedStore `yaml:"stores"`
}

type SeedOwner struct {
	Email    string `yaml:"email"`
	FullName string `yaml:"full_name"`
	Password string `yaml:"password"`
}

type SeedStore struct {
	Name        string        `yaml:"name"`
	Slug        string        `yaml:"slug"`
	Description string        `yaml:"description"`
	Products    []SeedProduct `yaml:"products"`
}

type SeedProduct struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Currency    string `yaml:"currency"`
	Status      string `yaml:"status"`
	ImageURL    string `yaml:"image_url"`
	SKU         string `yaml:"sku"`
	Stock       int    `yaml:"stock"`
}

func (p SeedProduct) Input() ProductInput {
	return ProductInput{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Currency:    p.Currency,
		Status:      p.Status,
		ImageURL:    p.ImageURL,
	}
}

func (s SeedStore) Input() StoreInput {
	return StoreInput{Name: s.Name, Slug: s.Slug, Description: s.Description}
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(content []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(content, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(seed.Stores) == 0 {
		return nil, fmt.Errorf("seed file defines no stores")
	}
	return &seed, nil
}

// Store returns the seeded store with the given slug.
func (f *SeedFile) Store(slug string) (*SeedStore, bool) {
	for i := range f.Stores {
		s := &f.Stores[i]
		if s.Slug == slug || Slugify(s.Name) == slug {
			return s, true
		}
	}
	return nil, false
}
