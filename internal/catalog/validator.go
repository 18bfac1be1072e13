package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefrontapp/storefront/internal/models"
)

var ErrInvalidInput = errors.New("invalid input")

// StoreInput is an owner's request to open a store.
type StoreInput struct {
	Name        string `json:"name" validate:"required,min=2,max=120"`
	Slug        string `json:"slug" validate:"required,min=2,max=64"`
	Description string `json:"description" validate:"max=2000"`
	IsPublic    *bool  `json:"is_public"`
}

type ProductInput struct {
	Name        string `json:"name" validate:"required,min=2,max=200"`
	Slug        string `json:"slug" validate:"omitempty,max=120"`
	Description string `json:"description" validate:"max=5000"`
	Price       string `json:"price" validate:"required"`
	Currency    string `json:"currency" validate:"omitempty,len=3,alpha"`
	Status      string `json:"status" validate:"omitempty,oneof=draft active"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Store normalises and validates input, returning the store to create.
// The slug defaults to the slugified name.
func (v *Validator) Store(ownerID uuid.UUID, input StoreInput) (*models.Store, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if strings.TrimSpace(input.Slug) == "" {
		input.Slug = input.Name
	}
	input.Slug = Slugify(input.Slug)

	if err := v.validate.Struct(input); err != nil {
		return nil, describe(err)
	}
	if IsReservedSlug(input.Slug) {
		return nil, fmt.Errorf("%w: slug %q is reserved", ErrInvalidInput, input.Slug)
	}

	return &models.Store{
		OwnerID:     ownerID,
		Name:        input.Name,
		Slug:        input.Slug,
		Description: input.Description,
		IsPublic:    input.IsPublic == nil || *input.IsPublic,
	}, nil
}

// Product normalises and validates input for a product of storeID.
// Currency defaults to USD and status to draft.
func (v *Validator) Product(storeID uuid.UUID, input ProductInput) (*models.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	if input.Currency == "" {
		input.Currency = "USD"
	}
	if input.Status == "" {
		input.Status = string(models.ProductDraft)
	}
	if strings.TrimSpace(input.Slug) == "" {
		input.Slug = input.Name
	}
	input.Slug = Slugify(input.Slug)

	if err := v.validate.Struct(input); err != nil {
		return nil, describe(err)
	}
	if input.Slug == "" {
		return nil, fmt.Errorf("%w: name must contain letters or digits", ErrInvalidInput)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(input.Price))
	if err != nil {
		return nil, fmt.Errorf("%w: price must be a decimal number", ErrInvalidInput)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: price must be zero or positive", ErrInvalidInput)
	}

	return &models.Product{
		StoreID:     storeID,
		Name:        input.Name,
		Slug:        input.Slug,
		Description: strings.TrimSpace(input.Description),
		Price:       price.Round(2),
		Currency:    input.Currency,
		Status:      models.ProductStatus(input.Status),
		ImageURL:    strings.TrimSpace(input.ImageURL),
	}, nil
}

// describe turns validator errors into a single display message.
func describe(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	case "min":
		return fmt.Errorf("%w: %s must be at least %s characters", ErrInvalidInput, field, fe.Param())
	case "max":
		return fmt.Errorf("%w: %s must be at most %s characters", ErrInvalidInput, field, fe.Param())
	case "len", "alpha":
		return fmt.Errorf("%w: %s must be a 3-letter code", ErrInvalidInput, field)
	case "oneof":
		return fmt.Errorf("%w: %s must be one of %s", ErrInvalidInput, field, fe.Param())
	default:
		return fmt.Errorf("%w: %s is invalid", ErrInvalidInput, field)
	}
}
