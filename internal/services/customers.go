package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/storefrontapp/storefront/internal/db"
	"github.com/storefrontapp/storefront/internal/models"
)

type customerContact struct {
	UserID   *uuid.UUID
	Email    string
	FullName string
	Phone    string
}

// resolveCustomer finds the store's customer by user for signed-in shoppers
// and by email for guests, creating one when there is no match.
func resolveCustomer(ctx context.Context, customers customerRepository, storeID uuid.UUID, contact customerContact) (*models.Customer, error) {
	email := strings.ToLower(strings.TrimSpace(contact.Email))

	var (
		customer *models.Customer
		err      error
	)
	if contact.UserID != nil {
		customer, err = customers.FindByUser(ctx, storeID, *contact.UserID)
	} else {
		customer, err = customers.FindByEmail(ctx, storeID, email)
	}
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up customer: %w", err)
	}

	customer = &models.Customer{
		StoreID:  storeID,
		UserID:   contact.UserID,
		Email:    email,
		FullName: strings.TrimSpace(contact.FullName),
		Phone:    strings.TrimSpace(contact.Phone),
	}
	if err := customers.Create(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return customer, nil
}
