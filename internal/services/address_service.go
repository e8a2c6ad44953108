package services

import (
	"context"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// AddressService manages a user's shipping addresses.
type AddressService struct {
	addresses repositories.AddressRepository
}

// NewAddressService creates a new AddressService.
func NewAddressService(addresses repositories.AddressRepository) *AddressService {
	return &AddressService{addresses: addresses}
}

// List returns the user's addresses.
func (s *AddressService) List(ctx context.Context, userID string) ([]models.Address, error) {
	addresses, err := s.addresses.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("could not load addresses", err)
	}
	return addresses, nil
}

// Create stores address under userID, ignoring any client-supplied owner.
func (s *AddressService) Create(ctx context.Context, userID string, address *models.Address) error {
	if userID == "" {
		return apperr.Auth("authentication required")
	}
	address.ID = ""
	address.UserID = userID
	if err := s.addresses.Create(ctx, address); err != nil {
		return apperr.Persistence("could not save address", err)
	}
	return nil
}
