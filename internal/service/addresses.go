// addresses.go — сервис адресов пользователей.
// Не-администратор управляет только собственными адресами.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bigkaa/user-module/internal/domain/model"
	"github.com/bigkaa/user-module/internal/repository"
)

// AddressesService — сервис адресов.
type AddressesService struct {
	addresses repository.AddressRepository
	logger    *slog.Logger
}

// NewAddressesService создаёт сервис адресов.
func NewAddressesService(addresses repository.AddressRepository, logger *slog.Logger) *AddressesService {
	return &AddressesService{
		addresses: addresses,
		logger:    logger.With(slog.String("component", "addresses_service")),
	}
}

// AddressInput — данные адреса.
type AddressInput struct {
	Line1   string
	Line2   string
	City    string
	State   string
	Country string
	ZipCode string
}

// Create добавляет адрес пользователю userID.
func (s *AddressesService) Create(ctx context.Context, caller Caller, userID uuid.UUID, in AddressInput) (*model.Address, error) {
	if !caller.IsAdmin && caller.UserID != userID {
		return nil, fmt.Errorf("%w: можно добавлять только собственные адреса", ErrForbidden)
	}
	if in.Line1 == "" || in.City == "" || in.Country == "" {
		return nil, fmt.Errorf("%w: адрес, город и страна обязательны", ErrValidation)
	}

	a := &model.Address{
		ID:        uuid.New(),
		UserID:    userID,
		Line1:     in.Line1,
		Line2:     in.Line2,
		City:      in.City,
		State:     in.State,
		Country:   in.Country,
		ZipCode:   in.ZipCode,
		CreatedBy: &caller.UserID,
	}
	if err := s.addresses.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// List возвращает адреса пользователя userID.
func (s *AddressesService) List(ctx context.Context, caller Caller, userID uuid.UUID) ([]*model.Address, error) {
	if !caller.IsAdmin && caller.UserID != userID {
		return nil, fmt.Errorf("%w: можно просматривать только собственные адреса", ErrForbidden)
	}
	return s.addresses.ListByUserID(ctx, userID)
}

// Update обновляет адрес addressID.
func (s *AddressesService) Update(ctx context.Context, caller Caller, addressID uuid.UUID, in AddressInput) (*model.Address, error) {
	a, err := s.get(ctx, caller, addressID)
	if err != nil {
		return nil, err
	}

	a.Line1 = in.Line1
	a.Line2 = in.Line2
	a.City = in.City
	a.State = in.State
	a.Country = in.Country
	a.ZipCode = in.ZipCode
	a.ModifiedBy = &caller.UserID

	if err := s.addresses.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete удаляет адрес addressID.
func (s *AddressesService) Delete(ctx context.Context, caller Caller, addressID uuid.UUID) error {
	if _, err := s.get(ctx, caller, addressID); err != nil {
		return err
	}
	return s.addresses.Delete(ctx, addressID)
}

// get загружает адрес и проверяет право вызывающего им распоряжаться.
func (s *AddressesService) get(ctx context.Context, caller Caller, addressID uuid.UUID) (*model.Address, error) {
	a, err := s.addresses.GetByID(ctx, addressID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: адрес %s", ErrNotFound, addressID)
		}
		return nil, err
	}
	if !caller.IsAdmin && a.UserID != caller.UserID {
		return nil, fmt.Errorf("%w: адрес принадлежит другому пользователю", ErrForbidden)
	}
	return a, nil
}
