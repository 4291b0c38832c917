package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/courier-tracking/internal/core/domain"
	"github.com/99minutos/courier-tracking/internal/core/ports"
)

type DeliveryService struct {
	repo   ports.DeliveryRepository
	users  ports.AuthRepository
	logger zerolog.Logger
}

func NewDeliveryService(repo ports.DeliveryRepository, users ports.AuthRepository, logger zerolog.Logger) *DeliveryService {
	return &DeliveryService{repo: repo, users: users, logger: logger}
}

// Create opens a PENDING delivery owned by the calling customer.
func (s *DeliveryService) Create(ctx context.Context, input ports.CreateDeliveryInput) (*domain.Delivery, error) {
	if strings.TrimSpace(input.ProductName) == "" || strings.TrimSpace(input.Address) == "" {
		return nil, fmt.Errorf("create delivery: %w: productName and address are required", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	d := &domain.Delivery{
		ID:                 uuid.NewString(),
		CustomerID:         input.Caller.ID,
		ProductName:        input.ProductName,
		ProductDescription: input.ProductDescription,
		Address:            input.Address,
		DestinationLat:     input.DestinationLat,
		DestinationLng:     input.DestinationLng,
		Status:             domain.StatusPending,
		EstimatedDelivery:  input.EstimatedDelivery.UTC(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.Create(ctx, d); err != nil {
		s.logger.Error().Err(err).Msg("failed to create delivery")
		return nil, err
	}

	s.logger.Info().Str("delivery_id", d.ID).Str("customer_id", d.CustomerID).Msg("delivery created")
	return d, nil
}

// Get returns a delivery the caller is allowed to see.
func (s *DeliveryService) Get(ctx context.Context, id string, caller domain.Caller) (*domain.Delivery, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.VisibleTo(caller) {
		return nil, domain.ErrForbidden
	}
	return d, nil
}

// List returns the deliveries visible to the caller: admins see everything,
// couriers their assignments, customers their own orders.
func (s *DeliveryService) List(ctx context.Context, caller domain.Caller) ([]*domain.Delivery, error) {
	var filter ports.DeliveryFilter
	switch caller.Role {
	case domain.RoleAdmin:
	case domain.RoleCourier:
		filter.CourierID = caller.ID
	case domain.RoleCustomer:
		filter.CustomerID = caller.ID
	default:
		return nil, domain.ErrForbidden
	}
	return s.repo.List(ctx, filter)
}

// Assign hands a PENDING delivery to a courier.
func (s *DeliveryService) Assign(ctx context.Context, input ports.AssignCourierInput) (*domain.Delivery, error) {
	courier, err := s.users.FindByID(ctx, input.CourierID)
	if err != nil {
		return nil, fmt.Errorf("assign courier: %w", err)
	}
	if courier.Role != domain.RoleCourier {
		return nil, fmt.Errorf("assign courier: %w: user %s is not a courier", domain.ErrInvalidInput, courier.ID)
	}

	d, err := s.repo.FindByID(ctx, input.DeliveryID)
	if err != nil {
		return nil, fmt.Errorf("assign courier: %w", err)
	}
	if !d.Status.CanTransitionTo(domain.StatusAssigned) {
		return nil, fmt.Errorf("assign courier: %w (from %s to %s)", domain.ErrInvalidTransition, d.Status, domain.StatusAssigned)
	}

	ok, err := s.repo.Assign(ctx, d.ID, courier.ID, courier.Name)
	if err != nil {
		return nil, fmt.Errorf("assign courier: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("assign courier: %w: delivery changed concurrently", domain.ErrInvalidTransition)
	}

	d.CourierID = courier.ID
	d.CourierName = courier.Name
	d.Status = domain.StatusAssigned
	s.logger.Info().Str("delivery_id", d.ID).Str("courier_id", courier.ID).Msg("courier assigned")
	return d, nil
}

// Complete marks a delivery as DELIVERED. Only its courier may do so.
func (s *DeliveryService) Complete(ctx context.Context, id string, caller domain.Caller) (*domain.Delivery, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("complete delivery: %w", err)
	}
	if caller.Role != domain.RoleCourier || d.CourierID != caller.ID {
		return nil, fmt.Errorf("complete delivery: %w", domain.ErrForbidden)
	}
	if !d.Status.CanTransitionTo(domain.StatusDelivered) {
		return nil, fmt.Errorf("complete delivery: %w (from %s to %s)", domain.ErrInvalidTransition, d.Status, domain.StatusDelivered)
	}

	ok, err := s.repo.UpdateStatus(ctx, d.ID, d.Status, domain.StatusDelivered)
	if err != nil {
		return nil, fmt.Errorf("complete delivery: %w", err)
	}
	if !ok {
		// The first location report may have moved ASSIGNED to IN_TRANSIT
		// between our read and write.
		ok, err = s.repo.UpdateStatus(ctx, d.ID, domain.StatusInTransit, domain.StatusDelivered)
		if err != nil {
			return nil, fmt.Errorf("complete delivery: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("complete delivery: %w: delivery changed concurrently", domain.ErrInvalidTransition)
		}
	}

	d.Status = domain.StatusDelivered
	s.logger.Info().Str("delivery_id", d.ID).Str("courier_id", caller.ID).Msg("delivery completed")
	return d, nil
}
