package service

import (
	"errors"
	"strings"

	"github.com/kelvinguchu/galacticelectricals/internal/domain"
	"github.com/kelvinguchu/galacticelectricals/internal/models"
)

var ErrOrderForbidden = errors.New("not allowed to view this order")

// OrderAccessStore extends OrderStore with the listing the order surface
// needs.
type OrderAccessStore interface {
	OrderStore
	ListByCustomer(customerID uint, limit, offset int) ([]models.Order, error)
}

// OrderService exposes order lookups with the access rule applied: an order
// is visible to its owner, to an admin, or to a guest who can present the
// email the order was placed under.
type OrderService struct {
	orders OrderAccessStore
}

func NewOrderService(orders OrderAccessStore) *OrderService {
	return &OrderService{orders: orders}
}

// Requester describes who is asking. UserID is nil for guests; Email is the
// guest-supplied email, used only when no authenticated owner match applies.
type Requester struct {
	UserID *uint
	Role   string
	Email  string
}

func (s *OrderService) GetByOrderNumber(orderNumber string, req Requester) (*models.Order, error) {
	order, err := s.orders.GetByOrderNumber(orderNumber)
	if err != nil {
		return nil, err
	}
	if !canView(order, req) {
		return nil, ErrOrderForbidden
	}
	return order, nil
}

func (s *OrderService) ListMine(customerID uint, limit, offset int) ([]models.Order, error) {
	return s.orders.ListByCustomer(customerID, limit, offset)
}

func canView(order *models.Order, req Requester) bool {
	if req.Role == domain.RoleAdmin {
		return true
	}
	if req.UserID != nil && order.CustomerID != nil && *req.UserID == *order.CustomerID {
		return true
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	return email != "" && email == strings.ToLower(order.CustomerEmail)
}
