package service

import (
	"log"

	"github.com/kelvinguchu/galacticelectricals/internal/models"
	"github.com/kelvinguchu/galacticelectricals/pkg/money"
)

// InventoryService adjusts stock when an order is first paid. The side
// effect is an explicit, named method invoked by the reconciler rather than
// a storage-lifecycle hook, so it stays auditable and testable on its own.
type InventoryService struct {
	orders   OrderStore
	products ProductStore
}

func NewInventoryService(orders OrderStore, products ProductStore) *InventoryService {
	return &InventoryService{orders: orders, products: products}
}

// OnOrderPaid decrements stock for every line item exactly once per order.
// The inventory_adjusted flag is claimed with a conditional update, so a
// second call (another paid transition, a fulfillment update, a concurrent
// reconciler) is a no-op.
func (s *InventoryService) OnOrderPaid(order *models.Order) error {
	claimed, err := s.orders.ClaimInventoryAdjustment(order.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	for _, item := range order.Items {
		qty := money.StockQuantity(float64(item.Quantity))
		if qty == 0 {
			continue
		}
		if err := s.products.DecrementStock(item.ProductID, qty); err != nil {
			// The claim already happened; skipping one product must not stop
			// the rest of the decrements.
			log.Printf("[Inventory] decrement product %d by %d for order %s: %v", item.ProductID, qty, order.OrderNumber, err)
		}
	}
	return nil
}
