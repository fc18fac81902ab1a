package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/kelvinguchu/galacticelectricals/internal/middleware"
	"github.com/kelvinguchu/galacticelectricals/internal/service"

	"github.com/gin-gonic/gin"

	"gorm.io/gorm"
)

type OrderHandler struct {
	svc *service.OrderService
}

func NewOrderHandler(svc *service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// Get looks up one order by its order number. Owners and admins are
// authorized by token; guests must supply ?email= matching the order.
func (h *OrderHandler) Get(c *gin.Context) {
	orderNumber := c.Param("orderNumber")

	req := service.Requester{
		Role:  middleware.GetRole(c),
		Email: c.Query("email"),
	}
	if id := middleware.GetUserID(c); id != 0 {
		req.UserID = &id
	}

	order, err := h.svc.GetByOrderNumber(orderNumber, req)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		case errors.Is(err, service.ErrOrderForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			log.Printf("[orders] get %s failed: %v", orderNumber, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load order"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// ListMine returns the authenticated customer's order history.
func (h *OrderHandler) ListMine(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, err := h.svc.ListMine(middleware.GetUserID(c), limit, offset)
	if err != nil {
		log.Printf("[orders] list failed: user=%d err=%v", middleware.GetUserID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
