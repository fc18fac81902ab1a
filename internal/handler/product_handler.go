package handler

import (
	"log"
	"net/http"
	"strconv"

	"github.com/kelvinguchu/galacticelectricals/internal/middleware"
	"github.com/kelvinguchu/galacticelectricals/internal/models"
	"github.com/kelvinguchu/galacticelectricals/internal/repository"

	"github.com/gin-gonic/gin"
)

type ProductHandler struct {
	repo *repository.ProductRepository
}

func NewProductHandler(repo *repository.ProductRepository) *ProductHandler {
	return &ProductHandler{repo: repo}
}

// List serves the public catalog. Admins see drafts too.
func (h *ProductHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	publishedOnly := middleware.GetRole(c) != "admin"

	products, err := h.repo.List(publishedOnly, limit, offset)
	if err != nil {
		log.Printf("[products] list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *ProductHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	product, err := h.repo.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	if !product.Published && middleware.GetRole(c) != "admin" {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

type ProductRequest struct {
	Title         string   `json:"title" binding:"required"`
	SKU           string   `json:"sku"`
	Description   string   `json:"description"`
	RegularPrice  float64  `json:"regular_price" binding:"required,gt=0"`
	SalePrice     *float64 `json:"sale_price"`
	Published     bool     `json:"published"`
	ManageStock   bool     `json:"manage_stock"`
	StockQuantity int      `json:"stock_quantity"`
	StockStatus   string   `json:"stock_status" binding:"omitempty,oneof=instock outofstock onbackorder"`
}

func (h *ProductHandler) Create(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product := &models.Product{
		Title:         req.Title,
		SKU:           req.SKU,
		Description:   req.Description,
		RegularPrice:  req.RegularPrice,
		Published:     req.Published,
		ManageStock:   req.ManageStock,
		StockQuantity: req.StockQuantity,
	}
	if req.SalePrice != nil {
		product.SalePrice = *req.SalePrice
	}
	if req.StockStatus != "" {
		product.StockStatus = req.StockStatus
	}
	if err := h.repo.Create(product); err != nil {
		log.Printf("[products] create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create product"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

func (h *ProductHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	product, err := h.repo.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product.Title = req.Title
	product.SKU = req.SKU
	product.Description = req.Description
	product.RegularPrice = req.RegularPrice
	if req.SalePrice != nil {
		product.SalePrice = *req.SalePrice
	} else {
		product.SalePrice = 0
	}
	product.Published = req.Published
	product.ManageStock = req.ManageStock
	product.StockQuantity = req.StockQuantity
	if req.StockStatus != "" {
		product.StockStatus = req.StockStatus
	}
	if err := h.repo.Update(product); err != nil {
		log.Printf("[products] update %d failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update product"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}
