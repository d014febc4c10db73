package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"shop-pos/internal/apperr"
	"shop-pos/internal/models"
	"shop-pos/internal/pos/session"
	"shop-pos/internal/service"
	"shop-pos/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Orders is the basket lifecycle served over HTTP.
type Orders interface {
	CreateBasket(ctx context.Context, req *service.CreateBasketRequest) (*service.CreateBasketResponse, error)
	GetOrder(ctx context.Context, orderID string) (session.Order, error)
	ActiveBucket(ctx context.Context, shopID string) (session.Order, bool, error)
	ListOrders(ctx context.Context, shopID string) ([]session.Summary, error)
	AddItem(ctx context.Context, req *service.AddItemRequest) error
	ChangeQty(ctx context.Context, req *service.ChangeQtyRequest) error
	RemoveItem(ctx context.Context, orderID, productID string) error
	ConvertToPI(ctx context.Context, req *service.ConvertRequest) (decimal.Decimal, error)
	FinalizeSale(ctx context.Context, orderID string) (session.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

// Inventory is the shop and stock read side.
type Inventory interface {
	SearchShops(ctx context.Context, name string) ([]models.Shop, error)
	Inventory(ctx context.Context, shopID string) ([]models.InventoryRow, error)
	ProductByCode(ctx context.Context, code string) (*models.InventoryRow, error)
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orders    Orders
	inventory Inventory
	deps      map[string]Pinger
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler. deps are pinged by the readiness
// check, keyed by the name reported on failure.
func NewHandler(orders Orders, inventory Inventory, deps map[string]Pinger) *Handler {
	return &Handler{
		orders:    orders,
		inventory: inventory,
		deps:      deps,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/search", h.searchShops)
	router.GET("/inventory/:shop_id", h.getInventory)
	router.GET("/product/by-code", h.productByCode)

	basket := router.Group("/basket")
	{
		basket.POST("/create", h.createBasket)
		basket.POST("/add", h.addItem)
		basket.GET("/details/:order_id", h.getOrder)
		basket.GET("/:shop_id", h.activeBucket)
	}

	order := router.Group("/order")
	{
		order.POST("/update-qty", h.updateQty)
		order.DELETE("/remove-item", h.removeItem)
		order.POST("/convert-to-pi", h.convertToPI)
		order.POST("/finalize-sale", h.finalizeSale)
		order.DELETE("/delete/:order_id", h.deleteOrder)
	}

	router.GET("/orders/list/:shop_id", h.listOrders)
}

// respondError maps a classified error onto its HTTP status. Unclassified
// errors are logged and reported as internal.
func (h *Handler) respondError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	md := apperr.MetadataFor(code)

	msg := md.PublicMessage
	if e := apperr.As(err); e != nil && code != apperr.CodeInternal {
		msg = e.Message()
	}
	if md.HTTPStatus >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	c.JSON(md.HTTPStatus, gin.H{
		"error":   msg,
		"code":    string(code),
		"details": md.PublicMessage,
	})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"code":    string(apperr.CodeValidation),
		"details": err.Error(),
	})
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not ready",
				"dependency": name,
				"time":       time.Now().Unix(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) searchShops(c *gin.Context) {
	shops, err := h.inventory.SearchShops(c.Request.Context(), c.Query("name"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"results": shops,
		"count":   len(shops),
	})
}

func (h *Handler) getInventory(c *gin.Context) {
	rows, err := h.inventory.Inventory(c.Request.Context(), c.Param("shop_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) productByCode(c *gin.Context) {
	row, err := h.inventory.ProductByCode(c.Request.Context(), c.Query("item_code"))
	if apperr.Is(err, apperr.CodeNotFound) {
		c.JSON(http.StatusOK, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *Handler) createBasket(c *gin.Context) {
	var req service.CreateBasketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	resp, err := h.orders.CreateBasket(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) activeBucket(c *gin.Context) {
	snap, ok, err := h.orders.ActiveBucket(c.Request.Context(), c.Param("shop_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) addItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := h.orders.AddItem(c.Request.Context(), &req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "added"})
}

func (h *Handler) getOrder(c *gin.Context) {
	snap, err := h.orders.GetOrder(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) updateQty(c *gin.Context) {
	var req service.ChangeQtyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := h.orders.ChangeQty(c.Request.Context(), &req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *Handler) removeItem(c *gin.Context) {
	orderID, productID := c.Query("order_id"), c.Query("product_id")
	if orderID == "" || productID == "" {
		h.respondError(c, apperr.Validation("order_id and product_id are required"))
		return
	}
	if err := h.orders.RemoveItem(c.Request.Context(), orderID, productID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (h *Handler) convertToPI(c *gin.Context) {
	var req service.ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	total, err := h.orders.ConvertToPI(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      string(session.StatusPI),
		"final_total": total,
	})
}

func (h *Handler) finalizeSale(c *gin.Context) {
	orderID := c.Query("order_id")
	if orderID == "" {
		h.respondError(c, apperr.Validation("order_id is required"))
		return
	}
	snap, err := h.orders.FinalizeSale(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) deleteOrder(c *gin.Context) {
	if err := h.orders.DeleteOrder(c.Request.Context(), c.Param("order_id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), c.Param("shop_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
