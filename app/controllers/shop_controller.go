package controllers

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/DavidKroell/Vendora/app/models"
	"github.com/DavidKroell/Vendora/app/repository"
	"github.com/DavidKroell/Vendora/internal/pkg/metrics/counter"
	"github.com/DavidKroell/Vendora/internal/pkg/shop"
)

var shopService *shop.Service

// InitializeShopController wires the shop service into the public handlers.
func InitializeShopController(svc *shop.Service) {
	shopService = svc
}

// HandleListCategories returns the active catalog categories.
func HandleListCategories(c *fiber.Ctx) error {
	categories, err := repository.GetGlobalRepositories().Category.GetActive()
	if err != nil {
		log.Errorf("[Shop] Listing categories failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(fiber.Map{"categories": categories})
}

// HandleListProducts returns available products, optionally filtered by
// category. Stock is exposed as a count; the content itself never leaves the
// server before delivery.
func HandleListProducts(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	products := repository.GetGlobalRepositories().Product
	var (
		list []models.Product
		err  error
	)
	if categoryID := c.QueryInt("category_id", 0); categoryID > 0 {
		list, err = products.GetByCategoryID(uint(categoryID), offset, limit)
	} else {
		list, err = products.GetAvailable(offset, limit)
	}
	if err != nil {
		log.Errorf("[Shop] Listing products failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	out := make([]fiber.Map, 0, len(list))
	for i := range list {
		out = append(out, productView(&list[i]))
	}
	return c.JSON(fiber.Map{"products": out})
}

// HandleGetProduct returns a single product and counts the view.
func HandleGetProduct(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_product_id"})
	}

	product, err := repository.GetGlobalRepositories().Product.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product_not_found"})
		}
		log.Errorf("[Shop] Loading product %d failed: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	if err := counter.AddProductView(product.ID); err != nil {
		log.Warnf("[Shop] View counter for product %d failed: %v", product.ID, err)
	}

	return c.JSON(productView(product))
}

type checkoutRequest struct {
	ChatID      int64  `json:"chat_id" validate:"required"`
	Username    string `json:"username" validate:"max=150"`
	ProductID   uint   `json:"product_id" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gte=0,lte=100"`
	PayCurrency string `json:"pay_currency" validate:"max=10"`
}

// HandleCheckout creates a pending order plus provider invoice for a buyer
// identified by chat id.
func HandleCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	if err := validator.New().Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	user, err := repository.GetGlobalRepositories().User.GetOrCreateByChatID(req.ChatID, req.Username)
	if err != nil {
		log.Errorf("[Shop] Resolving buyer for chat %d failed: %v", req.ChatID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	if user.Status == models.STATUS_BLOCKED {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "user_blocked"})
	}

	result, err := shopService.Checkout(c.Context(), user.ID, req.ProductID, req.Quantity, req.PayCurrency)
	if err != nil {
		switch {
		case errors.Is(err, shop.ErrProductUnavailable):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product_not_found"})
		case errors.Is(err, shop.ErrOutOfStock):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "out_of_stock"})
		}
		log.Errorf("[Shop] Checkout for chat %d product %d failed: %v", req.ChatID, req.ProductID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "checkout_failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order_id":    result.Order.ID,
		"status":      result.Order.Status,
		"total_cents": result.Order.TotalCents,
		"currency":    result.Order.Currency,
		"payment_url": result.PaymentURL,
	})
}

// HandleGetOrder returns one order for the buyer who owns it.
func HandleGetOrder(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_order_id"})
	}
	chatID, err := strconv.ParseInt(c.Query("chat_id"), 10, 64)
	if err != nil || chatID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "chat_id is required"})
	}

	repos := repository.GetGlobalRepositories()
	user, err := repos.User.GetByChatID(chatID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order_not_found"})
	}
	order, err := repos.Order.GetByID(uint(id))
	if err != nil || order.UserID != user.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order_not_found"})
	}

	resp := fiber.Map{
		"order_id":    order.ID,
		"product_id":  order.ProductID,
		"quantity":    order.Quantity,
		"status":      order.Status,
		"total_cents": order.TotalCents,
		"currency":    order.Currency,
		"created_at":  order.CreatedAt,
	}
	if order.IsDelivered() {
		resp["delivered_content"] = order.DeliveredContent
	}
	return c.JSON(resp)
}

func productView(p *models.Product) fiber.Map {
	return fiber.Map{
		"id":           p.ID,
		"category_id":  p.CategoryID,
		"name":         p.Name,
		"description":  p.Description,
		"price_cents":  p.PriceCents,
		"currency":     p.Currency,
		"stock_count":  p.StockCount(),
		"is_available": p.IsAvailable,
		"view_count":   p.ViewCount,
		"sales_count":  p.SalesCount,
	}
}
