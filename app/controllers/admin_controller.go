package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/DavidKroell/Vendora/app/models"
	"github.com/DavidKroell/Vendora/app/repository"
	"github.com/DavidKroell/Vendora/internal/pkg/jobqueue"
)

type createCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SortOrder   int    `json:"sort_order"`
}

// HandleAdminCreateCategory creates a catalog category.
func HandleAdminCreateCategory(c *fiber.Ctx) error {
	var req createCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	category := &models.Category{
		Name:        req.Name,
		Description: req.Description,
		SortOrder:   req.SortOrder,
		IsActive:    true,
	}
	if err := repository.GetGlobalRepositories().Category.Create(category); err != nil {
		log.Errorf("[Admin] Creating category %q failed: %v", req.Name, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "create_failed"})
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

type createProductRequest struct {
	CategoryID  uint     `json:"category_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PriceCents  int64    `json:"price_cents"`
	Currency    string   `json:"currency"`
	Items       []string `json:"items"`
}

// HandleAdminCreateProduct creates a product, optionally seeded with initial
// stock items.
func HandleAdminCreateProduct(c *fiber.Ctx) error {
	var req createProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.CategoryID == 0 || req.PriceCents <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "category_id, name and a positive price_cents are required"})
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	product := &models.Product{
		CategoryID:     req.CategoryID,
		Name:           req.Name,
		Description:    req.Description,
		PriceCents:     req.PriceCents,
		Currency:       strings.ToUpper(req.Currency),
		DigitalContent: models.StringList(req.Items),
		IsAvailable:    len(req.Items) > 0,
	}
	if err := repository.GetGlobalRepositories().Product.Create(product); err != nil {
		log.Errorf("[Admin] Creating product %q failed: %v", req.Name, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "create_failed"})
	}
	return c.Status(fiber.StatusCreated).JSON(productView(product))
}

type restockRequest struct {
	Items []string `json:"items"`
}

// HandleAdminRestock appends items to a product's stock.
func HandleAdminRestock(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_product_id"})
	}

	var req restockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	items := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "items must not be empty"})
	}

	product, err := repository.GetGlobalRepositories().Product.Restock(uint(id), items)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product_not_found"})
		}
		log.Errorf("[Admin] Restocking product %d failed: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "restock_failed"})
	}

	log.Infof("[Admin] Restocked product %d with %d item(s), stock now %d", product.ID, len(items), product.StockCount())
	return c.JSON(productView(product))
}

// HandleAdminQueueStats reports job queue depth and outcome counters.
func HandleAdminQueueStats(c *fiber.Ctx) error {
	queue := jobqueue.GetManager().GetQueue()
	ctx := c.Context()

	stats, err := queue.GetJobStats(ctx)
	if err != nil {
		log.Errorf("[Admin] Loading queue stats failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_unavailable"})
	}
	pending, _ := queue.GetQueueSize(ctx)
	processing, _ := queue.GetProcessingSize(ctx)

	return c.JSON(fiber.Map{
		"pending":    pending,
		"processing": processing,
		"stats":      stats,
	})
}

// HandleAdminSyncPayment polls the provider for a payment's status and runs
// it through reconciliation. Manual fallback for lost webhooks.
func HandleAdminSyncPayment(c *fiber.Ctx) error {
	providerPaymentID := strings.TrimSpace(c.Params("payment_id"))
	if providerPaymentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "payment_id is required"})
	}

	if err := shopService.SyncPaymentStatus(c.Context(), providerPaymentID); err != nil {
		log.Errorf("[Admin] Payment sync for %s failed: %v", providerPaymentID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sync_failed"})
	}
	return c.JSON(fiber.Map{"success": true})
}

// HandleAdminDivergences lists completed payments whose order never reached
// delivered. This is the operator reconciliation queue: every entry means
// money arrived but the buyer holds nothing.
func HandleAdminDivergences(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	divergent, err := repository.GetGlobalRepositories().Transaction.FindDivergent(limit)
	if err != nil {
		log.Errorf("[Admin] Loading divergence queue failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	return c.JSON(fiber.Map{"divergences": divergent})
}

// HandleAdminTransactionHistory returns the audit trail of one transaction.
func HandleAdminTransactionHistory(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_transaction_id"})
	}

	repos := repository.GetGlobalRepositories()
	tx, err := repos.Transaction.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "transaction_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	history, err := repos.Transaction.History(tx.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{
		"transaction": tx,
		"history":     history,
	})
}
