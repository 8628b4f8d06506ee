package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-api/cache"
	"storefront-api/database"
	"storefront-api/middleware"
	"storefront-api/models"
)

const productCacheTTL = 5 * time.Minute

type ProductHandler struct {
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewProductHandler(db *sql.DB, redisClient *redis.Client, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		db:          db,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (h *ProductHandler) GetProducts(c *gin.Context) {
	ctx := c.Request.Context()

	query := `SELECT id, name, description, category, price, image_url, created_at, updated_at
	          FROM products`
	args := []interface{}{}
	if category := c.Query("category"); category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY id`

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		h.logger.Error("Failed to fetch products", zap.Error(err))
		internalError(c)
		return
	}
	defer rows.Close()

	var products []models.Product
	var ids []int64
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			h.logger.Error("Failed to scan product", zap.Error(err))
			continue
		}
		products = append(products, p)
		ids = append(ids, p.ID)
	}

	if len(ids) > 0 {
		variants, err := h.loadVariants(c, ids)
		if err != nil {
			h.logger.Error("Failed to fetch variants", zap.Error(err))
			internalError(c)
			return
		}
		for i := range products {
			products[i].Variants = variants[products[i].ID]
		}
	}

	c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) loadVariants(c *gin.Context, productIDs []int64) (map[int64][]models.ProductVariant, error) {
	rows, err := h.db.QueryContext(c.Request.Context(),
		`SELECT id, product_id, size, stock_quantity, updated_at
		 FROM product_variants
		 WHERE product_id = ANY($1)
		 ORDER BY product_id, size`,
		pq.Array(productIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64][]models.ProductVariant)
	for rows.Next() {
		var v models.ProductVariant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Size, &v.StockQuantity, &v.UpdatedAt); err != nil {
			return nil, err
		}
		result[v.ProductID] = append(result[v.ProductID], v)
	}
	return result, rows.Err()
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	// Try cache first
	if cachedData, err := cache.GetProduct(ctx, h.redisClient, id); err == nil {
		var product models.Product
		if err := json.Unmarshal(cachedData, &product); err == nil {
			c.JSON(http.StatusOK, product)
			return
		}
	}

	var product models.Product
	err := h.db.QueryRowContext(ctx,
		`SELECT id, name, description, category, price, image_url, created_at, updated_at
		 FROM products WHERE id = $1`,
		id,
	).Scan(&product.ID, &product.Name, &product.Description, &product.Category,
		&product.Price, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Продуктът не е намерен"})
			return
		}
		h.logger.Error("Failed to fetch product", zap.Error(err))
		internalError(c)
		return
	}

	variants, err := h.loadVariants(c, []int64{product.ID})
	if err != nil {
		h.logger.Error("Failed to fetch variants", zap.Error(err))
		internalError(c)
		return
	}
	product.Variants = variants[product.ID]

	// Cache errors are non-fatal
	if err := cache.SetProduct(ctx, h.redisClient, id, product, productCacheTTL); err != nil {
		h.logger.Warn("Failed to cache product", zap.String("product_id", id), zap.Error(err))
	}

	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	var product models.Product
	err := database.WithTx(ctx, h.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO products (name, description, category, price, image_url, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			 RETURNING id, name, description, category, price, image_url, created_at, updated_at`,
			req.Name, req.Description, req.Category, decimal.NewFromFloat(req.Price), req.ImageURL,
		).Scan(&product.ID, &product.Name, &product.Description, &product.Category,
			&product.Price, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt)
		if err != nil {
			return err
		}

		for _, v := range req.Variants {
			var variant models.ProductVariant
			err := tx.QueryRowContext(ctx,
				`INSERT INTO product_variants (product_id, size, stock_quantity, updated_at)
				 VALUES ($1, $2, $3, NOW())
				 RETURNING id, product_id, size, stock_quantity, updated_at`,
				product.ID, v.Size, v.StockQuantity,
			).Scan(&variant.ID, &variant.ProductID, &variant.Size, &variant.StockQuantity, &variant.UpdatedAt)
			if err != nil {
				return err
			}
			product.Variants = append(product.Variants, variant)
		}
		return nil
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "Продукт с този размер вече съществува"})
			return
		}
		h.logger.Error("Failed to create product",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Error(err))
		internalError(c)
		return
	}

	h.logger.Info("Product created", zap.Int64("product_id", product.ID))
	c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	// Build update query dynamically
	query := "UPDATE products SET updated_at = NOW()"
	args := []interface{}{}
	argPos := 1

	if req.Name != "" {
		query += ", name = $" + strconv.Itoa(argPos)
		args = append(args, req.Name)
		argPos++
	}
	if req.Description != "" {
		query += ", description = $" + strconv.Itoa(argPos)
		args = append(args, req.Description)
		argPos++
	}
	if req.Category != "" {
		query += ", category = $" + strconv.Itoa(argPos)
		args = append(args, req.Category)
		argPos++
	}
	if req.Price > 0 {
		query += ", price = $" + strconv.Itoa(argPos)
		args = append(args, decimal.NewFromFloat(req.Price))
		argPos++
	}
	if req.ImageURL != "" {
		query += ", image_url = $" + strconv.Itoa(argPos)
		args = append(args, req.ImageURL)
		argPos++
	}

	query += " WHERE id = $" + strconv.Itoa(argPos) +
		" RETURNING id, name, description, category, price, image_url, created_at, updated_at"
	args = append(args, id)

	var product models.Product
	err := h.db.QueryRowContext(ctx, query, args...).Scan(
		&product.ID, &product.Name, &product.Description, &product.Category,
		&product.Price, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Продуктът не е намерен"})
			return
		}
		h.logger.Error("Failed to update product", zap.Error(err))
		internalError(c)
		return
	}

	if err := cache.DeleteProduct(ctx, h.redisClient, id); err != nil {
		h.logger.Warn("Failed to invalidate product cache", zap.String("product_id", id), zap.Error(err))
	}

	h.logger.Info("Product updated", zap.String("product_id", id))
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	result, err := h.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		h.logger.Error("Failed to delete product", zap.Error(err))
		internalError(c)
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Продуктът не е намерен"})
		return
	}

	if err := cache.DeleteProduct(ctx, h.redisClient, id); err != nil {
		h.logger.Warn("Failed to invalidate product cache", zap.String("product_id", id), zap.Error(err))
	}

	h.logger.Info("Product deleted", zap.String("product_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Продуктът е изтрит"})
}
