package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"pcprice-service/internal/comparison"
	"pcprice-service/internal/matching"
	"pcprice-service/internal/models"
	"pcprice-service/internal/normalize"
	"pcprice-service/internal/service"
	"pcprice-service/internal/store"
	"pcprice-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Ingester stores scraped records
type Ingester interface {
	Ingest(ctx context.Context, rec *models.ScrapedProduct) (*service.IngestResult, error)
	IngestAll(ctx context.Context, recs []models.ScrapedProduct) (*service.BulkIngestResult, error)
	Deactivate(ctx context.Context, id int64) error
}

// Catalog serves catalog reads
type Catalog interface {
	ListProducts(ctx context.Context, filter models.ProductFilter) (*service.ProductPage, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	PriceHistory(ctx context.Context, id int64, limit int) ([]models.PriceObservation, error)
	Stores(ctx context.Context) ([]models.StoreCount, error)
	Stats(ctx context.Context) (*models.CatalogStats, error)
}

// Matcher finds and runs product matching
type Matcher interface {
	FindMatches(ctx context.Context, productID int64, threshold float64) ([]matching.Match, error)
	StoredMatches(ctx context.Context, productID int64) ([]service.StoredMatch, error)
	RunBatch(ctx context.Context, componentType string, threshold float64) (*matching.BatchResult, error)
}

// Comparer builds price comparison reports
type Comparer interface {
	CompareByName(ctx context.Context, query, componentType string) (*comparison.Report, error)
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	ingester Ingester
	catalog  Catalog
	matcher  Matcher
	comparer Comparer
	checks   map[string]Pinger
}

// NewHandler creates a new HTTP handler. checks are pinged by /ready.
func NewHandler(ingester Ingester, catalog Catalog, matcher Matcher, comparer Comparer, checks map[string]Pinger) *Handler {
	return &Handler{
		ingester: ingester,
		catalog:  catalog,
		matcher:  matcher,
		comparer: comparer,
		checks:   checks,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/products", h.ingestProduct)
		v1.POST("/products/bulk", h.ingestProducts)
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.DELETE("/products/:id", h.deactivateProduct)
		v1.GET("/products/:id/history", h.getPriceHistory)
		v1.GET("/products/:id/matches", h.getMatches)
		v1.POST("/matches/batch", h.runBatch)
		v1.GET("/compare", h.compare)
		v1.GET("/stores", h.listStores)
		v1.GET("/stats", h.getStats)
	}
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

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// ingestProduct handles a single scraped record
func (h *Handler) ingestProduct(c *gin.Context) {
	var rec models.ScrapedProduct
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	res, err := h.ingester.Ingest(c.Request.Context(), &rec)
	if err != nil {
		respondError(c, "Failed to ingest product", err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

// ingestProducts handles a batch of scraped records. Bad records are
// reported per index and do not fail the request.
func (h *Handler) ingestProducts(c *gin.Context) {
	var recs []models.ScrapedProduct
	if err := c.ShouldBindJSON(&recs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	summary, err := h.ingester.IngestAll(c.Request.Context(), recs)
	if err != nil {
		respondError(c, "Failed to ingest products", err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// listProducts handles filtered, paginated catalog listing
func (h *Handler) listProducts(c *gin.Context) {
	filter := models.ProductFilter{
		ComponentType: c.Query("component_type"),
		Brand:         c.Query("brand"),
		Store:         c.Query("store"),
		Query:         c.Query("q"),
	}

	var err error
	if filter.MinPrice, err = queryDecimal(c, "min_price"); err != nil {
		badQuery(c, "min_price", err)
		return
	}
	if filter.MaxPrice, err = queryDecimal(c, "max_price"); err != nil {
		badQuery(c, "max_price", err)
		return
	}
	if filter.Skip, err = queryInt(c, "skip"); err != nil || filter.Skip < 0 {
		badQuery(c, "skip", err)
		return
	}
	if filter.Limit, err = queryInt(c, "limit"); err != nil || filter.Limit < 0 {
		badQuery(c, "limit", err)
		return
	}

	page, err := h.catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "Failed to list products", err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// getProduct handles get product by ID
func (h *Handler) getProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to get product", err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// deactivateProduct handles a listing removed from its store
func (h *Handler) deactivateProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	if err := h.ingester.Deactivate(c.Request.Context(), id); err != nil {
		respondError(c, "Failed to deactivate product", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// getPriceHistory handles the observation history of a product
func (h *Handler) getPriceHistory(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		badQuery(c, "limit", err)
		return
	}

	history, err := h.catalog.PriceHistory(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, "Failed to get price history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id": id,
		"history":    history,
	})
}

// getMatches returns the stored matches of a product, or scores the
// catalog on the fly when live=true
func (h *Handler) getMatches(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	if c.Query("live") != "true" {
		stored, err := h.matcher.StoredMatches(c.Request.Context(), id)
		if err != nil {
			respondError(c, "Failed to get matches", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product_id": id, "matches": stored})
		return
	}

	threshold, err := queryFloat(c, "threshold")
	if err != nil || threshold < 0 || threshold > 1 {
		badQuery(c, "threshold", err)
		return
	}

	matches, err := h.matcher.FindMatches(c.Request.Context(), id, threshold)
	if err != nil {
		respondError(c, "Failed to find matches", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"product_id": id, "matches": matches})
}

// BatchRequest starts a batch match run
type BatchRequest struct {
	ComponentType string  `json:"component_type"`
	Threshold     float64 `json:"threshold" binding:"gte=0,lte=1"`
}

// runBatch handles a catalog-wide match run
func (h *Handler) runBatch(c *gin.Context) {
	var req BatchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}
	}

	result, err := h.matcher.RunBatch(c.Request.Context(), req.ComponentType, req.Threshold)
	if err != nil {
		respondError(c, "Failed to run match batch", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// compare handles a cross-store price comparison
func (h *Handler) compare(c *gin.Context) {
	report, err := h.comparer.CompareByName(c.Request.Context(), c.Query("name"), c.Query("component_type"))
	if err != nil {
		respondError(c, "Failed to compare prices", err)
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Product not found in at least two stores",
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

// listStores handles the per-store product counts
func (h *Handler) listStores(c *gin.Context) {
	stores, err := h.catalog.Stores(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list stores", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stores": stores})
}

// getStats handles catalog statistics
func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.catalog.Stats(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to get stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// respondError maps service errors onto HTTP status codes
func respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, normalize.ErrInvalidRecord), errors.Is(err, service.ErrEmptyQuery):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrBatchInProgress):
		status = http.StatusConflict
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func productID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid product ID",
		})
		return 0, false
	}
	return id, true
}

func badQuery(c *gin.Context, name string, err error) {
	resp := gin.H{"error": "Invalid query parameter " + name}
	if err != nil {
		resp["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func queryFloat(c *gin.Context, name string) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func queryDecimal(c *gin.Context, name string) (*decimal.Decimal, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
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
