package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vilaverde/imovelhub/app/cfg"
	"github.com/vilaverde/imovelhub/app/codes"
	"github.com/vilaverde/imovelhub/app/database"
	"github.com/vilaverde/imovelhub/app/ingest"
	"github.com/vilaverde/imovelhub/app/maintenance"
	"github.com/vilaverde/imovelhub/app/portals"
)

type Handler struct {
	linkRepo     database.LinkRepository
	captureRepo  database.CaptureRepository
	propertyRepo database.PropertyRepository
	leadRepo     database.LeadRepository
	fetcher      *ingest.Fetcher
	processor    *ingest.Processor
	maint        *maintenance.Service
	codeGen      *codes.Generator
	portalCache  *portals.Cache

	// running guards against overlapping pipeline runs triggered over HTTP.
	running atomic.Bool
}

func NewHandler(linkRepo database.LinkRepository, captureRepo database.CaptureRepository,
	propertyRepo database.PropertyRepository, leadRepo database.LeadRepository,
	fetcher *ingest.Fetcher, processor *ingest.Processor, maint *maintenance.Service,
	codeGen *codes.Generator, portalCache *portals.Cache) *Handler {
	return &Handler{
		linkRepo:     linkRepo,
		captureRepo:  captureRepo,
		propertyRepo: propertyRepo,
		leadRepo:     leadRepo,
		fetcher:      fetcher,
		processor:    processor,
		maint:        maint,
		codeGen:      codeGen,
		portalCache:  portalCache,
	}
}

// TriggerCrawler runs one full pipeline pass synchronously: fetch pending
// links, then process pending captures. In production the trigger requires
// the access key; locally it stays open.
func (h *Handler) TriggerCrawler(c *gin.Context) {
	conf := cfg.Get()

	if conf.IsProduction() && conf.APIAccessKey != "" {
		authMiddleware(conf.APIAccessKey)(c)
		if c.IsAborted() {
			return
		}
	}

	if !h.running.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "Pipeline run already in progress",
			"timestamp": timestamp(),
		})
		return
	}
	defer h.running.Store(false)

	started := time.Now()

	fetchStats, err := h.fetcher.Run(c.Request.Context())
	if err != nil {
		slog.Error("Pipeline fetch pass failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Fetch pass failed",
			"details":   err.Error(),
			"timestamp": timestamp(),
		})
		return
	}

	processStats, err := h.processor.Run(c.Request.Context())
	if err != nil {
		slog.Error("Pipeline process pass failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Process pass failed",
			"details":   err.Error(),
			"timestamp": timestamp(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Pipeline run completed",
		"duration":  time.Since(started).String(),
		"timestamp": timestamp(),
		"fetch": gin.H{
			"links_visited":   fetchStats.LinksVisited,
			"links_completed": fetchStats.LinksCompleted,
			"links_failed":    fetchStats.LinksFailed,
			"pages_saved":     fetchStats.PagesSaved,
			"skipped":         fetchStats.Skipped,
			"duplicates":      fetchStats.Duplicates,
		},
		"process": gin.H{
			"taken":     processStats.Taken,
			"completed": processStats.Completed,
			"ignored":   processStats.Ignored,
			"failed":    processStats.Failed,
			"skipped":   processStats.Skipped,
		},
	})
}

// CrawlerStatus reports the pipeline's current backlog. Only action=status
// is recognized.
func (h *Handler) CrawlerStatus(c *gin.Context) {
	if c.Query("action") != "status" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Unknown action",
			"message": "Use GET /crawler?action=status",
		})
		return
	}

	status := gin.H{
		"running":   h.running.Load(),
		"timestamp": timestamp(),
	}

	if total, err := h.linkRepo.Count(); err == nil {
		status["links_total"] = total
	}
	if pending, err := h.linkRepo.CountPending(); err == nil {
		status["links_pending"] = pending
	}

	if counts, err := h.captureRepo.CountByStatus(); err == nil {
		captures := gin.H{}
		for s, n := range counts {
			captures[string(s)] = n
		}
		status["captures"] = captures
	}

	c.JSON(http.StatusOK, status)
}

func (h *Handler) ListProperties(c *gin.Context) {
	filter, err := parsePropertyFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter", "details": err.Error()})
		return
	}

	properties, err := h.propertyRepo.Search(filter)
	if err != nil {
		slog.Error("Database error", "operation", "search_properties", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	results := make([]gin.H, 0, len(properties))
	for _, p := range properties {
		results = append(results, propertyJSON(p))
	}

	c.JSON(http.StatusOK, gin.H{
		"properties": results,
		"total":      len(results),
	})
}

func (h *Handler) GetPropertyByCode(c *gin.Context) {
	code := c.Param("code")

	property, err := h.propertyRepo.GetByCode(code)
	if err != nil {
		slog.Error("Database error", "operation", "get_property", "code", code, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if property == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}

	c.JSON(http.StatusOK, propertyJSON(*property))
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": timestamp(),
	}

	if count, err := h.propertyRepo.Count(); err == nil {
		health["properties"] = count
	}

	health["loaded_portals"] = h.portalCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := gin.H{
		"timestamp": timestamp(),
	}

	if count, err := h.propertyRepo.Count(); err == nil {
		stats["properties"] = count
	}
	if count, err := h.leadRepo.Count(); err == nil {
		stats["leads"] = count
	}
	if total, err := h.linkRepo.Count(); err == nil {
		stats["links"] = total
	}
	if counts, err := h.captureRepo.CountByStatus(); err == nil {
		captures := gin.H{}
		for s, n := range counts {
			captures[string(s)] = n
		}
		stats["captures"] = captures
	}

	c.JSON(http.StatusOK, stats)
}

// APICreateProperty creates a property directly, bypassing the capture
// pipeline. The code is generated server-side; client-supplied codes are
// not accepted.
func (h *Handler) APICreateProperty(c *gin.Context) {
	var req CreatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	code, err := h.codeGen.Generate(codes.PropertyPrefix, h.propertyRepo)
	if err != nil {
		slog.Error("Failed to generate property code", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate property code"})
		return
	}

	property := database.Property{
		ID:           uuid.NewString(),
		Code:         code,
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		Type:         req.Type,
		Bedrooms:     req.Bedrooms,
		Bathrooms:    req.Bathrooms,
		Area:         req.Area,
		Street:       req.Street,
		Neighborhood: req.Neighborhood,
		City:         req.City,
		State:        req.State,
		Images:       req.Images,
		Features:     req.Features,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
	}

	if err := h.propertyRepo.Insert(property); err != nil {
		slog.Error("Database error", "operation", "insert_property", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	slog.Info("Property created via API", "code", code)
	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"code":      code,
		"timestamp": timestamp(),
	})
}

func (h *Handler) APICreateLead(c *gin.Context) {
	var req CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.PropertyCode != "" {
		property, err := h.propertyRepo.GetByCode(req.PropertyCode)
		if err != nil {
			slog.Error("Database error", "operation", "get_property", "code", req.PropertyCode, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		if property == nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unknown property code"})
			return
		}
	}

	code, err := h.codeGen.Generate(codes.LeadPrefix, h.leadRepo)
	if err != nil {
		slog.Error("Failed to generate lead code", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate lead code"})
		return
	}

	lead := database.Lead{
		ID:           uuid.NewString(),
		Code:         code,
		Name:         req.Name,
		Phone:        req.Phone,
		Email:        req.Email,
		Message:      req.Message,
		PropertyCode: req.PropertyCode,
	}

	if err := h.leadRepo.Insert(lead); err != nil {
		slog.Error("Database error", "operation", "insert_lead", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	slog.Info("Lead created via API", "code", code)
	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"code":      code,
		"timestamp": timestamp(),
	})
}

func (h *Handler) APIResetLinks(c *gin.Context) {
	report, err := h.maint.ResetLinks()
	if err != nil {
		slog.Error("Link reset failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Link reset failed",
			"details":   err.Error(),
			"timestamp": timestamp(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"reset":     report.Reset,
		"seeded":    report.Seeded,
		"timestamp": timestamp(),
	})
}

func (h *Handler) APIBackfillCaptures(c *gin.Context) {
	report, err := h.maint.BackfillCaptureFields()
	if err != nil {
		slog.Error("Capture backfill failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Capture backfill failed",
			"details":   err.Error(),
			"timestamp": timestamp(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"backfill":  report,
		"timestamp": timestamp(),
	})
}

func (h *Handler) APIAuditDates(c *gin.Context) {
	audit, err := h.maint.AuditDateFields()
	if err != nil {
		slog.Error("Date audit failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Date audit failed",
			"details":   err.Error(),
			"timestamp": timestamp(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"audit":     audit,
		"timestamp": timestamp(),
	})
}

// APIListCaptures samples captures by processing status, for side-by-side
// diagnosis of ignored versus completed extractions.
func (h *Handler) APIListCaptures(c *gin.Context) {
	status := database.ProcessingStatus(c.DefaultQuery("status", string(database.StatusIgnored)))
	if !status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status", "details": string(status)})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit", "details": raw})
			return
		}
		limit = n
	}

	var captures []database.RawCapture
	var err error
	switch status {
	case database.StatusIgnored:
		captures, err = h.maint.InspectIgnored(limit)
	case database.StatusCompleted:
		captures, err = h.maint.InspectCompleted(limit)
	default:
		if limit <= 0 {
			limit = 10
		}
		captures, err = h.captureRepo.ListByStatus(status, limit)
	}
	if err != nil {
		slog.Error("Database error", "operation", "list_captures", "status", status, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	results := make([]gin.H, 0, len(captures))
	for _, capture := range captures {
		results = append(results, captureJSON(capture))
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"captures": results,
		"total":    len(results),
	})
}

func parsePropertyFilter(c *gin.Context) (database.PropertyFilter, error) {
	filter := database.PropertyFilter{
		Type:         c.Query("type"),
		City:         c.Query("city"),
		Neighborhood: c.Query("neighborhood"),
		Query:        c.Query("q"),
	}

	var err error
	if filter.MinPrice, err = queryFloat(c, "min_price"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = queryFloat(c, "max_price"); err != nil {
		return filter, err
	}
	if filter.MinArea, err = queryFloat(c, "min_area"); err != nil {
		return filter, err
	}
	if filter.MaxArea, err = queryFloat(c, "max_area"); err != nil {
		return filter, err
	}
	if filter.Bedrooms, err = queryInt(c, "bedrooms"); err != nil {
		return filter, err
	}
	if filter.Bathrooms, err = queryInt(c, "bathrooms"); err != nil {
		return filter, err
	}

	return filter, nil
}

func queryFloat(c *gin.Context, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func queryInt(c *gin.Context, name string) (*int, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
