package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vilaverde/imovelhub/app/database"
)

// CreatePropertyRequest is the authorized direct-create action, bypassing
// the capture pipeline.
type CreatePropertyRequest struct {
	Title        string   `json:"title" binding:"required"`
	Description  string   `json:"description"`
	Price        float64  `json:"price" binding:"required,gt=0"`
	Type         string   `json:"type"`
	Bedrooms     *int     `json:"bedrooms"`
	Bathrooms    *int     `json:"bathrooms"`
	Area         float64  `json:"area" binding:"required,gt=0"`
	Street       string   `json:"street"`
	Neighborhood string   `json:"neighborhood"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	Images       []string `json:"images"`
	Features     []string `json:"features"`
	ContactName  string   `json:"contact_name"`
	ContactPhone string   `json:"contact_phone"`
	ContactEmail string   `json:"contact_email"`
}

type CreateLeadRequest struct {
	Name         string `json:"name" binding:"required"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Message      string `json:"message"`
	PropertyCode string `json:"property_code"`
}

func propertyJSON(p database.Property) gin.H {
	return gin.H{
		"id":          p.ID,
		"code":        p.Code,
		"title":       p.Title,
		"description": p.Description,
		"price":       p.Price,
		"type":        p.Type,
		"bedrooms":    p.Bedrooms,
		"bathrooms":   p.Bathrooms,
		"area":        p.Area,
		"address": gin.H{
			"street":       p.Street,
			"neighborhood": p.Neighborhood,
			"city":         p.City,
			"state":        p.State,
		},
		"images":   p.Images,
		"features": p.Features,
		"contact": gin.H{
			"name":  p.ContactName,
			"phone": p.ContactPhone,
			"email": p.ContactEmail,
		},
		"created_at": p.CreatedAt,
		"updated_at": p.UpdatedAt,
	}
}

func captureJSON(c database.RawCapture) gin.H {
	return gin.H{
		"id":                    c.ID,
		"source_url":            c.SourceURL,
		"title":                 c.Title,
		"raw_data":              string(c.RawData),
		"needs_processing":      c.NeedsProcessing,
		"processing_status":     c.ProcessingStatus,
		"ignore_reason":         c.IgnoreReason,
		"error":                 c.Error,
		"processed_at":          c.ProcessedAt,
		"processed_property_id": c.ProcessedPropertyID,
		"created_at":            c.CreatedAt,
	}
}

func timestamp() string {
	return time.Now().In(time.Local).Format(time.RFC3339)
}
