package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"larder/internal/database"
	"larder/internal/etag"
	"larder/internal/models"
	"larder/internal/store"

	"github.com/gin-gonic/gin"
)

// ConsumeRequest is the body for consume and waste operations. Reason is
// required for waste only.
type ConsumeRequest struct {
	Quantity float64 `json:"quantity"`
	Reason   string  `json:"reason,omitempty"`
	Notes    string  `json:"notes,omitempty"`
}

// ListEntryRequest is the body for adding a shopping-list entry
type ListEntryRequest struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit,omitempty"`
}

// Inventory item handlers

func (s *Server) CreateItem(c *gin.Context) {
	var fields models.NewItemFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := s.coordinator.AddItem(c.Param("householdId"), actorID(c), fields)
	if err != nil {
		respondError(c, err)
		return
	}

	setETag(c, item.Version)
	c.JSON(http.StatusCreated, item)
}

func (s *Server) ListItems(c *gin.Context) {
	c.JSON(http.StatusOK, s.coordinator.ListItems(c.Param("householdId")))
}

func (s *Server) GetItem(c *gin.Context) {
	item, token, err := s.coordinator.GetItem(c.Param("householdId"), c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("ETag", quoteToken(token))
	c.JSON(http.StatusOK, item)
}

func (s *Server) UpdateItem(c *gin.Context) {
	presentedToken := ifMatchToken(c)
	if presentedToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "If-Match header required"})
		return
	}

	var patch models.ItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.coordinator.UpdateItem(c.Param("householdId"), c.Param("itemId"), presentedToken, actorID(c), patch)
	if errors.Is(err, store.ErrConflict) {
		// Surface the live token so the caller can re-fetch and retry.
		currentToken := etag.Encode(result.Item.Version)
		c.Header("ETag", quoteToken(currentToken))
		c.JSON(http.StatusConflict, gin.H{
			"error":          "Item was modified by someone else",
			"currentVersion": currentToken,
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	setETag(c, result.Item.Version)
	c.JSON(http.StatusOK, result.Item)
}

func (s *Server) ConsumeItem(c *gin.Context) {
	var req ConsumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	change, err := s.coordinator.ConsumeItem(c.Param("householdId"), c.Param("itemId"), req.Quantity, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	s.respondQuantityChange(c, change)
}

func (s *Server) WasteItem(c *gin.Context) {
	var req ConsumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	change, err := s.coordinator.WasteItem(c.Param("householdId"), c.Param("itemId"), req.Quantity, req.Reason, req.Notes, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	s.respondQuantityChange(c, change)
}

func (s *Server) DeleteItem(c *gin.Context) {
	if err := s.coordinator.DeleteItem(c.Param("householdId"), c.Param("itemId"), actorID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) WasteReport(c *gin.Context) {
	var cutoff time.Time
	if since := c.Query("since"); since != "" {
		parsed, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		cutoff = parsed
	}

	records, err := s.coordinator.WasteReport(c.Param("householdId"), cutoff)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

// Shopping list handlers

func (s *Server) CreateListEntry(c *gin.Context) {
	var req ListEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := s.coordinator.AddListEntry(c.Param("householdId"), req.Name, req.Quantity, req.Unit, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) ListEntries(c *gin.Context) {
	entries, err := s.coordinator.ListEntries(c.Param("householdId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) UpdateListEntry(c *gin.Context) {
	var patch database.ListEntryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := s.coordinator.UpdateListEntry(c.Param("householdId"), c.Param("entryId"), actorID(c), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) DeleteListEntry(c *gin.Context) {
	if err := s.coordinator.DeleteListEntry(c.Param("householdId"), c.Param("entryId"), actorID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Private helpers

func (s *Server) respondQuantityChange(c *gin.Context, change *store.QuantityChange) {
	if !change.Deleted {
		setETag(c, change.Item.Version)
	}
	c.JSON(http.StatusOK, gin.H{"item": change.Item, "deleted": change.Deleted})
}

// respondError maps the typed store failures onto status codes 1:1.
// Nothing here retries; re-fetch-and-reapply after a conflict is the
// caller's decision.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
	case errors.Is(err, store.ErrInsufficientQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient quantity"})
	case errors.Is(err, store.ErrValidation), errors.Is(err, etag.ErrMalformedToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func setETag(c *gin.Context, version int64) {
	c.Header("ETag", quoteToken(etag.Encode(version)))
}

func quoteToken(token string) string {
	return `"` + token + `"`
}

// ifMatchToken extracts the version token from the If-Match header,
// tolerating the quoted form the ETag header hands out
func ifMatchToken(c *gin.Context) string {
	header := c.GetHeader("If-Match")
	header = strings.TrimPrefix(header, "W/")
	return strings.Trim(header, `"`)
}
