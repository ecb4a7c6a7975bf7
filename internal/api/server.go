// Package api is the HTTP and WebSocket surface. Handlers translate wire
// concerns (routes, ETag headers, status codes, upgrade requests) and leave
// all mutation sequencing to the coordinator.
package api

import (
	"net/http"

	"larder/internal/hub"
	"larder/internal/monitoring"
	"larder/internal/service"

	"github.com/gin-gonic/gin"
)

// Server handles inventory API and fan-out subscription requests
type Server struct {
	router      *gin.Engine
	coordinator *service.Coordinator
	membership  service.Membership
	hub         *hub.Hub
	monitor     *monitoring.Monitor
	metrics     *monitoring.MetricsCollector
	authSecret  []byte
}

// NewServer creates a new API server instance
func NewServer(coordinator *service.Coordinator, membership service.Membership, fanout *hub.Hub, monitor *monitoring.Monitor, metrics *monitoring.MetricsCollector, authSecret []byte) *Server {
	server := &Server{
		router:      gin.Default(),
		coordinator: coordinator,
		membership:  membership,
		hub:         fanout,
		monitor:     monitor,
		metrics:     metrics,
		authSecret:  authSecret,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Larder API is running"})
	})

	s.router.GET("/ws", AuthMiddleware(s.authSecret), s.handleWebSocket)

	v1 := s.router.Group("/api/v1")
	v1.Use(AuthMiddleware(s.authSecret))
	{
		v1.GET("/stats", s.handleStats)

		households := v1.Group("/households/:householdId")
		households.Use(s.requireMembership())
		{
			// Inventory items
			households.POST("/items", s.CreateItem)
			households.GET("/items", s.ListItems)
			households.GET("/items/:itemId", s.GetItem)
			households.PATCH("/items/:itemId", s.UpdateItem)
			households.POST("/items/:itemId/consume", s.ConsumeItem)
			households.POST("/items/:itemId/waste", s.WasteItem)
			households.DELETE("/items/:itemId", s.DeleteItem)

			// Waste reporting
			households.GET("/waste", s.WasteReport)

			// Shopping list
			households.POST("/list", s.CreateListEntry)
			households.GET("/list", s.ListEntries)
			households.PATCH("/list/:entryId", s.UpdateListEntry)
			households.DELETE("/list/:entryId", s.DeleteListEntry)
		}
	}
}

// requireMembership rejects callers that do not belong to the household in
// the route
func (s *Server) requireMembership() gin.HandlerFunc {
	return func(c *gin.Context) {
		householdID := c.Param("householdId")
		ok, err := s.membership.IsMember(actorID(c), householdID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Membership check failed"})
			c.Abort()
			return
		}
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not a member of this household"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// Router returns the Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// handleStats returns the operational counters
func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.Snapshot())
}
