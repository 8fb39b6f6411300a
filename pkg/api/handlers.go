package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dataspace/catalogue-coordinator/pkg/federation"
	"github.com/dataspace/catalogue-coordinator/pkg/log"
)

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if s.cluster != nil {
		resp["nodes"] = s.cluster.NodeSummary()
	}
	c.JSON(http.StatusOK, resp)
}

type offeringLookupRequest struct {
	OfferingsID string `json:"offerings_id"`
}

func (s *Server) handleOfferingLookup(c *gin.Context) {
	var req offeringLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OfferingsID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offerings_id is required"})
		return
	}
	s.respondPlacement(c, req.OfferingsID)
}

func (s *Server) handleOfferingStatus(c *gin.Context) {
	s.respondPlacement(c, c.Param("id"))
}

func (s *Server) respondPlacement(c *gin.Context, id string) {
	status, err := s.placements.Status(c.Request.Context(), id)
	if err != nil {
		if notFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "offering not placed", "offering_id": id})
			return
		}
		log.WithOfferingID(id).Error().Err(err).Msg("placement lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "placement lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"offering_id":     status.OfferingID,
		"assigned_node":   status.AssignedNode,
		"offering_status": status.State,
	})
}

func (s *Server) handleProcess(c *gin.Context) {
	summary, err := s.sweeper.ProcessPending(c.Request.Context())
	if err != nil {
		log.WithComponent("api").Error().Err(err).Msg("offering sweep failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no offerings to process"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// extractQuery accepts the three query carriers: JSON {"query"}, a raw
// application/sparql-query body, and form-encoded query=.
func extractQuery(c *gin.Context) string {
	contentType := c.ContentType()
	switch {
	case strings.Contains(contentType, "application/sparql-query"):
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(body))
	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		return strings.TrimSpace(c.PostForm("query"))
	default:
		var req struct {
			Query string `json:"query"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			return ""
		}
		return strings.TrimSpace(req.Query)
	}
}

func (s *Server) handleSPARQL(c *gin.Context) {
	query := extractQuery(c)
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No query provided"})
		return
	}

	if s.forwarder != nil {
		s.forwardSPARQL(c, query)
		return
	}

	results, err := s.engine.Query(c.Request.Context(), query)
	if err != nil {
		if err == federation.ErrNoNodes {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no live catalogue nodes"})
			return
		}
		log.WithComponent("api").Error().Err(err).Msg("federated query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "federated query failed"})
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) forwardSPARQL(c *gin.Context, query string) {
	forwarded, err := s.forwarder.Forward(c.Request.Context(), query)
	if err != nil {
		if err == federation.ErrNoNodes {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no live catalogue nodes"})
			return
		}
		log.WithComponent("api").Error().Err(err).Msg("upstream forward failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream query endpoint failed"})
		return
	}
	contentType := forwarded.ContentType
	if contentType == "" {
		contentType = "application/sparql-results+json"
	}
	c.Data(forwarded.StatusCode, contentType, forwarded.Body)
}
