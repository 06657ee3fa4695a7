// Package api exposes the canonical scan model over a read-oriented HTTP
// interface. It holds parsed scans in memory; durable storage is left to
// other consumers of the model.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/openrecon/scanview/pkg/config"
	"github.com/openrecon/scanview/pkg/merge"
	"github.com/openrecon/scanview/pkg/models"
	"github.com/openrecon/scanview/pkg/nmap"
	"github.com/openrecon/scanview/pkg/query"
)

// Server is the query API server
type Server struct {
	router *gin.Engine
	logger *logrus.Logger
	config config.Config
	parser *nmap.Parser

	mu    sync.RWMutex
	scans map[string]*models.Scan
	order []string // Insertion order of scan ids
}

// ScanSummary is the list representation of a stored scan
type ScanSummary struct {
	ID         string `json:"id"`
	Scanner    string `json:"scanner"`
	Args       string `json:"args"`
	TotalHosts int    `json:"total_hosts"`
	HostsUp    int    `json:"hosts_up"`
	HostsDown  int    `json:"hosts_down"`
}

// NewServer creates the API server around a parser and configuration.
func NewServer(cfg config.Config, parser *nmap.Parser, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router: router,
		logger: logger,
		config: cfg,
		parser: parser,
		scans:  make(map[string]*models.Scan),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	if s.config.EnableCORS {
		s.router.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Next()
		})
	}

	apiGroup := s.router.Group("/api")
	{
		apiGroup.GET("/fields", s.handleFields)
		apiGroup.GET("/scans", s.handleListScans)
		apiGroup.POST("/scans", s.handleUploadScan)
		apiGroup.GET("/scans/:id", s.handleGetScan)
		apiGroup.GET("/scans/:id/hosts", s.handleQueryHosts)
		apiGroup.POST("/scans/:id/merge", s.handleMergeScan)
	}
}

// Run starts the server on the configured port.
func (s *Server) Run() error {
	s.logger.Infof("Query API listening on port %s", s.config.APIPort)
	return s.router.Run(":" + s.config.APIPort)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// handleFields serves the field catalog and per-kind operator table that UI
// clients use to build rule pickers.
func (s *Server) handleFields(c *gin.Context) {
	fields := query.Fields()
	operators := make(map[query.FieldKind][]string)
	for _, f := range fields {
		if _, ok := operators[f.Kind]; !ok {
			operators[f.Kind] = query.OperatorsFor(f.Kind)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"fields":    fields,
		"operators": operators,
	})
}

func (s *Server) handleListScans(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]ScanSummary, 0, len(s.order))
	for _, id := range s.order {
		scan := s.scans[id]
		summaries = append(summaries, ScanSummary{
			ID:         scan.ID,
			Scanner:    scan.Scanner,
			Args:       scan.Args,
			TotalHosts: scan.TotalHosts,
			HostsUp:    scan.HostsUp,
			HostsDown:  scan.HostsDown,
		})
	}
	c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleUploadScan(c *gin.Context) {
	raw, ok := s.readBody(c)
	if !ok {
		return
	}

	scan, err := s.parser.Parse(raw)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.scans[scan.ID] = scan
	s.order = append(s.order, scan.ID)
	s.mu.Unlock()

	s.logger.Infof("Parsed scan %s: %d hosts (%d up)", scan.ID, scan.TotalHosts, scan.HostsUp)
	c.JSON(http.StatusCreated, scan)
}

func (s *Server) handleGetScan(c *gin.Context) {
	s.mu.RLock()
	scan, ok := s.scans[c.Param("id")]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
		return
	}
	c.JSON(http.StatusOK, scan)
}

// handleQueryHosts applies filter, search and sort query parameters to the
// hosts of one scan:
//
//	filter: JSON-encoded rule group
//	search: free-text query
//	sort:   comma-separated field[:desc] keys
func (s *Server) handleQueryHosts(c *gin.Context) {
	s.mu.RLock()
	scan, ok := s.scans[c.Param("id")]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
		return
	}

	hosts := scan.Hosts

	if raw := c.Query("filter"); raw != "" {
		var group query.RuleGroup
		if err := json.Unmarshal([]byte(raw), &group); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter: " + err.Error()})
			return
		}
		hosts = query.ApplyFilters(hosts, group)
	}

	hosts = query.ApplySearch(hosts, c.Query("search"))
	hosts = query.ApplySort(hosts, ParseSortExpr(c.Query("sort")))

	c.JSON(http.StatusOK, gin.H{
		"total": len(scan.Hosts),
		"count": len(hosts),
		"hosts": hosts,
	})
}

func (s *Server) handleMergeScan(c *gin.Context) {
	raw, ok := s.readBody(c)
	if !ok {
		return
	}

	incoming, err := s.parser.Parse(raw)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found := s.scans[c.Param("id")]
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
		return
	}

	merged := merge.Scans(existing, incoming)
	merged.ID = existing.ID
	s.scans[merged.ID] = merged

	s.logger.Infof("Merged scan into %s: now %d hosts", merged.ID, merged.TotalHosts)
	c.JSON(http.StatusOK, merged)
}

// readBody reads the request body up to the configured input size ceiling.
func (s *Server) readBody(c *gin.Context) (string, bool) {
	limit := s.config.MaxInputBytes
	if limit <= 0 {
		limit = config.DefaultConfig().MaxInputBytes
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return "", false
	}
	if int64(len(body)) > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "scan input exceeds size limit"})
		return "", false
	}
	return string(body), true
}

// ParseSortExpr parses "ip:asc,open_ports:desc" style sort expressions into
// sort keys. Empty segments are skipped.
func ParseSortExpr(raw string) []query.SortKey {
	var keys []query.SortKey
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, dir := part, "asc"
		if i := strings.IndexByte(part, ':'); i >= 0 {
			field, dir = part[:i], part[i+1:]
		}
		if field == "" {
			continue
		}
		keys = append(keys, query.SortKey{Field: field, Descending: dir == "desc"})
	}
	return keys
}
