// Package api serves the serve-mode inspection API: dry-run decision
// checks, pattern listings, and the audit trail, over loopback HTTP.
package api

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carlrannaberg/claudekit-sub009/internal/audit"
	"github.com/carlrannaberg/claudekit-sub009/internal/guard"
	"github.com/carlrannaberg/claudekit-sub009/internal/types"
)

// Server handles the inspection API requests.
type Server struct {
	guard   *guard.Guard
	store   *audit.Store // nil when auditing is disabled
	root    string       // default project root for pattern and check queries
	version string
	stale   atomic.Bool
	router  *gin.Engine
}

// NewServer creates the API server. store may be nil.
func NewServer(g *guard.Guard, store *audit.Store, root, version string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply middleware in order
	router.Use(gin.Recovery())
	router.Use(RequestLogMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(BodySizeLimitMiddleware(MaxBodySize))

	s := &Server{
		guard:   g,
		store:   store,
		root:    root,
		version: version,
		router:  router,
	}

	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// MarkStale flags the cached pattern sets as out of date. The watcher
// calls this when an ignore file changes and reload-on-change is off.
func (s *Server) MarkStale() {
	s.stale.Store(true)
}

// Stale reports whether an ignore file changed since the cache was built.
func (s *Server) Stale() bool {
	return s.stale.Load()
}

func (s *Server) registerRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/v1")
	{
		v1.POST("/check", s.handleCheck)
		v1.GET("/patterns", s.handlePatterns)
		v1.POST("/reload", s.handleReload)
		v1.GET("/history", s.handleHistory)
		v1.GET("/stats", s.handleStats)
		v1.GET("/sessions", s.handleSessions)
	}
}

// Success sends a JSON success response
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Error sends a JSON error response
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// CheckRequest is the body for POST /v1/check: the same fields a hook
// payload carries, flattened.
type CheckRequest struct {
	ToolName string `json:"tool_name" binding:"required"`
	FilePath string `json:"file_path"`
	Command  string `json:"command"`
	CWD      string `json:"cwd"`
}

// CheckResponse mirrors guard.Result.
type CheckResponse struct {
	Decision string `json:"decision"`
	Mode     string `json:"mode"`
	Reason   string `json:"reason"`
	Path     string `json:"path,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
	Source   string `json:"source,omitempty"`
}

// handleCheck handles POST /v1/check. Checks through the API are dry
// runs: they are never recorded in the audit trail.
func (s *Server) handleCheck(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error())
		return
	}

	root := req.CWD
	if root == "" {
		root = s.root
	}

	res := s.guard.Check(root, types.ToolKind(req.ToolName), req.FilePath, req.Command)
	Success(c, CheckResponse{
		Decision: string(res.Decision),
		Mode:     string(res.Mode),
		Reason:   res.Reason,
		Path:     res.Path,
		Pattern:  res.Pattern,
		Source:   res.Source,
	})
}

// PatternJSON is the wire form of one ignore rule.
type PatternJSON struct {
	Raw     string `json:"raw"`
	Negated bool   `json:"negated,omitempty"`
	Source  string `json:"source"`
}

// handlePatterns handles GET /v1/patterns?root=
func (s *Server) handlePatterns(c *gin.Context) {
	root := c.Query("root")
	if root == "" {
		root = s.root
	}

	eng := s.guard.Engine(root)
	pats := eng.Patterns()
	out := make([]PatternJSON, 0, len(pats))
	for _, p := range pats {
		out = append(out, PatternJSON{Raw: p.Raw, Negated: p.Negated, Source: p.Source})
	}

	Success(c, gin.H{
		"root":     eng.Root(),
		"sources":  eng.Sources(),
		"fallback": eng.Fallback(),
		"stale":    s.stale.Load(),
		"patterns": out,
	})
}

// handleReload handles POST /v1/reload. Drops the cached engine so the
// next decision re-reads the ignore files from disk.
func (s *Server) handleReload(c *gin.Context) {
	root := c.Query("root")
	if root == "" {
		root = s.root
	}

	s.guard.Invalidate(root)
	s.stale.Store(false)
	Success(c, gin.H{"reloaded": root})
}

// HistoryQuery bounds the audit-trail queries to prevent resource
// exhaustion: at most 7 days back, at most 1000 rows.
type HistoryQuery struct {
	Minutes int `form:"minutes" binding:"omitempty,min=1,max=10080"`
	Limit   int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// handleHistory handles GET /v1/history
func (s *Server) handleHistory(c *gin.Context) {
	if s.store == nil {
		Error(c, http.StatusServiceUnavailable, "audit trail is disabled")
		return
	}

	var query HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		Error(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.store.Recent(query.Minutes, query.Limit)
	if err != nil {
		Error(c, http.StatusInternalServerError, "Failed to read decision history")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	Success(c, entries)
}

// handleStats handles GET /v1/stats
func (s *Server) handleStats(c *gin.Context) {
	if s.store == nil {
		Error(c, http.StatusServiceUnavailable, "audit trail is disabled")
		return
	}

	stats, err := s.store.GetStats()
	if err != nil {
		Error(c, http.StatusInternalServerError, "Failed to read decision stats")
		return
	}
	Success(c, stats)
}

// handleSessions handles GET /v1/sessions
func (s *Server) handleSessions(c *gin.Context) {
	if s.store == nil {
		Error(c, http.StatusServiceUnavailable, "audit trail is disabled")
		return
	}

	var query HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		Error(c, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := s.store.Sessions(query.Minutes, query.Limit)
	if err != nil {
		Error(c, http.StatusInternalServerError, "Failed to read sessions")
		return
	}
	if sessions == nil {
		sessions = []audit.SessionSummary{}
	}

	Success(c, sessions)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(c *gin.Context) {
	Success(c, gin.H{
		"status":        "ok",
		"version":       s.version,
		"stale":         s.stale.Load(),
		"audit_enabled": s.store != nil,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}
