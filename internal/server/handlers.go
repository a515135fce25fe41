package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/launcher"
	"github.com/lu-zhengda/launchdeck/internal/news"
	"github.com/lu-zhengda/launchdeck/internal/prefs"
	"github.com/lu-zhengda/launchdeck/internal/reconcile"
)

type groupSection struct {
	Key   apps.GroupKey       `json:"key"`
	Label string              `json:"label"`
	Apps  []apps.InstalledApp `json:"apps"`
}

type appsResponse struct {
	Pinned       []apps.InstalledApp `json:"pinned"`
	Groups       []groupSection      `json:"groups"`
	Counts       map[string]int      `json:"counts"`
	Query        string              `json:"query,omitempty"`
	Fuzzy        bool                `json:"fuzzy,omitempty"`
	ActiveGroup  string              `json:"activeGroup"`
	Mode         apps.Mode           `json:"mode"`
	NavCollapsed bool                `json:"navCollapsed"`
	FromCache    bool                `json:"fromCache"`
	Fallback     bool                `json:"fallback,omitempty"`
}

type stopRequest struct {
	IDs         []string `json:"ids"`
	Recommended bool     `json:"recommended"`
}

type stopResponse struct {
	reconcile.StopReport
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

type groupRequest struct {
	// Group is a group key; empty clears the override.
	Group string `json:"group"`
}

type moveRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

type runtimeResponse struct {
	Summary     reconcile.Summary       `json:"summary"`
	Apps        []launcher.RuntimeEntry `json:"apps"`
	Recommended []string                `json:"recommended"`
	Polling     bool                    `json:"polling"`
}

type newsResponse struct {
	news.Result
	Notice string `json:"notice,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "loaded": s.session.Loaded()})
}

// GET /api/apps?query=&group=  (q is accepted as a short alias)
func (s *Server) listApps(c *gin.Context) {
	active := c.DefaultQuery("group", prefs.AllGroups)
	if active != prefs.AllGroups {
		if _, err := apps.ParseGroup(active); err != nil {
			abortError(c, http.StatusBadRequest, err)
			return
		}
	}

	query, ok := c.GetQuery("query")
	if !ok {
		query = c.Query("q")
	}
	layout := s.session.LayoutFor(query)
	res := s.session.Result()
	resp := appsResponse{
		Pinned:       nonNil(layout.Pinned),
		Counts:       layout.Counts,
		Query:        layout.Query,
		Fuzzy:        layout.Fuzzy,
		ActiveGroup:  active,
		Mode:         s.session.Mode(),
		NavCollapsed: s.session.NavCollapsed(),
		FromCache:    res.FromCache,
		Fallback:     res.Fallback,
	}
	for _, g := range layout.Visible(active) {
		resp.Groups = append(resp.Groups, groupSection{Key: g, Label: g.Label(), Apps: nonNil(layout.Groups[g])})
	}
	if resp.Groups == nil {
		resp.Groups = []groupSection{}
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/apps/rescan?force=1&clearCache=0
func (s *Server) rescan(c *gin.Context) {
	force := queryBool(c, "force", true)
	if queryBool(c, "clearCache", false) && s.clearCache != nil {
		if err := s.clearCache(c.Request.Context()); err != nil {
			abortError(c, http.StatusInternalServerError, err)
			return
		}
	}
	res, err := s.session.Load(c.Request.Context(), force, nil)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/apps/:id/launch
func (s *Server) launchApp(c *gin.Context) {
	out, err := s.session.LaunchID(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, launcher.ErrUnknownApp):
		abortError(c, http.StatusNotFound, err)
	case err != nil:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     out.Message,
			"appId":     out.AppID,
			"requestId": c.GetString(requestIDKey),
		})
	case !out.Launched:
		c.JSON(http.StatusAccepted, out)
	default:
		c.JSON(http.StatusOK, out)
	}
}

// POST /api/apps/stop
func (s *Server) stopApps(c *gin.Context) {
	var req stopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, fmt.Errorf("invalid stop request: %w", err))
		return
	}
	if !s.session.Loop().Active() {
		abortError(c, http.StatusConflict, errors.New("stopping apps is only available on desktop"))
		return
	}

	var report reconcile.StopReport
	if req.Recommended {
		report = s.session.StopRecommended(c.Request.Context())
	} else {
		report = s.session.Stop(c.Request.Context(), req.IDs)
	}
	title, msg := s.session.StopNotice(report)
	if report.Failed > 0 {
		s.logger.Warn("stop batch partially failed",
			zap.Int("requested", report.Requested), zap.Int("failed", report.Failed))
	}
	c.JSON(http.StatusOK, stopResponse{StopReport: report, Title: title, Message: msg})
}

// POST /api/apps/:id/pin
func (s *Server) togglePin(c *gin.Context) {
	id := c.Param("id")
	pinned, err := s.session.TogglePin(id)
	if err != nil {
		abortError(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "pinned": pinned})
}

// PUT /api/apps/:id/group
func (s *Server) setGroup(c *gin.Context) {
	id := c.Param("id")
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, fmt.Errorf("invalid group request: %w", err))
		return
	}
	if _, ok := s.session.App(id); !ok {
		abortError(c, http.StatusNotFound, fmt.Errorf("%w: %s", launcher.ErrUnknownApp, id))
		return
	}
	if req.Group == "" {
		s.session.ClearGroup(id)
		c.JSON(http.StatusOK, gin.H{"id": id, "group": nil})
		return
	}
	group, err := apps.ParseGroup(req.Group)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.session.SetGroup(id, group); err != nil {
		abortError(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "group": group})
}

// POST /api/order/move
func (s *Server) moveApp(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, fmt.Errorf("invalid move request: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"moved": s.session.Move(req.From, req.To)})
}

// POST /api/order/reset
func (s *Server) resetOrder(c *gin.Context) {
	s.session.ResetOrder()
	c.Status(http.StatusNoContent)
}

// GET /api/runtime
func (s *Server) runtime(c *gin.Context) {
	c.JSON(http.StatusOK, runtimeResponse{
		Summary:     s.session.Summary(),
		Apps:        s.session.RuntimeView(),
		Recommended: apps.IDs(s.session.Recommended()),
		Polling:     s.session.Loop().Active(),
	})
}

// GET /api/news/:category
func (s *Server) news(c *gin.Context) {
	category, err := news.ParseCategory(c.Param("category"))
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	res, err := s.session.News(c.Request.Context(), category)
	if err != nil {
		abortError(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, newsResponse{Result: res, Notice: s.session.NewsNotice(res, nil)})
}

func queryBool(c *gin.Context, key string, def bool) bool {
	v, ok := c.GetQuery(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func nonNil(items []apps.InstalledApp) []apps.InstalledApp {
	if items == nil {
		return []apps.InstalledApp{}
	}
	return items
}
