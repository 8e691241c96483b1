package apihttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"bracket/internal/broker"
	"bracket/internal/logger"
	"bracket/internal/oco"
	"bracket/internal/store/model"

	"github.com/gin-gonic/gin"
)

// GroupService is the slice of the orchestrator the API drives.
type GroupService interface {
	CreateGroup(ctx context.Context, req oco.CreateGroupRequest) (string, error)
	PlaceParent(ctx context.Context, groupID string) (broker.PlaceResult, error)
	CancelGroup(ctx context.Context, groupID string) error
}

// GroupReader is the read-only store slice backing the query endpoints.
type GroupReader interface {
	FindGroup(ctx context.Context, groupID string) (*model.OrderGroupModel, error)
	ListLegs(ctx context.Context, groupID string) ([]model.OrderLegModel, error)
	ListGroups(ctx context.Context, statuses ...model.GroupStatus) ([]model.OrderGroupModel, error)
}

// Ingestor receives raw broker webhook payloads.
type Ingestor interface {
	Ingest(raw []byte)
}

type Router struct {
	groups   GroupService
	store    GroupReader
	ingestor Ingestor
}

func NewRouter(groups GroupService, store GroupReader, ingestor Ingestor) *Router {
	return &Router{groups: groups, store: store, ingestor: ingestor}
}

// Register mounts the API under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/groups", r.handleCreateGroup)
	group.GET("/groups", r.handleListGroups)
	group.GET("/groups/:id", r.handleGetGroup)
	group.POST("/groups/:id/place", r.handlePlaceParent)
	group.POST("/groups/:id/cancel", r.handleCancelGroup)
	if r.ingestor != nil {
		group.POST("/webhook/orders", r.handleOrderWebhook)
	}
}

func (r *Router) handleCreateGroup(c *gin.Context) {
	var req oco.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warnf("[api] create group bind failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	groupID, err := r.groups.CreateGroup(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, oco.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if groupID != "" {
			// Rows exist but the immediate parent placement failed; the
			// caller retries via the place endpoint.
			logger.Warnf("[api] create group placed=false ip=%s group=%s err=%v", c.ClientIP(), groupID, err)
			c.JSON(http.StatusAccepted, gin.H{"group_id": groupID, "error": err.Error()})
			return
		}
		logger.Errorf("[api] create group failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] group created ip=%s group=%s", c.ClientIP(), groupID)
	c.JSON(http.StatusCreated, gin.H{"group_id": groupID})
}

func (r *Router) handlePlaceParent(c *gin.Context) {
	groupID := strings.TrimSpace(c.Param("id"))
	res, err := r.groups.PlaceParent(c.Request.Context(), groupID)
	if err != nil {
		if errors.Is(err, oco.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		logger.Errorf("[api] place parent failed ip=%s group=%s err=%v", c.ClientIP(), groupID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"group_id": groupID, "parent_order_id": res.BrokerOrderID})
}

func (r *Router) handleCancelGroup(c *gin.Context) {
	groupID := strings.TrimSpace(c.Param("id"))
	if err := r.groups.CancelGroup(c.Request.Context(), groupID); err != nil {
		if errors.Is(err, oco.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		logger.Errorf("[api] cancel group failed ip=%s group=%s err=%v", c.ClientIP(), groupID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] group cancel requested ip=%s group=%s", c.ClientIP(), groupID)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleListGroups(c *gin.Context) {
	var statuses []model.GroupStatus
	filter := strings.TrimSpace(c.Query("status"))
	switch strings.ToLower(filter) {
	case "":
	case "active":
		statuses = model.ActiveGroupStatuses()
	default:
		st, ok := statusByName(filter)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + filter})
			return
		}
		statuses = []model.GroupStatus{st}
	}
	groups, err := r.store.ListGroups(c.Request.Context(), statuses...)
	if err != nil {
		logger.Errorf("[api] list groups failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]groupView, 0, len(groups))
	for i := range groups {
		views = append(views, buildGroupView(&groups[i]))
	}
	c.JSON(http.StatusOK, gin.H{"groups": views})
}

func (r *Router) handleGetGroup(c *gin.Context) {
	groupID := strings.TrimSpace(c.Param("id"))
	ctx := c.Request.Context()
	group, err := r.store.FindGroup(ctx, groupID)
	if err != nil {
		logger.Errorf("[api] group detail failed ip=%s group=%s err=%v", c.ClientIP(), groupID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if group == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	legs, err := r.store.ListLegs(ctx, groupID)
	if err != nil {
		logger.Errorf("[api] group legs failed ip=%s group=%s err=%v", c.ClientIP(), groupID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"group": buildGroupView(group),
		"legs":  buildLegViews(legs),
	})
}

// handleOrderWebhook accepts raw broker pushes and acknowledges before
// processing; the dispatcher normalizes and delivers asynchronously.
func (r *Router) handleOrderWebhook(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty payload"})
		return
	}
	r.ingestor.Ingest(raw)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func statusByName(name string) (model.GroupStatus, bool) {
	want := strings.ToUpper(strings.TrimSpace(name))
	for st := model.GroupCreated; st <= model.GroupCancelled; st++ {
		if st.String() == want {
			return st, true
		}
	}
	return 0, false
}
