// Package planning exposes the eligibility resolver and the allocation
// engine over HTTP.
package planning

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/pailas/core/allocation"
	"github.com/kilianp07/pailas/core/audit"
	"github.com/kilianp07/pailas/core/eligibility"
	"github.com/kilianp07/pailas/core/logger"
	"github.com/kilianp07/pailas/core/model"
	"github.com/kilianp07/pailas/core/occupancy"
	"github.com/kilianp07/pailas/core/store"
	"github.com/kilianp07/pailas/pkg/export"
)

// Resolver lists eligible vessels for an order.
type Resolver interface {
	Resolve(ctx context.Context, orderID int64) ([]eligibility.EligibleVessel, error)
}

// Planner commits order mutations.
type Planner interface {
	Assign(ctx context.Context, orderID int64, vesselID string) (allocation.Assignment, error)
	Schedule(ctx context.Context, orderID int64, start, end *time.Time) (model.ProductionOrder, error)
	Unassign(ctx context.Context, orderID int64) (model.ProductionOrder, error)
	Resync(ctx context.Context) (allocation.ResyncResult, error)
	Tree(ctx context.Context, orderID int64) (model.OrderNode, error)
}

// Pinger reports backend readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of a Handler. Audit and Log may be nil.
type Deps struct {
	Resolver Resolver
	Planner  Planner
	Reader   store.Reader
	Ready    Pinger
	Audit    audit.Store
	Log      logger.Logger
	// Timeout bounds each request; zero means 10s.
	Timeout time.Duration
	// Horizon is the default utilization window; zero means 7 days.
	Horizon time.Duration
	Now     func() time.Time
}

// Handler holds the planning services and provides HTTP handlers.
type Handler struct {
	resolver Resolver
	planner  Planner
	reader   store.Reader
	ready    Pinger
	audit    audit.Store
	log      logger.Logger
	timeout  time.Duration
	horizon  time.Duration
	now      func() time.Time
}

// NewHandler creates a handler from its dependencies.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		resolver: d.Resolver,
		planner:  d.Planner,
		reader:   d.Reader,
		ready:    d.Ready,
		audit:    d.Audit,
		log:      d.Log,
		timeout:  d.Timeout,
		horizon:  d.Horizon,
		now:      d.Now,
	}
	if h.audit == nil {
		h.audit = audit.NopStore{}
	}
	if h.log == nil {
		h.log = logger.NopLogger{}
	}
	if h.timeout <= 0 {
		h.timeout = 10 * time.Second
	}
	if h.horizon <= 0 {
		h.horizon = 7 * 24 * time.Hour
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)

	api := r.Group("/api")
	orders := api.Group("/orders/:id")
	orders.GET("", h.GetOrder)
	orders.GET("/eligible-vessels", h.EligibleVessels)
	orders.PATCH("/vessel", h.AssignVessel)
	orders.DELETE("/vessel", h.UnassignVessel)
	orders.PATCH("/schedule", h.ScheduleOrder)
	orders.GET("/tree", h.OrderTree)

	api.GET("/occupancy", h.Ledger)
	api.POST("/occupancy/resync", h.Resync)
	api.GET("/vessels", h.ListVessels)
	api.GET("/vessels/utilization", h.Utilization)
	api.GET("/vessels/:id/occupancy", h.VesselOccupancy)
	api.GET("/assignments/log", h.AssignmentLog)
}

// NewRouter builds a gin engine with logging, recovery and every route.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(h.log))
	router.Use(Recovery(h.log))
	h.Register(router)
	return router
}

func (h *Handler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "order id must be a positive integer")
		return 0, false
	}
	return id, true
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /ready
func (h *Handler) Ready(c *gin.Context) {
	if h.ready == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.ready.Ping(ctx); err != nil {
		h.log.Warnf("readiness: %v", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Unavailable", Message: "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// GetOrder handles GET /api/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	o, err := h.reader.Order(ctx, id)
	if err != nil {
		h.abort(c, "get_order", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// EligibleVessels handles GET /api/orders/:id/eligible-vessels
func (h *Handler) EligibleVessels(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	vessels, err := h.resolver.Resolve(ctx, id)
	if err != nil {
		h.abort(c, "eligible_vessels", err)
		return
	}
	c.JSON(http.StatusOK, vessels)
}

type assignRequest struct {
	VesselID string `json:"vessel_id"`
}

// AssignVessel handles PATCH /api/orders/:id/vessel
func (h *Handler) AssignVessel(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.VesselID) == "" {
		badRequest(c, "vessel_id is required")
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	res, err := h.planner.Assign(ctx, id, req.VesselID)
	if err != nil {
		h.abort(c, "assign", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// UnassignVessel handles DELETE /api/orders/:id/vessel
func (h *Handler) UnassignVessel(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	o, err := h.planner.Unassign(ctx, id)
	if err != nil {
		h.abort(c, "unassign", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type scheduleRequest struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// ScheduleOrder handles PATCH /api/orders/:id/schedule
func (h *Handler) ScheduleOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body: "+err.Error())
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	o, err := h.planner.Schedule(ctx, id, req.Start, req.End)
	if err != nil {
		h.abort(c, "schedule", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// OrderTree handles GET /api/orders/:id/tree
func (h *Handler) OrderTree(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	node, err := h.planner.Tree(ctx, id)
	if err != nil {
		h.abort(c, "tree", err)
		return
	}
	c.JSON(http.StatusOK, node)
}

// Resync handles POST /api/occupancy/resync
func (h *Handler) Resync(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	res, err := h.planner.Resync(ctx)
	if err != nil {
		h.abort(c, "resync", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListVessels handles GET /api/vessels
func (h *Handler) ListVessels(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	vessels, err := h.reader.Vessels(ctx)
	if err != nil {
		h.abort(c, "list_vessels", err)
		return
	}
	if vessels == nil {
		vessels = []model.Vessel{}
	}
	c.JSON(http.StatusOK, vessels)
}

// VesselOccupancy handles GET /api/vessels/:id/occupancy
func (h *Handler) VesselOccupancy(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	vesselID := c.Param("id")
	if _, err := h.reader.Vessel(ctx, vesselID); err != nil {
		h.abort(c, "vessel_occupancy", err)
		return
	}
	recs, err := h.reader.OccupancyForVessel(ctx, vesselID)
	if err != nil {
		h.abort(c, "vessel_occupancy", err)
		return
	}
	h.writeLedger(c, "vessel_occupancy", recs)
}

// Ledger handles GET /api/occupancy?format=json|csv
func (h *Handler) Ledger(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	recs, err := h.reader.Occupancy(ctx)
	if err != nil {
		h.abort(c, "ledger", err)
		return
	}
	h.writeLedger(c, "ledger", recs)
}

func (h *Handler) writeLedger(c *gin.Context, op string, recs []model.OccupancyRecord) {
	switch format := c.DefaultQuery("format", export.FormatJSON); format {
	case export.FormatJSON:
		if recs == nil {
			recs = []model.OccupancyRecord{}
		}
		c.JSON(http.StatusOK, recs)
	case export.FormatCSV:
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Status(http.StatusOK)
		if err := export.WriteCSV(c.Writer, recs); err != nil {
			h.log.Errorf("%s: write csv: %v", op, err)
		}
	default:
		badRequest(c, "format must be json or csv")
	}
}

// Utilization handles GET /api/vessels/utilization?start=&end=
func (h *Handler) Utilization(c *gin.Context) {
	start, ok := timeQuery(c, "start")
	if !ok {
		return
	}
	end, ok := timeQuery(c, "end")
	if !ok {
		return
	}
	if start.IsZero() {
		start = h.now().UTC().Truncate(time.Hour)
	}
	if end.IsZero() {
		end = start.Add(h.horizon)
	}
	if !end.After(start) {
		badRequest(c, "end must be after start")
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	vessels, err := h.reader.Vessels(ctx)
	if err != nil {
		h.abort(c, "utilization", err)
		return
	}
	recs, err := h.reader.Occupancy(ctx)
	if err != nil {
		h.abort(c, "utilization", err)
		return
	}
	ids := make([]string, len(vessels))
	for i, v := range vessels {
		ids[i] = v.ID
	}
	c.JSON(http.StatusOK, occupancy.Utilization(recs, ids, occupancy.Window{Start: start, End: end}))
}

// AssignmentLog handles GET /api/assignments/log
func (h *Handler) AssignmentLog(c *gin.Context) {
	q := audit.Query{
		VesselID:  c.Query("vessel_id"),
		Operation: c.Query("operation"),
	}
	var ok bool
	if q.Start, ok = timeQuery(c, "start"); !ok {
		return
	}
	if q.End, ok = timeQuery(c, "end"); !ok {
		return
	}
	if s := c.Query("order_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			badRequest(c, "order_id must be an integer")
			return
		}
		q.OrderID = id
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		q.Limit = n
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	recs, err := h.audit.Query(ctx, q)
	if err != nil {
		h.abort(c, "assignment_log", err)
		return
	}
	if recs == nil {
		recs = []audit.Record{}
	}
	c.JSON(http.StatusOK, recs)
}

func timeQuery(c *gin.Context, key string) (time.Time, bool) {
	s := c.Query(key)
	if s == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		badRequest(c, key+" must be RFC3339")
		return time.Time{}, false
	}
	return t, true
}
