package handlers

import (
	"math/rand/v2"
	"net/http"
	"time"

	"example.com/coastwatch/internal/geo"
	"example.com/coastwatch/internal/models"
	"example.com/coastwatch/internal/spatial"
	"example.com/coastwatch/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultRadiusKm = 10.0
	syntheticWindow = 24 * time.Hour
	defaultClusterK = 5
)

// ClusterIndexer receives every clustering run for search
type ClusterIndexer interface {
	IndexClustersAsync(runID uuid.UUID, clusters []models.LocationCluster)
}

// AnalyticsRecorder observes analytics latency
type AnalyticsRecorder interface {
	ObserveAnalytics(operation string, start time.Time)
}

// AnalyticsOptions wires the analytics handler
type AnalyticsOptions struct {
	Analyzer  *spatial.Analyzer
	Clusterer *spatial.Clusterer
	Indexer   ClusterIndexer
	Recorder  AnalyticsRecorder
	Tracer    tracing.Tracer
	DefaultK  int
}

// AnalyticsHandler serves the spatial risk analytics
type AnalyticsHandler struct {
	analyzer  *spatial.Analyzer
	clusterer *spatial.Clusterer
	indexer   ClusterIndexer
	recorder  AnalyticsRecorder
	tracer    tracing.Tracer
	defaultK  int
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(opts AnalyticsOptions) *AnalyticsHandler {
	if opts.Analyzer == nil {
		opts.Analyzer = spatial.NewAnalyzer(nil)
	}
	if opts.Clusterer == nil {
		opts.Clusterer = spatial.NewClusterer(nil)
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Disabled()
	}
	if opts.DefaultK <= 0 {
		opts.DefaultK = defaultClusterK
	}
	return &AnalyticsHandler{
		analyzer:  opts.Analyzer,
		clusterer: opts.Clusterer,
		indexer:   opts.Indexer,
		recorder:  opts.Recorder,
		tracer:    opts.Tracer,
		defaultK:  opts.DefaultK,
	}
}

// EventsRequest carries location events, or asks for synthetic ones inside Bounds
type EventsRequest struct {
	Events    []models.LocationEvent `json:"events" validate:"max=50000,dive"`
	Synthetic int                    `json:"synthetic" validate:"gte=0,lte=10000"`
	Bounds    *geo.BoundingBox       `json:"bounds"`
}

// ClusterRequest asks for a clustering run
type ClusterRequest struct {
	EventsRequest
	K int `json:"k" validate:"gte=0,lte=100"`
}

// ClusterResponse is the result of a clustering run
type ClusterResponse struct {
	RunID    uuid.UUID                `json:"run_id"`
	Clusters []models.LocationCluster `json:"clusters"`
}

// HeatmapRequest asks for a density grid
type HeatmapRequest struct {
	EventsRequest
	Rows int `json:"rows" validate:"gte=0,lte=200"`
	Cols int `json:"cols" validate:"gte=0,lte=200"`
}

// LocationQuery is a point given as query parameters
type LocationQuery struct {
	Lat      *float64 `form:"lat" validate:"required,gte=-90,lte=90"`
	Lon      *float64 `form:"lon" validate:"required,gte=-180,lte=180"`
	RadiusKm *float64 `form:"radius_km" validate:"omitempty,lte=1000"`
}

func (r EventsRequest) resolve() []models.LocationEvent {
	if len(r.Events) > 0 || r.Synthetic == 0 {
		return r.Events
	}
	box := spatial.DefaultRegion
	if r.Bounds != nil && !r.Bounds.IsZero() {
		box = *r.Bounds
	}
	now := time.Now().UTC()
	rng := rand.New(rand.NewPCG(uint64(now.UnixNano()), rand.Uint64()))
	return spatial.SyntheticEvents(box, r.Synthetic, now, syntheticWindow, rng)
}

func (h *AnalyticsHandler) observe(op string, start time.Time) {
	if h.recorder != nil {
		h.recorder.ObserveAnalytics(op, start)
	}
}

// HandleClusters runs k-means over the submitted events
func (h *AnalyticsHandler) HandleClusters(c *gin.Context) {
	start := time.Now()
	defer h.observe("clusters", start)
	txn := h.tracer.StartTransaction("api-cluster-events")
	defer h.tracer.EndTransaction(txn)

	var req ClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := ValidateStruct(req); err != nil {
		badRequest(c, err)
		return
	}

	k := req.K
	if k == 0 {
		k = h.defaultK
	}
	events := req.resolve()
	clusters := h.clusterer.Cluster(events, k)
	runID := uuid.New()
	h.tracer.AddAttribute(txn, "cluster_count", len(clusters))

	if h.indexer != nil && len(clusters) > 0 {
		h.indexer.IndexClustersAsync(runID, clusters)
	}

	log.Debug().Str("run_id", runID.String()).Int("events", len(events)).Int("cluster_count", len(clusters)).Msg("Clustering run complete")
	c.JSON(http.StatusOK, ClusterResponse{RunID: runID, Clusters: clusters})
}

// HandleProximity scores a location against the risk zone catalog
func (h *AnalyticsHandler) HandleProximity(c *gin.Context) {
	start := time.Now()
	defer h.observe("proximity", start)

	q, ok := h.bindLocation(c)
	if !ok {
		return
	}
	radius := defaultRadiusKm
	if q.RadiusKm != nil {
		radius = *q.RadiusKm
	}

	c.JSON(http.StatusOK, h.analyzer.AssessProximity(*q.Lat, *q.Lon, radius))
}

// HandleEvacuation resolves the nearest evacuation routes
func (h *AnalyticsHandler) HandleEvacuation(c *gin.Context) {
	start := time.Now()
	defer h.observe("evacuation", start)

	q, ok := h.bindLocation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.analyzer.NearestEvacuation(*q.Lat, *q.Lon))
}

// HandleHeatmap bins events into a density grid
func (h *AnalyticsHandler) HandleHeatmap(c *gin.Context) {
	start := time.Now()
	defer h.observe("heatmap", start)

	var req HeatmapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := ValidateStruct(req); err != nil {
		badRequest(c, err)
		return
	}

	var box geo.BoundingBox
	if req.Bounds != nil {
		box = *req.Bounds
	}
	c.JSON(http.StatusOK, spatial.Heatmap(req.resolve(), box, req.Rows, req.Cols))
}

// HandleZones returns the risk zone catalog
func (h *AnalyticsHandler) HandleZones(c *gin.Context) {
	c.JSON(http.StatusOK, h.analyzer.Zones())
}

func (h *AnalyticsHandler) bindLocation(c *gin.Context) (LocationQuery, bool) {
	var q LocationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return q, false
	}
	if err := ValidateStruct(q); err != nil {
		badRequest(c, err)
		return q, false
	}
	return q, true
}

// RegisterRoutes registers the handler's routes
func (h *AnalyticsHandler) RegisterRoutes(router gin.IRouter) {
	analytics := router.Group("/analytics")
	analytics.POST("/clusters", h.HandleClusters)
	analytics.GET("/proximity", h.HandleProximity)
	analytics.GET("/evacuation", h.HandleEvacuation)
	analytics.POST("/heatmap", h.HandleHeatmap)
	analytics.GET("/zones", h.HandleZones)
}
