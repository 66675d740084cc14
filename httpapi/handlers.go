// Package httpapi exposes the tracker's state as a read-only REST surface,
// built the way the teacher's intent-engine API wraps a domain object
// behind a small Handler struct with one gin.HandlerFunc method per route.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seqtrack/seqtrack/internal/persistence"
	"github.com/seqtrack/seqtrack/internal/slices"
	"github.com/seqtrack/seqtrack/internal/tracker"
)

// Handler serves flow and gap state out of a FlowTracker and the
// MemoryAdapter view of recorded gaps. A session that persists to SQLite
// instead still runs the tracker in-process, so the live /flows endpoint
// always reflects the tracker directly rather than round-tripping through
// storage.
type Handler struct {
	flows *tracker.FlowTracker
	gaps  *persistence.MemoryAdapter
}

// NewHandler constructs a Handler. gaps may be nil if the session's
// persistence adapter isn't a MemoryAdapter, in which case GetGaps returns
// an empty list rather than erroring.
func NewHandler(flows *tracker.FlowTracker, gaps *persistence.MemoryAdapter) *Handler {
	return &Handler{flows: flows, gaps: gaps}
}

// Register attaches every route this package serves to engine.
func (h *Handler) Register(engine *gin.Engine) {
	engine.GET("/flows", h.ListFlows)
	engine.GET("/flows/:id", h.GetFlow)
	engine.GET("/gaps", h.ListGaps)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// FlowSummary is the list-view shape of a tracked flow: enough to identify
// it and gauge its health at a glance, without the full Snapshot's timing
// fields. GetFlow returns the full Snapshot for a single flow.
type FlowSummary struct {
	FlowID          string `json:"flow_id"`
	PacketsReceived uint64 `json:"packets_received"`
	LostPackets     uint64 `json:"lost_packets"`
	GapCount        uint64 `json:"gap_count"`
	LateDrops       uint64 `json:"late_drops"`
}

func summarizeFlow(snap tracker.Snapshot) FlowSummary {
	return FlowSummary{
		FlowID:          snap.FlowID.String(),
		PacketsReceived: snap.PacketsReceived,
		LostPackets:     snap.LostPackets,
		GapCount:        snap.GapCount,
		LateDrops:       snap.LateDrops,
	}
}

// ListFlows handles GET /flows.
func (h *Handler) ListFlows(c *gin.Context) {
	summaries := slices.Map(h.flows.Snapshot(), summarizeFlow)
	c.JSON(http.StatusOK, gin.H{
		"flows": summaries,
		"count": len(summaries),
	})
}

// GetFlow handles GET /flows/:id, matching against each tracked flow's
// string identifier (e.g. "macsec{sci=...}", "ipsec-esp{spi=..., dst=...}").
func (h *Handler) GetFlow(c *gin.Context) {
	id := c.Param("id")

	for _, snap := range h.flows.Snapshot() {
		if snap.FlowID.String() == id {
			c.JSON(http.StatusOK, snap)
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{
		"error": "flow not found",
		"id":    id,
	})
}

// ListGaps handles GET /gaps, newest first: Gaps() returns them in
// submission order, and callers watching for fresh loss care most about
// what just happened.
func (h *Handler) ListGaps(c *gin.Context) {
	if h.gaps == nil {
		c.JSON(http.StatusOK, gin.H{"gaps": []tracker.SequenceGap{}, "count": 0})
		return
	}

	gaps := slices.Reverse(h.gaps.Gaps())
	c.JSON(http.StatusOK, gin.H{
		"gaps":  gaps,
		"count": len(gaps),
	})
}
