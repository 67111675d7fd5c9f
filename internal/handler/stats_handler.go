package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/aivon/aivon/internal/orchestrator"
	"github.com/aivon/aivon/internal/pkg/response"
	"github.com/aivon/aivon/internal/repo"
)

type StatsHandler struct {
	orch  *orchestrator.Orchestrator
	chats *repo.ChatRepo
}

func NewStatsHandler(orch *orchestrator.Orchestrator, chats *repo.ChatRepo) *StatsHandler {
	return &StatsHandler{orch: orch, chats: chats}
}

func (h *StatsHandler) Get(c *gin.Context) {
	active, avgLatency := h.orch.Stats()
	total, err := h.chats.TotalMessagesByUser(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	out := gin.H{
		"active_turns":   active,
		"avg_latency_ms": avgLatency.Milliseconds(),
		"total_messages": total,
	}
	if getIsAdmin(c) {
		p50, p90, p99 := h.orch.LatencyPercentiles()
		out["latency_p50_ms"] = p50.Milliseconds()
		out["latency_p90_ms"] = p90.Milliseconds()
		out["latency_p99_ms"] = p99.Milliseconds()
	}
	response.Success(c, out)
}
