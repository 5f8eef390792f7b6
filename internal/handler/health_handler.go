package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/exam-duty-api/pkg/response"
)

// HealthHandler reports liveness and dependency readiness.
type HealthHandler struct {
	db    *sqlx.DB
	redis *redis.Client
}

// NewHealthHandler constructs a HealthHandler. The Redis client may be nil
// when caching is disabled.
func NewHealthHandler(db *sqlx.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// Live godoc
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /health/live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{"status": "ok"}, nil)
}

// Ready godoc
// @Summary Readiness probe checking Postgres and Redis
// @Tags health
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /health/ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	status := http.StatusOK

	start := time.Now()
	if err := h.db.PingContext(ctx); err != nil {
		checks["postgres"] = gin.H{"status": "down", "error": err.Error()}
		status = http.StatusServiceUnavailable
	} else {
		checks["postgres"] = gin.H{"status": "up", "latency_ms": time.Since(start).Milliseconds()}
	}

	if h.redis != nil {
		start = time.Now()
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = gin.H{"status": "down", "error": err.Error()}
			status = http.StatusServiceUnavailable
		} else {
			checks["redis"] = gin.H{"status": "up", "latency_ms": time.Since(start).Milliseconds()}
		}
	}

	response.JSON(c, status, checks, nil)
}
