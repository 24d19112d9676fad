package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const pingTimeout = 5 * time.Second

// PoolStats is the connection-pool snapshot exposed on the health endpoint.
type PoolStats struct {
	Total int32 `json:"total"`
	Idle  int32 `json:"idle"`
	InUse int32 `json:"in_use"`
	Max   int32 `json:"max"`
}

func poolStats(pool *pgxpool.Pool) PoolStats {
	st := pool.Stat()
	return PoolStats{
		Total: st.TotalConns(),
		Idle:  st.IdleConns(),
		InUse: st.AcquiredConns(),
		Max:   st.MaxConns(),
	}
}

// HealthHandler reports whether the clinic database answers a ping, with
// round-trip latency and pool occupancy for the ops dashboard.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
		defer cancel()

		start := time.Now()
		err := pool.Ping(ctx)
		latency := time.Since(start)

		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"database": "down",
				"error":    err.Error(),
				"pool":     poolStats(pool),
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"database": "up",
			"ping_ms":  latency.Milliseconds(),
			"pool":     poolStats(pool),
		})
	}
}
