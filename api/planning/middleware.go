package planning

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/pailas/core/logger"
	coremon "github.com/kilianp07/pailas/core/monitoring"
)

// RequestLogger logs one structured line per request.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		fields := map[string]any{
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"status":     status,
			"latency_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"client_ip":  c.ClientIP(),
			"bytes_out":  c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}
		if status >= http.StatusInternalServerError {
			log.With("request", fields).Errorf("request failed")
			return
		}
		log.Infow("request", fields)
	}
}

// Recovery turns panics into a 500 response and reports them.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		err := fmt.Errorf("panic: %v", rec)
		coremon.CaptureException(err, map[string]string{"module": "api", "path": c.FullPath()})
		log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "InternalError", Message: "internal error"})
	})
}
