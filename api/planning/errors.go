package planning

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/pailas/core/allocation"
	coremon "github.com/kilianp07/pailas/core/monitoring"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusFor(kind string) int {
	switch kind {
	case "OrderNotFound", "VesselNotFound":
		return http.StatusNotFound
	case "ValidationError":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// abort writes the error response. Internal errors are reported to the
// monitor and their message is not exposed.
func (h *Handler) abort(c *gin.Context, op string, err error) {
	kind := allocation.ErrorKind(err)
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		coremon.CaptureException(err, map[string]string{"module": "api", "operation": op})
		h.log.Errorf("%s failed: %v", op, err)
		msg = "internal error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: kind, Message: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "ValidationError", Message: msg})
}
