package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/axenix_signal/internal/domain"
)

// writeError replies with the status mapped from a signaling error code.
// Anything else is reported as an internal error without its text.
func writeError(ctx *gin.Context, err error) {
	var se *domain.Error
	if !errors.As(err, &se) {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	ctx.JSON(se.HTTPStatus(), gin.H{"error": se.Message, "code": se.Code})
}
