package api

import (
	"errors"
	"net/http"

	"catalog-service/internal/catalogerr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var statusByCode = map[catalogerr.Code]int{
	catalogerr.CodeSkuNotFound:        http.StatusNotFound,
	catalogerr.CodeCollectionNotFound: http.StatusNotFound,
	catalogerr.CodeListingNotFound:    http.StatusNotFound,

	catalogerr.CodeAlreadyExists: http.StatusConflict,
	catalogerr.CodeProductInUse:  http.StatusConflict,

	catalogerr.CodeInvalidQuantity:  http.StatusBadRequest,
	catalogerr.CodeInvalidPrice:     http.StatusBadRequest,
	catalogerr.CodeInvalidInput:     http.StatusBadRequest,
	catalogerr.CodeInvalidPriceList: http.StatusBadRequest,

	catalogerr.CodeNotABundle:        http.StatusUnprocessableEntity,
	catalogerr.CodeSelfReference:     http.StatusUnprocessableEntity,
	catalogerr.CodeCircularReference: http.StatusUnprocessableEntity,
	catalogerr.CodeMaxDepthExceeded:  http.StatusUnprocessableEntity,
	catalogerr.CodePriceListExpired:  http.StatusUnprocessableEntity,
	catalogerr.CodeSkuInactive:       http.StatusUnprocessableEntity,
}

// writeError renders catalog errors with their code and data; anything else
// is an internal failure.
func (h *Handler) writeError(c *gin.Context, err error) {
	var ce *catalogerr.Error
	if errors.As(err, &ce) {
		status, ok := statusByCode[ce.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": ce.AsMap()})
		return
	}

	h.logger.Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "Internal error",
		"details": err.Error(),
	})
}

func badRequest(c *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}
