package httpapi

import (
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

// writeError aborts the chain so later middleware and handlers do not run.
func writeError(c *gin.Context, status int, code string, msg string) {
	var res errorResponse
	res.Error.Code = code
	res.Error.Message = msg
	c.AbortWithStatusJSON(status, res)
}
