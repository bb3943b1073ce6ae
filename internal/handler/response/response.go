package response

import (
	"net/http"

	"ledger-core/pkg/errno"

	"github.com/gin-gonic/gin"
)

// Response defines the standard JSON structure
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

// Success returns a success response with data
func Success(c *gin.Context, data interface{}) {
	if data == nil {
		data = gin.H{} // Return empty object instead of null
	}
	c.JSON(http.StatusOK, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Error returns an error response
// 设备状态字错误额外带上原始状态字，便于前端区分用户拒绝与其他失败
func Error(c *gin.Context, err error) {
	code, msg := errno.Decode(err)
	data := gin.H{"kind": errno.KindOf(err).String()}
	if sw, ok := errno.StatusWord(err); ok {
		data["status"] = sw
	}
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: msg,
		Data:    data,
	})
}
