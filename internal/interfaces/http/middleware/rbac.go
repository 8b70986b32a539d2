package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"video-sentinel/pkg/utils"
)

// RequireRole 角色检查，认证关闭时放行
func RequireRole(enabled bool, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		role := c.GetString("role")
		if role == "" {
			abortForbidden(c, "missing role in context")
			return
		}
		if !slices.Contains(roles, role) {
			abortForbidden(c, "role not allowed")
			return
		}
		c.Next()
	}
}

// RequireOperator 录制控制、清库与规则修改仅限 operator
func RequireOperator(enabled bool) gin.HandlerFunc {
	return RequireRole(enabled, utils.RoleOperator)
}

// abortForbidden 终止请求并返回 403
func abortForbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"code":     http.StatusForbidden,
		"message":  msg,
		"trace_id": c.GetString("trace_id"),
	})
}
