// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由，写操作需要 operator 角色
func RegisterV1Routes(v1 *gin.RouterGroup, h *Handlers, operator gin.HandlerFunc) {
	// 录制控制
	recording := v1.Group("/recording")
	{
		recording.GET("/status", h.Recording.Status)
		recording.POST("/start", operator, h.Recording.Start)
		recording.POST("/stop", operator, h.Recording.Stop)
		recording.POST("/clear-database", operator, h.Recording.ClearDatabase)
	}

	// 检索与分析
	v1.POST("/search", h.Search.Search)
	v1.POST("/analysis", h.Search.Analysis)
	search := v1.Group("/search")
	{
		search.GET("/available-dates", h.Search.AvailableDates)
		search.GET("/stats", h.Search.Stats)
	}

	// 告警规则
	alerts := v1.Group("/alerts")
	{
		alerts.GET("", h.Alert.ListRules)
		alerts.POST("", operator, h.Alert.CreateRule)
		alerts.GET("/history", h.Alert.History)
		alerts.GET("/:id", h.Alert.GetRule)
		alerts.PUT("/:id", operator, h.Alert.UpdateRule)
		alerts.DELETE("/:id", operator, h.Alert.DeleteRule)
	}

	// 分段查询
	segments := v1.Group("/segments")
	{
		segments.GET("", h.Segment.ListSegments)
		segments.GET("/:id", h.Segment.GetSegment)
	}
}
