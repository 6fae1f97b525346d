package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"titulacion/backend/config"
	"titulacion/backend/internal/api/handler"
	"titulacion/backend/internal/api/middleware"
	"titulacion/backend/internal/dto"
)

// HealthCheck 依赖健康检查（数据库 Ping 等），nil 表示只报告进程存活
type HealthCheck func(ctx context.Context) error

// Setup 初始化并返回 Gin 路由引擎
// limiter 为 nil 时发布接口不限流
func Setup(cfg *config.Config, h *handler.Handler, limiter middleware.RateLimiter, health HealthCheck, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if err := dto.RegisterValidators(); err != nil {
		logger.Error("注册自定义校验规则失败", zap.Error(err))
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger, "/health", "/metrics"))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 运维 ──
	r.GET("/health", func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 周期模块
		periodos := v1.Group("/periodos")
		{
			periodos.GET("", h.Periodo.ListPeriodos)
			periodos.GET("/activo", h.Periodo.GetActivo)
			periodos.POST("/activo/refresh", h.Periodo.RefreshActivo)
			periodos.PUT("/:id/activar", h.Periodo.ActivatePeriodo)
		}

		// 排期模块（variant: uic | complexivo）
		cronogramas := v1.Group("/cronogramas/:variant")
		{
			cronogramas.GET("", h.Cronograma.GetCronograma)
			cronogramas.PATCH("", h.Cronograma.UpdateCronograma)
			cronogramas.PUT("/periodo", h.Cronograma.SelectPeriodo)
			cronogramas.DELETE("/periodo", h.Cronograma.DeselectPeriodo)

			cronogramas.POST("/filas", h.Cronograma.AddFila)
			cronogramas.PATCH("/filas/:index", h.Cronograma.UpdateFila)
			cronogramas.DELETE("/filas/:index", h.Cronograma.RemoveFila)
			cronogramas.DELETE("/filas/:index/fechas/:campo", h.Cronograma.ResetFecha)

			cronogramas.POST("/publicar",
				middleware.RateLimit(limiter, cfg.Cronograma.PublishRateLimit, time.Minute),
				h.Cronograma.PublishCronograma,
			)
			cronogramas.GET("/publicados", h.Cronograma.GetPublicado)
			cronogramas.GET("/publicados/ultimo", h.Cronograma.GetUltimoPublicado)

			cronogramas.GET("/export/xlsx", h.Export.ExportXLSX)
			cronogramas.GET("/export/ics", h.Export.ExportICS)
		}
	}

	return r
}
