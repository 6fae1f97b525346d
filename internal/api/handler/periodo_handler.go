package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"titulacion/backend/internal/service"
	"titulacion/backend/pkg/response"
)

// PeriodoHandler 周期模块 HTTP 处理器
type PeriodoHandler struct {
	periodoSvc service.PeriodoService
}

// NewPeriodoHandler 创建 PeriodoHandler
func NewPeriodoHandler(periodoSvc service.PeriodoService) *PeriodoHandler {
	return &PeriodoHandler{periodoSvc: periodoSvc}
}

// ListPeriodos 获取周期列表
// GET /api/v1/periodos
func (h *PeriodoHandler) ListPeriodos(c *gin.Context) {
	periodos, err := h.periodoSvc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": periodos})
}

// GetActivo 获取当前活动周期（空串表示无）
// GET /api/v1/periodos/activo
func (h *PeriodoHandler) GetActivo(c *gin.Context) {
	response.OK(c, h.periodoSvc.GetActive(c.Request.Context()))
}

// RefreshActivo 从数据库重新读取活动周期
// POST /api/v1/periodos/activo/refresh
func (h *PeriodoHandler) RefreshActivo(c *gin.Context) {
	active, err := h.periodoSvc.Refresh(c.Request.Context())
	if err != nil {
		response.BadGateway(c, 14002, "查询活动周期失败，已按无活动周期处理")
		return
	}

	response.OK(c, active)
}

// ActivatePeriodo 设为活动周期
// PUT /api/v1/periodos/:id/activar
func (h *PeriodoHandler) ActivatePeriodo(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		response.BadRequest(c, 10001, "周期ID无效")
		return
	}

	periodo, err := h.periodoSvc.Activate(c.Request.Context(), id)
	if err != nil {
		h.handlePeriodoError(c, err)
		return
	}

	response.OK(c, periodo)
}

func (h *PeriodoHandler) handlePeriodoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPeriodoNotFound):
		response.NotFound(c, 14001, "周期不存在")
	default:
		response.InternalError(c)
	}
}
