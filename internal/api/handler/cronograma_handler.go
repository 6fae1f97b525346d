package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"titulacion/backend/internal/dto"
	"titulacion/backend/internal/service"
	"titulacion/backend/pkg/response"
)

// CronogramaHandler 排期模块 HTTP 处理器
type CronogramaHandler struct {
	cronogramaSvc service.CronogramaService
}

// NewCronogramaHandler 创建 CronogramaHandler
func NewCronogramaHandler(cronogramaSvc service.CronogramaService) *CronogramaHandler {
	return &CronogramaHandler{cronogramaSvc: cronogramaSvc}
}

// GetCronograma 获取排期页面状态
// GET /api/v1/cronogramas/:variant
func (h *CronogramaHandler) GetCronograma(c *gin.Context) {
	view, err := h.cronogramaSvc.View(c.Request.Context(), c.Param("variant"))
	if err != nil {
		h.handleCronogramaError(c, err)
		return
	}

	response.OK(c, view)
}

// SelectPeriodo 选择周期，periodo_id 非法时回到未选择状态
// PUT /api/v1/cronogramas/:variant/periodo
func (h *CronogramaHandler) SelectPeriodo(c *gin.Context) {
	var req dto.SelectPeriodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	view, err := h.cronogramaSvc.SelectPeriod(c.Request.Context(), c.Param("variant"), &req)
	if err != nil {
		h.handleCronogramaError(c, err)
		return
	}

	response.OK(c, view)
}

// DeselectPeriodo 取消选择周期
// DELETE /api/v1/cronogramas/:variant/periodo
func (h *CronogramaHandler) DeselectPeriodo(c *gin.Context) {
	view, err := h.cronogramaSvc.Deselect(c.Request.Context(), c.Param("variant"))
	if err != nil {
		h.handleCronogramaError(c, err)
		return
	}

	response.OK(c, view)
}

// UpdateCronograma 修改标题 / 项目
// PATCH /api/v1/cronogramas/:variant
func (h *CronogramaHandler) UpdateCronograma(c *gin.Context) {
	var req dto.UpdateCronogramaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	view, err := h.cronogramaSvc.UpdateHeader(c.Request.Context(), c.Param("variant"), &req)
	if err != nil {
		h.handleCronogramaError(c, err)
		return
	}

	response.OK(c, view)
}

// AddFila 追加空白行
// POST /api/v1/cronogramas/:variant/filas
func (h *CronogramaHandler) AddFila(c *gin.Context) {
	view, err := h.cronogramaSvc.AddRow(c.Request.Context(), c.Param("variant"))
	if err != nil {
		h.handleCronogramaError(c, err)
		return
	}

	response.OK(c, view)
}

// UpdateFila 修改行
// PATCH /api/v1/cronogramas/:variant/filas/:index
func (h *CronogramaHandler) UpdateFila(c *gin.Context) {
	index, ok := parseIndex(c)
	if !ok {
		return
	}

	var req dto.UpdateFilaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	view, err := h.cronogramaSvc.UpdateRow(c.Request.Context(), c.Param("variant"), index, &req)
	if err != nil {
		h.handleCronogramaError(c, err)
		return
	}

	response.OK(c, view)
}

// RemoveFila 删除行
// DELETE /api/v1/cronogramas/:variant/filas/:index
func (h *CronogramaHandler) RemoveFila(c *gin.Context) {
	index, ok := parseIndex(c)
	if !ok {
		return
	}

	view, err := h.cronogramaSvc.RemoveRow(c.Request.Context(), c.Param("variant"), index)
	if err != nil {
		h.handleCronogramaError(c, err)
		return
	}

	response.OK(c, view)
}

// ResetFecha 清除行的开始或结束日期
// DELETE /api/v1/cronogramas/:variant/filas/:index/fechas/:campo
func (h *CronogramaHandler) ResetFecha(c *gin.Context) {
	index, ok := parseIndex(c)
	if !ok {
		return
	}

	view, err := h.cronogramaSvc.ResetRowDate(c.Request.Context(), c.Param("variant"), index, c.Param("campo"))
	if err != nil {
		h.handleCronogramaError(c, err)
		return
	}

	response.OK(c, view)
}

// PublishCronograma 发布排期
// POST /api/v1/cronogramas/:variant/publicar
func (h *CronogramaHandler) PublishCronograma(c *gin.Context) {
	result, err := h.cronogramaSvc.Publish(c.Request.Context(), c.Param("variant"))
	if err != nil {
		h.handleCronogramaError(c, err)
		return
	}

	response.OKMessage(c, result.Message, result.Cronograma)
}

// GetUltimoPublicado 最近一次发布快照
// GET /api/v1/cronogramas/:variant/publicados/ultimo
func (h *CronogramaHandler) GetUltimoPublicado(c *gin.Context) {
	d, err := h.cronogramaSvc.LastPublished(c.Request.Context(), c.Param("variant"))
	if err != nil {
		h.handleCronogramaError(c, err)
		return
	}

	response.OK(c, d)
}

// GetPublicado 指定周期的发布快照
// GET /api/v1/cronogramas/:variant/publicados?periodo=xxx
func (h *CronogramaHandler) GetPublicado(c *gin.Context) {
	periodo := c.Query("periodo")
	if periodo == "" {
		response.BadRequest(c, 10001, "periodo 不能为空")
		return
	}

	d, err := h.cronogramaSvc.PublishedForPeriod(c.Request.Context(), c.Param("variant"), periodo)
	if err != nil {
		h.handleCronogramaError(c, err)
		return
	}

	response.OK(c, d)
}

// ── 内部辅助方法 ──

func parseIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		response.BadRequest(c, 10001, "行索引无效")
		return 0, false
	}
	return index, true
}

func (h *CronogramaHandler) handleCronogramaError(c *gin.Context, err error) {
	var verr *service.ValidationError
	var perr *service.PublishError

	switch {
	case errors.As(err, &verr):
		response.Unprocessable(c, 15009, "排期校验失败", verr.Errors)
	case errors.As(err, &perr):
		response.BadGateway(c, 15010, perr.Message)
	case errors.Is(err, service.ErrVariantInvalid):
		response.NotFound(c, 15001, err.Error())
	case errors.Is(err, service.ErrPeriodoNoSeleccionado):
		response.Conflict(c, 15002, err.Error())
	case errors.Is(err, service.ErrCronogramaReadOnly):
		response.Forbidden(c, 15003, err.Error())
	case errors.Is(err, service.ErrFilaIndexInvalid):
		response.NotFound(c, 15004, err.Error())
	case errors.Is(err, service.ErrFechaInvalida):
		response.BadRequest(c, 15005, err.Error())
	case errors.Is(err, service.ErrFechaBajoMinimo):
		response.Error(c, http.StatusUnprocessableEntity, 15006, err.Error())
	case errors.Is(err, service.ErrCampoFechaInvalido):
		response.BadRequest(c, 15007, err.Error())
	case errors.Is(err, service.ErrPeriodoNoActivo):
		response.Conflict(c, 15008, err.Error())
	case errors.Is(err, service.ErrPublicadoNoEncontro):
		response.NotFound(c, 15011, err.Error())
	default:
		response.InternalError(c)
	}
}
