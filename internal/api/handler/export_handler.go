package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"titulacion/backend/internal/service"
	"titulacion/backend/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportXLSX 导出发布快照为 Excel
// GET /api/v1/cronogramas/:variant/export/xlsx?periodo=xxx
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	h.export(c, h.exportSvc.ExportXLSX, contentTypeXLSX)
}

// ExportICS 导出发布快照为 iCalendar
// GET /api/v1/cronogramas/:variant/export/ics?periodo=xxx
func (h *ExportHandler) ExportICS(c *gin.Context) {
	h.export(c, h.exportSvc.ExportICS, contentTypeICS)
}

type exportFunc func(ctx context.Context, variant, periodo string) (*bytes.Buffer, string, error)

func (h *ExportHandler) export(c *gin.Context, fn exportFunc, contentType string) {
	buf, filename, err := fn(c.Request.Context(), c.Param("variant"), c.Query("periodo"))
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrVariantInvalid):
		response.NotFound(c, 15001, err.Error())
	case errors.Is(err, service.ErrExportNoPublicado):
		response.NotFound(c, 15101, err.Error())
	case errors.Is(err, service.ErrExportSinFilas):
		response.Error(c, http.StatusUnprocessableEntity, 15102, err.Error())
	default:
		response.InternalError(c)
	}
}
