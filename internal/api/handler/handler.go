package handler

import "titulacion/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Periodo    *PeriodoHandler
	Cronograma *CronogramaHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Periodo:    NewPeriodoHandler(svc.Periodo),
		Cronograma: NewCronogramaHandler(svc.Cronograma),
		Export:     NewExportHandler(svc.Export),
	}
}
