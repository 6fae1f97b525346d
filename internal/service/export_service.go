package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"titulacion/backend/internal/dto"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoPublicado  = errors.New("该周期暂无发布的排期，无法导出")
	ErrExportSinFilas     = errors.New("排期中没有填写日期的活动，无法生成日历")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

const icsProductID = "-//titulacion//cronograma//ES"

// ExportService 导出业务接口
//
// 导出内容均来自发布快照，不读取正在编辑的草稿：
//   - Excel (.xlsx)：单个 Sheet，表头区（标题 / 项目 / 周期）+ 活动表
//   - iCalendar (.ics)：每个至少填写一个日期的活动对应一个全天事件
//
// periodo 为空时使用最近一次发布快照。返回值：buf, filename, error
type ExportService interface {
	ExportXLSX(ctx context.Context, variant, periodo string) (*bytes.Buffer, string, error)
	ExportICS(ctx context.Context, variant, periodo string) (*bytes.Buffer, string, error)
}

type exportService struct {
	cronogramas CronogramaService
	logger      *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(cronogramas CronogramaService, logger *zap.Logger) ExportService {
	return &exportService{cronogramas: cronogramas, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportXLSX 发布快照导出为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - A1 标题（合并 A:E）
//   - A2 项目、A3 周期
//   - 第 5 行表头：Nro | Actividad | Responsable | Fecha inicio | Fecha fin
//   - 第 6 行起为活动行

func (s *exportService) ExportXLSX(ctx context.Context, variant, periodo string) (*bytes.Buffer, string, error) {
	d, err := s.snapshot(ctx, variant, periodo)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Cronograma"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 6)
	f.SetColWidth(sheetName, "B", "B", 48)
	f.SetColWidth(sheetName, "C", "C", 28)
	f.SetColWidth(sheetName, "D", "E", 14)

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 13},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 表头区
	f.SetCellValue(sheetName, "A1", d.Titulo)
	f.MergeCell(sheetName, "A1", "E1")
	f.SetCellStyle(sheetName, "A1", "A1", titleStyle)
	f.SetCellValue(sheetName, "A2", "Proyecto")
	f.SetCellValue(sheetName, "B2", d.Proyecto)
	f.SetCellValue(sheetName, "A3", "Periodo")
	f.SetCellValue(sheetName, "B3", d.Periodo)

	// 活动表
	row := 5
	for i, h := range []string{"Nro", "Actividad", "Responsable", "Fecha inicio", "Fecha fin"} {
		f.SetCellValue(sheetName, cell(colName(i), row), h)
	}
	f.SetCellStyle(sheetName, cell("A", row), cell("E", row), headerStyle)

	for _, fila := range d.Filas {
		row++
		f.SetCellValue(sheetName, cell("A", row), fila.Nro)
		f.SetCellValue(sheetName, cell("B", row), fila.Actividad)
		f.SetCellValue(sheetName, cell("C", row), fila.Responsable)
		f.SetCellValue(sheetName, cell("D", row), fila.FechaInicio)
		f.SetCellValue(sheetName, cell("E", row), fila.FechaFin)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	return buf, exportFilename(variant, d.Periodo, "xlsx"), nil
}

// ═══════════════════════════════════════════════════════════
// ExportICS 发布快照导出为 iCalendar
// ═══════════════════════════════════════════════════════════
//
// 全天事件的 DTEND 为排他日期（最后一天 + 1）。
// 只填开始或只填结束的行按单日事件处理；两个日期都未填的行跳过。

func (s *exportService) ExportICS(ctx context.Context, variant, periodo string) (*bytes.Buffer, string, error) {
	d, err := s.snapshot(ctx, variant, periodo)
	if err != nil {
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName(d.Titulo + " " + d.Periodo)

	stamp := time.Now().UTC()
	n := 0
	for _, fila := range d.Filas {
		start, end, ok := filaSpan(fila)
		if !ok {
			continue
		}

		event := cal.AddEvent(fmt.Sprintf("%s-%d-%s@titulacion", variant, fila.Nro, slug(d.Periodo)))
		event.SetDtStampTime(stamp)
		event.SetAllDayStartAt(start)
		event.SetAllDayEndAt(end.AddDate(0, 0, 1))
		event.SetSummary(fmt.Sprintf("%d. %s", fila.Nro, fila.Actividad))
		if fila.Responsable != "" {
			event.SetDescription("Responsable: " + fila.Responsable)
		}
		n++
	}
	if n == 0 {
		return nil, "", ErrExportSinFilas
	}

	buf := bytes.NewBufferString(cal.Serialize())
	return buf, exportFilename(variant, d.Periodo, "ics"), nil
}

// ── 辅助函数 ──

func (s *exportService) snapshot(ctx context.Context, variant, periodo string) (*dto.CronogramaDraft, error) {
	var (
		d   *dto.CronogramaDraft
		err error
	)
	if strings.TrimSpace(periodo) == "" {
		d, err = s.cronogramas.LastPublished(ctx, variant)
	} else {
		d, err = s.cronogramas.PublishedForPeriod(ctx, variant, periodo)
	}
	if errors.Is(err, ErrPublicadoNoEncontro) {
		return nil, ErrExportNoPublicado
	}
	return d, err
}

// filaSpan 行的日期区间；仅有一个日期时起止相同
func filaSpan(f dto.CronogramaFila) (time.Time, time.Time, bool) {
	start, _ := parseDate(f.FechaInicio)
	end, _ := parseDate(f.FechaFin)
	switch {
	case start == nil && end == nil:
		return time.Time{}, time.Time{}, false
	case start == nil:
		start = end
	case end == nil:
		end = start
	}
	return *start, *end, true
}

func exportFilename(variant, periodo, ext string) string {
	return fmt.Sprintf("cronograma_%s_%s.%s", variant, slug(periodo), ext)
}

func slug(s string) string {
	return strings.Join(strings.Fields(s), "_")
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
