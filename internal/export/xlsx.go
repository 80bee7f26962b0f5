// Package export renders cached collections as xlsx workbooks.
package export

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/httpx"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/state"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetName is the worksheet title for kind.
func SheetName(kind entity.Kind) string {
	s := kind.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// Workbook writes one sheet with a bold frozen header row and an autofilter.
func Workbook(kind entity.Kind, items []entity.Item) (_ []byte, err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close workbook: %w", cerr)
		}
	}()

	sheet := SheetName(kind)
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	header := EmptyHeader(kind)
	if len(items) > 0 {
		header = items[0].Header()
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("no columns for %s", kind)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return nil, fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetColWidth(sheet, "A", lastCol, 20); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	for i, it := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := it.Row()
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}
	if err := f.AutoFilter(sheet, "A1:"+last, nil); err != nil {
		return nil, fmt.Errorf("autofilter: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Snapshots supplies the collections to export.
type Snapshots interface {
	Snapshot() *state.Snapshot
}

type Handler struct {
	cache  Snapshots
	logger *zap.SugaredLogger
}

func NewHandler(cache Snapshots, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{cache: cache, logger: logger}
}

// Export handles GET /{kind}/export.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	kind, err := entity.ParseKind(r.PathValue("kind"))
	if err != nil {
		httpx.JSONError(w, http.StatusNotFound, "unknown collection", nil)
		return
	}
	body, err := Workbook(kind, h.cache.Snapshot().Items(kind))
	if err != nil {
		httpx.Error(w, h.logger, err, nil)
		return
	}
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, kind))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// EmptyHeader returns the column titles of kind without needing an item.
func EmptyHeader(kind entity.Kind) []string {
	switch kind {
	case entity.KindUser:
		return entity.User{}.Header()
	case entity.KindStudent:
		return entity.Student{}.Header()
	case entity.KindEmployee:
		return entity.Employee{}.Header()
	case entity.KindCourse:
		return entity.Course{}.Header()
	case entity.KindClass:
		return entity.ClassRoom{}.Header()
	case entity.KindPsychoanalyst:
		return entity.Psychoanalyst{}.Header()
	case entity.KindPatient:
		return entity.Patient{}.Header()
	}
	return nil
}
