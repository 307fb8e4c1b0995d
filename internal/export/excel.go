package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gymslot/internal/domain"
	"gymslot/internal/models"
	"gymslot/internal/schedule"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	markAvailable = "🟢"
	markBooked    = "✅"
	markExpired   = "⌛"
)

// Exporter renders the trainer schedule for a date range into an Excel
// workbook: trainers as rows, dates as columns, one cell per trainer-day
// listing that day's slots with their effective status.
type Exporter struct {
	repo       domain.Repository
	normalizer *schedule.Normalizer
	exportPath string
	logger     *zerolog.Logger
}

func NewExporter(repo domain.Repository, normalizer *schedule.Normalizer, exportPath string, logger *zerolog.Logger) *Exporter {
	return &Exporter{
		repo:       repo,
		normalizer: normalizer,
		exportPath: exportPath,
		logger:     logger,
	}
}

// ExportSchedule writes the workbook and returns the saved file path.
func (e *Exporter) ExportSchedule(ctx context.Context, startDate, endDate time.Time) (string, error) {
	if endDate.Before(startDate) {
		return "", fmt.Errorf("export range end %s before start %s",
			endDate.Format("2006-01-02"), startDate.Format("2006-01-02"))
	}

	if err := os.MkdirAll(e.exportPath, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	trainers, err := e.repo.GetActiveTrainers(ctx)
	if err != nil {
		return "", fmt.Errorf("error getting trainers: %v", err)
	}

	slots, err := e.repo.GetSlotsByDateRange(ctx, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("error getting slots: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Schedule"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Schedule: %s - %s",
		startDate.Format("02.01.2006"), endDate.Format("02.01.2006")))

	dateCols := e.writeDateHeaders(f, sheetName, startDate, endDate)
	trainerRows := e.writeTrainerHeaders(f, sheetName, trainers)
	e.writeSlotCells(f, sheetName, slots, dateCols, trainerRows)

	_ = f.SetColWidth(sheetName, "A", "A", 25)
	for i := 'B'; i <= 'Z'; i++ {
		_ = f.SetColWidth(sheetName, string(i), string(i), 20)
	}

	lastCol := lastColumnName(len(dateCols) + 1)
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("export_%s_to_%s.xlsx",
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"))
	filePath := filepath.Join(e.exportPath, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("Excel file created")
	return filePath, nil
}

func (e *Exporter) writeDateHeaders(f *excelize.File, sheetName string, startDate, endDate time.Time) map[string]int {
	col := 2
	currentDate := startDate
	dateCols := make(map[string]int)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	for !currentDate.After(endDate) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(sheetName, cell, currentDate.Format("02.01"))
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
		dateCols[currentDate.Format("2006-01-02")] = col

		col++
		currentDate = currentDate.AddDate(0, 0, 1)
	}
	return dateCols
}

func (e *Exporter) writeTrainerHeaders(f *excelize.File, sheetName string, trainers []*models.Trainer) map[int64]int {
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	row := 3
	trainerRows := make(map[int64]int)
	for _, trainer := range trainers {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheetName, cell, trainer.FirstName+" "+trainer.LastName)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
		trainerRows[trainer.ID] = row
		row++
	}
	return trainerRows
}

func (e *Exporter) writeSlotCells(
	f *excelize.File, sheetName string,
	slots []*models.Slot,
	dateCols map[string]int,
	trainerRows map[int64]int,
) {
	type cellKey struct {
		trainerID int64
		date      string
	}

	grouped := make(map[cellKey][]*models.Slot)
	for _, slot := range slots {
		key := cellKey{trainerID: slot.TrainerID, date: slot.Date.Format("2006-01-02")}
		grouped[key] = append(grouped[key], slot)
	}

	for key, daySlots := range grouped {
		col, colOK := dateCols[key.date]
		row, rowOK := trainerRows[key.trainerID]
		if !colOK || !rowOK {
			// Slot from an inactive trainer or outside the range.
			continue
		}

		sort.Slice(daySlots, func(i, j int) bool {
			return daySlots[i].StartTime < daySlots[j].StartTime
		})

		var cellValue string
		bookedCount := 0
		for _, slot := range daySlots {
			effective := slot.Status
			if startsAt, err := e.normalizer.Normalize(slot.StartTime, slot.Date); err == nil {
				effective = e.normalizer.Classify(slot.Status, startsAt)
			}
			if effective == models.SlotBooked {
				bookedCount++
			}
			cellValue += fmt.Sprintf("%s %s-%s\n", statusMark(effective), slot.StartTime, slot.EndTime)
		}
		cellValue += fmt.Sprintf("\nBooked: %d/%d", bookedCount, len(daySlots))

		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheetName, cell, cellValue)

		if styleID, err := e.cellStyle(f, bookedCount, len(daySlots)); err == nil {
			_ = f.SetCellStyle(sheetName, cell, cell, styleID)
		}
	}
}

func statusMark(effective string) string {
	switch effective {
	case models.SlotBooked:
		return markBooked
	case models.SlotExpired:
		return markExpired
	default:
		return markAvailable
	}
}

// cellStyle picks a fill by occupancy: white when the day is empty, red
// when fully booked, yellow when partially booked, green when all free.
func (e *Exporter) cellStyle(f *excelize.File, bookedCount, totalSlots int) (int, error) {
	color := "#FFFFFF"
	switch {
	case totalSlots == 0:
	case bookedCount >= totalSlots:
		color = "#FFC7CE"
	case bookedCount > 0:
		color = "#FFEB9C"
	default:
		color = "#C6EFCE"
	}

	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "top",
			WrapText:   true,
		},
	})
}

func lastColumnName(colCount int) string {
	if colCount <= 26 {
		return string(rune('A' + colCount - 1))
	}

	firstChar := string(rune('A' + (colCount-1)/26 - 1))
	secondChar := string(rune('A' + (colCount-1)%26))
	return firstChar + secondChar
}
