package sink

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/montanaflynn/stats"
	"github.com/xuri/excelize/v2"

	"gasmon/internal/analytics"
	"gasmon/internal/pipeline"
)

// RunSummary captures the end-of-run totals for reporting. It must be
// producible even when zero events were received.
type RunSummary struct {
	RunDuration       time.Duration
	EventsProcessed   int64
	DuplicatesSkipped int64
	FinishedAt        time.Time
}

// EventsPerSecond returns the processing rate for the run.
func (s RunSummary) EventsPerSecond() float64 {
	seconds := s.RunDuration.Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(s.EventsProcessed) / seconds
}

// overallAverage is the mean of the closed window averages, 0 when none.
func overallAverage(averages []pipeline.WindowAverage) float64 {
	if len(averages) == 0 {
		return 0
	}
	values := make([]float64, 0, len(averages))
	for _, average := range averages {
		values = append(values, average.Value)
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return mean
}

// BuildRunReportXLSX renders the run report workbook: a summary sheet plus
// the minute and location averages.
func BuildRunReportXLSX(summary RunSummary, averages []pipeline.WindowAverage, aggregator *analytics.LocationAggregator) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	minuteSheet := "minute_averages"
	locationSheet := "location_averages"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(minuteSheet)
	f.NewSheet(locationSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Gas Monitoring Run")
	_ = f.SetCellValue(summarySheet, "A3", "Finished")
	_ = f.SetCellValue(summarySheet, "B3", summary.FinishedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Run Duration (s)")
	_ = f.SetCellValue(summarySheet, "B4", summary.RunDuration.Seconds())
	_ = f.SetCellValue(summarySheet, "A5", "Events Processed")
	_ = f.SetCellValue(summarySheet, "B5", summary.EventsProcessed)
	_ = f.SetCellValue(summarySheet, "A6", "Duplicates Skipped")
	_ = f.SetCellValue(summarySheet, "B6", summary.DuplicatesSkipped)
	_ = f.SetCellValue(summarySheet, "A7", "Events/s")
	_ = f.SetCellValue(summarySheet, "B7", summary.EventsPerSecond())
	_ = f.SetCellValue(summarySheet, "A8", "Overall Average")
	_ = f.SetCellValue(summarySheet, "B8", overallAverage(averages))

	_ = f.SetCellValue(minuteSheet, "A1", "Window Closed")
	_ = f.SetCellValue(minuteSheet, "B1", "Average Value")
	for i, average := range averages {
		row := i + 2
		_ = f.SetCellValue(minuteSheet, fmt.Sprintf("A%d", row), average.ClosedAt.Format(time.RFC3339))
		_ = f.SetCellValue(minuteSheet, fmt.Sprintf("B%d", row), average.Value)
	}

	_ = f.SetCellValue(locationSheet, "A1", "Location")
	_ = f.SetCellValue(locationSheet, "B1", "X")
	_ = f.SetCellValue(locationSheet, "C1", "Y")
	_ = f.SetCellValue(locationSheet, "D1", "Average Value")
	for i, location := range aggregator.ReportedLocations() {
		row := i + 2
		_ = f.SetCellValue(locationSheet, fmt.Sprintf("A%d", row), location.ID)
		_ = f.SetCellValue(locationSheet, fmt.Sprintf("B%d", row), location.X)
		_ = f.SetCellValue(locationSheet, fmt.Sprintf("C%d", row), location.Y)
		_ = f.SetCellValue(locationSheet, fmt.Sprintf("D%d", row), aggregator.AverageFor(location.ID))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildRunReportPDF renders a one-page PDF run summary with the
// per-location averages table.
func BuildRunReportPDF(summary RunSummary, averages []pipeline.WindowAverage, aggregator *analytics.LocationAggregator) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Gas Monitoring Run Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Finished: %s", summary.FinishedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Run Duration: %.0f s", summary.RunDuration.Seconds()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Events Processed: %d", summary.EventsProcessed))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Duplicates Skipped: %d", summary.DuplicatesSkipped))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Events/s: %.2f", summary.EventsPerSecond()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Overall Average: %.3f", overallAverage(averages)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Location", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "X", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Y", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Average", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, location := range aggregator.ReportedLocations() {
		pdf.CellFormat(50, 6, location.ID, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%g", location.X), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%g", location.Y), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.3f", aggregator.AverageFor(location.ID)), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
