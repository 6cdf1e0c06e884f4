package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gasmon/internal/analytics"
	"gasmon/internal/pipeline"
)

// WriteMinuteAverages writes one row per closed averaging window with the
// header `date,hour,minute,hours decimal,average value`. Times are local,
// and hours decimal is hour + minute/60 for plotting against a day axis.
func WriteMinuteAverages(w io.Writer, averages []pipeline.WindowAverage) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"date", "hour", "minute", "hours decimal", "average value"}); err != nil {
		return fmt.Errorf("sink: minute averages header: %w", err)
	}
	for _, average := range averages {
		closedAt := average.ClosedAt.Local()
		hoursDecimal := float64(closedAt.Hour()) + float64(closedAt.Minute())/60
		record := []string{
			closedAt.Format("02/01/2006"),
			closedAt.Format("15"),
			closedAt.Format("04"),
			strconv.FormatFloat(hoursDecimal, 'g', -1, 64),
			strconv.FormatFloat(average.Value, 'g', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("sink: minute averages row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteLocationAverages writes the per-location averages with a leading
// write-time line, then the header `x,y,average value`. Rows follow the
// directory order of the reported locations.
func WriteLocationAverages(w io.Writer, aggregator *analytics.LocationAggregator, writtenAt time.Time) error {
	if _, err := fmt.Fprintln(w, writtenAt.Format(time.ANSIC)); err != nil {
		return fmt.Errorf("sink: location averages timestamp: %w", err)
	}
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"x", "y", "average value"}); err != nil {
		return fmt.Errorf("sink: location averages header: %w", err)
	}
	for _, location := range aggregator.ReportedLocations() {
		record := []string{
			strconv.FormatFloat(location.X, 'g', -1, 64),
			strconv.FormatFloat(location.Y, 'g', -1, 64),
			strconv.FormatFloat(aggregator.AverageFor(location.ID), 'g', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("sink: location averages row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// SaveMinuteAveragesCSV writes the per-minute averages file.
func SaveMinuteAveragesCSV(path string, averages []pipeline.WindowAverage) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sink: create %s: %w", path, err)
	}
	defer file.Close()
	return WriteMinuteAverages(file, averages)
}

// SaveLocationAveragesCSV writes the per-location averages file.
func SaveLocationAveragesCSV(path string, aggregator *analytics.LocationAggregator, writtenAt time.Time) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sink: create %s: %w", path, err)
	}
	defer file.Close()
	return WriteLocationAverages(file, aggregator, writtenAt)
}
