package excel

import (
	"fmt"

	"gocnt/domain/stats"

	"github.com/xuri/excelize/v2"
)

// DistributionHeaders are the columns of the distribution table.
var DistributionHeaders = []string{
	"voxel_dis",
	"fdr_pos_corr",
	"fdr_neg_corr",
	"#track_pos_corr_null",
	"#track_neg_corr_null",
	"#track_pos_corr",
	"#track_neg_corr",
}

// WriteDistribution saves the distribution table to Sheet1 of a new
// workbook, one row per length from minLength to the last bin.
func WriteDistribution(path string, d *stats.Distribution, minLength int) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	header := make([]interface{}, len(DistributionHeaders))
	for i, h := range DistributionHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := 2
	for length := max(minLength, 0); length < d.Size(); length++ {
		values := []interface{}{
			length,
			d.FDR[stats.Positive][length],
			d.FDR[stats.Negative][length],
			d.Null[stats.Positive][length],
			d.Null[stats.Negative][length],
			d.Real[stats.Positive][length],
			d.Real[stats.Negative][length],
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
		row++
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
