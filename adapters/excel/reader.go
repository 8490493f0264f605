package excel

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gocnt/internal"

	"github.com/xuri/excelize/v2"
)

// DataReader reads demographic tables from Excel or CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewDataReader creates a reader choosing the format from the extension
func NewDataReader(filePath string, logger *internal.Logger) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	if logger == nil {
		logger = internal.NewDefaultLogger()
	}
	return &DataReader{filePath: filePath, fileType: fileType, logger: logger.With("excel")}
}

// ReadData reads the first sheet into header-keyed rows
func (r *DataReader) ReadData() (*ExcelData, error) {
	r.logger.Debug("reading %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// readExcelData reads Sheet1
func (r *DataReader) readExcelData() (*ExcelData, error) {
	start := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		return nil, fmt.Errorf("failed to read Sheet1: %w", err)
	}
	r.logger.Debug("Sheet1 read in %.2fms (%d rows)", float64(time.Since(start).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("Excel file must have at least a header row and one data row")
	}
	return r.processRows(rows)
}

func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file must have at least a header row and one data row")
	}
	return r.processRows(rows)
}

// processRows converts raw string rows into ExcelData format
func (r *DataReader) processRows(rows [][]string) (*ExcelData, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	var dataRows []RawRowData
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		rowData := make(RawRowData)
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	r.logger.Debug("%s file processed (%d columns, %d rows)", strings.ToUpper(r.fileType), len(headers), len(dataRows))
	return &ExcelData{Headers: headers, Rows: dataRows}, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// DetectSubjectColumn picks the column identifying subjects: a commonly
// named one when it is unique, otherwise the first column
func (r *DataReader) DetectSubjectColumn(data *ExcelData) (string, error) {
	if len(data.Rows) == 0 {
		return "", fmt.Errorf("no data rows found")
	}

	common := []string{"id", "subject", "subject_id", "participant_id", "scan"}
	for _, name := range common {
		for _, header := range data.Headers {
			if strings.ToLower(header) == name && r.isValidSubjectColumn(data, header) {
				return header, nil
			}
		}
	}

	if len(data.Headers) > 0 && r.isValidSubjectColumn(data, data.Headers[0]) {
		return data.Headers[0], nil
	}
	return "", fmt.Errorf("could not detect a subject column with unique, non-empty values")
}

// isValidSubjectColumn requires every value to be present and unique
func (r *DataReader) isValidSubjectColumn(data *ExcelData, columnName string) bool {
	seen := make(map[string]bool, len(data.Rows))
	for _, row := range data.Rows {
		value := row[columnName]
		if value == "" || seen[value] {
			return false
		}
		seen[value] = true
	}
	return true
}

// ReadDemographics reads the file and converts every non-ID column to
// numbers. Blank or non-numeric cells become NaN.
func (r *DataReader) ReadDemographics() (*Demographics, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	idColumn, err := r.DetectSubjectColumn(data)
	if err != nil {
		return nil, err
	}

	d := &Demographics{IDColumn: idColumn}
	for _, h := range data.Headers {
		if h != idColumn && h != "" {
			d.Features = append(d.Features, h)
		}
	}
	for _, row := range data.Rows {
		values := make([]float64, len(d.Features))
		for j, h := range d.Features {
			values[j] = parseNumber(row[h])
		}
		d.IDs = append(d.IDs, row[idColumn])
		d.Values = append(d.Values, values)
	}
	r.logger.Info("loaded %d subjects with %d features from %s", len(d.IDs), len(d.Features), filepath.Base(r.filePath))
	return d, nil
}

func parseNumber(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
