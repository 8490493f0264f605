package excel

// RawRowData represents a row of raw sheet data as header-keyed strings
type RawRowData map[string]string

// ExcelData represents a complete sheet
type ExcelData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// Demographics is a numeric subject-by-feature table.
type Demographics struct {
	IDColumn string
	Features []string    // titles of every column except the ID column
	IDs      []string    // one per subject, in sheet order
	Values   [][]float64 // [subject][feature], NaN when blank or not numeric
}

// Row returns the feature values of the subject with the given ID.
func (d *Demographics) Row(id string) ([]float64, bool) {
	for i, v := range d.IDs {
		if v == id {
			return d.Values[i], true
		}
	}
	return nil, false
}
