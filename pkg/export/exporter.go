package export

import "fmt"

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Exporter renders a dataset into a downloadable file.
type Exporter interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// Supported formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// ForFormat returns the exporter for format.
func ForFormat(format string) (Exporter, error) {
	switch format {
	case "", FormatCSV:
		return &CSVExporter{BOM: true}, nil
	case FormatPDF:
		return NewPDFExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
