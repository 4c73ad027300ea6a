package models

// ToolCategory groups tools in the catalog.
type ToolCategory string

const (
	CategoryPDF   ToolCategory = "pdf"
	CategoryImage ToolCategory = "image"
	CategoryAudio ToolCategory = "audio"
	CategoryVideo ToolCategory = "video"
	CategoryText  ToolCategory = "text"
	CategoryOCR   ToolCategory = "ocr"
	CategoryQR    ToolCategory = "qr"
)

// Tool is a named conversion capability with declared accepted input
// formats and offered output formats. Local tools convert in-process;
// the rest delegate to Endpoint.
type Tool struct {
	ID            string       `json:"id" yaml:"id"`
	Name          string       `json:"name" yaml:"name"`
	Category      ToolCategory `json:"category" yaml:"category"`
	InputFormats  []string     `json:"inputFormats" yaml:"inputFormats"`
	OutputFormats []string     `json:"outputFormats" yaml:"outputFormats"`
	SupportsBatch bool         `json:"supportsBatch" yaml:"supportsBatch"`
	Local         bool         `json:"local" yaml:"local"`
	Endpoint      string       `json:"-" yaml:"endpoint"`
}

// AcceptsFormat reports whether format is a declared output format.
func (t *Tool) AcceptsFormat(format string) bool {
	for _, f := range t.OutputFormats {
		if f == format {
			return true
		}
	}
	return false
}
