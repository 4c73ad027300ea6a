// Package tools holds the static catalog mapping tool identifiers to their
// accepted input formats, offered output formats and capabilities.
package tools

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
)

// Registry is a read-mostly catalog of conversion tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*models.Tool
	order []string
}

// NewRegistry creates a registry preloaded with the built-in catalog.
func NewRegistry() *Registry {
	r := &Registry{tools: make(map[string]*models.Tool)}
	for _, t := range builtinTools() {
		r.register(t)
	}
	return r
}

// LoadCatalog merges tool definitions from a YAML file into the registry.
// Entries with an existing id replace the built-in definition.
func (r *Registry) LoadCatalog(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading tool catalog: %w", err)
	}

	var doc struct {
		Tools []*models.Tool `yaml:"tools"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing tool catalog: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range doc.Tools {
		if t.ID == "" {
			return fmt.Errorf("tool catalog entry missing id")
		}
		if len(t.InputFormats) == 0 || len(t.OutputFormats) == 0 {
			return fmt.Errorf("tool %s: input and output formats are required", t.ID)
		}
		r.register(t)
	}
	return nil
}

func (r *Registry) register(t *models.Tool) {
	if _, exists := r.tools[t.ID]; !exists {
		r.order = append(r.order, t.ID)
	}
	r.tools[t.ID] = t
}

// Get returns a tool by id.
func (r *Registry) Get(id string) (*models.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id]
	return t, ok
}

// List returns all tools in registration order.
func (r *Registry) List() []*models.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Tool, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tools[id])
	}
	return out
}

// ByCategory returns tools grouped by category, categories sorted by name.
func (r *Registry) ByCategory() map[models.ToolCategory][]*models.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[models.ToolCategory][]*models.Tool)
	for _, id := range r.order {
		t := r.tools[id]
		out[t.Category] = append(out[t.Category], t)
	}
	for _, group := range out {
		sort.Slice(group, func(i, j int) bool { return group[i].Name < group[j].Name })
	}
	return out
}

// builtinTools is the default catalog, mirroring the hosted tool pages.
// A YAML catalog can extend or override it at startup.
func builtinTools() []*models.Tool {
	return []*models.Tool{
		{
			ID:            "pdf-convert",
			Name:          "PDF Converter",
			Category:      models.CategoryPDF,
			InputFormats:  []string{"pdf", "docx", "doc", "txt", "rtf"},
			OutputFormats: []string{"pdf", "docx", "txt"},
			SupportsBatch: true,
			Endpoint:      "/pdf/convert",
		},
		{
			ID:            "image-convert",
			Name:          "Image Converter",
			Category:      models.CategoryImage,
			InputFormats:  []string{"jpg", "jpeg", "png", "gif", "webp", "bmp"},
			OutputFormats: []string{"jpg", "png", "gif"},
			SupportsBatch: true,
			Local:         true,
		},
		{
			ID:            "image-background-remove",
			Name:          "Background Remover",
			Category:      models.CategoryImage,
			InputFormats:  []string{"jpg", "jpeg", "png"},
			OutputFormats: []string{"png"},
			Local:         true,
		},
		{
			ID:            "audio-convert",
			Name:          "Audio Converter",
			Category:      models.CategoryAudio,
			InputFormats:  []string{"mp3", "wav", "ogg", "flac", "m4a"},
			OutputFormats: []string{"mp3", "wav", "ogg"},
			SupportsBatch: true,
			Endpoint:      "/audio/convert",
		},
		{
			ID:            "video-convert",
			Name:          "Video Converter",
			Category:      models.CategoryVideo,
			InputFormats:  []string{"mp4", "avi", "mov", "mkv", "webm"},
			OutputFormats: []string{"mp4", "webm", "gif"},
			Endpoint:      "/video/convert",
		},
		{
			ID:            "text-case",
			Name:          "Text Case Converter",
			Category:      models.CategoryText,
			InputFormats:  []string{"txt", "md"},
			OutputFormats: []string{"txt"},
			SupportsBatch: true,
			Local:         true,
		},
		{
			ID:            "ocr-extract",
			Name:          "OCR Text Extractor",
			Category:      models.CategoryOCR,
			InputFormats:  []string{"pdf", "jpg", "jpeg", "png", "tiff"},
			OutputFormats: []string{"txt", "docx"},
			Endpoint:      "/ocr/extract",
		},
		{
			ID:            "qr-generate",
			Name:          "QR Code Generator",
			Category:      models.CategoryQR,
			InputFormats:  []string{"txt"},
			OutputFormats: []string{"png", "svg"},
			Endpoint:      "/qr/generate",
		},
	}
}
