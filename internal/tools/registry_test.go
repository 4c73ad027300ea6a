package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
)

func TestRegistryDefaults(t *testing.T) {
	r := NewRegistry()

	tool, ok := r.Get("image-convert")
	if !ok {
		t.Fatal("image-convert missing from builtin catalog")
	}
	if !tool.Local {
		t.Error("image-convert should be a local tool")
	}
	if !tool.AcceptsFormat("jpg") {
		t.Error("image-convert should offer jpg output")
	}
	if tool.AcceptsFormat("tiff") {
		t.Error("image-convert should not offer tiff output")
	}

	if len(r.List()) < 7 {
		t.Errorf("expected at least 7 builtin tools, got %d", len(r.List()))
	}

	byCat := r.ByCategory()
	if len(byCat[models.CategoryImage]) != 2 {
		t.Errorf("expected 2 image tools, got %d", len(byCat[models.CategoryImage]))
	}
}

func TestLoadCatalogOverridesAndExtends(t *testing.T) {
	catalog := `
tools:
  - id: image-convert
    name: Image Converter Plus
    category: image
    inputFormats: [jpg, png, heic]
    outputFormats: [jpg, png, webp]
    supportsBatch: true
    local: true
  - id: ebook-convert
    name: Ebook Converter
    category: text
    inputFormats: [epub, mobi]
    outputFormats: [pdf, epub]
    endpoint: /ebook/convert
`
	path := filepath.Join(t.TempDir(), "tools.yaml")
	if err := os.WriteFile(path, []byte(catalog), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	before := len(r.List())

	if err := r.LoadCatalog(path); err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	img, _ := r.Get("image-convert")
	if img.Name != "Image Converter Plus" {
		t.Errorf("override not applied: %s", img.Name)
	}

	ebook, ok := r.Get("ebook-convert")
	if !ok {
		t.Fatal("ebook-convert not registered")
	}
	if ebook.Endpoint != "/ebook/convert" {
		t.Errorf("endpoint = %s", ebook.Endpoint)
	}

	if len(r.List()) != before+1 {
		t.Errorf("expected %d tools, got %d", before+1, len(r.List()))
	}
}

func TestLoadCatalogRejectsIncompleteEntries(t *testing.T) {
	catalog := `
tools:
  - id: broken-tool
    name: Broken
    category: text
`
	path := filepath.Join(t.TempDir(), "tools.yaml")
	os.WriteFile(path, []byte(catalog), 0644)

	r := NewRegistry()
	if err := r.LoadCatalog(path); err == nil {
		t.Error("expected error for entry without formats")
	}
}
