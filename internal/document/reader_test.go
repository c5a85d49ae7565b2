package document

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/faults"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReadCodeFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/sum.c", "#include <stdio.h>\nint main() { return 0; }\n")

	r := NewReader(0)
	doc, err := r.Read(dir, "src/sum.c")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if doc.Type != TypeCode {
		t.Errorf("Expected code type, got %q", doc.Type)
	}
	if doc.Source != SourceDisk {
		t.Errorf("Expected disk source, got %q", doc.Source)
	}
	if doc.Truncated {
		t.Error("Small file should not be truncated")
	}
	if !strings.Contains(doc.Text, "stdio.h") {
		t.Errorf("Unexpected content: %q", doc.Text)
	}
}

func TestReadNotFound(t *testing.T) {
	r := NewReader(0)
	_, err := r.Read(t.TempDir(), "nonexistent.ts")
	if !faults.Is(err, faults.CodeNotFound) {
		t.Errorf("Expected NotFound fault, got %v", err)
	}
}

func TestReadDirectoryIsNotFound(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	r := NewReader(0)
	_, err := r.Read(dir, "sub")
	if !faults.Is(err, faults.CodeNotFound) {
		t.Errorf("Expected NotFound fault for directory, got %v", err)
	}
}

func TestReadEscapeIsNotFound(t *testing.T) {
	r := NewReader(0)
	_, err := r.Read(t.TempDir(), "../outside.txt")
	if !faults.Is(err, faults.CodeNotFound) {
		t.Errorf("Expected NotFound fault for escaping path, got %v", err)
	}
}

func TestReadTruncation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.txt", strings.Repeat("x", 200))

	r := NewReader(100)
	doc, err := r.Read(dir, "big.txt")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if !doc.Truncated {
		t.Error("Expected truncated flag")
	}
	if len(doc.Text) != 100 {
		t.Errorf("Expected 100 bytes, got %d", len(doc.Text))
	}
}

func TestCapTextRuneBoundary(t *testing.T) {
	// "héllo": é is two bytes starting at index 1
	text, truncated := capText("héllo", 2)
	if !truncated {
		t.Error("Expected truncation")
	}
	if text != "h" {
		t.Errorf("Expected cut at rune boundary, got %q", text)
	}
}

func TestReadCorruptPDFSalvages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "report.pdf", "not a pdf\x00\x01 but has words")

	r := NewReader(0)
	doc, err := r.Read(dir, "report.pdf")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if doc.Type != TypePDF {
		t.Errorf("Expected pdf type, got %q", doc.Type)
	}
	if !strings.Contains(doc.Text, "has words") {
		t.Errorf("Salvage lost content: %q", doc.Text)
	}
	if strings.ContainsRune(doc.Text, '\x00') {
		t.Error("Salvage kept non-printable bytes")
	}
}

func TestReadDocx(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.docx")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`
	if _, err := w.Write([]byte(docXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	r := NewReader(0)
	doc, err := r.Read(dir, "notes.docx")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if !strings.Contains(doc.Text, "First paragraph.") {
		t.Errorf("Missing first paragraph: %q", doc.Text)
	}
	if !strings.Contains(doc.Text, "Second paragraph.") {
		t.Errorf("Runs not joined: %q", doc.Text)
	}
}

func TestTypeForPath(t *testing.T) {
	tests := []struct {
		path string
		want Type
	}{
		{"main.go", TypeCode},
		{"app.TS", TypeCode},
		{"README.md", TypeText},
		{"package.json", TypeJSON},
		{"spec.pdf", TypePDF},
		{"brief.docx", TypeDocx},
		{"Makefile", TypeText},
	}

	for _, tt := range tests {
		if got := TypeForPath(tt.path); got != tt.want {
			t.Errorf("TypeForPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
