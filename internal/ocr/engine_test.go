package ocr

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCommandGenerateText(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "book.pdf")
	output := filepath.Join(dir, "book.txt")
	if err := os.WriteFile(input, []byte("Der var engang"), 0644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}

	// sh -c receives the input and output paths as $0 and $1
	engine := NewCommand("sh", "-c", `echo converting; cp "$0" "$1"`)
	if err := engine.GenerateText(context.Background(), input, output); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("Expected output file: %v", err)
	}
	if string(data) != "Der var engang" {
		t.Errorf("Expected copied text, got %q", data)
	}
}

func TestCommandReportsExitStatus(t *testing.T) {
	dir := t.TempDir()
	engine := NewCommand("sh", "-c", `echo "Syntax Error: broken PDF" >&2; exit 3`)

	err := engine.GenerateText(context.Background(), filepath.Join(dir, "in.pdf"), filepath.Join(dir, "out.txt"))
	if err == nil {
		t.Fatal("Expected error for failing command")
	}
	if !strings.Contains(err.Error(), "exit code 3") {
		t.Errorf("Expected exit code in error, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken PDF") {
		t.Errorf("Expected stderr in error, got %v", err)
	}
}

func TestCommandMissingBinary(t *testing.T) {
	dir := t.TempDir()
	engine := NewCommand(filepath.Join(dir, "no-such-ocr"))
	if err := engine.GenerateText(context.Background(), "in.pdf", "out.txt"); err == nil {
		t.Error("Expected error for missing binary")
	}
}

func TestNewEngine(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: Config{}},
		{name: "pdftotext", cfg: Config{Engine: "pdftotext", Args: []string{"-layout"}}},
		{name: "gemini", cfg: Config{Engine: "Gemini"}},
		{name: "unknown", cfg: Config{Engine: "tesseract"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if engine == nil {
				t.Error("Expected engine")
			}
		})
	}

	engine, _ := New(Config{Args: []string{"-layout"}})
	cmd, ok := engine.(*Command)
	if !ok {
		t.Fatalf("Expected *Command, got %T", engine)
	}
	if cmd.name != "pdftotext" || len(cmd.args) != 1 || cmd.args[0] != "-layout" {
		t.Errorf("Unexpected command configuration: %+v", cmd)
	}
}

func TestGeminiRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	err := NewGemini("").GenerateText(context.Background(), "in.pdf", "out.txt")
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("Expected missing key error, got %v", err)
	}
}
