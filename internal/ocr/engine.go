package ocr

import (
	"context"
	"fmt"
	"strings"
)

// Engine names accepted in the configuration
const (
	EnginePdftotext = "pdftotext"
	EngineGemini    = "gemini"
)

// Engine produces a plain text rendition of a scanned book
type Engine interface {
	// GenerateText reads inputPath and writes the text to outputPath.
	// Callers decide success by the existence of outputPath.
	GenerateText(ctx context.Context, inputPath, outputPath string) error
}

// Config selects and configures an engine
type Config struct {
	Engine  string
	Command string
	Args    []string
	Model   string
}

// New creates the engine named in the configuration
func New(cfg Config) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case "", EnginePdftotext:
		command := cfg.Command
		if command == "" {
			command = EnginePdftotext
		}
		return NewCommand(command, cfg.Args...), nil
	case EngineGemini:
		return NewGemini(cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported OCR engine: %s", cfg.Engine)
	}
}
