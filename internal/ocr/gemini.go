package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash"

const transcriptionPrompt = `You are performing OCR on a scanned book.

Transcribe ALL text of the document exactly as printed, page by page, preserving:
- Line breaks
- Capitalization and historical spelling
- Punctuation and special characters (æ, ø, å, long s, ligatures)

Separate pages with a single form feed character.
Do not add any interpretation, commentary, headings or explanations.
Return ONLY the transcribed text.`

// Gemini transcribes PDF documents with Google Gemini
type Gemini struct {
	model string
}

// NewGemini creates a Gemini engine. An empty model selects the default.
func NewGemini(model string) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{model: model}
}

// GenerateText sends the PDF to Gemini and writes the transcription
func (g *Gemini) GenerateText(ctx context.Context, inputPath, outputPath string) error {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.SetTemperature(0)

	slog.Debug("Transcribing document with Gemini", "model", g.model, "path", inputPath, "size_bytes", len(data))
	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: "application/pdf", Data: data},
		genai.Text(transcriptionPrompt),
	)
	if err != nil {
		return fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write text: %w", err)
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}
	return b.String(), nil
}
