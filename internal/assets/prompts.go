// Package assets embeds the prompt templates used by the Gemini OCR engine.
//
// Prompts are stored as text files under prompts/ and embedded at compile time.
package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
)

// OCRSystemPrompt instructs the model to act as a plain transcriber.
//
//go:embed prompts/ocr-system.txt
var OCRSystemPrompt string

//go:embed prompts/ocr-frame.txt
var ocrFrameTemplate string

var ocrFramePromptTmpl = template.Must(template.New("ocr-frame").Parse(ocrFrameTemplate))

// FramePromptData holds the dynamic data injected into the frame prompt.
type FramePromptData struct {
	// ToolNames lists vocabulary entries worth spelling carefully. May be empty.
	ToolNames []string
}

// RenderOCRFramePrompt renders the per-frame user prompt.
func RenderOCRFramePrompt(toolNames []string) (string, error) {
	return render(ocrFramePromptTmpl, FramePromptData{ToolNames: toolNames})
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
