package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
)

func (c *cli) render(out io.Writer, payload json.RawMessage, markdownKey string) error {
	if !c.jsonOut && markdownKey != "" {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(payload, &fields); err == nil {
			var text string
			if err := json.Unmarshal(fields[markdownKey], &text); err == nil && text != "" {
				return c.renderMarkdown(out, text)
			}
		}
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(out)
	return err
}

func (c *cli) renderMarkdown(out io.Writer, text string) error {
	style := glamour.WithAutoStyle()
	if c.style != "" && c.style != "auto" {
		style = glamour.WithStandardStyle(c.style)
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(out, rendered)
	return err
}
