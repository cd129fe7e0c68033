package ai

import (
	"strings"

	"github.com/zhouzirui/edge-terminal/backend/internal/model/profile"
)

// ContextPlaceholder is replaced by raw search text in a context template.
const ContextPlaceholder = "{context}"

// Composer concatenates the fixed instruction, optional search context and the user's text
// into the single prompt handed to the model.
type Composer struct {
	System           string
	ContextTemplate  string
	InstructionLabel string
}

// NewComposer returns the composer configured by a profile.
func NewComposer(p profile.Profile) Composer {
	return Composer{
		System:           p.SystemPrompt,
		ContextTemplate:  p.ContextTemplate,
		InstructionLabel: p.InstructionLabel,
	}
}

// ContextBlock wraps search text with the context template.
func (c Composer) ContextBlock(searchText string) string {
	if !strings.Contains(c.ContextTemplate, ContextPlaceholder) {
		return c.ContextTemplate + searchText
	}
	return strings.ReplaceAll(c.ContextTemplate, ContextPlaceholder, searchText)
}

// Compose builds "system\ncontext\nlabel+user". Nothing is truncated or escaped.
func (c Composer) Compose(contextBlock, userText string) string {
	var b strings.Builder
	b.Grow(len(c.System) + len(contextBlock) + len(c.InstructionLabel) + len(userText) + 2)
	b.WriteString(c.System)
	b.WriteString("\n")
	b.WriteString(contextBlock)
	b.WriteString("\n")
	b.WriteString(c.InstructionLabel)
	b.WriteString(userText)
	return b.String()
}
