package ai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

// NameSlot is the template variable the record name is substituted into.
const NameSlot = "food_name"

// ErrTemplateSlotMissing indicates a template that does not use the name slot.
var ErrTemplateSlotMissing = errors.New("template does not use the {" + NameSlot + "} slot")

// slotProbe is rendered into a template to confirm the slot is used.
const slotProbe = "\x00slot-probe\x00"

// RenderTemplate substitutes name into the template's {food_name} slot.
// Templates use f-string syntax: literal braces are written doubled.
func RenderTemplate(template, name string) (string, error) {
	pt := prompts.PromptTemplate{
		Template:       template,
		InputVariables: []string{NameSlot},
		TemplateFormat: prompts.TemplateFormatFString,
	}
	out, err := pt.Format(map[string]any{NameSlot: name})
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

// CheckTemplate reports whether template renders and substitutes the name slot.
func CheckTemplate(template string) error {
	out, err := RenderTemplate(template, slotProbe)
	if err != nil {
		return err
	}
	if !strings.Contains(out, slotProbe) {
		return ErrTemplateSlotMissing
	}
	return nil
}
