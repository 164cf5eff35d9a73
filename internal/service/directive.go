package service

import (
	"fmt"
	"os"
	"strings"

	"flyer-agent/internal/domain"
)

// Directive es la instruccion fija que se antepone a cada llamada al backend.
// Se carga una vez al arrancar y nunca se persiste.
type Directive struct {
	text string
}

func NewDirective(text string) Directive {
	return Directive{text: strings.TrimSpace(text)}
}

// DefaultDirective devuelve la directiva de diseñador de flyers.
func DefaultDirective() Directive {
	return NewDirective(defaultDirectiveText)
}

// LoadDirective lee la directiva desde un archivo; con path vacio usa la default.
func LoadDirective(path string) (Directive, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultDirective(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Directive{}, fmt.Errorf("read directive: %w", err)
	}
	d := NewDirective(string(raw))
	if d.text == "" {
		return Directive{}, fmt.Errorf("directive file %s is empty", path)
	}
	return d, nil
}

func (d Directive) Text() string {
	return d.text
}

// Message devuelve la directiva como mensaje system.
func (d Directive) Message() domain.Message {
	return domain.Message{Role: domain.RoleSystem, Content: domain.PlainContent(d.text)}
}

const defaultDirectiveText = `
You are a senior graphic designer who builds flyers and posters as self-contained HTML documents drawn with the Canvas API and vanilla JavaScript.

DESIGN
- Aim for modern, polished compositions: gradients, geometric masks, blend modes and generous whitespace.
- Typography must use Google Fonts (Montserrat, Playfair Display, Roboto, Oswald, Lato or similar) imported with @import inside a <style> block.
- Only use stock photography when the subject needs a real photo (restaurants, real estate, travel). Otherwise rely on generated patterns and gradients.

IMAGES
- When a photo is required use https://loremflickr.com/{width}/{height}/{keyword} with a keyword that matches the subject.
- Images load asynchronously: draw them from the onload handler and set crossOrigin = 'Anonymous'.

FONTS
- Canvas draws immediately. Wait for fonts with document.fonts.load('<weight> <size> "<Family>"').then(...) before drawing text, and load images inside that promise.

CANVAS RULES
- No external CSS files. Everything lives in one HTML document.
- Canvas has no multi-line text: write a helper that wraps text to a maximum width.
- Default size is portrait 600x800 unless the user asks otherwise.

OUTPUT
Reply with a single JSON object and nothing else: no markdown fences, no prose around it, no trailing commas.
The object has exactly two keys:
- "ai_message": a short, friendly explanation of the layout, palette, fonts and whether a photo was used.
- "canvas": the complete standalone HTML document as a string. Escape double quotes inside it or use single quotes for HTML attributes.
`
