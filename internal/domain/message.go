package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid indica si el rol es uno de los conocidos.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// PartText es el tipo de parte que aporta texto al aplanar.
const PartText = "text"

// Part es una parte tipada de un contenido estructurado.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Content es texto plano o una secuencia ordenada de partes tipadas.
// En JSON se codifica como string o como array de partes.
type Content struct {
	text       string
	parts      []Part
	structured bool
}

func PlainContent(text string) Content {
	return Content{text: text}
}

func PartsContent(parts ...Part) Content {
	cp := make([]Part, len(parts))
	copy(cp, parts)
	return Content{parts: cp, structured: true}
}

// IsStructured indica si el contenido vino como partes.
func (c Content) IsStructured() bool {
	return c.structured
}

// Parts devuelve una copia de las partes (nil para contenido plano).
func (c Content) Parts() []Part {
	if !c.structured {
		return nil
	}
	cp := make([]Part, len(c.parts))
	copy(cp, c.parts)
	return cp
}

// Flatten concatena, en orden, el texto de las partes de tipo text y descarta el resto.
// El contenido plano se devuelve tal cual.
func (c Content) Flatten() string {
	if !c.structured {
		return c.text
	}
	var sb strings.Builder
	for _, p := range c.parts {
		if p.Type == PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.structured {
		parts := c.parts
		if parts == nil {
			parts = []Part{}
		}
		return json.Marshal(parts)
	}
	return json.Marshal(c.text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = Content{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("content string: %w", err)
		}
		*c = PlainContent(s)
		return nil
	case '[':
		var parts []Part
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return fmt.Errorf("content parts: %w", err)
		}
		*c = PartsContent(parts...)
		return nil
	default:
		return fmt.Errorf("content: unexpected json token %q", trimmed[0])
	}
}

// Message es un turno dentro de un hilo. El orden de llegada lo define el store.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Text devuelve el contenido aplanado del mensaje.
func (m Message) Text() string {
	return m.Content.Flatten()
}
