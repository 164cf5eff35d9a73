package domain

import "unicode/utf8"

const (
	TranscriptRoleUser = "user"
	TranscriptRoleAI   = "ai"

	// PreviewMaxChars limita la vista previa de una sesion (en runas).
	PreviewMaxChars = 50
	// EmptyPreview se muestra cuando el hilo aun no tiene mensajes de usuario.
	EmptyPreview = "New chat"
)

// TranscriptEntry es la proyeccion simple {role, content} de un mensaje.
type TranscriptEntry struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// SessionPreview es la fila de la lista lateral de sesiones.
type SessionPreview struct {
	SessionID string `json:"session_id" yaml:"session_id"`
	Preview   string `json:"preview" yaml:"preview"`
}

// PreviewFromTranscript toma el primer mensaje de usuario y lo trunca.
func PreviewFromTranscript(entries []TranscriptEntry) string {
	for _, e := range entries {
		if e.Role == TranscriptRoleUser {
			return truncateRunes(e.Content, PreviewMaxChars)
		}
	}
	return EmptyPreview
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
