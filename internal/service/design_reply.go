package service

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// DesignReply es la respuesta estructurada que pide la directiva.
type DesignReply struct {
	AIMessage string `json:"ai_message"`
	Canvas    string `json:"canvas"`
}

var (
	fenceStartRe = regexp.MustCompile("(?is)^\\s*```(?:json|html)?\\s*")
	fenceEndRe   = regexp.MustCompile("(?is)\\s*```\\s*$")
	aiMessageRe  = regexp.MustCompile(`(?is)"ai_message"\s*:\s*"((?:\\.|[^"\\])*)"`)
)

// ParseDesignReply intenta extraer ai_message y canvas del texto del modelo.
// Tolera fences de markdown, BOM y texto alrededor del objeto JSON.
func ParseDesignReply(raw string) (DesignReply, bool) {
	cleaned := cleanModelJSON(raw)
	if cleaned == "" {
		return DesignReply{}, false
	}

	candidates := []string{firstJSONObject(cleaned), cleaned}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		var reply DesignReply
		if err := json.Unmarshal([]byte(candidate), &reply); err != nil {
			continue
		}
		reply.AIMessage = strings.TrimSpace(reply.AIMessage)
		reply.Canvas = strings.TrimSpace(reply.Canvas)
		if reply.AIMessage == "" && reply.Canvas == "" {
			continue
		}
		return reply, true
	}

	// JSON roto (comillas sin escapar dentro del HTML): al menos rescatamos el mensaje.
	if m := aiMessageRe.FindStringSubmatch(cleaned); len(m) == 2 {
		msg, err := strconv.Unquote(`"` + m[1] + `"`)
		if err != nil {
			msg = m[1]
		}
		if msg = strings.TrimSpace(msg); msg != "" {
			return DesignReply{AIMessage: msg}, true
		}
	}
	return DesignReply{}, false
}

// cleanModelJSON quita fences ```json ... ``` y BOM, dejando el contenido usable.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "\uFEFF")
	s = fenceStartRe.ReplaceAllString(s, "")
	s = fenceEndRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// firstJSONObject devuelve el primer objeto {...} balanceado, respetando strings.
func firstJSONObject(input string) string {
	start := strings.IndexByte(input, '{')
	if start == -1 {
		return ""
	}

	inString, escape := false, false
	depth := 0
	for i := start; i < len(input); i++ {
		ch := input[i]
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}
	return ""
}
