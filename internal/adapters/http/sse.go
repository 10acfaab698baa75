package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// chatMessagePayload mirrors the AI SDK message shape: role plus typed parts.
type chatMessagePayload struct {
	Role  string `json:"role"`
	Parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"parts"`
}

func (m chatMessagePayload) text() string {
	var sb strings.Builder
	for _, part := range m.Parts {
		if part.Type == "text" {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

// extractQueryAndHistory takes the last user message as the query and folds
// up to six prior messages into a compact textual history.
func extractQueryAndHistory(messages []chatMessagePayload) (string, string) {
	if len(messages) == 0 {
		return "", ""
	}

	query := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			query = messages[i].text()
			break
		}
	}

	prior := messages[:len(messages)-1]
	if len(prior) > 6 {
		prior = prior[len(prior)-6:]
	}
	var lines []string
	for _, msg := range prior {
		if text := msg.text(); text != "" {
			lines = append(lines, capitalize(msg.Role)+": "+text)
		}
	}
	return query, strings.Join(lines, "\n")
}

func writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, chunk string) error {
	encoded, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", encoded); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeSSEDone(w http.ResponseWriter, flusher http.Flusher) {
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
