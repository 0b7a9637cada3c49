package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidScript — документ сценария не читается или не содержит списка реплик.
var ErrInvalidScript = errors.New("script: invalid dialogue script")

// hostSpeakerMarker — метка говорящего, который в сценарии соответствует ведущему.
const hostSpeakerMarker = "speaker 2"

type scriptDocument struct {
	DialogueList *[]scriptLine `json:"dialogue_list"`
}

type scriptLine struct {
	ID           json.RawMessage `json:"id"`
	Speaker      string          `json:"speaker"`
	Content      string          `json:"content"`
	NonEssential bool            `json:"non_essential_speech"`
	TopicID      *int            `json:"topic_id"`
}

// ParseScript строит реплики из внешнего JSON-сценария вида {"dialogue_list": [...]}.
// Говорящий, в имени которого есть "speaker 2", становится ведущим, остальные — гостем.
func ParseScript(data []byte, hostName, guestName string) ([]Utterance, error) {
	var doc scriptDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidScript, err)
	}
	if doc.DialogueList == nil {
		return nil, fmt.Errorf("%w: dialogue_list is missing", ErrInvalidScript)
	}

	out := make([]Utterance, 0, len(*doc.DialogueList))
	seen := make(map[string]struct{}, len(*doc.DialogueList))
	for _, line := range *doc.DialogueList {
		id := lineID(line.ID)
		if _, dup := seen[id]; id == "" || dup {
			// Пустые и повторяющиеся id ломают адресацию реплик
			id = NewID()
		}
		seen[id] = struct{}{}

		role, name := RoleGuest, guestName
		if strings.Contains(strings.ToLower(line.Speaker), hostSpeakerMarker) {
			role, name = RoleHost, hostName
		}
		out = append(out, Utterance{
			ID:             id,
			Role:           role,
			SpeakerName:    name,
			Text:           line.Content,
			Status:         StatusIdle,
			TopicID:        line.TopicID,
			IsNonEssential: line.NonEssential,
		})
	}
	return out, nil
}

// lineID принимает id и числом, и строкой.
func lineID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
