package tts

import (
	"context"
	"fmt"
)

// Request — одно задание синтеза. JobKey однозначно задаёт имя файла клипа в OutputDir/audio.
type Request struct {
	Text      string
	VoiceID   string
	OutputDir string
	JobKey    string
}

// Result — сгенерированный клип.
type Result struct {
	AudioPath string
	Duration  float64 // секунды; 0, если длительность определить не удалось
}

// Synthesizer абстракция TTS: синтезирует речь в файл и возвращает его расположение.
// Повторный вызов с тем же JobKey перезаписывает клип.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Result, error)
}

// GatewayError — отказ сервиса синтеза: сетевой сбой, не-2xx ответ или явный отказ в теле.
// Пользователь может повторить запрос.
type GatewayError struct {
	Provider string
	Status   int // HTTP-статус; 0, если ответа не было
	Detail   string
	Err      error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("%s tts: status=%d: %v", e.Provider, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s tts: %v", e.Provider, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s tts error: status=%d, detail=%s", e.Provider, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s tts error: %s", e.Provider, e.Detail)
}

func (e *GatewayError) Unwrap() error { return e.Err }
