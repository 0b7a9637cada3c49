package google

import (
	"BanterStudio/internal/config"
	"BanterStudio/internal/service/tts"
	"context"
	"sort"
	"strings"
	"time"

	gctts "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"go.uber.org/zap"
)

// Client реализует синтез речи через Google Cloud Text-to-Speech и сохраняет результат в mp3.
type Client struct {
	cfg    config.GoogleTTSConfig
	logger *zap.SugaredLogger
}

func New(cfg config.GoogleTTSConfig, logger *zap.SugaredLogger) *Client {
	return &Client{cfg: cfg, logger: logger}
}

// Synthesize выполняет запрос к Google TTS. VoiceID реплики перекрывает голос из конфигурации.
func (c *Client) Synthesize(ctx context.Context, req tts.Request) (tts.Result, error) {
	// Создаём клиента SDK
	ttsClient, err := gctts.NewClient(ctx)
	if err != nil {
		return tts.Result{}, &tts.GatewayError{Provider: "google", Err: err}
	}
	defer ttsClient.Close()

	started := time.Now()
	resp, err := ttsClient.SynthesizeSpeech(ctx, c.request(req))
	if err != nil {
		return tts.Result{}, &tts.GatewayError{Provider: "google", Err: err}
	}
	if c.logger != nil {
		c.logger.Infow("Google TTS synthesize completed", "job", req.JobKey, "took", time.Since(started).String())
	}

	res, err := tts.SaveClip(req.OutputDir, req.JobKey, "mp3", resp.GetAudioContent())
	if err != nil {
		return tts.Result{}, &tts.GatewayError{Provider: "google", Err: err}
	}
	return res, nil
}

func (c *Client) request(req tts.Request) *ttspb.SynthesizeSpeechRequest {
	// Определяем тип входа (text|ssml)
	var input *ttspb.SynthesisInput
	if strings.EqualFold(strings.TrimSpace(c.cfg.InputType), "ssml") {
		input = &ttspb.SynthesisInput{InputSource: &ttspb.SynthesisInput_Ssml{Ssml: req.Text}}
	} else {
		input = &ttspb.SynthesisInput{InputSource: &ttspb.SynthesisInput_Text{Text: req.Text}}
	}

	name := c.cfg.Voice
	if v := strings.TrimSpace(req.VoiceID); v != "" {
		name = v
	}
	voice := &ttspb.VoiceSelectionParams{
		LanguageCode: c.cfg.Language,
		Name:         name,
	}

	// Только MP3
	audio := &ttspb.AudioConfig{
		AudioEncoding: ttspb.AudioEncoding_MP3,
		SpeakingRate:  c.cfg.SpeakingRate,
		Pitch:         c.cfg.Pitch,
		VolumeGainDb:  c.cfg.VolumeGainDb,
	}
	if ep := strings.TrimSpace(c.cfg.EffectsProfileID); ep != "" {
		audio.EffectsProfileId = []string{ep}
	}
	return &ttspb.SynthesizeSpeechRequest{Input: input, Voice: voice, AudioConfig: audio}
}

// Voice — голос Google TTS, доступный для языка.
type Voice struct {
	Name       string   `json:"name"`
	Languages  []string `json:"languages"`
	Gender     string   `json:"gender"`
	SampleRate int32    `json:"sampleRate"`
}

// Voices возвращает голоса для языка; пустой язык берётся из конфигурации.
func (c *Client) Voices(ctx context.Context, language string) ([]Voice, error) {
	if strings.TrimSpace(language) == "" {
		language = c.cfg.Language
	}
	ttsClient, err := gctts.NewClient(ctx)
	if err != nil {
		return nil, &tts.GatewayError{Provider: "google", Err: err}
	}
	defer ttsClient.Close()

	resp, err := ttsClient.ListVoices(ctx, &ttspb.ListVoicesRequest{LanguageCode: language})
	if err != nil {
		return nil, &tts.GatewayError{Provider: "google", Err: err}
	}
	return voicesFrom(resp.GetVoices()), nil
}

func voicesFrom(in []*ttspb.Voice) []Voice {
	out := make([]Voice, 0, len(in))
	for _, v := range in {
		out = append(out, Voice{
			Name:       v.GetName(),
			Languages:  v.GetLanguageCodes(),
			Gender:     strings.ToLower(v.GetSsmlGender().String()),
			SampleRate: v.GetNaturalSampleRateHertz(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
