package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	DebugMode             bool          `env:"DEBUG_MODE"`              //Режим дебага
	ProjectsDir           string        `env:"PROJECTS_DIR"`            // Каталог проектов; аудио кладётся в его подкаталог audio
	StorageBackend        string        `env:"STORAGE_BACKEND"`         // files|sqlite
	SQLitePath            string        `env:"SQLITE_PATH"`             // Путь к базе при STORAGE_BACKEND=sqlite; пусто — projects.db в каталоге проектов
	NotificationSoundPath string        `env:"NOTIFICATION_SOUND_PATH"` // Звук по окончании пакетной генерации; пусто — без звука
	AudioTTL              time.Duration `env:"AUDIO_TTL"`               // Возраст, после которого клипы без ссылок из проектов удаляются

	// Генерация
	TTSService    string        `env:"TTS_SERVICE"`    // backend|google|yandex|gemini, по умолчанию backend
	BatchCooldown time.Duration `env:"BATCH_COOLDOWN"` // Пауза между запросами пакетной генерации
	Backend       BackendConfig
	YandexTTS     YandexTTSConfig // Конфигурация TTS (Yandex SpeechKit)
	GoogleTTS     GoogleTTSConfig
	GeminiTTS     GeminiTTSConfig

	// Проект
	AutosaveDelay time.Duration `env:"AUTOSAVE_DELAY"` // Задержка автосохранения после последнего изменения
	ExportGapMs   int           `env:"EXPORT_GAP_MS"`  // Пауза между клипами при склейке, мс
	Defaults      ProjectDefaults

	// Локальный API для оболочки приложения
	APIBindAddr string `env:"API_BIND_ADDR"`
}

// BackendConfig — локальный HTTP-сервис синтеза и склейки аудио.
type BackendConfig struct {
	URL         string `env:"BACKEND_URL"`
	AppKey      string `env:"BACKEND_APP_KEY"`      // Передаётся бэкенду; пусто — бэкенд берёт свой из окружения
	AccessToken string `env:"BACKEND_ACCESS_TOKEN"` // Аналогично AppKey
}

// ProjectDefaults — имена и голоса для новых проектов и недостающих полей загруженных.
type ProjectDefaults struct {
	HostName   string `env:"DEFAULT_HOST_NAME"`
	GuestName  string `env:"DEFAULT_GUEST_NAME"`
	HostVoice  string `env:"DEFAULT_HOST_VOICE"`
	GuestVoice string `env:"DEFAULT_GUEST_VOICE"`
}

// YandexTTSConfig конфигурация для синтеза речи через Yandex SpeechKit.
type YandexTTSConfig struct {
	APIKey  string `env:"YC_TTS_API_KEY"` // Ключ берём из .env/ENV. Если пуст — при использовании будет ошибка
	Voice   string `env:"YC_TTS_VOICE"`   // Голос, если у реплики не задан свой
	Format  string `env:"YC_TTS_FORMAT"`  // mp3|wav, по умолчанию mp3
	Speed   string `env:"YC_TTS_SPEED"`   // Скорость синтеза (1.0 по умолчанию в API)
	Emotion string `env:"YC_TTS_EMOTION"` // Эмоциональная окраска: neutral|good|evil
}

// GoogleTTSConfig конфигурация для синтеза речи через Google Cloud Text-to-Speech.
type GoogleTTSConfig struct {
	// Путь к файлу ключа сервисного аккаунта. Фактически читается из ENV GOOGLE_APPLICATION_CREDENTIALS.
	CredentialsPath string  `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	Language        string  `env:"GOOGLE_TTS_LANGUAGE"`
	Voice           string  `env:"GOOGLE_TTS_VOICE"`
	SpeakingRate    float64 `env:"GOOGLE_TTS_SPEAKING_RATE"`
	Pitch           float64 `env:"GOOGLE_TTS_PITCH"`
	VolumeGainDb    float64 `env:"GOOGLE_TTS_VOLUME_DB"`
	// Эффект профиля устройства воспроизведения, напр. large-home-entertainment-class-device
	EffectsProfileID string `env:"GOOGLE_TTS_EFFECTS_PROFILE_ID"`
	// Тип входа: text|ssml
	InputType string `env:"GOOGLE_TTS_INPUT_TYPE"`
}

// GeminiTTSConfig конфигурация для Cloud Text-to-Speech: Gemini-TTS (v1beta1).
type GeminiTTSConfig struct {
	Endpoint         string  `env:"GEMINI_TTS_ENDPOINT"`
	ModelName        string  `env:"GEMINI_TTS_MODEL"`
	VoiceName        string  `env:"GEMINI_TTS_VOICE"`
	Language         string  `env:"GEMINI_TTS_LANGUAGE"`
	Prompt           string  `env:"GEMINI_TTS_PROMPT"` // Стилевая подсказка; пустой не отправляется
	InputType        string  `env:"GEMINI_TTS_INPUT_TYPE"`
	SpeakingRate     float64 `env:"GEMINI_TTS_SPEAKING_RATE"`
	Pitch            float64 `env:"GEMINI_TTS_PITCH"`
	VolumeGainDb     float64 `env:"GEMINI_TTS_VOLUME_DB"`
	EffectsProfileID string  `env:"GEMINI_TTS_EFFECTS_PROFILE_ID"`
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	return &Config{
		DebugMode:      false,
		ProjectsDir:    defaultProjectsDir(),
		StorageBackend: "files",
		AudioTTL:       7 * 24 * time.Hour,
		TTSService:     "backend",
		BatchCooldown:  500 * time.Millisecond,
		AutosaveDelay:  time.Second,
		ExportGapMs:    300,
		APIBindAddr:    "127.0.0.1:8700",
		Backend: BackendConfig{
			URL: "http://127.0.0.1:8000",
		},
		Defaults: ProjectDefaults{
			HostName:   "Host (Leo)",
			GuestName:  "Guest (Jane)",
			HostVoice:  "zh_female_inspirational",
			GuestVoice: "zh_male_huolijieshuo",
		},
		YandexTTS: YandexTTSConfig{
			Voice:   "omazh",
			Format:  "mp3",
			Speed:   "1.0",
			Emotion: "neutral",
		},
		GoogleTTS: GoogleTTSConfig{
			CredentialsPath:  "service-account.json",
			Language:         "ru-RU",
			Voice:            "ru-RU-Standard-A",
			SpeakingRate:     1.0,
			EffectsProfileID: "large-home-entertainment-class-device",
			InputType:        "text",
		},
		GeminiTTS: GeminiTTSConfig{
			ModelName:    "gemini-2.5-flash-preview-tts",
			VoiceName:    "Kore",
			Language:     "ru-RU",
			InputType:    "text",
			SpeakingRate: 1.0,
		},
	}
}

// Load загружает конфигурацию: дефолты, затем .env и переменные окружения.
// Флаги CLI накладываются вызывающим поверх результата.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}

// Validate проверяет итоговую конфигурацию и готовит окружение выбранного сервиса TTS.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ProjectsDir) == "" {
		return errors.New("config: PROJECTS_DIR is empty")
	}
	switch c.StorageBackend {
	case "files", "sqlite":
	default:
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q (files|sqlite)", c.StorageBackend)
	}
	if c.SQLitePath == "" {
		c.SQLitePath = filepath.Join(c.ProjectsDir, "projects.db")
	}
	if c.BatchCooldown < 0 || c.AutosaveDelay < 0 || c.ExportGapMs < 0 {
		return errors.New("config: durations and gaps must not be negative")
	}

	switch strings.ToLower(c.TTSService) {
	case "backend":
		if strings.TrimSpace(c.Backend.URL) == "" {
			return errors.New("config: BACKEND_URL is empty")
		}
	case "yandex":
		if strings.TrimSpace(c.YandexTTS.APIKey) == "" {
			return errors.New("yandex tts: empty API key (set YC_TTS_API_KEY in .env/ENV)")
		}
	case "google", "gemini":
		// Если ENV пуст, но в конфиге указан путь — устанавливаем ENV для ADC.
		cred := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
		if cred == "" {
			if cp := strings.TrimSpace(c.GoogleTTS.CredentialsPath); cp != "" {
				_ = os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", cp)
				cred = cp
			}
		}
		if cred == "" {
			return errors.New("google tts: GOOGLE_APPLICATION_CREDENTIALS is not set")
		}
		if _, err := os.Stat(cred); err != nil {
			return fmt.Errorf("google tts: credentials file not found: %s", cred)
		}
	default:
		return fmt.Errorf("config: unknown TTS_SERVICE %q (backend|google|yandex|gemini)", c.TTSService)
	}
	return nil
}

func defaultProjectsDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "BanterStudio", "Projects")
	}
	return "Projects"
}
