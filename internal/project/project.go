package project

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Role — роль говорящего в диалоге.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Valid сообщает, является ли роль одной из двух допустимых.
func (r Role) Valid() bool { return r == RoleHost || r == RoleGuest }

// Status — состояние синтеза отдельной реплики.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Pending сообщает, нужно ли генерировать реплику в пакетном режиме (idle или error).
func (s Status) Pending() bool { return s != StatusSuccess && s != StatusLoading }

// ErrUnknownUtterance — реплики с таким id в проекте нет.
var ErrUnknownUtterance = errors.New("project: unknown utterance")

// NoProjectName — название пустого рабочего пространства, когда ни один проект не загружен.
const NoProjectName = "No Project Selected"

// Utterance — одна реплика сценария. Имена JSON-полей совпадают с форматом файлов проектов.
type Utterance struct {
	ID             string  `json:"id"`
	Role           Role    `json:"role"`
	SpeakerName    string  `json:"name"`
	Text           string  `json:"content"`
	Status         Status  `json:"status"`
	AudioLocation  string  `json:"audioPath,omitempty"`
	Duration       float64 `json:"duration,omitempty"`
	ErrorMessage   string  `json:"errorMessage,omitempty"`
	TopicID        *int    `json:"topicId,omitempty"`
	IsNonEssential bool    `json:"isNonEssential,omitempty"`
}

// Playable — реплика успешно озвучена и у неё есть путь к аудио.
func (u Utterance) Playable() bool { return u.Status == StatusSuccess && u.AudioLocation != "" }

// Project — проект, находящийся в памяти. Одновременно загружен ровно один.
type Project struct {
	DisplayName    string      `json:"name"`
	HostName       string      `json:"hostName"`
	GuestName      string      `json:"guestName"`
	HostVoiceID    string      `json:"hostVoiceId"`
	GuestVoiceID   string      `json:"guestVoiceId"`
	RecentVoiceIDs []string    `json:"recentVoiceIds"`
	Utterances     []Utterance `json:"bubbles"`
	ScrollOffset   float64     `json:"scrollOffset,omitempty"`
}

// Document — сериализованная форма проекта в хранилище.
type Document struct {
	ID int64 `json:"id"`
	Project
	UpdatedAt int64 `json:"updatedAt"`
}

// Summary — элемент списка проектов.
type Summary struct {
	StorageKey   string    `json:"filename"`
	DisplayName  string    `json:"name"`
	LastModified time.Time `json:"lastModified"`
}

// Defaults — значения, которыми заполняется новый проект и недостающие поля загруженного.
type Defaults struct {
	HostName     string
	GuestName    string
	HostVoiceID  string
	GuestVoiceID string
}

// Key возвращает ключ хранилища, под которым лежит проект.
func (p Project) Key() string { return Key(p.DisplayName) }

// Clone делает глубокую копию, чтобы снимки не разделяли срезы с хранилищем состояния.
func (p Project) Clone() Project {
	c := p
	c.RecentVoiceIDs = slices.Clone(p.RecentVoiceIDs)
	c.Utterances = make([]Utterance, len(p.Utterances))
	for i, u := range p.Utterances {
		if u.TopicID != nil {
			t := *u.TopicID
			u.TopicID = &t
		}
		c.Utterances[i] = u
	}
	return c
}

// Index возвращает позицию реплики по id или -1.
func (p Project) Index(id string) int {
	return slices.IndexFunc(p.Utterances, func(u Utterance) bool { return u.ID == id })
}

// VoiceFor возвращает голос, назначенный роли.
func (p Project) VoiceFor(r Role) string {
	if r == RoleHost {
		return p.HostVoiceID
	}
	return p.GuestVoiceID
}

// NameFor возвращает отображаемое имя роли.
func (p Project) NameFor(r Role) string {
	if r == RoleHost {
		return p.HostName
	}
	return p.GuestName
}

// Playable возвращает озвученные реплики в порядке сценария.
func (p Project) Playable() []Utterance {
	out := make([]Utterance, 0, len(p.Utterances))
	for _, u := range p.Utterances {
		if u.Playable() {
			out = append(out, u)
		}
	}
	return out
}

// Normalize приводит загруженный документ к инвариантам модели:
// loading после аварийного завершения сбрасывается в idle, success без аудио — тоже.
func (p *Project) Normalize(d Defaults) {
	if p.HostName == "" {
		p.HostName = d.HostName
	}
	if p.GuestName == "" {
		p.GuestName = d.GuestName
	}
	if p.HostVoiceID == "" {
		p.HostVoiceID = d.HostVoiceID
	}
	if p.GuestVoiceID == "" {
		p.GuestVoiceID = d.GuestVoiceID
	}
	if p.RecentVoiceIDs == nil {
		p.RecentVoiceIDs = []string{}
	}
	if p.Utterances == nil {
		p.Utterances = []Utterance{}
	}
	for i := range p.Utterances {
		u := &p.Utterances[i]
		switch {
		case u.Status == StatusLoading:
			u.Status = StatusIdle
		case u.Status == StatusSuccess && u.AudioLocation == "":
			u.Status = StatusIdle
		case u.Status == "":
			u.Status = StatusIdle
		}
	}
}

// New создаёт проект по умолчанию с одной стартовой репликой ведущего.
func New(name string, d Defaults) Project {
	return Project{
		DisplayName:    name,
		HostName:       d.HostName,
		GuestName:      d.GuestName,
		HostVoiceID:    d.HostVoiceID,
		GuestVoiceID:   d.GuestVoiceID,
		RecentVoiceIDs: PushRecent([]string{d.GuestVoiceID}, d.HostVoiceID),
		Utterances: []Utterance{{
			ID:          NewID(),
			Role:        RoleHost,
			SpeakerName: d.HostName,
			Text:        "Start creating...",
			Status:      StatusIdle,
		}},
	}
}

// Empty — состояние «нет проекта» после удаления последнего проекта.
func Empty(d Defaults) Project {
	p := Project{DisplayName: NoProjectName}
	p.Normalize(d)
	return p
}

// NewUtterance создаёт пустую реплику для роли.
func NewUtterance(r Role, speaker string) Utterance {
	return Utterance{ID: NewID(), Role: r, SpeakerName: speaker, Status: StatusIdle}
}

// NewID генерирует идентификатор реплики.
func NewID() string { return uuid.NewString() }
