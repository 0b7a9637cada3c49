package store

import (
	"BanterStudio/internal/project"
	"BanterStudio/internal/storage"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoProject — операция требует загруженного проекта, а рабочее пространство пусто.
var ErrNoProject = errors.New("store: no project loaded")

// Snapshot — согласованная копия состояния для чтения вне блокировки.
type Snapshot struct {
	Project  project.Project
	Resident bool   // проект загружен и сохраняется; false — пустое рабочее пространство
	Epoch    uint64 // меняется при каждой смене проекта
}

// Store владеет единственным загруженным проектом и списком проектов в хранилище.
// Все изменения сериализуются; запись в хранилище идёт только через SaveProject.
type Store struct {
	storage  storage.Gateway
	logger   *zap.SugaredLogger
	defaults project.Defaults
	now      func() time.Time
	autosave *Debouncer

	saveMu sync.Mutex // порядок записей в хранилище

	mu        sync.Mutex
	current   project.Project
	resident  bool
	epoch     uint64
	summaries []project.Summary

	subMu     sync.Mutex
	listeners map[int]func(Snapshot)
	nextSub   int
}

type Option func(*Store)

// WithAutosaveDelay задаёт паузу автосохранения после последнего изменения.
func WithAutosaveDelay(d time.Duration) Option {
	return func(s *Store) { s.autosave = NewDebouncer(d, s.autosaveNow) }
}

// WithDefaults задаёт имена и голоса для новых проектов.
func WithDefaults(d project.Defaults) Option { return func(s *Store) { s.defaults = d } }

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func New(gw storage.Gateway, logger *zap.SugaredLogger, opts ...Option) *Store {
	s := &Store{
		storage:   gw,
		logger:    logger,
		now:       time.Now,
		summaries: []project.Summary{},
		listeners: make(map[int]func(Snapshot)),
	}
	s.autosave = NewDebouncer(time.Second, s.autosaveNow)
	for _, o := range opts {
		o(s)
	}
	s.current = project.Empty(s.defaults)
	return s
}

// Init читает список проектов и загружает самый свежий; без проектов остаётся пустое пространство.
func (s *Store) Init(ctx context.Context) error {
	sums, err := s.RefreshSummaries(ctx)
	if err != nil {
		return err
	}
	for _, sum := range sums {
		if err := s.LoadProject(ctx, sum.StorageKey); err == nil {
			return nil
		}
	}
	s.ClearWorkspace()
	return nil
}

// Close дописывает отложенное автосохранение.
func (s *Store) Close() { s.autosave.Flush() }

// Subscribe регистрирует слушателя изменений; возвращает функцию отписки.
// Слушатель вызывается синхронно после каждого изменения и не должен блокироваться.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.listeners, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	snap := s.Snapshot()
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// Snapshot возвращает глубокую копию текущего состояния.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Project: s.current.Clone(), Resident: s.resident, Epoch: s.epoch}
}

// Project возвращает копию загруженного проекта.
func (s *Store) Project() project.Project { return s.Snapshot().Project }

// Summaries возвращает последний прочитанный список проектов.
func (s *Store) Summaries() []project.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]project.Summary, len(s.summaries))
	copy(out, s.summaries)
	return out
}

// Utterance возвращает копию реплики по id.
func (s *Store) Utterance(id string) (project.Utterance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.current.Index(id)
	if i < 0 {
		return project.Utterance{}, false
	}
	return s.current.Clone().Utterances[i], true
}

// RefreshSummaries перечитывает список проектов из хранилища.
func (s *Store) RefreshSummaries(ctx context.Context) ([]project.Summary, error) {
	sums, err := s.storage.List(ctx)
	if err != nil {
		s.logger.Warnw("Failed to list projects", "error", err)
		return nil, err
	}
	s.mu.Lock()
	s.summaries = sums
	s.mu.Unlock()
	out := make([]project.Summary, len(sums))
	copy(out, sums)
	return out, nil
}

// CreateProject заменяет загруженный проект новым с настройками по умолчанию и сохраняет его.
func (s *Store) CreateProject(ctx context.Context) (project.Project, error) {
	s.autosave.Flush()
	name := "New_Project_" + lastDigits(s.now())
	p := project.New(name, s.defaults)

	s.mu.Lock()
	s.current = p
	s.resident = true
	s.epoch++
	s.mu.Unlock()

	s.logger.Infow("Project created", "name", name)
	if err := s.SaveProject(ctx); err != nil {
		// Проект уже сменился в памяти, даже если запись не удалась
		s.notify()
		return s.Project(), err
	}
	return s.Project(), nil
}

// LoadProject заменяет загруженный проект документом из хранилища. Зависшие loading сбрасываются в idle,
// нормализованный документ не перезаписывается. При ошибке чтения загруженный проект не меняется.
func (s *Store) LoadProject(ctx context.Context, key string) error {
	s.autosave.Flush()
	doc, err := s.storage.Read(ctx, key)
	if err != nil {
		s.logger.Warnw("Failed to load project", "key", key, "error", err)
		return fmt.Errorf("load project %s: %w", key, err)
	}
	p := doc.Project
	if p.DisplayName == "" {
		p.DisplayName = project.DisplayNameFromKey(key)
	}
	p.Normalize(s.defaults)

	s.mu.Lock()
	s.current = p
	s.resident = true
	s.epoch++
	s.mu.Unlock()

	s.logger.Infow("Project loaded", "key", key, "utterances", len(p.Utterances))
	s.notify()
	return nil
}

// SaveProject — единственный путь записи: пишет документ под ключом от имени проекта,
// обновляет метку времени и список проектов. Отложенное автосохранение при этом снимается.
func (s *Store) SaveProject(ctx context.Context) error {
	s.autosave.Cancel()
	s.saveMu.Lock()
	err := s.persist(ctx)
	s.saveMu.Unlock()
	if err != nil {
		return err
	}
	_, _ = s.RefreshSummaries(ctx)
	s.notify()
	return nil
}

// persist пишет текущий проект; вызывается под saveMu.
func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	if !s.resident {
		s.mu.Unlock()
		return nil
	}
	p := s.current.Clone()
	s.mu.Unlock()
	return s.write(ctx, p)
}

// write пишет p под ключом от его имени.
func (s *Store) write(ctx context.Context, p project.Project) error {
	now := s.now().UnixMilli()
	key := p.Key()
	if err := s.storage.Write(ctx, key, project.Document{ID: now, Project: p, UpdatedAt: now}); err != nil {
		s.logger.Errorw("Failed to save project", "key", key, "error", err)
		return fmt.Errorf("save project %s: %w", key, err)
	}
	return nil
}

func (s *Store) autosaveNow() {
	// Автосохранение молча переживает ошибки: они уже залогированы в persist
	_ = s.SaveProject(context.Background())
}

// RenameProject переносит документ под ключ нового имени и переписывает имя внутри документа.
// Пустое имя игнорируется. При любой ошибке имя проекта в памяти и документ остаются прежними.
func (s *Store) RenameProject(ctx context.Context, newName string) error {
	if strings.TrimSpace(newName) == "" {
		return nil
	}
	s.autosave.Flush()

	s.saveMu.Lock()
	s.mu.Lock()
	if !s.resident {
		s.mu.Unlock()
		s.saveMu.Unlock()
		return ErrNoProject
	}
	oldName := s.current.DisplayName
	oldKey, newKey := s.current.Key(), project.Key(newName)
	renamed := s.current.Clone()
	s.mu.Unlock()
	renamed.DisplayName = newName

	moved := true
	if err := s.storage.Move(ctx, oldKey, newKey); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.saveMu.Unlock()
			s.logger.Warnw("Rename failed", "from", oldKey, "to", newKey, "error", err)
			return fmt.Errorf("rename %q to %q: %w", oldName, newName, err)
		}
		moved = false
	}

	// Имя в памяти меняется только после того, как документ записан под новым ключом
	if err := s.write(ctx, renamed); err != nil {
		if moved && oldKey != newKey {
			if rbErr := s.storage.Move(ctx, newKey, oldKey); rbErr != nil {
				s.logger.Errorw("Failed to roll back rename", "from", newKey, "to", oldKey, "error", rbErr)
			}
		}
		s.saveMu.Unlock()
		_, _ = s.RefreshSummaries(ctx)
		return fmt.Errorf("rename %q to %q: %w", oldName, newName, err)
	}
	s.mu.Lock()
	s.current.DisplayName = newName
	s.mu.Unlock()
	s.saveMu.Unlock()

	s.logger.Infow("Project renamed", "from", oldKey, "to", newKey)
	_, _ = s.RefreshSummaries(ctx)
	s.notify()
	return nil
}

// DeleteProject удаляет документ. Если удалён загруженный проект, загружается первый из оставшихся,
// а без них рабочее пространство становится пустым. Удаление другого проекта загруженный не трогает.
func (s *Store) DeleteProject(ctx context.Context, key string) error {
	s.mu.Lock()
	resident := s.resident && s.current.Key() == key
	s.mu.Unlock()
	if resident {
		s.autosave.Cancel()
	}

	s.saveMu.Lock()
	err := s.storage.Delete(ctx, key)
	s.saveMu.Unlock()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warnw("Failed to delete project", "key", key, "error", err)
		return fmt.Errorf("delete project %s: %w", key, err)
	}
	s.logger.Infow("Project deleted", "key", key, "resident", resident)

	sums, _ := s.RefreshSummaries(ctx)
	if !resident {
		s.notify()
		return nil
	}
	for _, sum := range sums {
		if err := s.LoadProject(ctx, sum.StorageKey); err == nil {
			return nil
		}
	}
	s.ClearWorkspace()
	return nil
}

// ClearWorkspace переводит рабочее пространство в пустое состояние без записи в хранилище.
func (s *Store) ClearWorkspace() {
	s.autosave.Cancel()
	s.mu.Lock()
	s.current = project.Empty(s.defaults)
	s.resident = false
	s.epoch++
	s.mu.Unlock()
	s.notify()
}

// ImportScript заменяет реплики загруженного проекта репликами из JSON-сценария и сохраняет его
// под именем name (по умолчанию Import_<цифры времени>). Некорректный сценарий ничего не меняет.
func (s *Store) ImportScript(ctx context.Context, data []byte, name string) error {
	s.mu.Lock()
	hostName, guestName := s.current.HostName, s.current.GuestName
	s.mu.Unlock()

	utterances, err := project.ParseScript(data, hostName, guestName)
	if err != nil {
		s.logger.Warnw("Script import failed", "error", err)
		return err
	}
	if strings.TrimSpace(name) == "" {
		name = "Import_" + lastDigits(s.now())
	}

	s.autosave.Flush()
	s.mu.Lock()
	s.current.Utterances = utterances
	s.current.DisplayName = name
	s.resident = true
	s.epoch++
	s.mu.Unlock()

	s.logger.Infow("Script imported", "name", name, "utterances", len(utterances))
	if err := s.SaveProject(ctx); err != nil {
		s.notify()
		return err
	}
	return nil
}

// AddUtterance добавляет пустую реплику роли в конец сценария.
func (s *Store) AddUtterance(role project.Role) (project.Utterance, error) {
	if !role.Valid() {
		return project.Utterance{}, fmt.Errorf("store: invalid role %q", role)
	}
	s.mu.Lock()
	u := project.NewUtterance(role, s.current.NameFor(role))
	s.current.Utterances = append(s.current.Utterances, u)
	s.mu.Unlock()
	s.changed()
	return u, nil
}

// UpdateContent меняет текст реплики; прежний результат синтеза больше не соответствует тексту,
// поэтому реплика возвращается в idle.
func (s *Store) UpdateContent(id, text string) error {
	s.mu.Lock()
	i := s.current.Index(id)
	if i < 0 {
		s.mu.Unlock()
		return project.ErrUnknownUtterance
	}
	u := &s.current.Utterances[i]
	u.Text = text
	u.Status = project.StatusIdle
	u.AudioLocation = ""
	u.Duration = 0
	u.ErrorMessage = ""
	s.mu.Unlock()
	s.changed()
	return nil
}

// DeleteUtterance удаляет реплику.
func (s *Store) DeleteUtterance(id string) error {
	s.mu.Lock()
	i := s.current.Index(id)
	if i < 0 {
		s.mu.Unlock()
		return project.ErrUnknownUtterance
	}
	s.current.Utterances = append(s.current.Utterances[:i], s.current.Utterances[i+1:]...)
	s.mu.Unlock()
	s.changed()
	return nil
}

// SetScrollOffset запоминает позицию прокрутки; сохраняется автосохранением.
func (s *Store) SetScrollOffset(offset float64) {
	s.mu.Lock()
	s.current.ScrollOffset = offset
	s.mu.Unlock()
	s.changed()
}

// SetHostName переименовывает ведущего во всех его репликах и сохраняет проект.
func (s *Store) SetHostName(ctx context.Context, name string) error {
	return s.setSpeakerName(ctx, project.RoleHost, name)
}

// SetGuestName переименовывает гостя во всех его репликах и сохраняет проект.
func (s *Store) SetGuestName(ctx context.Context, name string) error {
	return s.setSpeakerName(ctx, project.RoleGuest, name)
}

func (s *Store) setSpeakerName(ctx context.Context, role project.Role, name string) error {
	if !role.Valid() {
		return fmt.Errorf("store: invalid role %q", role)
	}
	s.mu.Lock()
	if role == project.RoleHost {
		s.current.HostName = name
	} else {
		s.current.GuestName = name
	}
	for i := range s.current.Utterances {
		if s.current.Utterances[i].Role == role {
			s.current.Utterances[i].SpeakerName = name
		}
	}
	s.mu.Unlock()
	return s.SaveProject(ctx)
}

// SetVoice назначает голос роли, поднимает его в списке недавних и сохраняет проект.
func (s *Store) SetVoice(ctx context.Context, role project.Role, voiceID string) error {
	if !role.Valid() {
		return fmt.Errorf("store: invalid role %q", role)
	}
	s.mu.Lock()
	if role == project.RoleHost {
		s.current.HostVoiceID = voiceID
	} else {
		s.current.GuestVoiceID = voiceID
	}
	s.current.RecentVoiceIDs = project.PushRecent(s.current.RecentVoiceIDs, voiceID)
	s.mu.Unlock()
	return s.SaveProject(ctx)
}

// Update применяет fn к реплике id, если проект с тех пор не сменился (epoch совпадает).
// Возвращает true, если fn сообщила об изменении. В хранилище не пишет.
func (s *Store) Update(epoch uint64, id string, fn func(u *project.Utterance) bool) bool {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return false
	}
	i := s.current.Index(id)
	if i < 0 || !fn(&s.current.Utterances[i]) {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()
	s.notify()
	return true
}

// AutosavePending сообщает, ждёт ли отложенное сохранение.
func (s *Store) AutosavePending() bool { return s.autosave.Pending() }

func (s *Store) changed() {
	s.autosave.Trigger()
	s.notify()
}

// lastDigits — последние шесть цифр unix-времени в миллисекундах.
func lastDigits(t time.Time) string {
	return fmt.Sprintf("%06d", t.UnixMilli()%1_000_000)
}
