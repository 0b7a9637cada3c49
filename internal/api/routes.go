package api

import (
	"BanterStudio/internal/app/exporter"
	"BanterStudio/internal/app/pipeline"
	"BanterStudio/internal/app/playback"
	"BanterStudio/internal/app/store"
	"BanterStudio/internal/media"
	"BanterStudio/internal/project"
	"BanterStudio/internal/storage"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const maxBody = 4 << 20

// projectView — загруженный проект в ответах и событиях.
type projectView struct {
	Project    project.Project `json:"project"`
	StorageKey string          `json:"storageKey,omitempty"`
	Resident   bool            `json:"resident"`
}

func viewOf(snap store.Snapshot) projectView {
	v := projectView{Project: snap.Project, Resident: snap.Resident}
	if snap.Resident {
		v.StorageKey = snap.Project.Key()
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError отвечает {"detail": ...} со статусом по виду ошибки.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, project.ErrUnknownUtterance), errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, project.ErrInvalidScript), errors.Is(err, storage.ErrInvalidKey), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNoProject),
		errors.Is(err, storage.ErrExists),
		errors.Is(err, pipeline.ErrBatchRunning),
		errors.Is(err, pipeline.ErrGenerationInFlight),
		errors.Is(err, playback.ErrNothingToPlay),
		errors.Is(err, exporter.ErrNothingToExport):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

var errBadRequest = errors.New("bad request")

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- проекты ---

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	sums, err := s.deps.Store.RefreshSummaries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sums)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Store.CreateProject(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(s.deps.Store.Snapshot()))
}

func (s *Server) loadProject(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.LoadProject(r.Context(), chi.URLParam(r, "key")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s.deps.Store.Snapshot()))
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.DeleteProject(r.Context(), chi.URLParam(r, "key")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s.deps.Store.Snapshot()))
}

func (s *Server) getProject(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(s.deps.Store.Snapshot()))
}

func (s *Server) saveProject(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.SaveProject(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s.deps.Store.Snapshot()))
}

func (s *Server) renameProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.Store.RenameProject(r.Context(), body.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s.deps.Store.Snapshot()))
}

func (s *Server) clearWorkspace(w http.ResponseWriter, _ *http.Request) {
	s.deps.Store.ClearWorkspace()
	writeJSON(w, http.StatusOK, viewOf(s.deps.Store.Snapshot()))
}

// importScript принимает сам JSON-сценарий в теле, имя проекта — в ?name=.
func (s *Server) importScript(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, errors.Join(errBadRequest, err))
		return
	}
	if err := s.deps.Store.ImportScript(r.Context(), data, r.URL.Query().Get("name")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s.deps.Store.Snapshot()))
}

func (s *Server) setScroll(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Offset float64 `json:"offset"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	s.deps.Store.SetScrollOffset(body.Offset)
	w.WriteHeader(http.StatusNoContent)
}

func roleParam(r *http.Request) (project.Role, error) {
	role := project.Role(chi.URLParam(r, "role"))
	if !role.Valid() {
		return "", errors.Join(errBadRequest, errors.New("role must be host or guest"))
	}
	return role, nil
}

func (s *Server) setSpeakerName(w http.ResponseWriter, r *http.Request) {
	role, err := roleParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if role == project.RoleHost {
		err = s.deps.Store.SetHostName(r.Context(), body.Name)
	} else {
		err = s.deps.Store.SetGuestName(r.Context(), body.Name)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s.deps.Store.Snapshot()))
}

func (s *Server) setVoice(w http.ResponseWriter, r *http.Request) {
	role, err := roleParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		VoiceID string `json:"voiceId"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.Store.SetVoice(r.Context(), role, body.VoiceID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s.deps.Store.Snapshot()))
}

// --- реплики ---

func (s *Server) addUtterance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role project.Role `json:"role"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if !body.Role.Valid() {
		writeError(w, errors.Join(errBadRequest, errors.New("role must be host or guest")))
		return
	}
	u, err := s.deps.Store.AddUtterance(body.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) updateUtterance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.deps.Store.UpdateContent(id, body.Content); err != nil {
		writeError(w, err)
		return
	}
	u, _ := s.deps.Store.Utterance(id)
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) deleteUtterance(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.DeleteUtterance(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// generateOne запускает синтез в фоне; результат приходит событием project по WebSocket.
func (s *Server) generateOne(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, ok := s.deps.Store.Utterance(id)
	if !ok {
		writeError(w, project.ErrUnknownUtterance)
		return
	}
	if u.Status == project.StatusLoading {
		writeError(w, pipeline.ErrGenerationInFlight)
		return
	}
	go func() {
		if err := s.deps.Pipeline.GenerateOne(s.jobs, id); err != nil {
			s.logger.Infow("Generation finished with error", "id", id, "error", err)
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

// generateAll запускает пакетную генерацию; итог приходит событием batch.
func (s *Server) generateAll(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Pipeline.Running() {
		writeError(w, pipeline.ErrBatchRunning)
		return
	}
	ctx, cancel := context.WithCancel(s.jobs)
	s.batchMu.Lock()
	s.cancelBatch = cancel
	s.batchMu.Unlock()

	go func() {
		defer cancel()
		res, err := s.deps.Pipeline.GenerateAll(ctx)
		if errors.Is(err, pipeline.ErrBatchRunning) {
			return
		}
		ev := batchEvent{BatchResult: res}
		if err != nil {
			ev.Error = err.Error()
		}
		s.hub.broadcast(eventBatch, ev)
	}()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) cancelGenerateAll(w http.ResponseWriter, _ *http.Request) {
	s.batchMu.Lock()
	if s.cancelBatch != nil {
		s.cancelBatch()
		s.cancelBatch = nil
	}
	s.batchMu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

type batchEvent struct {
	pipeline.BatchResult
	Error string `json:"error,omitempty"`
}

// --- воспроизведение ---

// playbackView — состояние проигрывателя и ссылка на текущий клип для оболочки.
type playbackView struct {
	playback.State
	CurrentRef string `json:"currentRef,omitempty"`
}

func (s *Server) playbackView(st playback.State) playbackView {
	v := playbackView{State: st}
	if st.CurrentID == "" {
		return v
	}
	if u, ok := s.deps.Store.Utterance(st.CurrentID); ok {
		if path, err := media.Resolve(u.AudioLocation); err == nil {
			v.CurrentRef = media.PlayableRef(path, time.Now())
		}
	}
	return v
}

func (s *Server) playbackState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.playbackView(s.deps.Player.State()))
}

func (s *Server) togglePlayback(w http.ResponseWriter, _ *http.Request) {
	if err := s.deps.Player.Toggle(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.playbackView(s.deps.Player.State()))
}

func (s *Server) stopPlayback(w http.ResponseWriter, _ *http.Request) {
	s.deps.Player.Stop()
	writeJSON(w, http.StatusOK, s.playbackView(s.deps.Player.State()))
}

// --- экспорт ---

type planView struct {
	exporter.Plan
	DefaultFileName string `json:"defaultFileName"`
}

func (s *Server) exportPlan(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, planView{
		Plan:            s.deps.Exporter.Plan(),
		DefaultFileName: exporter.DefaultFileName(s.deps.Store.Project()),
	})
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OutputPath string `json:"outputPath"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.deps.Exporter.Export(r.Context(), body.OutputPath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outputPath": out})
}
