package pipeline

import (
	"BanterStudio/internal/app/store"
	"BanterStudio/internal/project"
	"BanterStudio/internal/service/tts"
	"BanterStudio/internal/storage"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSynth записывает запросы и отвечает успехом, если текст не помечен как сбойный.
type fakeSynth struct {
	mu      sync.Mutex
	reqs    []tts.Request
	times   []time.Time
	failOn  map[string]error
	block   chan struct{} // если задан, вызов ждёт закрытия канала
	entered chan struct{}
}

func (f *fakeSynth) Synthesize(ctx context.Context, req tts.Request) (tts.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.times = append(f.times, time.Now())
	err := f.failOn[req.Text]
	block, entered := f.block, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return tts.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return tts.Result{}, err
	}
	return tts.Result{AudioPath: filepath.Join(req.OutputDir, "audio", req.JobKey+".mp3"), Duration: 1.5}, nil
}

func (f *fakeSynth) calls() []tts.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tts.Request(nil), f.reqs...)
}

func newTestStore(t *testing.T, name string, utterances ...project.Utterance) (*store.Store, storage.Gateway) {
	t.Helper()
	gw, err := storage.NewFiles(t.TempDir(), zap.NewNop().Sugar())
	require.NoError(t, err)
	p := project.Project{
		DisplayName:  name,
		HostName:     "Leo",
		GuestName:    "Jane",
		HostVoiceID:  "voice_host",
		GuestVoiceID: "voice_guest",
		Utterances:   utterances,
	}
	require.NoError(t, gw.Write(context.Background(), p.Key(), project.Document{Project: p, UpdatedAt: 1}))

	s := store.New(gw, zap.NewNop().Sugar(), store.WithAutosaveDelay(time.Hour))
	require.NoError(t, s.LoadProject(context.Background(), p.Key()))
	return s, gw
}

func utt(id string, role project.Role, text string, status project.Status) project.Utterance {
	u := project.Utterance{ID: id, Role: role, Text: text, Status: status}
	if status == project.StatusSuccess {
		u.AudioLocation = "/old/" + id + ".mp3"
	}
	return u
}

func newPipeline(s *store.Store, synth tts.Synthesizer, cooldown time.Duration) *Pipeline {
	return New(s, synth, zap.NewNop().Sugar(), WithCooldown(cooldown), WithOutputDir("/projects"))
}

func TestGenerateOneSuccess(t *testing.T) {
	s, gw := newTestStore(t, "Draft Final", utt("7", project.RoleGuest, "Hello there", project.StatusIdle))
	synth := &fakeSynth{}
	p := newPipeline(s, synth, 0)

	require.NoError(t, p.GenerateOne(context.Background(), "7"))

	calls := synth.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, tts.Request{Text: "Hello there", VoiceID: "voice_guest", OutputDir: "/projects", JobKey: "Draft_Final_7"}, calls[0])

	u, _ := s.Utterance("7")
	assert.Equal(t, project.StatusSuccess, u.Status)
	assert.Equal(t, filepath.Join("/projects", "audio", "Draft_Final_7.mp3"), u.AudioLocation)
	assert.Equal(t, 1.5, u.Duration)

	doc, err := gw.Read(context.Background(), "Draft_Final.json")
	require.NoError(t, err)
	assert.Equal(t, project.StatusSuccess, doc.Utterances[0].Status)
}

func TestGenerateOneRejectsUnspeakableText(t *testing.T) {
	s, gw := newTestStore(t, "P", utt("1", project.RoleHost, "   ...??", project.StatusIdle))
	synth := &fakeSynth{}
	p := newPipeline(s, synth, 0)

	err := p.GenerateOne(context.Background(), "1")
	assert.ErrorIs(t, err, ErrNoSpeechContent)
	assert.Empty(t, synth.calls())

	u, _ := s.Utterance("1")
	assert.Equal(t, project.StatusError, u.Status)
	assert.Equal(t, MsgNoSpeech, u.ErrorMessage)

	doc, err := gw.Read(context.Background(), "P.json")
	require.NoError(t, err)
	assert.Equal(t, project.StatusError, doc.Utterances[0].Status)
}

func TestGenerateOneGatewayFailure(t *testing.T) {
	gwErr := &tts.GatewayError{Provider: "backend", Status: 500, Detail: "model crashed"}
	s, _ := newTestStore(t, "P", utt("1", project.RoleHost, "boom", project.StatusIdle))
	p := newPipeline(s, &fakeSynth{failOn: map[string]error{"boom": gwErr}}, 0)

	err := p.GenerateOne(context.Background(), "1")
	var ge *tts.GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "model crashed", ge.Detail)

	u, _ := s.Utterance("1")
	assert.Equal(t, project.StatusError, u.Status)
	assert.Equal(t, MsgFailed, u.ErrorMessage)
	assert.Empty(t, u.AudioLocation)
}

func TestRetryAfterError(t *testing.T) {
	s, _ := newTestStore(t, "P", utt("1", project.RoleHost, "again", project.StatusIdle))
	synth := &fakeSynth{failOn: map[string]error{"again": errors.New("timeout")}}
	p := newPipeline(s, synth, 0)

	require.Error(t, p.GenerateOne(context.Background(), "1"))
	synth.mu.Lock()
	synth.failOn = nil
	synth.mu.Unlock()

	require.NoError(t, p.GenerateOne(context.Background(), "1"))
	u, _ := s.Utterance("1")
	assert.Equal(t, project.StatusSuccess, u.Status)
	assert.Empty(t, u.ErrorMessage)
}

func TestGenerateOneUnknown(t *testing.T) {
	s, _ := newTestStore(t, "P")
	err := newPipeline(s, &fakeSynth{}, 0).GenerateOne(context.Background(), "nope")
	assert.ErrorIs(t, err, project.ErrUnknownUtterance)
}

func TestEditDuringGenerationDiscardsResult(t *testing.T) {
	s, _ := newTestStore(t, "P", utt("1", project.RoleHost, "first", project.StatusIdle))
	synth := &fakeSynth{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	p := newPipeline(s, synth, 0)

	done := make(chan error, 1)
	go func() { done <- p.GenerateOne(context.Background(), "1") }()
	<-synth.entered

	u, _ := s.Utterance("1")
	assert.Equal(t, project.StatusLoading, u.Status)
	assert.ErrorIs(t, p.GenerateOne(context.Background(), "1"), ErrGenerationInFlight)

	require.NoError(t, s.UpdateContent("1", "second"))
	close(synth.block)
	require.NoError(t, <-done)

	u, _ = s.Utterance("1")
	assert.Equal(t, project.StatusIdle, u.Status)
	assert.Equal(t, "second", u.Text)
	assert.Empty(t, u.AudioLocation)
}

func TestGenerateAllSkipsFinishedAndKeepsOrder(t *testing.T) {
	s, _ := newTestStore(t, "P",
		utt("a", project.RoleHost, "one", project.StatusSuccess),
		utt("b", project.RoleGuest, "two", project.StatusIdle),
		utt("c", project.RoleHost, "...", project.StatusIdle),
		utt("d", project.RoleGuest, "four", project.StatusError),
	)
	synth := &fakeSynth{}
	p := newPipeline(s, synth, 0)

	res, err := p.GenerateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Total: 3, Succeeded: 2, Rejected: 1}, res)

	calls := synth.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "two", calls[0].Text)
	assert.Equal(t, "four", calls[1].Text)

	// Повторный запуск не трогает готовые реплики
	res, err = p.GenerateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Rejected)
	assert.Len(t, synth.calls(), 2)
}

func TestGenerateAllEmptyIsNoop(t *testing.T) {
	s, _ := newTestStore(t, "P", utt("a", project.RoleHost, "done", project.StatusSuccess))
	synth := &fakeSynth{}
	res, err := newPipeline(s, synth, time.Hour).GenerateAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Empty(t, synth.calls())
}

func TestGenerateAllCooldown(t *testing.T) {
	s, _ := newTestStore(t, "P",
		utt("a", project.RoleHost, "one", project.StatusIdle),
		utt("b", project.RoleGuest, "two", project.StatusIdle),
		utt("c", project.RoleHost, "three", project.StatusIdle),
	)
	synth := &fakeSynth{}
	cooldown := 40 * time.Millisecond

	_, err := newPipeline(s, synth, cooldown).GenerateAll(context.Background())
	require.NoError(t, err)

	synth.mu.Lock()
	times := append([]time.Time(nil), synth.times...)
	synth.mu.Unlock()
	require.Len(t, times, 3)
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), cooldown)
	}
}

func TestGenerateAllNoCooldownWithoutSynthesis(t *testing.T) {
	s, _ := newTestStore(t, "P",
		utt("a", project.RoleHost, "...", project.StatusIdle),
		utt("b", project.RoleGuest, "only speech", project.StatusIdle),
		utt("c", project.RoleHost, "?? !!", project.StatusIdle),
		utt("d", project.RoleGuest, "", project.StatusError),
	)
	synth := &fakeSynth{}

	started := time.Now()
	res, err := newPipeline(s, synth, time.Hour).GenerateAll(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(started), time.Minute)

	assert.Equal(t, BatchResult{Total: 4, Succeeded: 1, Rejected: 3}, res)
	require.Len(t, synth.calls(), 1)
	assert.Equal(t, "only speech", synth.calls()[0].Text)
}

func TestGenerateAllContinuesAfterFailure(t *testing.T) {
	s, _ := newTestStore(t, "P",
		utt("a", project.RoleHost, "bad", project.StatusIdle),
		utt("b", project.RoleGuest, "good", project.StatusIdle),
	)
	p := newPipeline(s, &fakeSynth{failOn: map[string]error{"bad": errors.New("503")}}, 0)

	res, err := p.GenerateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Succeeded)

	a, _ := s.Utterance("a")
	b, _ := s.Utterance("b")
	assert.Equal(t, project.StatusError, a.Status)
	assert.Equal(t, project.StatusSuccess, b.Status)
}

func TestGenerateAllCancelIsResumable(t *testing.T) {
	s, _ := newTestStore(t, "P",
		utt("a", project.RoleHost, "one", project.StatusIdle),
		utt("b", project.RoleGuest, "two", project.StatusIdle),
	)
	synth := &fakeSynth{}
	p := newPipeline(s, synth, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.GenerateAll(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return len(synth.calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, p.Running())

	_, err := p.GenerateAll(context.Background())
	assert.ErrorIs(t, err, ErrBatchRunning)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, p.Running())

	a, _ := s.Utterance("a")
	b, _ := s.Utterance("b")
	assert.Equal(t, project.StatusSuccess, a.Status)
	assert.Equal(t, project.StatusIdle, b.Status)

	p2 := newPipeline(s, synth, 0)
	res, err := p2.GenerateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Len(t, synth.calls(), 2)
}

func TestGenerateAllStopsWhenProjectChanges(t *testing.T) {
	s, gw := newTestStore(t, "First",
		utt("1", project.RoleHost, "one", project.StatusIdle),
		utt("2", project.RoleHost, "two", project.StatusIdle),
	)
	other := project.Project{DisplayName: "Second", Utterances: []project.Utterance{utt("2", project.RoleHost, "other", project.StatusIdle)}}
	require.NoError(t, gw.Write(context.Background(), other.Key(), project.Document{Project: other, UpdatedAt: 2}))

	synth := &fakeSynth{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	p := newPipeline(s, synth, 0)

	type outcome struct {
		res BatchResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := p.GenerateAll(context.Background())
		done <- outcome{res, err}
	}()
	<-synth.entered
	require.NoError(t, s.LoadProject(context.Background(), "Second.json"))
	close(synth.block)

	out := <-done
	assert.ErrorIs(t, out.err, ErrProjectChanged)
	assert.Len(t, synth.calls(), 1)

	u, _ := s.Utterance("2")
	assert.Equal(t, project.StatusIdle, u.Status)
	assert.Equal(t, "other", u.Text)
}

func TestJobKey(t *testing.T) {
	assert.Equal(t, "Draft_Final_42", JobKey("Draft Final", "42"))
	assert.Equal(t, "播客_第一集_42", JobKey("播客 第一集", "42"))
	assert.Equal(t, "P____etc", JobKey("P", "../etc"))
}
