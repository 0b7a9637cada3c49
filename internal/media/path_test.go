package media

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayableRef(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "media://C:/Banter/audio/a.mp3?t=1700000000123", PlayableRef(`C:\Banter\audio\a.mp3`, at))
	assert.Equal(t, "media:///srv/My%20Show%20%232/100%25/a%3F.mp3?t=1700000000123", PlayableRef("/srv/My Show #2/100%/a?.mp3", at))
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{name: "plain path", ref: "/tmp/audio/a.mp3", want: "/tmp/audio/a.mp3"},
		{name: "plain path with cache buster", ref: "/tmp/audio/a.mp3?t=123", want: "/tmp/audio/a.mp3"},
		{name: "plain path keeps percent and hash", ref: "/tmp/100%/Show #2/a%20b.mp3", want: "/tmp/100%/Show #2/a%20b.mp3"},
		{name: "plain path keeps question mark in name", ref: "/tmp/what?.mp3", want: "/tmp/what?.mp3"},
		{name: "scheme and cache buster", ref: "media:///tmp/audio/a.mp3?t=123", want: "/tmp/audio/a.mp3"},
		{name: "percent encoded", ref: "media:///tmp/My%20Podcast/a.mp3", want: "/tmp/My Podcast/a.mp3"},
		{name: "fragment", ref: "media:///tmp/a.mp3#x", want: "/tmp/a.mp3"},
		{name: "file url with drive", ref: "file:///C:/Users/me/A%20B.mp3", want: "C:/Users/me/A B.mp3"},
		{name: "backslashes", ref: `\tmp\audio\b.mp3`, want: "/tmp/audio/b.mp3"},
		{name: "backslashes with cache buster", ref: `C:\Banter\audio\b.mp3?t=5`, want: "C:/Banter/audio/b.mp3"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Resolve(tc.ref)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tc.want), got)
		})
	}
}

func TestResolveRoundTrip(t *testing.T) {
	paths := []string{
		"/srv/banter/audio/Draft_1.mp3",
		"/home/u/100%/audio/a.mp3",
		"/home/u/Show #2/audio/a.mp3",
		"/home/u/a%20b/x.mp3",
		"/home/u/Why?/x.mp3",
		"/home/u/Проекты/音频/a.mp3",
	}
	for _, raw := range paths {
		p := filepath.FromSlash(raw)
		got, err := Resolve(PlayableRef(p, time.Now()))
		require.NoError(t, err, raw)
		assert.Equal(t, p, got, raw)
	}
}

func TestResolveErrors(t *testing.T) {
	_, err := Resolve("media://?t=1")
	assert.Error(t, err)
	_, err = Resolve("media:///tmp/%zz.mp3")
	assert.Error(t, err)
	_, err = Resolve("")
	assert.Error(t, err)
}
