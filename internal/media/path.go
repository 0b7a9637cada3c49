// Package media переводит пути к сгенерированным клипам в ссылки для воспроизведения и обратно.
package media

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Scheme — схема ссылок на локальные файлы, которые понимает оболочка приложения.
const Scheme = "media://"

const fileScheme = "file://"

// Normalize приводит разделители пути к прямому слэшу.
func Normalize(p string) string { return strings.ReplaceAll(p, `\`, "/") }

// PlayableRef строит ссылку на клип с меткой времени, чтобы оболочка не отдавала устаревший кэш
// после перегенерации файла с тем же именем. Путь кодируется: %, # и ? в именах каталогов переживают Resolve.
func PlayableRef(path string, at time.Time) string {
	escaped := (&url.URL{Path: Normalize(path)}).EscapedPath()
	return Scheme + escaped + "?t=" + strconv.FormatInt(at.UnixMilli(), 10)
}

// Resolve превращает ссылку или сохранённый путь в путь файловой системы.
//
// Ссылки media:// и file:// обрезаются по ? и # и декодируются из %-кодировки.
// Обычный путь берётся буквально, снимается только суффикс сброса кэша вида ?t=123.
func Resolve(ref string) (string, error) {
	var p string
	switch {
	case strings.HasPrefix(ref, Scheme), strings.HasPrefix(ref, fileScheme):
		p = strings.TrimPrefix(strings.TrimPrefix(ref, Scheme), fileScheme)
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
		decoded, err := url.PathUnescape(p)
		if err != nil {
			return "", fmt.Errorf("media: decode %q: %w", ref, err)
		}
		p = stripDriveSlash(decoded)
	default:
		p = stripCacheBuster(ref)
	}
	if p == "" {
		return "", fmt.Errorf("media: empty path in %q", ref)
	}
	return filepath.Clean(filepath.FromSlash(Normalize(p))), nil
}

// stripCacheBuster снимает хвост ?ключ=значение, если в нём нет разделителей пути.
func stripCacheBuster(p string) string {
	i := strings.LastIndex(p, "?")
	if i < 0 {
		return p
	}
	if q := p[i+1:]; strings.Contains(q, "=") && !strings.ContainsAny(q, `/\`) {
		return p[:i]
	}
	return p
}

// stripDriveSlash превращает /C:/dir из file:///C:/dir в C:/dir.
func stripDriveSlash(p string) string {
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' && isLetter(p[1]) {
		return p[1:]
	}
	return p
}

func isLetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }
