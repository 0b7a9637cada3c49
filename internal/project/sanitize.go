package project

import (
	"strings"
	"unicode"
)

// Extension — расширение документов проекта в хранилище.
const Extension = ".json"

// Границы блока унифицированных иероглифов, допустимых в ключах заданий синтеза.
const (
	ideographFirst = '一'
	ideographLast  = '龥'
)

// Sanitize превращает отображаемое имя в безопасный для файловой системы идентификатор:
// каждый символ вне [A-Za-z0-9_-] заменяется на '_'. Функция тотальна, пустой ввод не ошибка.
// Разные имена могут дать один и тот же ключ.
func Sanitize(name string) string { return sanitize(name, false) }

// SanitizeJobKey — вариант для ключей заданий синтеза, дополнительно сохраняет иероглифы,
// чтобы имена файлов оставались различимыми для реплик на китайском.
func SanitizeJobKey(name string) string { return sanitize(name, true) }

// Key возвращает ключ хранилища для отображаемого имени.
func Key(displayName string) string { return Sanitize(displayName) + Extension }

// DisplayNameFromKey восстанавливает имя из ключа, если документ его не содержит.
func DisplayNameFromKey(key string) string { return strings.TrimSuffix(key, Extension) }

func sanitize(name string, ideographs bool) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if keyRune(r) || (ideographs && r >= ideographFirst && r <= ideographLast) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

func keyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	}
	return false
}

// HasSpeech проверяет, есть ли в тексте хоть один произносимый символ: буква, цифра или иероглиф.
// Строки вида "......" или "？" синтезатору отправлять бессмысленно.
func HasSpeech(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// RecentLimit — сколько последних голосов хранит проект.
const RecentLimit = 8

// PushRecent переносит id в начало списка недавних голосов без повторов, обрезая до RecentLimit.
func PushRecent(list []string, id string) []string {
	out := make([]string, 0, min(len(list)+1, RecentLimit))
	if id != "" {
		out = append(out, id)
	}
	for _, v := range list {
		if len(out) == RecentLimit {
			break
		}
		if v == id || v == "" {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == v {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}
