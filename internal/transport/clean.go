package transport

import (
	"strings"
)

// CleanOptions — как приводить сырой ответ к полю данных строки.
type CleanOptions struct {
	// Multiline: ответ из нескольких предложений, разделённых SentenceDelimiter;
	// полные предложения склеиваются через Delimiter, неполный хвост отбрасывается.
	Multiline         bool
	SentenceDelimiter string
	Delimiter         string
	// HandleGarbled: не-ASCII байты выбрасываются; иначе такой ответ недействителен.
	HandleGarbled bool
	// TwoLine: ответ из двух строк (Thermo 42C) — вторая строка до CR дописывается к первой.
	TwoLine bool
}

// Clean возвращает очищенные данные и false, если строку нужно пропустить.
func Clean(raw string, opts CleanOptions) (string, bool) {
	if !isASCII(raw) {
		if !opts.HandleGarbled {
			return "", false
		}
		raw = stripNonASCII(raw)
	}
	var out string
	switch {
	case opts.Multiline && opts.SentenceDelimiter != "":
		parts := strings.Split(raw, opts.SentenceDelimiter)
		// последний элемент — всё после последнего разделителя, предложение не завершено
		out = strings.Join(parts[:len(parts)-1], opts.Delimiter)
	case opts.TwoLine:
		out = strings.TrimLeft(raw, "\r\n")
		nl := strings.IndexByte(out, '\n')
		if nl < 0 {
			out = firstLine(out)
			break
		}
		out = strings.TrimRight(out[:nl], "\r") + firstLine(out[nl+1:])
	default:
		out = firstLine(strings.TrimLeft(raw, "\r\n"))
	}
	if strings.TrimSpace(out) == "" {
		return "", false
	}
	return out, true
}

// firstLine обрезает s на первом CR или LF.
func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}

func stripNonASCII(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] <= 0x7f {
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
