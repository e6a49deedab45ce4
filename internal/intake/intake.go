// Package intake turns fault report files into query text.
package intake

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// MaxQueryLen bounds the query text extracted from a report.
const MaxQueryLen = 4000

// ErrNoText is returned when a report contains no usable text.
var ErrNoText = errors.New("report contains no text")

// ReadReport extracts the text of a plain-text or PDF report and normalizes
// it into a single query string.
func ReadReport(path string) (string, error) {
	var (
		raw string
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		raw, err = readPDF(path)
	default:
		raw, err = readText(path)
	}
	if err != nil {
		return "", err
	}

	text := Normalize(raw)
	if text == "" {
		return "", fmt.Errorf("%s: %w", path, ErrNoText)
	}
	return text, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading report: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("reading report %s: not valid UTF-8 text", path)
	}
	return string(data), nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		// pdf.Open hands back the file even when the header check fails.
		if f != nil {
			f.Close()
		}
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	return buf.String(), nil
}

// Normalize collapses whitespace runs to single spaces, drops control
// characters and truncates to MaxQueryLen runes on a word boundary.
func Normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
			continue
		case unicode.IsControl(r):
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	out := b.String()

	if utf8.RuneCountInString(out) <= MaxQueryLen {
		return out
	}
	runes := []rune(out)[:MaxQueryLen]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > MaxQueryLen/2 {
		cut = cut[:i]
	}
	return cut
}
