package intake

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadReport_Text(t *testing.T) {
	path := writeFile(t, "report.txt", "Main engine\n\n  overheating\tafter 2h\x00 at sea.\n")
	got, err := ReadReport(path)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if want := "Main engine overheating after 2h at sea."; got != want {
		t.Errorf("ReadReport = %q, want %q", got, want)
	}
}

func TestReadReport_Empty(t *testing.T) {
	path := writeFile(t, "blank.md", " \n\t\n")
	if _, err := ReadReport(path); !errors.Is(err, ErrNoText) {
		t.Errorf("error = %v, want ErrNoText", err)
	}
}

func TestReadReport_Missing(t *testing.T) {
	if _, err := ReadReport(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadReport_InvalidUTF8(t *testing.T) {
	path := writeFile(t, "bin.txt", "\xff\xfe\x00bad")
	if _, err := ReadReport(path); err == nil {
		t.Error("expected error for binary content")
	}
}

func TestReadReport_BrokenPDF(t *testing.T) {
	path := writeFile(t, "report.PDF", "not really a pdf")
	if _, err := ReadReport(path); err == nil {
		t.Error("expected error for malformed pdf")
	}
}

func TestNormalize_Truncates(t *testing.T) {
	long := strings.Repeat("vibration ", MaxQueryLen)
	got := Normalize(long)
	if n := utf8.RuneCountInString(got); n > MaxQueryLen {
		t.Errorf("len = %d runes, want <= %d", n, MaxQueryLen)
	}
	if strings.HasSuffix(got, " ") || strings.HasSuffix(got, "vib") {
		t.Errorf("truncation should end on a word boundary, got suffix %q", got[len(got)-10:])
	}
}
