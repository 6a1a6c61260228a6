package item

import (
	"strings"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Type
	}{
		{"git command", "git status", TypeCommand},
		{"prompt marker", "$ ls -la /tmp", TypeCommand},
		{"user prompt", "alice@box:~$ make test", TypeCommand},
		{"url", "https://example.com", TypeURL},
		{"url with whitespace padding", "  https://example.com/a?b=c\n", TypeURL},
		{"www", "www.example.org", TypeURL},
		{"home path", "~/projects/clipstash", TypeURL},
		{"absolute path", "/usr/local/bin", TypeURL},
		{"inline function", "function f() { return 1; }", TypeCode},
		{"go snippet", "func main() {\n\tfmt.Println(\"hi\")\n}", TypeCode},
		{"python indented", "def f(x):\n    return x\n    pass", TypeCode},
		{"plain text", "Hello world", TypeText},
		{"sentence with parens", "I went home (yesterday).", TypeText},
		{"url inside prose", "see https://example.com for details", TypeText},
		{"blank", "   ", TypeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestMakePreview(t *testing.T) {
	short := "hello"
	if got := MakePreview(short); got != short {
		t.Errorf("MakePreview(%q) = %q", short, got)
	}

	long := strings.Repeat("é", 150)
	got := MakePreview(long)
	if CountChars(got) != PreviewRunes {
		t.Errorf("preview runes = %d, want %d", CountChars(got), PreviewRunes)
	}
	if got != strings.Repeat("é", PreviewRunes) {
		t.Error("preview split a multi-byte character")
	}
}

func TestNew(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	it := New("git push origin main", SourceClipboard, ts)

	if it.Type != TypeCommand {
		t.Errorf("Type = %q, want %q", it.Type, TypeCommand)
	}
	if it.Length != 20 {
		t.Errorf("Length = %d, want 20", it.Length)
	}
	if !it.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", it.Timestamp, ts)
	}
	if it.ID != "" {
		t.Errorf("ID = %q, want empty until stored", it.ID)
	}
}

func TestNewID_RoundTripsTime(t *testing.T) {
	ts := time.Date(2024, 12, 31, 23, 59, 58, 123456000, time.UTC)
	id, err := NewID(ts)
	if err != nil {
		t.Fatalf("NewID failed: %v", err)
	}
	if !ValidID(id) {
		t.Fatalf("ValidID(%q) = false", id)
	}
	if !strings.HasPrefix(id, "20241231_235958_123456_") {
		t.Errorf("id = %q, want prefix 20241231_235958_123456_", id)
	}
	got, ok := ParseIDTime(id)
	if !ok {
		t.Fatalf("ParseIDTime(%q) failed", id)
	}
	if !got.Equal(ts) {
		t.Errorf("ParseIDTime = %v, want %v", got, ts)
	}
}

func TestNewID_UniqueWithinSameInstant(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewID(ts)
		if err != nil {
			t.Fatalf("NewID failed: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestNewID_RejectsOutOfRangeTimes(t *testing.T) {
	tests := []time.Time{
		time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Unix(-1, 0),
		time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(20000, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, ts := range tests {
		if id, err := NewID(ts); err == nil {
			t.Errorf("NewID(%v) = %q, want error", ts, id)
		}
	}

	for _, ts := range []time.Time{time.Unix(0, 0), time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)} {
		id, err := NewID(ts)
		if err != nil {
			t.Errorf("NewID(%v) failed: %v", ts, err)
			continue
		}
		if !ValidID(id) {
			t.Errorf("ValidID(%q) = false", id)
		}
	}
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"20240101_120000_000001_01ARZ3ND", true},
		{"20240101_120000_000001", true},
		{"../../etc/passwd", false},
		{"20240101_120000_000001_01ARZ3N/", false},
		{"", false},
		{"20240101_120000", false},
	}
	for _, tt := range tests {
		if got := ValidID(tt.id); got != tt.want {
			t.Errorf("ValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestParseIDTime_Legacy(t *testing.T) {
	got, ok := ParseIDTime("20230615_081530_250000")
	if !ok {
		t.Fatal("legacy id rejected")
	}
	want := time.Date(2023, 6, 15, 8, 15, 30, 250000000, time.Local)
	if !got.Equal(want) {
		t.Errorf("ParseIDTime = %v, want %v", got, want)
	}
}

func TestExportRecord_ToItem(t *testing.T) {
	ts := time.Date(2024, 5, 5, 5, 5, 5, 0, time.UTC)
	rec := ExportRecord{Timestamp: ts, Source: "bogus", Type: TypeURL, Length: 99, Text: "Hello world"}

	it := rec.ToItem()
	if it.Source != SourceClipboard {
		t.Errorf("Source = %q, want clipboard fallback", it.Source)
	}
	if it.Type != TypeText {
		t.Errorf("Type = %q, want recomputed %q", it.Type, TypeText)
	}
	if it.Length != 11 {
		t.Errorf("Length = %d, want recomputed 11", it.Length)
	}
}
