package pagination

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 9, 12, 30, 0, 500, time.UTC)
	encoded := EncodeCursor(Cursor{CreatedAt: at, ID: "VT-240309-ABC123"})

	decoded, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if !decoded.CreatedAt.Equal(at) || decoded.ID != "VT-240309-ABC123" {
		t.Fatalf("unexpected cursor %+v", decoded)
	}
}

func TestParseCursorEmptyAndInvalid(t *testing.T) {
	if c, err := ParseCursor(" "); err != nil || c != nil {
		t.Fatalf("expected nil cursor for blank input, got %+v %v", c, err)
	}
	if _, err := ParseCursor("%%%"); err == nil {
		t.Fatal("expected decode error")
	}
	for _, raw := range []string{`{"t":1700000000000000000}`, `{"id":"VT-1"}`, `[1,2]`} {
		if _, err := ParseCursor(base64.RawURLEncoding.EncodeToString([]byte(raw))); err == nil {
			t.Fatalf("expected %s to be rejected", raw)
		}
	}
}

func TestTrimBuildsNextCursor(t *testing.T) {
	rows := []int{3, 2, 1}
	page := Trim(rows, 2, func(v int) Cursor {
		return Cursor{CreatedAt: time.Unix(int64(v), 0), ID: "row"}
	})
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("unexpected page %+v", page)
	}
	next, err := ParseCursor(page.NextCursor)
	if err != nil {
		t.Fatalf("parse next cursor: %v", err)
	}
	if next.CreatedAt.Unix() != 2 {
		t.Fatalf("cursor should point at last kept row, got %v", next.CreatedAt)
	}

	last := Trim(rows, 5, func(int) Cursor { return Cursor{} })
	if last.NextCursor != "" || len(last.Items) != 3 {
		t.Fatalf("unexpected final page %+v", last)
	}
}

func TestCursorIsURLSafe(t *testing.T) {
	encoded := EncodeCursor(Cursor{CreatedAt: time.Now(), ID: "VT-261014-??>>"})
	if strings.ContainsAny(encoded, "+/=") {
		t.Fatalf("cursor %q is not URL safe", encoded)
	}
}

func TestNormalizeLimit(t *testing.T) {
	if NormalizeLimit(0) != DefaultLimit || NormalizeLimit(1000) != MaxLimit || NormalizeLimit(7) != 7 {
		t.Fatal("unexpected limit normalization")
	}
	if LimitWithBuffer(7) != 8 {
		t.Fatal("expected buffer of one")
	}
}
