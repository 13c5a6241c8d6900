package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{name: "config error", code: "C002", wantMsg: "Redis URL required", wantCat: CategoryConfig},
		{name: "broker error", code: "C100", wantMsg: "Broker unavailable", wantCat: CategoryBroker},
		{name: "export error", code: "C200", wantMsg: "Export target unavailable", wantCat: CategoryExport},
		{name: "unknown error code", code: "C999", wantMsg: "Unknown error", wantCat: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestRegisteredCodesHaveSuggestions(t *testing.T) {
	for _, code := range Codes() {
		tmpl, ok := Lookup(code)
		if !ok {
			t.Fatalf("Lookup(%q) failed", code)
		}
		if tmpl.Category == "" || tmpl.Message == "" || tmpl.Suggestion == "" {
			t.Errorf("%s: incomplete template %+v", code, tmpl)
		}
	}
}

func TestErrorString(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := New("C100").WithDetail("redis://localhost:6379").Wrap(cause)

	want := "C100: Broker unavailable: redis://localhost:6379: unexpected EOF"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryServer, "listen on %s", ":3000")
	if err.Message != "listen on :3000" || err.Code != "" {
		t.Errorf("got %+v", err)
	}
	if err.Error() != "listen on :3000" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "C001") != nil {
		t.Error("FromError(nil) should be nil")
	}

	orig := New("C003")
	if got := FromError(orig, "C001"); got != orig {
		t.Error("FromError should return an existing *Error unchanged")
	}

	plain := errors.New("boom")
	got := FromError(plain, "C300")
	if got.Code != "C300" || !errors.Is(got, plain) {
		t.Errorf("got %+v", got)
	}
}

func TestJoin(t *testing.T) {
	if Join() != nil {
		t.Error("Join() should be nil")
	}

	a := New("C004").WithDetail("level=loud")
	if Join(a) != a {
		t.Error("Join of one error should return it")
	}

	b := New("C005").WithDetail("send queue 0")
	err := Join(a, b)
	var e *Error
	if !errors.As(err, &e) || e.Code != "C004" {
		t.Fatalf("joined error = %v", err)
	}
	if !errors.Is(err, b) {
		t.Error("joined error should wrap the second error")
	}
	if a.Wrapped != nil {
		t.Error("Join must not modify its arguments")
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	out := New("C002").WithDetail("COLLABMD_REDIS_URL is empty").Format()
	for _, want := range []string{
		"ERROR C002: Redis URL required",
		"COLLABMD_REDIS_URL is empty",
		"Hint: Set COLLABMD_REDIS_URL",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	got := New("C003").WithDetail("kafka").FormatCompact()
	want := "[config] C003: Unknown broker: kafka"
	if got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestFormatJSON(t *testing.T) {
	raw := New("C100").Wrap(errors.New("dial tcp: refused")).FormatJSON()

	var out map[string]string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("invalid JSON %s: %v", raw, err)
	}
	if out["code"] != "C100" || out["category"] != "broker" || out["cause"] != "dial tcp: refused" {
		t.Errorf("got %v", out)
	}
}

func TestPrintError(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	PrintError(&buf, errors.New("plain failure"))
	if !strings.Contains(buf.String(), "ERROR: plain failure") {
		t.Errorf("got %q", buf.String())
	}

	buf.Reset()
	PrintError(&buf, New("C300"))
	if !strings.Contains(buf.String(), "ERROR C300: Server failed") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 30), 20)
	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line %q longer than 20", l)
		}
	}
	if wrapText("", 10) != nil {
		t.Error("empty text should produce no lines")
	}
}
