package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func resetLogger() {
	_ = Init(Options{})
}

func capture(t *testing.T, opts Options) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	opts.Output = buf
	if err := Init(opts); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(resetLogger)
	return buf
}

// --- Init Tests ---

func TestInit_Levels(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		logged  []string
		dropped []string
	}{
		{"default", Options{}, []string{"info", "warn", "error"}, []string{"debug"}},
		{"debug", Options{Debug: true}, []string{"debug", "info"}, nil},
		{"quiet", Options{Quiet: true}, []string{"error"}, []string{"debug", "info", "warn"}},
		{"quiet overrides debug", Options{Debug: true, Quiet: true}, []string{"error"}, []string{"debug", "info"}},
		{"explicit level", Options{Level: "warn", Debug: true}, []string{"warn", "error"}, []string{"debug", "info"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture(t, tt.opts)
			Debug("msg-debug")
			Info("msg-info")
			Warn("msg-warn")
			Error("msg-error")

			out := buf.String()
			for _, l := range tt.logged {
				if !strings.Contains(out, "msg-"+l) {
					t.Errorf("expected %s message in output:\n%s", l, out)
				}
			}
			for _, l := range tt.dropped {
				if strings.Contains(out, "msg-"+l) {
					t.Errorf("did not expect %s message in output:\n%s", l, out)
				}
			}
		})
	}
}

func TestInit_UnknownLevel(t *testing.T) {
	if err := Init(Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestInit_JSONFormat(t *testing.T) {
	buf := capture(t, Options{JSON: true})
	Info("run complete", "partitions", 3)

	out := buf.String()
	if !strings.HasPrefix(out, "{") || !strings.Contains(out, `"msg":"run complete"`) {
		t.Errorf("expected JSON record, got %q", out)
	}
	if !strings.Contains(out, `"partitions":3`) {
		t.Errorf("expected partitions attribute, got %q", out)
	}
}

func TestInit_CustomLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	custom := slog.New(slog.NewTextHandler(buf, nil))
	if err := Init(Options{Logger: custom, Debug: true}); err != nil {
		t.Fatal(err)
	}
	defer resetLogger()

	if Logger() != custom {
		t.Error("expected custom logger to be installed")
	}
	Info("via custom")
	if !strings.Contains(buf.String(), "via custom") {
		t.Error("expected message in custom logger output")
	}
}

func TestSetLogger_IgnoresNil(t *testing.T) {
	before := Logger()
	SetLogger(nil)
	if Logger() != before {
		t.Error("SetLogger(nil) replaced the logger")
	}
}

// --- ParseLevel Tests ---

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// --- With Tests ---

func TestWith_AddsAttributes(t *testing.T) {
	buf := capture(t, Options{})
	With("partition", "blr").Info("page done")

	out := buf.String()
	if !strings.Contains(out, "page done") || !strings.Contains(out, "partition=blr") {
		t.Errorf("expected message with attribute, got %q", out)
	}
}

// --- Context Tests ---

func TestContextVariants(t *testing.T) {
	buf := capture(t, Options{Debug: true})
	ctx := context.Background()

	DebugContext(ctx, "ctx-debug")
	InfoContext(ctx, "ctx-info")
	WarnContext(ctx, "ctx-warn")
	ErrorContext(ctx, "ctx-error")

	for _, m := range []string{"ctx-debug", "ctx-info", "ctx-warn", "ctx-error"} {
		if !strings.Contains(buf.String(), m) {
			t.Errorf("expected %q in output", m)
		}
	}
}
