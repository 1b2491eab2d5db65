package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"

	otellog "go.opentelemetry.io/otel/log"
)

func TestStatusStr(t *testing.T) {
	if got := statusStr(nil); got != "ok" {
		t.Errorf("statusStr(nil) = %q, want \"ok\"", got)
	}
	if got := statusStr(errors.New("boom")); got != "error" {
		t.Errorf("statusStr(err) = %q, want \"error\"", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"hello", 10, "hello"},
		{"abcde", 5, "abcde"},
		{"abcdefghij", 5, "abcde…"},
		{"", 10, ""},
		{"héllo", 2, "h…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.limit); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestSeverity(t *testing.T) {
	if got := severity(nil); got != otellog.SeverityInfo {
		t.Errorf("severity(nil) = %v, want SeverityInfo", got)
	}
	if got := severity(errors.New("err")); got != otellog.SeverityError {
		t.Errorf("severity(err) = %v, want SeverityError", got)
	}
}

func TestErrKV(t *testing.T) {
	if kv := errKV(nil); kv.Value.AsString() != "" {
		t.Errorf("errKV(nil) value = %q, want empty", kv.Value.AsString())
	}
	long := errors.New(strings.Repeat("x", maxErrorLog+10))
	if kv := errKV(long); !strings.HasSuffix(kv.Value.AsString(), "…") {
		t.Error("long errors should be truncated")
	}
}

// The Record helpers must be safe against the no-op global providers.
func TestRecordersNoop(t *testing.T) {
	resetInstruments()
	t.Cleanup(resetInstruments)
	ctx := context.Background()

	RecordSessionStart(ctx, "sh", 1, nil)
	RecordSessionStart(ctx, "su", 4, errors.New("shell access denied"))
	RecordSessionStop(ctx, "sh", "closed")
	RecordSessionStop(ctx, "su", "died")
	RecordCommand(ctx, "sh", 0, 1.5, false)
	RecordCommand(ctx, "sh", -1, 3, true)
	RecordCompaction(ctx, "sh", 3750)
	RecordProbe(ctx, "sh", "ready", 12)
	RecordProbe(ctx, "su", "timeout", 25000)
}

func TestInitDisabledWithoutEnv(t *testing.T) {
	t.Setenv(EnvMetricsURL, "")
	t.Setenv(EnvLogsURL, "")
	initMu.Lock()
	initDone = false
	globalProvider = nil
	initMu.Unlock()

	p, err := Init(context.Background(), "shellpipe", "test")
	if err != nil || p != nil {
		t.Errorf("Init = (%v, %v), want (nil, nil)", p, err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("nil Provider Shutdown: %v", err)
	}
}

func TestSessionEnv(t *testing.T) {
	t.Setenv(EnvMetricsURL, "")
	t.Setenv(EnvLogsURL, "")
	if env := SessionEnv("sh"); env != nil {
		t.Errorf("SessionEnv with telemetry off = %v, want nil", env)
	}

	t.Setenv(EnvMetricsURL, "http://metrics.example/push")
	env := SessionEnv("su")
	if env["OTEL_RESOURCE_ATTRIBUTES"] != "shellpipe.session=su" {
		t.Errorf("resource attrs = %q", env["OTEL_RESOURCE_ATTRIBUTES"])
	}
	if env["OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"] != "http://metrics.example/push" {
		t.Errorf("metrics endpoint = %q", env["OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"])
	}
	if _, ok := env["OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"]; ok {
		t.Error("logs endpoint should be absent when unset")
	}
}
