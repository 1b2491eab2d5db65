package telemetry

import (
	"context"
	"sync"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterRecorderName = "github.com/julianknutsen/shellpipe"
	loggerName        = "shellpipe"

	// maxErrorLog bounds the error text attached to log records. Startup
	// errors carry whatever the process printed.
	maxErrorLog = 1024
)

// recorderInstruments holds the lazily created metric instruments.
type recorderInstruments struct {
	sessionStartTotal metric.Int64Counter
	sessionStopTotal  metric.Int64Counter
	commandTotal      metric.Int64Counter
	compactionTotal   metric.Int64Counter
	probeTotal        metric.Int64Counter

	commandDurationHist metric.Float64Histogram
	probeDurationHist   metric.Float64Histogram
}

var (
	instMu   sync.Mutex
	instOnce = &sync.Once{}
	inst     recorderInstruments
)

// resetInstruments makes the next Record call rebuild the instruments
// against the current global MeterProvider.
func resetInstruments() {
	instMu.Lock()
	defer instMu.Unlock()
	instOnce = &sync.Once{}
}

// instruments returns the recorder instruments, creating them on first use.
func instruments() *recorderInstruments {
	instMu.Lock()
	once := instOnce
	instMu.Unlock()
	once.Do(func() {
		m := otel.GetMeterProvider().Meter(meterRecorderName)

		inst.sessionStartTotal, _ = m.Int64Counter("shellpipe.session.starts.total",
			metric.WithDescription("Total session start outcomes"),
		)
		inst.sessionStopTotal, _ = m.Int64Counter("shellpipe.session.stops.total",
			metric.WithDescription("Total session stops"),
		)
		inst.commandTotal, _ = m.Int64Counter("shellpipe.commands.total",
			metric.WithDescription("Total commands reaching a terminal state"),
		)
		inst.compactionTotal, _ = m.Int64Counter("shellpipe.queue.compactions.total",
			metric.WithDescription("Total command history compactions"),
		)
		inst.probeTotal, _ = m.Int64Counter("shellpipe.probe.total",
			metric.WithDescription("Total readiness probe outcomes"),
		)
		inst.commandDurationHist, _ = m.Float64Histogram("shellpipe.command.duration_ms",
			metric.WithDescription("Time from write to terminal notice in milliseconds"),
			metric.WithUnit("ms"),
		)
		inst.probeDurationHist, _ = m.Float64Histogram("shellpipe.probe.duration_ms",
			metric.WithDescription("Readiness probe latency in milliseconds"),
			metric.WithUnit("ms"),
		)
	})
	return &inst
}

// statusStr returns "ok" or "error" depending on whether err is nil.
func statusStr(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// emit sends an OTel log record with the given body and attributes.
func emit(ctx context.Context, body string, sev otellog.Severity, attrs ...otellog.KeyValue) {
	logger := global.GetLoggerProvider().Logger(loggerName)
	var r otellog.Record
	r.SetBody(otellog.StringValue(body))
	r.SetSeverity(sev)
	r.AddAttributes(attrs...)
	logger.Emit(ctx, r)
}

// errKV returns a log KeyValue with the error message, or "" if nil.
func errKV(err error) otellog.KeyValue {
	if err != nil {
		return otellog.String("error", truncate(err.Error(), maxErrorLog))
	}
	return otellog.String("error", "")
}

// severity returns SeverityInfo on success, SeverityError on failure.
func severity(err error) otellog.Severity {
	if err != nil {
		return otellog.SeverityError
	}
	return otellog.SeverityInfo
}

// truncate trims s to limit bytes and appends "…" when truncated,
// without splitting a multi-byte rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut + "…"
}

// RecordSessionStart records the outcome of starting a session after
// attempts spawn attempts.
func RecordSessionStart(ctx context.Context, session string, attempts int, err error) {
	in := instruments()
	status := statusStr(err)
	in.sessionStartTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("session", session),
			attribute.String("status", status),
		),
	)
	emit(ctx, "session.start", severity(err),
		otellog.String("session", session),
		otellog.Int("attempts", attempts),
		otellog.String("status", status),
		errKV(err),
	)
}

// RecordSessionStop records a session ending. reason is "closed" when it
// was asked to close and "died" otherwise.
func RecordSessionStop(ctx context.Context, session, reason string) {
	in := instruments()
	in.sessionStopTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("session", session),
			attribute.String("reason", reason),
		),
	)
	sev := otellog.SeverityInfo
	if reason != "closed" {
		sev = otellog.SeverityWarn
	}
	emit(ctx, "session.stop", sev,
		otellog.String("session", session),
		otellog.String("reason", reason),
	)
}

// RecordCommand records a command's terminal transition.
func RecordCommand(ctx context.Context, session string, exitCode int, durationMs float64, terminated bool) {
	in := instruments()
	outcome := "finished"
	if terminated {
		outcome = "terminated"
	}
	attrs := metric.WithAttributes(
		attribute.String("session", session),
		attribute.String("outcome", outcome),
	)
	in.commandTotal.Add(ctx, 1, attrs)
	in.commandDurationHist.Record(ctx, durationMs, attrs)

	sev := otellog.SeverityDebug
	if terminated {
		sev = otellog.SeverityWarn
	}
	emit(ctx, "command."+outcome, sev,
		otellog.String("session", session),
		otellog.Int("exit_code", exitCode),
		otellog.Float64("duration_ms", durationMs),
	)
}

// RecordCompaction records a command history compaction.
func RecordCompaction(ctx context.Context, session string, dropped int) {
	in := instruments()
	in.compactionTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("session", session)),
	)
	emit(ctx, "queue.compaction", otellog.SeverityDebug,
		otellog.String("session", session),
		otellog.Int("dropped", dropped),
	)
}

// RecordProbe records a readiness probe outcome: "ready", "timeout", or
// "denied".
func RecordProbe(ctx context.Context, session, result string, durationMs float64) {
	in := instruments()
	attrs := metric.WithAttributes(
		attribute.String("session", session),
		attribute.String("result", result),
	)
	in.probeTotal.Add(ctx, 1, attrs)
	in.probeDurationHist.Record(ctx, durationMs, attrs)

	sev := otellog.SeverityInfo
	if result != "ready" {
		sev = otellog.SeverityWarn
	}
	emit(ctx, "session.probe", sev,
		otellog.String("session", session),
		otellog.String("result", result),
		otellog.Float64("duration_ms", durationMs),
	)
}
