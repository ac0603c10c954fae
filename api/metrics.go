package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName             = "task-api/api"
	observabilityEventName = "observability.event"
	tasksEventDomain       = "taskapi"
	attrPrefix             = "taskapi.tasks."
)

type routeInfo struct {
	route     string
	method    string
	spanName  string
	eventName string
}

var (
	listTasksRoute = routeInfo{
		route:     "/api/tasks",
		method:    http.MethodGet,
		spanName:  "tasks.list",
		eventName: "tasks.list.request",
	}
	createTaskRoute = routeInfo{
		route:     "/api/tasks",
		method:    http.MethodPost,
		spanName:  "tasks.create",
		eventName: "tasks.create.request",
	}
)

type taskRequestMetrics struct {
	logger          *log.Logger
	span            trace.Span
	info            routeInfo
	start           time.Time
	storageDuration time.Duration
	encodeDuration  time.Duration
	tasksReturned   int
	taskID          string
	requestID       string
	errorStage      string
}

func newTaskRequestMetrics(ctx context.Context, logger *log.Logger, info routeInfo) (*taskRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, info.spanName, trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		attribute.String("http.route", info.route),
		attribute.String("http.method", info.method),
	)
	return &taskRequestMetrics{
		logger: logger,
		span:   span,
		info:   info,
		start:  time.Now(),
	}, spanCtx
}

func (m *taskRequestMetrics) ObserveStorage(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.storageDuration = duration
}

func (m *taskRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *taskRequestMetrics) SetTasksReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.tasksReturned = count
}

func (m *taskRequestMetrics) SetTaskID(id string) {
	m.taskID = id
}

func (m *taskRequestMetrics) SetRequestID(id string) {
	m.requestID = id
}

func (m *taskRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log ends the span and emits one observability event to both the span and
// the logger.
func (m *taskRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	sevText, sevNumber := severityForStatus(status, err)
	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.info.route),
		attribute.String("http.method", m.info.method),
		attribute.Int("http.status_code", status),
		attribute.Float64(attrPrefix+"total_ms", durationToMillis(time.Since(m.start))),
	}
	if m.info.method == http.MethodGet {
		attrs = append(attrs, attribute.Int(attrPrefix+"tasks_returned", m.tasksReturned))
	}
	if m.storageDuration > 0 {
		attrs = append(attrs, attribute.Float64(attrPrefix+"storage_ms", durationToMillis(m.storageDuration)))
	}
	if m.encodeDuration > 0 {
		attrs = append(attrs, attribute.Float64(attrPrefix+"encode_ms", durationToMillis(m.encodeDuration)))
	}
	if m.taskID != "" {
		attrs = append(attrs, attribute.String(attrPrefix+"task_id", m.taskID))
	}
	if m.requestID != "" {
		attrs = append(attrs, attribute.String("http.request_id", m.requestID))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String(attrPrefix+"error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", m.info.eventName),
		attribute.String("event.domain", tasksEventDomain),
		attribute.String("severity_text", sevText),
		attribute.Int("severity_number", sevNumber),
	}, attrs...)

	m.span.SetAttributes(attrs...)
	m.span.AddEvent(observabilityEventName, trace.WithAttributes(eventAttrs...))
	if sevText == "ERROR" {
		desc := http.StatusText(status)
		if err != nil {
			desc = err.Error()
		}
		m.span.SetStatus(codes.Error, desc)
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()

	if m.logger == nil {
		return
	}
	attrMap := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		attrMap[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      m.info.eventName,
		"event.domain":    tasksEventDomain,
		"attributes":      attrMap,
		"severity_text":   sevText,
		"severity_number": sevNumber,
	}
	if sc := m.span.SpanContext(); sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
	}
	m.logger.WithFields(fields).Log(levelForSeverity(sevText), observabilityEventName)
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func levelForSeverity(text string) log.Level {
	switch text {
	case "ERROR":
		return log.ErrorLevel
	case "WARN":
		return log.WarnLevel
	default:
		return log.InfoLevel
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
