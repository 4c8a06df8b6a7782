package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "prism-board/api"
	requestSpanName    = "board.http.request"
	requestEventName   = "board.request"
	requestEventDomain = "prism-board"
	observabilityEvent = "observability.event"
)

// RequestMetricsMiddleware wraps each request in a span and emits one
// structured observability event per request, both to the log and as a span
// event.
func RequestMetricsMiddleware(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m, ctx := newRequestMetrics(c, logger)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			} else if err != nil && !c.Response().Committed {
				status = http.StatusInternalServerError
			}
			if stage, ok := c.Get(errorStageKey).(string); ok {
				m.errorStage = stage
			}
			m.Log(status, err)
			return err
		}
	}
}

type requestMetrics struct {
	logger     *log.Logger
	span       trace.Span
	start      time.Time
	route      string
	method     string
	requestID  string
	errorStage string
}

func newRequestMetrics(c echo.Context, logger *log.Logger) (*requestMetrics, context.Context) {
	route := c.Path()
	if route == "" {
		route = c.Request().URL.Path
	}
	ctx, span := otel.Tracer(tracerName).Start(c.Request().Context(), requestSpanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.route", route),
			attribute.String("http.method", c.Request().Method),
		),
	)
	return &requestMetrics{
		logger:    logger,
		span:      span,
		start:     time.Now(),
		route:     route,
		method:    c.Request().Method,
		requestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}, ctx
}

func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	defer m.span.End()

	total := durationToMillis(time.Since(m.start))
	sevText, sevNumber := severityForStatus(status, err)

	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.String("http.method", m.method),
		attribute.Int("http.status_code", status),
		attribute.Float64("prism.board.total_ms", total),
		attribute.String("event.name", requestEventName),
		attribute.String("event.domain", requestEventDomain),
		attribute.String("severity_text", sevText),
	}
	logAttrs := map[string]any{
		"http.route":           m.route,
		"http.method":          m.method,
		"http.status_code":     status,
		"prism.board.total_ms": total,
	}
	if m.requestID != "" {
		attrs = append(attrs, attribute.String("http.request_id", m.requestID))
		logAttrs["http.request_id"] = m.requestID
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("prism.board.error_stage", m.errorStage))
		logAttrs["prism.board.error_stage"] = m.errorStage
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
		logAttrs["error.message"] = err.Error()
	}

	m.span.SetAttributes(attribute.Int("http.status_code", status))
	m.span.AddEvent(observabilityEvent, trace.WithAttributes(attrs...))
	if sevNumber >= 17 {
		desc := http.StatusText(status)
		if err != nil {
			desc = err.Error()
		}
		m.span.SetStatus(codes.Error, desc)
	} else {
		m.span.SetStatus(codes.Ok, "")
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"severity_text":   sevText,
		"severity_number": sevNumber,
		"attributes":      logAttrs,
	}
	if sc := m.span.SpanContext(); sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
		fields["span_id"] = sc.SpanID().String()
	}
	entry := m.logger.WithFields(fields)
	switch sevText {
	case "ERROR":
		entry.Error(observabilityEvent)
	case "WARN":
		entry.Warn(observabilityEvent)
	default:
		entry.Info(observabilityEvent)
	}
}

// severityForStatus follows the OpenTelemetry log severity numbers.
func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	case err != nil:
		return "ERROR", 17
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
