package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Instrument wraps the handler chain in otelhttp server instrumentation:
// a span per request plus the standard http.server.* metrics, emitted
// through the providers carried by the process telemetry.
func Instrument(operation string, m *app.Telemetry) Middleware {
	return instrument(operation,
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
		otelhttp.WithPropagators(m.TextMapPropagator()),
	)
}

func instrument(operation string, opts ...otelhttp.Option) Middleware {
	opts = append(opts, otelhttp.WithSpanNameFormatter(func(op string, r *http.Request) string {
		return op + " " + r.Method + " " + r.URL.Path
	}))
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, operation, opts...)
	}
}
