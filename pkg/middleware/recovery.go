package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var panicsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "callback_panics_total",
	Help: "Callback handler panics recovered",
})

// Recovery turns a handler panic into a plain-text 500 so the browser tab
// still tells the user to go back to the terminal. It must run outside
// RequestLogging; the correlation ID is read back from the response header.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				panicsTotal.Inc()
				l.ErrorContext(r.Context(), "callback handler panicked",
					slog.Any("panic", rec),
					slog.String("correlation_id", w.Header().Get(CorrelationHeader)),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("Something went wrong. Check the terminal for details.\n"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
