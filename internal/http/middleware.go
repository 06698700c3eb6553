package httpapi

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/codeBaron-dev/Rider/internal/observability"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	exchangeKey
)

// exchange is the per-request record the access log is written from.
// Handlers add rider-facing fields to it through annotate.
type exchange struct {
	id     string
	start  time.Time
	status int
	bytes  int64
	attrs  []slog.Attr
}

func (s *Server) registerMiddleware() {
	// panics are turned into 500s inside logAccess so they still get logged
	s.mux.Use(s.tagRequest, s.logAccess, s.recoverPanics)
}

// tagRequest assigns the request id and attaches the exchange record.
func (s *Server) tagRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ex := &exchange{id: id, start: time.Now(), status: http.StatusOK}
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		ctx = context.WithValue(ctx, exchangeKey, ex)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ex := exchangeFrom(r.Context())
		if ex == nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(&countingWriter{ResponseWriter: w, ex: ex}, r)

		route := routeTemplate(r)
		elapsed := time.Since(ex.start)
		code := strconv.Itoa(ex.status)
		observability.HTTPRequestsTotal.WithLabelValues(r.Method, route, code).Inc()
		observability.HTTPRequestDuration.WithLabelValues(r.Method, route, code).Observe(elapsed.Seconds())

		attrs := []slog.Attr{
			slog.String("request_id", ex.id),
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", ex.status),
			slog.Int64("bytes", ex.bytes),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
			slog.String("client", clientIP(r)),
		}
		vars := mux.Vars(r)
		keys := make([]string, 0, len(vars))
		for k := range vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			attrs = append(attrs, slog.String(k, vars[k]))
		}
		attrs = append(attrs, ex.attrs...)

		level := slog.LevelInfo
		switch {
		case ex.status >= 500:
			level = slog.LevelError
		case ex.status >= 400:
			level = slog.LevelWarn
		}
		s.logger.LogAttrs(r.Context(), level, "http_request", attrs...)
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("handler panicked", "request_id", requestID(r.Context()), "panic", v)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// annotate adds fields to the access log line of r.
func annotate(r *http.Request, attrs ...slog.Attr) {
	if ex := exchangeFrom(r.Context()); ex != nil {
		ex.attrs = append(ex.attrs, attrs...)
	}
}

func exchangeFrom(ctx context.Context) *exchange {
	ex, _ := ctx.Value(exchangeKey).(*exchange)
	return ex
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// countingWriter records status and body size into the exchange.
type countingWriter struct {
	http.ResponseWriter
	ex *exchange
}

func (c *countingWriter) WriteHeader(code int) {
	c.ex.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.ResponseWriter.Write(b)
	c.ex.bytes += int64(n)
	return n, err
}

// Hijack hands the connection to the websocket upgrader.
func (c *countingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := c.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("httpapi: connection cannot be hijacked")
	}
	c.ex.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (c *countingWriter) Unwrap() http.ResponseWriter { return c.ResponseWriter }

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
