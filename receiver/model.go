package receiver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"
)

const (
	defaultMaxBodySize = 1 << 20
	readBufSize        = 4 << 10
)

// ErrOverrun is reported when a body arrives faster than the configured rate.
var ErrOverrun = errors.New("receiver overrun")

// Report describes one received body.
type Report struct {
	RequestID      string  `json:"request_id"`
	Method         string  `json:"method"`
	Path           string  `json:"path"`
	ContentType    string  `json:"content_type"`
	Chunked        bool    `json:"chunked"`
	Chars          int     `json:"chars"`
	Bytes          int     `json:"bytes"`
	Reads          int     `json:"reads"`
	ElapsedMS      int64   `json:"elapsed_ms"`
	CharsPerSecond float64 `json:"chars_per_second"`
	Overrun        bool    `json:"overrun"`
	Body           string  `json:"body,omitempty"`
}

// Error is an error carrying the HTTP status it is answered with.
type Error struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	FuncName string `json:"-"`
	FileName string `json:"-"`
	internal bool
}

func newError(code int, err error) *Error {
	pc, filename, line, _ := runtime.Caller(1)

	return &Error{
		Code:     code,
		Message:  err.Error(),
		FuncName: runtime.FuncForPC(pc).Name(),
		FileName: fmt.Sprintf("%s:%d", filename, line),
	}
}

func newInternal(err error) *Error {
	e := newError(http.StatusInternalServerError, err)
	e.internal = true
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// /////////////////////////////////////////////////////////////////////////////////////////////

type ctxKey int

const values ctxKey = iota + 1

// requestValues are shared by the middleware for one request.
type requestValues struct {
	RequestID  string
	Now        time.Time
	StatusCode int
}

func setValues(ctx context.Context, v *requestValues) context.Context {
	return context.WithValue(ctx, values, v)
}

func getValues(ctx context.Context) *requestValues {
	v, ok := ctx.Value(values).(*requestValues)
	if !ok {
		return &requestValues{Now: time.Now()}
	}

	return v
}

func setStatusCode(ctx context.Context, code int) {
	if v, ok := ctx.Value(values).(*requestValues); ok {
		v.StatusCode = code
	}
}
