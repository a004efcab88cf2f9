package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"runtime/debug"
	"slices"
	"time"
)

// handlerFunc is an http handler that returns an error.
type handlerFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

type middleware func(handlerFunc) handlerFunc

// wrap middleware around the handler and execute in order given.
func wrap(mw []middleware, handler handlerFunc) handlerFunc {
	for _, mwFn := range slices.Backward(mw) {
		handler = mwFn(handler)
	}

	return handler
}

func logRequests(log *slog.Logger) middleware {
	return func(handler handlerFunc) handlerFunc {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v := getValues(ctx)

			log.Info("request started", "method", r.Method, "path", r.URL.Path, "remoteaddr", r.RemoteAddr, "request_id", v.RequestID)

			err := handler(ctx, w, r)

			log.Info("request completed", "method", r.Method, "path", r.URL.Path, "request_id", v.RequestID, "statusCode", v.StatusCode, "since", time.Since(v.Now).String())

			return err
		}
	}
}

// respondErrors answers errors escaping the call chain. Internal errors
// are logged and obscured.
func respondErrors(log *slog.Logger) middleware {
	return func(handler handlerFunc) handlerFunc {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			appErr, ok := errors.AsType[*Error](err)
			if !ok {
				appErr = newInternal(err)
			}

			log.Error(err.Error(), "request_id", getValues(ctx).RequestID, "source_err_file", path.Base(appErr.FileName), "source_err_func", path.Base(appErr.FuncName))

			if appErr.internal {
				appErr.Message = http.StatusText(appErr.Code)
			}

			return respondJSON(ctx, w, appErr.Code, appErr)
		}
	}
}

func recoverPanics() middleware {
	return func(handler handlerFunc) handlerFunc {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("PANIC [%v] TRACE[%s]", rec, string(debug.Stack()))
				}
			}()

			return handler(ctx, w, r)
		}
	}
}
