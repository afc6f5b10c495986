package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/expenseledger/internal/metrics"
)

// LoggingInterceptor logs every RPC with its procedure, user, duration and
// error code, and records its latency in m when m is not nil.
func LoggingInterceptor(m *metrics.Metrics) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure

			resp, err := next(ctx, req)

			elapsed := time.Since(start)
			userID := GetUserID(ctx) // empty before RequireAuth runs
			code := "ok"
			var connectErr *connect.Error
			switch {
			case err == nil:
				slog.Info("RPC ok",
					"procedure", procedure,
					"user_id", userID,
					"duration_ms", elapsed.Milliseconds(),
				)
			case errors.As(err, &connectErr):
				code = connectErr.Code().String()
				slog.Warn("RPC error",
					"procedure", procedure,
					"code", connectErr.Code(),
					"error", connectErr.Message(),
					"user_id", userID,
					"duration_ms", elapsed.Milliseconds(),
				)
			default:
				code = connect.CodeUnknown.String()
				slog.Error("RPC error",
					"procedure", procedure,
					"error", err,
					"user_id", userID,
					"duration_ms", elapsed.Milliseconds(),
				)
			}
			m.RPC(procedure, code, elapsed)
			return resp, err
		}
	}
}
