package authapi

import (
	"context"
	"log/slog"
	"time"

	"swapi/cmd/internal/rpc"
)

func (h *Handler) auditOTPSent(ctx context.Context, call *rpc.Call, username string) {
	h.audit(ctx, slog.LevelInfo, "auth.otp.sent", call, "username", username)
}

func (h *Handler) auditLoginSuccess(ctx context.Context, call *rpc.Call, username string) {
	h.audit(ctx, slog.LevelInfo, "auth.login.success", call, "username", username)
}

func (h *Handler) auditLoginFailed(ctx context.Context, call *rpc.Call, username string) {
	h.audit(ctx, slog.LevelWarn, "auth.login.failed", call, "username", username)
}

func (h *Handler) auditRateLimited(ctx context.Context, call *rpc.Call, method string, retryAfter time.Duration) {
	h.audit(ctx, slog.LevelWarn, "auth.rate_limited", call,
		"method", method,
		"retry_after_s", int64(retryAfter.Seconds()),
	)
}

func (h *Handler) auditLogoff(ctx context.Context, call *rpc.Call) {
	h.audit(ctx, slog.LevelInfo, "auth.logoff", call)
}

func (h *Handler) auditLogoffAll(ctx context.Context, call *rpc.Call) {
	h.audit(ctx, slog.LevelInfo, "auth.logoff_all", call)
}

// audit writes one structured audit line. Token material is never logged.
func (h *Handler) audit(ctx context.Context, level slog.Level, action string, call *rpc.Call, attrs ...any) {
	args := make([]any, 0, len(attrs)+4)
	args = append(args, "ip", h.callerIP(call))
	if call != nil && call.User != "" {
		args = append(args, "user", call.User)
	}
	args = append(args, attrs...)
	h.log.Log(ctx, level, action, args...)
}
