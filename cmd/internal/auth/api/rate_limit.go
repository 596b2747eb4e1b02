package authapi

import (
	"context"
	"math"
	"net"
	"net/http"
	"strings"

	"swapi/cmd/internal/ratelimit"
	"swapi/cmd/internal/rpc"
	v1 "swapi/shared/contracts/rpc/v1"
)

// throttle charges one attempt against the caller IP for method.
func (h *Handler) throttle(ctx context.Context, call *rpc.Call, method string, lim *ratelimit.Keyed) error {
	ok, retry := lim.Allow(h.callerIP(call), h.now())
	if ok {
		return nil
	}

	h.metrics.ObserveThrottled(method)
	h.auditRateLimited(ctx, call, method, retry)

	secs := int64(math.Ceil(retry.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return rpc.Errorf(v1.ErrRateLimited, "Too many attempts. Try again in %d seconds.", secs)
}

func (h *Handler) callerIP(call *rpc.Call) string {
	if call == nil {
		return ""
	}
	if call.Request != nil {
		if ip := clientIP(call.Request, h.cfg.TrustProxy); ip != nil {
			return ip.String()
		}
	}
	return call.IP
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
