package http

import (
	"net/http"

	"github.com/AlibekovAA/social-auth/internal/common/constants"
	"github.com/AlibekovAA/social-auth/internal/common/httpmetrics"
	"github.com/AlibekovAA/social-auth/internal/common/logger"
)

type BaseOptions struct {
	// HSTS enables Strict-Transport-Security. Set it when served over TLS.
	HSTS           bool
	MaxRequestSize int64
}

// BuildBaseHandler wraps handler with the middleware every route shares.
// Outermost first: security headers, CSP, trace id, panic recovery, body
// size limit, request metrics.
func BuildBaseHandler(log *logger.Logger, handler http.Handler, opts BaseOptions) http.Handler {
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = constants.DefaultMaxRequestSize
	}

	metrics := httpmetrics.New()
	securityHeaders := SecurityHeadersMiddleware(opts.HSTS)
	csp := ContentSecurityPolicyMiddleware("")
	recovery := RecoveryMiddleware(log)
	maxRequestSize := MaxRequestSizeMiddleware(opts.MaxRequestSize)

	return securityHeaders(csp(TraceIDMiddleware(recovery(maxRequestSize(metrics.Wrap(handler))))))
}
