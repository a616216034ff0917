package handler

import (
	"net/http"

	"github.com/mssola/useragent"

	"github.com/Rrens/rag-agent/internal/api/middleware"
	"github.com/Rrens/rag-agent/internal/domain"
)

// userMetadata describes the client behind r. RealIP has already rewritten
// RemoteAddr from the forwarding headers.
func userMetadata(r *http.Request) domain.UserMetadata {
	raw := r.UserAgent()
	meta := domain.UserMetadata{
		IPAddress: middleware.ClientIP(r),
		UserAgent: raw,
	}
	if raw == "" {
		return meta
	}

	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	meta.Device = domain.Device{
		Type:    deviceType(ua),
		Browser: browser,
		OS:      ua.OSInfo().Name,
	}
	return meta
}

func deviceType(ua *useragent.UserAgent) string {
	switch {
	case ua.Bot():
		return "bot"
	case ua.Mobile():
		return "mobile"
	default:
		return "desktop"
	}
}
