package gate

import (
	"webgate/internal/platform/metrics"
	"webgate/internal/session"
)

// Decision is the outcome of one gate step: continue, or redirect and halt.
type Decision struct {
	Redirect bool
	URL      string
	// Flash is the notice attached to the session alongside this decision, if any.
	Flash *session.Flash
}

// Allow lets the request continue.
func Allow() Decision {
	return Decision{}
}

// AllowWithFlash lets the request continue after attaching an advisory notice.
func AllowWithFlash(f *session.Flash) Decision {
	return Decision{Flash: f}
}

// RedirectTo halts the chain and sends the client to url.
func RedirectTo(url string, f *session.Flash) Decision {
	return Decision{Redirect: true, URL: url, Flash: f}
}

func (d Decision) outcome() string {
	if d.Redirect {
		return metrics.OutcomeRedirect
	}
	return metrics.OutcomeAllow
}
