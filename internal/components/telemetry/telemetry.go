package telemetry

import (
	"fmt"
)

// API is what components report through instead of logging directly. Tests
// pass a Recorder.
//
// Report ids name the component that reported, as `<type>.<method>` in
// lowercase, for example "orchestrator.attempt" or "manager.acquire". A
// ScopedAPI prefixes the package-level scope. Details go into params, not
// into the id.
type API interface {
	// ReportBroken reports a component failing in a way someone should fix,
	// such as a page layout that no longer matches the selectors.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something worth investigating that the caller
	// recovered from, such as an award search failing during a unified
	// search.
	ReportWarning(id string, params ...any)

	// ReportDebug is ignored in production.
	ReportDebug(msg string, params ...any)

	// ReportCount reports a point-in-time count, not a delta.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace, "award: orchestrator.attempt".
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(fmt.Sprintf("%s: %s", s.namespace, msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(fmt.Sprintf("%s: %s", s.namespace, id), count)
}
