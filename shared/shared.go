// Package shared implements the versioned data bridge between feature
// plugins and host applications.
//
// A plugin publishes a [Provider] for its shared-data structure; a
// consumer fetches it by feature name with a request carrying a
// [Header]. The header names the structure type and the newest version
// the consumer understands. The provider fills in fields up to the
// lower of the two versions and writes the negotiated version back, so
// old consumers keep working against newer providers and vice versa.
package shared

import (
	"github.com/gogpu/interpose/param"
)

// Status is the outcome of a shared-data request.
type Status uint32

const (
	// StatusOk means the request was filled.
	StatusOk Status = iota

	// StatusInvalidRequest means the request type or shape is wrong for
	// the provider.
	StatusInvalidRequest

	// StatusNotFound means no provider is published for the feature.
	StatusNotFound
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusInvalidRequest:
		return "invalid-request"
	case StatusNotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

// Header leads every shared-data structure. Consumers set Type to the
// structure name and Version to the newest layout they understand;
// after a successful fetch, Version holds the negotiated version.
type Header struct {
	// Type names the shared structure.
	Type string

	// Version is the structure layout version.
	Version uint32
}

// Negotiate validates the request header against the provider's type
// and clamps the version to what the provider supports. Providers call
// this first and fill fields only up to the returned header version.
func (h *Header) Negotiate(providerType string, providerVersion uint32) Status {
	if h == nil || h.Type != providerType {
		return StatusInvalidRequest
	}
	if h.Version == 0 {
		return StatusInvalidRequest
	}
	if h.Version > providerVersion {
		h.Version = providerVersion
	}
	return StatusOk
}

// Provider fills a shared-data request. The concrete request type is
// the provider's own; anything else returns StatusInvalidRequest.
type Provider func(req any) Status

// KeyForFeature returns the registry key a feature's provider is
// published under.
func KeyForFeature(feature string) string {
	return "interpose.shared." + feature
}

// Publish registers a feature's shared-data provider in the registry.
func Publish(reg *param.Registry, feature string, p Provider) {
	reg.Set(KeyForFeature(feature), p)
}

// Unpublish removes a feature's shared-data provider.
func Unpublish(reg *param.Registry, feature string) {
	reg.Delete(KeyForFeature(feature))
}

// Fetch asks the named feature's provider to fill req.
func Fetch(reg *param.Registry, feature string, req any) Status {
	p, ok := param.As[Provider](reg, KeyForFeature(feature))
	if !ok {
		return StatusNotFound
	}
	return p(req)
}
