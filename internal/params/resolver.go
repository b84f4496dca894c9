package params

import (
	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// Static is the node-level declaration of a resource.
type Static interface {
	Auth() string
	Params() Params
}

// Runtime is the persisted state of one resource instance.
type Runtime interface {
	ID() string
	Auth() string
	SetAuth(auth string)
	Params() Params
	SetParams(p Params)
	SetResourceID(id string)
	SetExternal(external bool)
}

// Resolver merges static, runtime and call-time configuration.
type Resolver struct {
	// NewID generates instance_uuid values. Defaults to uuid.NewString.
	NewID func() string
}

// NewResolver returns a Resolver that generates random UUIDs.
func NewResolver() *Resolver {
	return &Resolver{NewID: uuid.NewString}
}

// Resolve returns the effective auth and params for an operation and writes
// both back into rt.
//
// Auth precedence is kwargs, then runtime, then static. Params are merged
// static < runtime < kwargs. name defaults to the instance id and
// instance_uuid to a fresh UUID, each only when empty. resource_id and
// use_external_resource are copied from kwargs whenever the key is present.
func (r *Resolver) Resolve(static Static, rt Runtime, kw Kwargs) (string, Params) {
	auth := kw.Auth()
	if auth == "" {
		auth = rt.Auth()
	}
	if auth == "" && static != nil {
		auth = static.Auth()
	}
	rt.SetAuth(auth)

	var base Params
	if static != nil {
		base = static.Params()
	}
	merged := Merge(base, rt.Params(), kw.Params())

	if !merged.Truthy("name") {
		merged["name"] = rt.ID()
	}
	if !merged.Truthy("instance_uuid") {
		newID := r.NewID
		if newID == nil {
			newID = uuid.NewString
		}
		merged["instance_uuid"] = newID()
	}
	rt.SetParams(merged)

	if kw.Has(KeyResourceID) {
		rt.SetResourceID(cast.ToString(kw[KeyResourceID]))
	}
	if kw.Has(KeyUseExternal) {
		rt.SetExternal(cast.ToBool(kw[KeyUseExternal]))
	}

	return auth, merged
}
