package params

import "github.com/spf13/cast"

// Keyword arguments understood by every operation.
const (
	KeyAuth             = "libvirt_auth"
	KeyParams           = "params"
	KeyResourceID       = "resource_id"
	KeyUseExternal      = "use_external_resource"
	KeyTemplateResource = "template_resource"
	KeyTemplateContent  = "template_content"
	KeySnapshotName     = "snapshot_name"
	KeySnapshotIncr     = "snapshot_incremental"
	KeySnapshotType     = "snapshot_type"
)

// Kwargs is the per-call argument bag passed to an operation.
type Kwargs map[string]any

// Has reports whether key was passed, even with a nil value.
func (k Kwargs) Has(key string) bool {
	_, ok := k[key]
	return ok
}

func (k Kwargs) String(key string) string {
	return cast.ToString(k[key])
}

func (k Kwargs) Bool(key string) bool {
	return cast.ToBool(k[key])
}

func (k Kwargs) Params() Params {
	return asParams(k[KeyParams])
}

func (k Kwargs) Auth() string             { return k.String(KeyAuth) }
func (k Kwargs) TemplateResource() string { return k.String(KeyTemplateResource) }
func (k Kwargs) TemplateContent() string  { return k.String(KeyTemplateContent) }
func (k Kwargs) SnapshotName() string     { return k.String(KeySnapshotName) }
func (k Kwargs) SnapshotType() string     { return k.String(KeySnapshotType) }

// Incremental reports whether the in-memory backup mode was requested.
func (k Kwargs) Incremental() bool {
	return k.Bool(KeySnapshotIncr)
}

// With returns a copy of k with key set to v.
func (k Kwargs) With(key string, v any) Kwargs {
	out := make(Kwargs, len(k)+1)
	for kk, vv := range k {
		out[kk] = vv
	}
	out[key] = v
	return out
}
