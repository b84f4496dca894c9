package state

import (
	"time"

	"github.com/jbweber/harrow/internal/params"
)

// Stat is the last performance sample of a domain.
type Stat struct {
	CPU    float64 `yaml:"cpu" json:"cpu"`
	Memory float64 `yaml:"memory" json:"memory"`
}

// Record is the serialized form of an Instance.
type Record struct {
	ID          string            `yaml:"id" json:"id"`
	Kind        string            `yaml:"kind,omitempty" json:"kind,omitempty"`
	ResourceID  string            `yaml:"resource_id,omitempty" json:"resource_id,omitempty"`
	UseExternal bool              `yaml:"use_external_resource,omitempty" json:"use_external_resource,omitempty"`
	Auth        string            `yaml:"libvirt_auth,omitempty" json:"libvirt_auth,omitempty"`
	Params      map[string]any    `yaml:"params,omitempty" json:"params,omitempty"`
	IP          string            `yaml:"ip,omitempty" json:"ip,omitempty"`
	Backups     map[string]string `yaml:"backups,omitempty" json:"backups,omitempty"`
	Stat        *Stat             `yaml:"stat,omitempty" json:"stat,omitempty"`
	UpdatedAt   time.Time         `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Instance is the runtime state of one resource instance. The reconcilers
// own it for the duration of an operation; callers persist it afterwards.
type Instance struct {
	id         string
	kind       string
	resourceID string
	external   bool
	auth       string
	params     params.Params
	ip         string
	backups    map[string]string
	stat       *Stat
	updatedAt  time.Time

	changed bool
}

// NewInstance returns empty state for the instance id.
func NewInstance(id string) *Instance {
	return &Instance{id: id}
}

// FromRecord rebuilds an Instance from its serialized form.
func FromRecord(r Record) *Instance {
	inst := &Instance{
		id:         r.ID,
		kind:       r.Kind,
		resourceID: r.ResourceID,
		external:   r.UseExternal,
		auth:       r.Auth,
		ip:         r.IP,
		stat:       r.Stat,
		updatedAt:  r.UpdatedAt,
	}
	if r.Params != nil {
		inst.params = params.Params(r.Params)
	}
	if len(r.Backups) > 0 {
		inst.backups = make(map[string]string, len(r.Backups))
		for k, v := range r.Backups {
			inst.backups[k] = v
		}
	}
	return inst
}

// Record returns the serialized form.
func (i *Instance) Record() Record {
	r := Record{
		ID:          i.id,
		Kind:        i.kind,
		ResourceID:  i.resourceID,
		UseExternal: i.external,
		Auth:        i.auth,
		IP:          i.ip,
		Stat:        i.stat,
		UpdatedAt:   i.updatedAt,
	}
	if i.params != nil {
		r.Params = map[string]any(i.params)
	}
	if len(i.backups) > 0 {
		r.Backups = make(map[string]string, len(i.backups))
		for k, v := range i.backups {
			r.Backups[k] = v
		}
	}
	return r
}

func (i *Instance) ID() string { return i.id }

func (i *Instance) Kind() string { return i.kind }

func (i *Instance) SetKind(kind string) {
	if i.kind != kind {
		i.kind = kind
		i.changed = true
	}
}

// ResourceID is the hypervisor name of the bound object, empty when absent.
func (i *Instance) ResourceID() string { return i.resourceID }

// HasResource reports whether a hypervisor object is bound.
func (i *Instance) HasResource() bool { return i.resourceID != "" }

func (i *Instance) SetResourceID(id string) {
	if i.resourceID != id {
		i.resourceID = id
		i.changed = true
	}
}

// External reports whether the bound object is managed outside this plugin.
func (i *Instance) External() bool { return i.external }

func (i *Instance) SetExternal(external bool) {
	if i.external != external {
		i.external = external
		i.changed = true
	}
}

func (i *Instance) Auth() string { return i.auth }

func (i *Instance) SetAuth(auth string) {
	if i.auth != auth {
		i.auth = auth
		i.changed = true
	}
}

// Params returns the live parameter mapping. Callers that modify nested
// values in place must call MarkChanged.
func (i *Instance) Params() params.Params {
	if i.params == nil {
		i.params = params.Params{}
	}
	return i.params
}

func (i *Instance) SetParams(p params.Params) {
	i.params = p
	i.changed = true
}

// ClearParams drops all accumulated parameters.
func (i *Instance) ClearParams() {
	if i.params != nil {
		i.params = nil
		i.changed = true
	}
}

func (i *Instance) IP() string { return i.ip }

func (i *Instance) SetIP(ip string) {
	if i.ip != ip {
		i.ip = ip
		i.changed = true
	}
}

// Backup returns the incremental backup stored under key.
func (i *Instance) Backup(key string) (string, bool) {
	v, ok := i.backups[key]
	return v, ok
}

func (i *Instance) PutBackup(key, xml string) {
	if i.backups == nil {
		i.backups = make(map[string]string)
	}
	i.backups[key] = xml
	i.changed = true
}

func (i *Instance) DeleteBackup(key string) {
	if _, ok := i.backups[key]; ok {
		delete(i.backups, key)
		i.changed = true
	}
}

// BackupCount returns the number of incremental backups held.
func (i *Instance) BackupCount() int { return len(i.backups) }

func (i *Instance) Stat() (Stat, bool) {
	if i.stat == nil {
		return Stat{}, false
	}
	return *i.stat, true
}

func (i *Instance) SetStat(s Stat) {
	i.stat = &s
	i.changed = true
}

// Bind records the hypervisor object the instance now owns or references.
func (i *Instance) Bind(resourceID string, p params.Params) {
	i.SetResourceID(resourceID)
	if p != nil {
		i.SetParams(p)
	}
}

// Release forgets the hypervisor object after teardown together with the
// incremental backups that described it.
func (i *Instance) Release() {
	i.SetResourceID("")
	if len(i.backups) > 0 {
		i.backups = nil
		i.changed = true
	}
}

// Changed reports whether any field was modified since the last Touch.
func (i *Instance) Changed() bool { return i.changed }

// MarkChanged flags in-place modifications of nested params.
func (i *Instance) MarkChanged() { i.changed = true }

// Touch stamps the update time and clears the change flag.
func (i *Instance) Touch(now time.Time) {
	i.updatedAt = now
	i.changed = false
}

func (i *Instance) UpdatedAt() time.Time { return i.updatedAt }
