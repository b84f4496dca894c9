package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatic struct {
	auth   string
	params Params
}

func (s fakeStatic) Auth() string   { return s.auth }
func (s fakeStatic) Params() Params { return s.params }

type fakeRuntime struct {
	id         string
	auth       string
	params     Params
	resourceID string
	external   bool
}

func (r *fakeRuntime) ID() string                { return r.id }
func (r *fakeRuntime) Auth() string              { return r.auth }
func (r *fakeRuntime) SetAuth(a string)          { r.auth = a }
func (r *fakeRuntime) Params() Params            { return r.params }
func (r *fakeRuntime) SetParams(p Params)        { r.params = p }
func (r *fakeRuntime) SetResourceID(id string)   { r.resourceID = id }
func (r *fakeRuntime) SetExternal(external bool) { r.external = external }

func fixedID() string { return "0d1b5cb4-7a1d-4f6c-9d38-3c1f1f0c0001" }

func TestResolveAuthPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		static  string
		runtime string
		kwargs  string
		want    string
	}{
		{name: "static only", static: "qemu:///system", want: "qemu:///system"},
		{name: "runtime beats static", static: "qemu:///system", runtime: "qemu:///session", want: "qemu:///session"},
		{name: "kwargs beat runtime", static: "a", runtime: "b", kwargs: "c", want: "c"},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Resolver{NewID: fixedID}
			rt := &fakeRuntime{id: "vm_abc123", auth: tt.runtime}
			kw := Kwargs{}
			if tt.kwargs != "" {
				kw[KeyAuth] = tt.kwargs
			}

			auth, _ := r.Resolve(fakeStatic{auth: tt.static}, rt, kw)
			assert.Equal(t, tt.want, auth)
			assert.Equal(t, tt.want, rt.auth)
		})
	}
}

func TestResolveParamsMerge(t *testing.T) {
	r := &Resolver{NewID: fixedID}
	static := fakeStatic{params: Params{"memory_size": 512, "vcpu": 1, "domain_type": "kvm"}}
	rt := &fakeRuntime{id: "vm_abc123", params: Params{"memory_size": 1024}}
	kw := Kwargs{KeyParams: map[string]any{"vcpu": 4}}

	_, p := r.Resolve(static, rt, kw)

	assert.Equal(t, 1024, p["memory_size"])
	assert.Equal(t, 4, p["vcpu"])
	assert.Equal(t, "kvm", p["domain_type"])
	assert.Equal(t, "vm_abc123", p["name"])
	assert.Equal(t, fixedID(), p["instance_uuid"])
	assert.Equal(t, p, rt.params)

	// static declaration is not mutated by the merge
	assert.NotContains(t, static.params, "name")
}

func TestResolveDefaultsAreStable(t *testing.T) {
	calls := 0
	r := &Resolver{NewID: func() string {
		calls++
		return fixedID()
	}}
	rt := &fakeRuntime{id: "vm_abc123", params: Params{"name": "web", "instance_uuid": "existing"}}

	_, p := r.Resolve(nil, rt, Kwargs{})
	assert.Equal(t, "web", p["name"])
	assert.Equal(t, "existing", p["instance_uuid"])
	assert.Zero(t, calls)

	rt.params = Params{"name": ""}
	_, p = r.Resolve(nil, rt, Kwargs{})
	assert.Equal(t, "vm_abc123", p["name"])
	assert.Equal(t, 1, calls)

	_, p = r.Resolve(nil, rt, Kwargs{})
	assert.Equal(t, fixedID(), p["instance_uuid"])
	assert.Equal(t, 1, calls)
}

func TestResolveCopiesGateKeys(t *testing.T) {
	r := &Resolver{NewID: fixedID}
	rt := &fakeRuntime{id: "net1", resourceID: "old"}

	r.Resolve(nil, rt, Kwargs{})
	assert.Equal(t, "old", rt.resourceID)
	assert.False(t, rt.external)

	r.Resolve(nil, rt, Kwargs{KeyResourceID: "default", KeyUseExternal: true})
	assert.Equal(t, "default", rt.resourceID)
	assert.True(t, rt.external)

	r.Resolve(nil, rt, Kwargs{KeyResourceID: nil})
	assert.Empty(t, rt.resourceID)
}

func TestParamsAccessors(t *testing.T) {
	p := Params{
		"memory_size": "1024",
		"wait_for_ip": "true",
		"empty":       "",
		"zero":        0,
		"networks": []any{
			map[string]any{"mac": "52:54:00:00:00:01"},
			"garbage",
		},
		"files_raw": map[string]any{"meta-data": "instance-id: vm1"},
	}

	assert.Equal(t, uint64(1024), p.Uint64("memory_size"))
	assert.True(t, p.Bool("wait_for_ip"))
	assert.True(t, p.Has("empty"))
	assert.False(t, p.Truthy("empty"))
	assert.False(t, p.Truthy("zero"))
	assert.True(t, p.Truthy("memory_size"))
	assert.False(t, p.Truthy("missing"))

	nets := p.List("networks")
	require.Len(t, nets, 1)
	assert.Equal(t, "52:54:00:00:00:01", nets[0].String("mac"))

	assert.Equal(t, map[string]string{"meta-data": "instance-id: vm1"}, p.StringMap("files_raw"))
}

func TestCloneIsDeep(t *testing.T) {
	p := Params{"networks": []any{map[string]any{"mac": "a"}}}
	c := p.Clone()

	c.List("networks")[0]["mac"] = "b"
	assert.Equal(t, "a", p.List("networks")[0].String("mac"))
}

func TestKwargs(t *testing.T) {
	kw := Kwargs{KeySnapshotName: "nightly", KeySnapshotIncr: "yes", KeySnapshotType: "irrelevant"}
	assert.Equal(t, "nightly", kw.SnapshotName())
	assert.False(t, kw.Incremental())
	assert.True(t, kw.With(KeySnapshotIncr, true).Incremental())
	assert.False(t, kw.Has(KeyResourceID))
	assert.Nil(t, kw.Params())
}
