// Package iso builds ISO9660 images, typically cloud-init NoCloud seeds,
// and uploads them into existing storage volumes.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/datasources/nocloud.html
package iso

import (
	"bytes"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/docker/go-units"
	"github.com/kdomanski/iso9660"
	"github.com/spf13/cast"
	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/harrow/internal/fault"
	"github.com/jbweber/harrow/internal/hypervisor"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/reconcile"
)

// DefaultVolumeIdent is the label cloud-init looks for.
const DefaultVolumeIdent = "cidata"

// Build returns an ISO image holding files, keyed by their path inside the
// image.
func Build(volIdent string, files map[string][]byte) ([]byte, error) {
	writer, err := iso9660.NewWriter()
	if err != nil {
		return nil, fmt.Errorf("failed to create ISO writer: %w", err)
	}
	defer func() { _ = writer.Cleanup() }()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := writer.AddFile(bytes.NewReader(files[name]), name); err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", name, err)
		}
	}

	var buf bytes.Buffer
	if err := writer.WriteTo(&buf, volIdent); err != nil {
		return nil, fmt.Errorf("failed to write ISO image: %w", err)
	}
	return buf.Bytes(), nil
}

// Contents collects the image files from params: files maps image paths to
// blueprint resources, files_raw maps them to inline content. Structured
// inline content is written as YAML; user-data gets the #cloud-config
// header cloud-init requires.
func Contents(p params.Params, resource func(string) ([]byte, error)) (map[string][]byte, error) {
	out := make(map[string][]byte)

	for name, res := range p.StringMap("files") {
		data, err := resource(res)
		if err != nil {
			return nil, err
		}
		out[name] = data
	}

	for name, v := range p.Map("files_raw") {
		data, err := rawContent(name, v)
		if err != nil {
			return nil, err
		}
		out[name] = data
	}
	return out, nil
}

func rawContent(name string, v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(t), nil
	case []byte:
		return t, nil
	}

	userData := path.Base(name) == "user-data"
	if userData {
		if err := validateKeys(v); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if userData && !strings.HasPrefix(string(data), "#cloud-config") {
		data = append([]byte("#cloud-config\n"), data...)
	}
	return data, nil
}

// validateKeys parses ssh_authorized_keys of the cloud-config and of each
// entry in users.
func validateKeys(v any) error {
	doc := cast.ToStringMap(v)
	if err := parseKeys("ssh_authorized_keys", doc["ssh_authorized_keys"]); err != nil {
		return err
	}
	for i, u := range cast.ToSlice(doc["users"]) {
		field := fmt.Sprintf("users[%d].ssh_authorized_keys", i)
		if err := parseKeys(field, cast.ToStringMap(u)["ssh_authorized_keys"]); err != nil {
			return err
		}
	}
	return nil
}

func parseKeys(field string, v any) error {
	for i, key := range cast.ToStringSlice(v) {
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
			return fmt.Errorf("%s[%d] is not a valid SSH public key: %w", field, i, err)
		}
	}
	return nil
}

// Create builds the image described by params and uploads it into
// params.volume of params.pool, which must already exist.
func Create(op *reconcile.Op) error {
	op.Log.Info("Creating new iso image.")
	return reconcile.WithConnection(op, func(c hypervisor.Conn) error {
		p := op.Params()

		pool, err := c.LookupPool(p.String("pool"))
		if err != nil {
			return fault.WrapNonRecoverable(err, "Failed to find the volume")
		}
		vol, err := pool.LookupVolume(p.String("volume"))
		if err != nil {
			return fault.WrapNonRecoverable(err, "Failed to find the volume")
		}

		files, err := Contents(p, op.Env().Renderer.Resource)
		if err != nil {
			return fault.WrapNonRecoverable(err, "Failed to collect ISO files")
		}
		volIdent := p.String("vol_ident")
		if volIdent == "" {
			volIdent = DefaultVolumeIdent
		}
		if sys := p.String("sys_ident"); sys != "" {
			op.Log.Warnf("sys_ident %q is not supported, ignored", sys)
		}
		image, err := Build(volIdent, files)
		if err != nil {
			return fault.WrapNonRecoverable(err, "Failed to build ISO image")
		}

		size := uint64(len(image))
		op.Log.Infof("ISO size: %s", units.BytesSize(float64(size)))
		if err := vol.Upload(op.Ctx, bytes.NewReader(image), 0, size); err != nil {
			return fault.WrapRecoverable(err, "Can not upload ISO image to volume %s", vol.Name())
		}
		return nil
	})
}

// Delete forgets the recorded state of the image. The image itself lives in
// a volume owned by another node and is left untouched.
func Delete(op *reconcile.Op) error {
	op.Log.Info("delete")
	if !op.Instance.HasResource() && len(op.Instance.Params()) == 0 {
		op.Log.Info("No iso for delete")
		return nil
	}
	op.Instance.Release()
	op.Instance.ClearParams()
	return nil
}
