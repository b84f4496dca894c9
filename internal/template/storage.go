package template

import (
	"fmt"

	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/harrow/internal/naming"
	"github.com/jbweber/harrow/internal/params"
)

// Pool generates XML for a directory storage pool. The target path defaults
// to /var/lib/libvirt/images/{name}.
func Pool(p params.Params) (string, error) {
	path := p.String("path")
	if path == "" {
		path = naming.PoolPath(p.String("name"))
	}

	pool := &libvirtxml.StoragePool{
		Type: "dir",
		Name: p.String("name"),
		UUID: p.String("instance_uuid"),
		Target: &libvirtxml.StoragePoolTarget{
			Path: path,
			Permissions: &libvirtxml.StoragePoolTargetPermissions{
				Owner: "107", // qemu user (typically uid 107)
				Group: "107", // qemu group (typically gid 107)
				Mode:  "0755",
			},
		},
	}

	xml, err := pool.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal pool XML: %w", err)
	}
	return trimHeader(xml), nil
}

// Volume generates storage volume XML. capacity and allocation are in MiB;
// format defaults to qcow2. backing_path adds a copy-on-write backing store.
func Volume(p params.Params) (string, error) {
	format := p.String("format")
	if format == "" {
		format = "qcow2"
	}

	vol := &libvirtxml.StorageVolume{
		Type: "file",
		Name: p.String("name"),
		Capacity: &libvirtxml.StorageVolumeSize{
			Value: p.Uint64("capacity"),
			Unit:  "MiB",
		},
		Target: &libvirtxml.StorageVolumeTarget{
			Format: &libvirtxml.StorageVolumeTargetFormat{
				Type: format,
			},
			Permissions: &libvirtxml.StorageVolumeTargetPermissions{
				Owner: "107", // qemu user
				Group: "107", // qemu group
				Mode:  "0644",
			},
		},
	}
	if p.Has("allocation") {
		vol.Allocation = &libvirtxml.StorageVolumeSize{
			Value: p.Uint64("allocation"),
			Unit:  "MiB",
		}
	}
	if backing := p.String("backing_path"); backing != "" {
		backingFormat := p.String("backing_format")
		if backingFormat == "" {
			backingFormat = format
		}
		vol.BackingStore = &libvirtxml.StorageVolumeBackingStore{
			Path: backing,
			Format: &libvirtxml.StorageVolumeTargetFormat{
				Type: backingFormat,
			},
		}
	}

	xml, err := vol.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal volume XML: %w", err)
	}
	return trimHeader(xml), nil
}

// Snapshot generates domain snapshot XML from snapshot_name and
// snapshot_description.
func Snapshot(p params.Params) (string, error) {
	snap := &libvirtxml.DomainSnapshot{
		Name:        p.String("snapshot_name"),
		Description: p.String("snapshot_description"),
	}

	xml, err := snap.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot XML: %w", err)
	}
	return trimHeader(xml), nil
}
