package template

import (
	"fmt"

	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/harrow/internal/naming"
	"github.com/jbweber/harrow/internal/params"
)

const defaultMemoryKiB = 524288

// Domain generates libvirt domain XML from params.
//
// Recognized params: name, instance_uuid, domain_type, memory_size and
// memory_maxsize (KiB), vcpu, arch, domain_cpu, cpu_model, disks and
// networks. Each disk is a mapping of device (disk|cdrom), bus, dev, format
// and either file or pool+volume. Each network is a mapping of network, mac
// and ip; the MAC is derived from ip when not given.
func Domain(p params.Params) (string, error) {
	domainType := p.String("domain_type")
	if domainType == "" {
		domainType = "qemu"
	}
	memory := p.Uint64("memory_size")
	if memory == 0 {
		memory = defaultMemoryKiB
	}
	maxMemory := p.Uint64("memory_maxsize")
	if maxMemory < memory {
		maxMemory = memory
	}
	vcpu := p.Int("vcpu")
	if vcpu <= 0 {
		vcpu = 1
	}
	arch := p.String("arch")
	if arch == "" {
		arch = "x86_64"
	}

	domain := &libvirtxml.Domain{
		Type: domainType,
		Name: p.String("name"),
		UUID: p.String("instance_uuid"),
		Memory: &libvirtxml.DomainMemory{
			Value: uint(maxMemory),
			Unit:  "KiB",
		},
		CurrentMemory: &libvirtxml.DomainCurrentMemory{
			Value: uint(memory),
			Unit:  "KiB",
		},
		VCPU: &libvirtxml.DomainVCPU{
			Placement: "static",
			Value:     uint(vcpu),
		},
		OS: &libvirtxml.DomainOS{
			Type: &libvirtxml.DomainOSType{
				Arch: arch,
				Type: "hvm",
			},
		},
		Features: &libvirtxml.DomainFeatureList{
			ACPI: &libvirtxml.DomainFeature{},
			APIC: &libvirtxml.DomainFeatureAPIC{},
			PAE:  &libvirtxml.DomainFeature{},
		},
		CPU: domainCPU(p),
		Clock: &libvirtxml.DomainClock{
			Offset: "utc",
			Timer: []libvirtxml.DomainTimer{
				{Name: "rtc", TickPolicy: "catchup"},
				{Name: "pit", TickPolicy: "delay"},
				{Name: "hpet", Present: "no"},
			},
		},
		OnPoweroff: "destroy",
		OnReboot:   "restart",
		OnCrash:    "restart",
		Devices: &libvirtxml.DomainDeviceList{
			MemBalloon: &libvirtxml.DomainMemBalloon{
				Model: "virtio",
			},
			RNGs: []libvirtxml.DomainRNG{
				{
					Model: "virtio",
					Backend: &libvirtxml.DomainRNGBackend{
						Random: &libvirtxml.DomainRNGBackendRandom{
							Device: "/dev/urandom",
						},
					},
				},
			},
		},
	}

	for i, d := range p.List("disks") {
		domain.Devices.Disks = append(domain.Devices.Disks, domainDisk(i, d))
	}

	for _, n := range p.List("networks") {
		iface, err := domainInterface(n)
		if err != nil {
			return "", err
		}
		domain.Devices.Interfaces = append(domain.Devices.Interfaces, iface)
	}

	domain.Devices.Serials = []libvirtxml.DomainSerial{
		{
			Source: &libvirtxml.DomainChardevSource{
				Pty: &libvirtxml.DomainChardevSourcePty{},
			},
			Target: &libvirtxml.DomainSerialTarget{
				Port: func() *uint { p := uint(0); return &p }(),
			},
		},
	}
	domain.Devices.Consoles = []libvirtxml.DomainConsole{
		{
			Source: &libvirtxml.DomainChardevSource{
				Pty: &libvirtxml.DomainChardevSourcePty{},
			},
			Target: &libvirtxml.DomainConsoleTarget{
				Type: "serial",
				Port: func() *uint { p := uint(0); return &p }(),
			},
		},
	}

	xml, err := domain.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal domain XML: %w", err)
	}
	return trimHeader(xml), nil
}

func domainCPU(p params.Params) *libvirtxml.DomainCPU {
	switch mode := p.String("domain_cpu"); mode {
	case "host-model", "host-passthrough", "maximum":
		return &libvirtxml.DomainCPU{Mode: mode}
	case "", "custom":
		model := p.String("cpu_model")
		if model == "" {
			return nil
		}
		return &libvirtxml.DomainCPU{
			Mode:  "custom",
			Match: "exact",
			Model: &libvirtxml.DomainCPUModel{
				Fallback: "allow",
				Value:    model,
			},
		}
	default:
		return &libvirtxml.DomainCPU{Mode: mode}
	}
}

func domainDisk(i int, d params.Params) libvirtxml.DomainDisk {
	device := d.String("device")
	if device == "" {
		device = "disk"
	}
	bus := d.String("bus")
	format := d.String("format")
	dev := d.String("dev")
	if device == "cdrom" {
		if bus == "" {
			bus = "sata"
		}
		if format == "" {
			format = "raw"
		}
		if dev == "" {
			dev = fmt.Sprintf("sd%c", 'a'+i)
		}
	} else {
		if bus == "" {
			bus = "virtio"
		}
		if format == "" {
			format = "qcow2"
		}
		if dev == "" {
			dev = fmt.Sprintf("vd%c", 'a'+i)
		}
	}

	disk := libvirtxml.DomainDisk{
		Device: device,
		Driver: &libvirtxml.DomainDiskDriver{
			Name: "qemu",
			Type: format,
		},
		Target: &libvirtxml.DomainDiskTarget{
			Dev: dev,
			Bus: bus,
		},
	}
	if file := d.String("file"); file != "" {
		disk.Source = &libvirtxml.DomainDiskSource{
			File: &libvirtxml.DomainDiskSourceFile{File: file},
		}
	} else if vol := d.String("volume"); vol != "" {
		disk.Source = &libvirtxml.DomainDiskSource{
			Volume: &libvirtxml.DomainDiskSourceVolume{
				Pool:   d.String("pool"),
				Volume: vol,
			},
		}
	}
	if device == "cdrom" {
		disk.ReadOnly = &libvirtxml.DomainDiskReadOnly{}
	}
	if i == 0 {
		disk.Boot = &libvirtxml.DomainDeviceBoot{Order: 1}
	}
	return disk
}

func domainInterface(n params.Params) (libvirtxml.DomainInterface, error) {
	network := n.String("network")
	if network == "" {
		network = "default"
	}

	iface := libvirtxml.DomainInterface{
		Source: &libvirtxml.DomainInterfaceSource{
			Network: &libvirtxml.DomainInterfaceSourceNetwork{
				Network: network,
			},
		},
		Model: &libvirtxml.DomainInterfaceModel{
			Type: "virtio",
		},
	}

	mac := n.String("mac")
	if mac == "" && n.String("ip") != "" {
		derived, err := naming.MACFromIP(n.String("ip"))
		if err != nil {
			return iface, fmt.Errorf("failed to calculate MAC address for %s: %w", n.String("ip"), err)
		}
		mac = derived
	}
	if mac != "" {
		iface.MAC = &libvirtxml.DomainInterfaceMAC{Address: mac}
	}
	return iface, nil
}
