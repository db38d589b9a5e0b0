package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Device errors.
var (
	// ErrNoBackend is returned when no HAL backend is registered, or the
	// requested one is not.
	ErrNoBackend = errors.New("glimmer: no GPU backend available")

	// ErrNoAdapter is returned when a backend reports no adapters.
	ErrNoAdapter = errors.New("glimmer: no GPU adapter found")
)

// backendPriority is the order backends are tried in when none is named.
var backendPriority = []string{"vulkan", "metal", "dx12", "gl", "noop"}

// BackendName returns the registry name of a backend variant.
func BackendName(b gputypes.Backend) string {
	switch b {
	case gputypes.BackendVulkan:
		return "vulkan"
	case gputypes.BackendMetal:
		return "metal"
	case gputypes.BackendDX12:
		return "dx12"
	case gputypes.BackendGL:
		return "gl"
	case gputypes.BackendBrowserWebGPU:
		return "webgpu"
	case gputypes.BackendEmpty:
		return "noop"
	default:
		return b.String()
	}
}

// BackendVariant is the inverse of BackendName.
func BackendVariant(name string) (gputypes.Backend, bool) {
	for _, b := range []gputypes.Backend{
		gputypes.BackendVulkan,
		gputypes.BackendMetal,
		gputypes.BackendDX12,
		gputypes.BackendGL,
		gputypes.BackendBrowserWebGPU,
		gputypes.BackendEmpty,
	} {
		if BackendName(b) == name {
			return b, true
		}
	}
	return gputypes.BackendEmpty, false
}

// Backends returns a registry of the HAL backends linked into the binary.
// Backend packages register themselves with hal on import.
func Backends() *gpucontext.Registry[hal.Backend] {
	reg := gpucontext.NewRegistry[hal.Backend](gpucontext.WithPriority(backendPriority...))
	for _, variant := range hal.AvailableBackends() {
		backend, ok := hal.GetBackend(variant)
		if !ok {
			continue
		}
		reg.Register(BackendName(variant), func() hal.Backend { return backend })
	}
	return reg
}

// DeviceConfig selects the backend and adapter of OpenDevice.
type DeviceConfig struct {
	// Backend is a registry name such as "vulkan" or "noop". Empty picks
	// the best registered backend.
	Backend string

	PowerPreference gputypes.PowerPreference

	// Debug enables debug and validation layers where the backend has them.
	Debug bool
}

// Device is an opened logical device together with the instance and
// adapter it came from.
type Device struct {
	Backend gputypes.Backend
	Info    gputypes.AdapterInfo
	Limits  gputypes.Limits
	Device  hal.Device
	Queue   hal.Queue

	instance hal.Instance
	adapter  hal.Adapter
}

// OpenDevice creates an instance on the selected backend, picks an adapter
// and opens a device on it.
func OpenDevice(config DeviceConfig) (*Device, error) {
	reg := Backends()
	name := config.Backend
	if name == "" {
		name = reg.BestName()
	}
	if name == "" || !reg.Has(name) {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrNoBackend, config.Backend, reg.Available())
	}
	backend := reg.Get(name)

	flags := gputypes.InstanceFlagsNone
	if config.Debug {
		flags |= gputypes.InstanceFlagsDebug | gputypes.InstanceFlagsValidation
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{
		Backends: gputypes.BackendsAll,
		Flags:    flags,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s instance: %w", name, err)
	}

	exposed, ok := selectAdapter(instance.EnumerateAdapters(nil), config.PowerPreference)
	if !ok {
		instance.Destroy()
		return nil, fmt.Errorf("%w on %s", ErrNoAdapter, name)
	}

	limits := exposed.Capabilities.Limits
	opened, err := exposed.Adapter.Open(0, limits)
	if err != nil {
		exposed.Adapter.Destroy()
		instance.Destroy()
		return nil, fmt.Errorf("open device on %q: %w", exposed.Info.Name, err)
	}

	slogger().Info("gpu: adapter selected",
		"backend", name,
		"adapter", exposed.Info.Name,
		"type", exposed.Info.DeviceType,
		"driver", exposed.Info.Driver)

	return &Device{
		Backend:  backend.Variant(),
		Info:     exposed.Info,
		Limits:   limits,
		Device:   opened.Device,
		Queue:    opened.Queue,
		instance: instance,
		adapter:  exposed.Adapter,
	}, nil
}

// selectAdapter returns the adapter that best matches pref. Ties keep
// enumeration order.
func selectAdapter(adapters []hal.ExposedAdapter, pref gputypes.PowerPreference) (hal.ExposedAdapter, bool) {
	if len(adapters) == 0 {
		return hal.ExposedAdapter{}, false
	}
	best := 0
	for i := 1; i < len(adapters); i++ {
		if adapterRank(adapters[i].Info.DeviceType, pref) > adapterRank(adapters[best].Info.DeviceType, pref) {
			best = i
		}
	}
	return adapters[best], true
}

// adapterRank orders device types for a power preference. Higher is
// better.
func adapterRank(t gputypes.DeviceType, pref gputypes.PowerPreference) int {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		if pref == gputypes.PowerPreferenceLowPower {
			return 3
		}
		return 4
	case gputypes.DeviceTypeIntegratedGPU:
		if pref == gputypes.PowerPreferenceLowPower {
			return 4
		}
		return 3
	case gputypes.DeviceTypeVirtualGPU:
		return 2
	case gputypes.DeviceTypeCPU:
		return 1
	default:
		return 0
	}
}

// Destroy waits for the device to go idle and releases the device, the
// adapter and the instance.
func (d *Device) Destroy() {
	if d.Device == nil {
		return
	}
	if err := d.Device.WaitIdle(); err != nil {
		slogger().Warn("gpu: wait idle before destroy", "err", err)
	}
	d.Device.Destroy()
	d.Device = nil
	d.Queue = nil
	if d.adapter != nil {
		d.adapter.Destroy()
	}
	if d.instance != nil {
		d.instance.Destroy()
	}
}
