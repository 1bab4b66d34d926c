// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/framegraph/internal/logging"
)

// instanceCreator is the part of a HAL backend needed to open a device.
type instanceCreator interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// OpenNoop opens a device on the noop HAL backend. It executes nothing on
// a GPU but accepts every call, which makes it suitable for headless runs
// and tests.
func OpenNoop() (*Device, error) {
	return open(&noop.API{}, "noop")
}

// OpenBackend opens the first hardware adapter of the given registered HAL
// backend, preferring discrete and integrated GPUs. The backend package
// must be linked in, e.g. with
//
//	import _ "github.com/gogpu/wgpu/hal/vulkan"
func OpenBackend(kind gputypes.Backend) (*Device, error) {
	backend, ok := hal.GetBackend(kind)
	if !ok {
		return nil, fmt.Errorf("backend %v: %w", kind, ErrBackendUnavailable)
	}
	return open(backend, fmt.Sprint(kind))
}

// OpenVulkan is OpenBackend(gputypes.BackendVulkan).
func OpenVulkan() (*Device, error) {
	return OpenBackend(gputypes.BackendVulkan)
}

func open(backend instanceCreator, name string) (*Device, error) {
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	d, err := NewDevice(openDev.Device, openDev.Queue)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.release = func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	logging.L().Info("native: device opened", "backend", name, "adapter", selected.Info.Name)
	return d, nil
}

// NewDeviceFromProvider shares the HAL device of a host application, such
// as a gogpu window. The provider must expose HalDevice and HalQueue
// returning hal.Device and hal.Queue. The host keeps ownership of the
// device.
func NewDeviceFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("native: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("native: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("native: provider HalQueue is not hal.Queue")
	}
	return NewDevice(device, queue)
}
