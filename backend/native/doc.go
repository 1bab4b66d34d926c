// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package native implements [gpucore.Device] on top of gogpu/wgpu HAL.
//
// A [Device] owns a table from opaque gpucore IDs to HAL objects. IDs start
// at 1 and are never reused, so a reallocated buffer or texture always
// gets a fresh identity.
//
// Devices can be obtained three ways:
//
//	dev, err := native.OpenNoop()                 // headless, for tests and CI
//	dev, err := native.OpenVulkan()               // first discrete/integrated GPU
//	dev, err := native.NewDeviceFromProvider(p)   // share a gpucontext.DeviceProvider
//
// [OffscreenSurface] renders into a device-owned texture and can read it
// back; [ViewSurface] presents into texture views handed over by a host
// window each frame.
package native
