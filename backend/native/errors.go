// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import "errors"

// Package errors for the HAL device.
var (
	// ErrNilDevice is returned when a device or queue handle is nil.
	ErrNilDevice = errors.New("native: nil HAL device or queue")

	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("native: device closed")

	// ErrUnknownResource is returned when an ID does not name a live resource.
	ErrUnknownResource = errors.New("native: unknown resource ID")

	// ErrNoAdapter is returned when no GPU adapter is available.
	ErrNoAdapter = errors.New("native: no GPU adapter available")

	// ErrBackendUnavailable is returned when the requested HAL backend is not
	// compiled in.
	ErrBackendUnavailable = errors.New("native: HAL backend not available")

	// ErrInvalidDimensions is returned when width or height is zero.
	ErrInvalidDimensions = errors.New("native: invalid dimensions")

	// ErrGPUTimeout is returned when a submission does not complete in time.
	ErrGPUTimeout = errors.New("native: timed out waiting for GPU")
)
