// Package device resolves where model parameters live. This build computes
// on the CPU only; accelerator requests and accelerator-saved parameter
// blobs are mapped onto the CPU transparently.
package device

import (
	"fmt"
	"log"
	"strings"
)

// Device names a compute placement.
type Device string

const (
	CPU  Device = "cpu"
	CUDA Device = "cuda"
)

// Parse normalises a configured device name. "gpu" is accepted as an alias
// for cuda and "auto" picks the best available device.
func Parse(s string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Best(), nil
	case "cpu":
		return CPU, nil
	case "cuda", "gpu":
		return CUDA, nil
	default:
		return "", fmt.Errorf("unknown device %q (want cpu, cuda or auto)", s)
	}
}

// Available reports whether computation can run on d.
func Available(d Device) bool {
	return d == CPU
}

// Best returns the most capable available device.
func Best() Device {
	return CPU
}

// Resolve returns the device computation will actually use for a requested
// placement, warning when it has to fall back.
func Resolve(requested Device) Device {
	if Available(requested) {
		return requested
	}
	log.Printf("[Device] Warning: %s requested, but the engine has no %s backend. Falling back to %s.", requested, requested, Best())
	return Best()
}

// ForLoad maps the device recorded in a parameter blob onto the device the
// parameters will be placed on in this process.
func ForLoad(saved string, requested Device) Device {
	target := Resolve(requested)
	if saved != "" && Device(saved) != target {
		log.Printf("[Device] Loading parameters saved on %s onto %s", saved, target)
	}
	return target
}
