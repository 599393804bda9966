// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the device's boot configuration from a YAML file:
// the storage root a store/filesystem backend should use, the PIN retry
// budget, and the set of compiled-in custom backend ids. It is parsed once
// at process start and handed immutably to the rest of the device, in the
// same spirit as the teacher's config.InitConfig — read once, validate,
// then never touched again.
package config

import (
	"io/ioutil"

	yaml "gopkg.in/yaml.v2"

	"keyforge.io/errors"
)

// CustomBackend names one compiled-in custom backend a device build wants
// registered at boot, by the small integer id its BackendSelector uses.
type CustomBackend struct {
	ID   uint8  `yaml:"id"`
	Name string `yaml:"name"`
}

// Device is the top-level boot configuration record (SPEC_FULL.md's
// Device Config Record).
type Device struct {
	// StoreRoot is the directory a store/filesystem Store roots its
	// Internal, External, and Volatile subdirectories under. Left empty
	// to run entirely on store/volatile instead (e.g. in tests).
	StoreRoot string `yaml:"store_root"`

	// PinRetryBudget overrides auth.DefaultRetries. Zero means "use the
	// compiled-in default of 3".
	PinRetryBudget uint8 `yaml:"pin_retry_budget"`

	// CustomBackends lists the custom backends this build registers
	// before the broker starts ticking.
	CustomBackends []CustomBackend `yaml:"custom_backends"`
}

// Known top-level keys. Anything else in the YAML document is a
// configuration error: a typo'd key should fail loudly at boot, not be
// silently ignored.
var knownKeys = map[string]bool{
	"store_root":       true,
	"pin_retry_budget": true,
	"custom_backends":  true,
}

// Load reads and validates a Device configuration from path.
func Load(path string) (*Device, error) {
	const op = "config.Load"
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.E(op, errors.NotFound, err)
	}
	return Parse(data)
}

// Parse validates and decodes raw YAML bytes into a Device.
func Parse(data []byte) (*Device, error) {
	const op = "config.Parse"

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.E(op, errors.ImplementationError, err)
	}
	for k := range raw {
		if !knownKeys[k] {
			return nil, errors.E(op, errors.ImplementationError, errors.Str("unknown configuration key: "+k))
		}
	}

	var d Device
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, errors.E(op, errors.ImplementationError, err)
	}
	if err := d.validate(); err != nil {
		return nil, errors.E(op, err)
	}
	return &d, nil
}

func (d *Device) validate() error {
	seen := make(map[uint8]bool)
	for _, b := range d.CustomBackends {
		if seen[b.ID] {
			return errors.E(errors.ImplementationError, errors.Str("duplicate custom backend id"))
		}
		seen[b.ID] = true
		if b.Name == "" {
			return errors.E(errors.ImplementationError, errors.Str("custom backend missing name"))
		}
	}
	return nil
}
