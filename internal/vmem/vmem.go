/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package vmem reserves address space and backs it with pages on demand.
//
// A reservation is an address range with no access rights. Commit makes a
// page-aligned sub-range readable and writable, Decommit hands its physical
// pages back to the OS while keeping the range reserved, and Release drops the
// whole reservation. On platforms without a virtual memory API the range is
// plain heap memory and Commit/Decommit do nothing.
package vmem

import (
	"os"

	"github.com/pkg/errors"
)

// ErrNotAligned is returned when a range does not start on a page boundary.
var ErrNotAligned = errors.New("vmem: range not page aligned")

// PageSize returns the OS page size.
func PageSize() int {
	return os.Getpagesize()
}

// Reserve reserves size bytes of address space with no access rights.
func Reserve(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Errorf("vmem: invalid reservation size %d", size)
	}
	b, err := reserve(size)
	if err != nil {
		return nil, errors.Wrapf(err, "vmem: reserve %d bytes", size)
	}
	return b, nil
}

// Commit makes b readable and writable. b must be a page aligned sub-slice of a
// reservation.
func Commit(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if !aligned(b) {
		return ErrNotAligned
	}
	return errors.Wrapf(commit(b), "vmem: commit %d bytes", len(b))
}

// Decommit drops the physical pages behind b. The address range stays reserved
// and must be committed again before use.
func Decommit(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if !aligned(b) {
		return ErrNotAligned
	}
	return errors.Wrapf(decommit(b), "vmem: decommit %d bytes", len(b))
}

// Release releases a reservation. b must be the slice returned by Reserve.
func Release(b []byte) error {
	if cap(b) == 0 {
		return nil
	}
	return errors.Wrapf(release(b), "vmem: release %d bytes", cap(b))
}

func aligned(b []byte) bool {
	return addr(b)%uintptr(PageSize()) == 0
}
