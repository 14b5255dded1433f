//go:build !linux

package shm

import (
	"context"
)

// MapRegion is only implemented on Linux.
func MapRegion(_ context.Context, _ MapOptions) (*MappedRegion, error) {
	return nil, ErrUnsupported
}

// UnmapRegion is only implemented on Linux.
func UnmapRegion(region *MappedRegion) error {
	if region != nil {
		region.Addr = nil
	}
	return nil
}

// RemoveRegion is only implemented on Linux.
func RemoveRegion(_ string) error {
	return ErrUnsupported
}
