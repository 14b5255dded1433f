// Package shm contains platform-specific helpers for mapping named shared memory regions.
package shm

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultDir is where named regions live when no directory is configured.
const DefaultDir = "/dev/shm"

var (
	ErrRegionExists     = errors.New("region already exists")
	ErrRegionNotFound   = errors.New("region not found")
	ErrRegionIncomplete = errors.New("region not sized yet")
	ErrNoSpace          = errors.New("no space left for region")
	ErrInvalidName      = errors.New("invalid region name")
	ErrUnsupported      = errors.New("shared memory regions are not supported on this platform")
)

// MappedRegion represents a memory-mapped shared region.
type MappedRegion struct {
	Addr []byte
	Path string
	fd   int
}

// MapOptions defines options for mapping shared memory.
type MapOptions struct {
	Name string
	Dir  string
	// Size is only used when Create is set; attaching maps the whole file.
	Size   int
	Create bool
}

// RegionPath returns the file backing the region called name inside dir.
func RegionPath(dir, name string) string {
	if dir == "" {
		dir = DefaultDir
	}
	return filepath.Join(dir, name)
}

// ValidateName rejects names that would escape the region directory.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsRune(name, '/'), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
