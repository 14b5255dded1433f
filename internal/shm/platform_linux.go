//go:build linux

package shm

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"
)

// MapRegion creates (exclusively) or opens a named region and maps it shared.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateName(opts.Name); err != nil {
		return nil, err
	}
	path := RegionPath(opts.Dir, opts.Name)
	if opts.Create {
		return createRegion(path, opts.Size)
	}
	return openRegion(path)
}

func createRegion(path string, size int) (*MappedRegion, error) {
	if size <= 0 {
		return nil, fmt.Errorf("create %s: invalid size %d", path, size)
	}
	if !canCreate(uint64(size), filepath.Dir(path)) {
		return nil, fmt.Errorf("create %s: %w (%d bytes)", path, ErrNoSpace, size)
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL|unix.O_CLOEXEC, 0600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, classify(err))
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		_ = unix.Unlink(path)
		return nil, fmt.Errorf("ftruncate %s: %w", path, classify(err))
	}
	addr, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		_ = unix.Unlink(path)
		return nil, fmt.Errorf("mmap %s: %w", path, classify(err))
	}
	return &MappedRegion{Addr: addr, Path: path, fd: fd}, nil
}

func openRegion(path string) (*MappedRegion, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, classify(err))
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("fstat %s: %w", path, err)
	}
	if st.Size == 0 {
		// creator has not truncated the file yet
		_ = unix.Close(fd)
		return nil, fmt.Errorf("open %s: %w", path, ErrRegionIncomplete)
	}
	addr, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", path, classify(err))
	}
	return &MappedRegion{Addr: addr, Path: path, fd: fd}, nil
}

// UnmapRegion unmaps the region and closes its descriptor. Safe to call twice.
func UnmapRegion(region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	var errs []error
	if err := unix.Munmap(region.Addr); err != nil {
		errs = append(errs, fmt.Errorf("munmap %s: %w", region.Path, err))
	}
	if err := unix.Close(region.fd); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", region.Path, err))
	}
	region.Addr = nil
	region.fd = -1
	return errors.Join(errs...)
}

// RemoveRegion unlinks the name. Existing mappings stay valid until unmapped.
func RemoveRegion(path string) error {
	if err := unix.Unlink(path); err != nil {
		return fmt.Errorf("unlink %s: %w", path, classify(err))
	}
	return nil
}

// canCreate reports whether dir has room for size more bytes. tmpfs does not
// reserve pages on ftruncate, so without this check a full /dev/shm only shows
// up later as SIGBUS on first write.
func canCreate(size uint64, dir string) bool {
	stat, err := disk.Usage(dir)
	if err != nil {
		return true
	}
	return stat.Free >= size
}

func classify(err error) error {
	switch {
	case errors.Is(err, unix.EEXIST):
		return fmt.Errorf("%w: %w", ErrRegionExists, err)
	case errors.Is(err, unix.ENOENT):
		return fmt.Errorf("%w: %w", ErrRegionNotFound, err)
	case errors.Is(err, unix.ENOSPC), errors.Is(err, unix.ENOMEM),
		errors.Is(err, unix.EMFILE), errors.Is(err, unix.ENFILE), errors.Is(err, unix.EFBIG):
		return fmt.Errorf("%w: %w", ErrNoSpace, err)
	}
	return err
}
