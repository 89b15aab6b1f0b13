//go:build linux

package framebuf

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/apexclick/internal/resilience"
)

const shmDir = "/dev/shm"

// shmBreaker stops trying named segments after repeated failures
// (e.g. /dev/shm missing or full) and falls back to heap memory.
var shmBreaker = resilience.New(resilience.AllocConfig())

type shmSegment struct {
	name string
	data []byte
}

func (s *shmSegment) Bytes() []byte { return s.data }
func (s *shmSegment) Name() string  { return s.name }

// Unlink removes the /dev/shm entry. Live mappings stay valid.
func (s *shmSegment) Unlink() error {
	if err := unix.Unlink(filepath.Join(shmDir, s.name)); err != nil && !errors.Is(err, unix.ENOENT) {
		return err
	}
	return nil
}

func (s *shmSegment) Close() error {
	var errs []error
	if s.data != nil {
		errs = append(errs, unix.Munmap(s.data))
		s.data = nil
	}
	errs = append(errs, s.Unlink())
	return errors.Join(errs...)
}

// allocSegment maps a fresh named segment under /dev/shm. A name collision
// unlinks the stale segment and retries.
func allocSegment(ctx context.Context, size int) (segment, error) {
	var seg *shmSegment
	err := shmBreaker.Execute(func() error {
		return resilience.Retry(ctx, resilience.RetryConfig{
			IsRetryable: func(err error) bool { return errors.Is(err, unix.EEXIST) },
		}, func() error {
			name := SegmentPrefix + uuid.NewString()
			s, err := openSegment(name, size)
			if errors.Is(err, unix.EEXIST) {
				_ = unix.Unlink(filepath.Join(shmDir, name))
			}
			seg = s
			return err
		})
	})
	if err == nil {
		return seg, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	slog.Warn("shared memory unavailable, using heap frame buffer", "error", err)
	return newHeapSegment(size), nil
}

func openSegment(name string, size int) (*shmSegment, error) {
	path := filepath.Join(shmDir, name)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, err
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Unlink(path)
		return nil, err
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Unlink(path)
		return nil, err
	}
	return &shmSegment{name: name, data: data}, nil
}
