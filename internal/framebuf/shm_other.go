//go:build !linux

package framebuf

import "context"

func allocSegment(ctx context.Context, size int) (segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newHeapSegment(size), nil
}
