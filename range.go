package hashstore

import (
	"fmt"
	"io"
	"os"
)

type loadOpts struct {
	start *int64
	end   *int64
}

// LoadOption restricts a LoadBytes call to a byte range.
type LoadOption func(*loadOpts)

// WithStart sets the inclusive start offset.
func WithStart(n int64) LoadOption {
	return func(o *loadOpts) { o.start = &n }
}

// WithEnd sets the exclusive end offset. With no start offset set, the
// last n bytes of the object are selected.
func WithEnd(n int64) LoadOption {
	return func(o *loadOpts) { o.end = &n }
}

// resolveRange turns optional bounds into absolute [start, end) offsets
// for an object of the given size.
func resolveRange(size int64, o loadOpts) (start, end int64, err error) {
	switch {
	case o.start == nil && o.end == nil:
		return 0, size, nil
	case o.start == nil:
		// Absent start with a present end selects the last `end` bytes.
		if *o.end < 0 {
			return 0, 0, fmt.Errorf("%w: negative end %d", ErrRange, *o.end)
		}
		start = size - *o.end
		if start < 0 {
			start = 0
		}
		return start, size, nil
	default:
		start = *o.start
		end = size
		if o.end != nil {
			end = *o.end
		}
		if start < 0 || (o.end != nil && *o.end < 0) {
			return 0, 0, fmt.Errorf("%w: negative offset", ErrRange)
		}
		if start > end {
			return 0, 0, fmt.Errorf("%w: start %d > end %d", ErrRange, start, end)
		}
		if start > size {
			return 0, 0, fmt.Errorf("%w: start %d beyond object length %d", ErrRange, start, size)
		}
		if end > size {
			end = size
		}
		return start, end, nil
	}
}

// readFileRange reads [start, end) from a file.
func readFileRange(path string, start, end int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, end-start)
	if _, err := io.ReadFull(io.NewSectionReader(f, start, end-start), buf); err != nil {
		return nil, err
	}
	return buf, nil
}
