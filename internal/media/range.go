package media

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformedRange is returned for range specifications that cannot be
	// parsed, including the suffix form ("bytes=-N") which this server does
	// not support and rejects explicitly rather than misinterpreting.
	ErrMalformedRange = errors.New("malformed range specification")

	// ErrRangeNotSatisfiable is returned when a parseable range does not fit
	// the content: start at or past the end of content, or start > end.
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
)

const bytesUnitPrefix = "bytes="

// ParseRange parses a single Range header value of the form
// "bytes=<start>-<end>" against content of the given size.
// An omitted <end> means the remainder of the content. The end position is
// clamped to size-1 when it runs past the content, per RFC 9110.
// Multi-range and suffix ("bytes=-N") forms are rejected as malformed.
func ParseRange(spec string, size int64) (ByteRange, error) {
	if !strings.HasPrefix(spec, bytesUnitPrefix) {
		return ByteRange{}, fmt.Errorf("%w: missing bytes unit in %q", ErrMalformedRange, spec)
	}
	set := strings.TrimPrefix(spec, bytesUnitPrefix)
	if strings.Contains(set, ",") {
		return ByteRange{}, fmt.Errorf("%w: multiple ranges not supported", ErrMalformedRange)
	}

	startStr, endStr, ok := strings.Cut(set, "-")
	if !ok {
		return ByteRange{}, fmt.Errorf("%w: %q", ErrMalformedRange, spec)
	}
	if startStr == "" {
		// Suffix form "bytes=-N" (last N bytes) is not supported.
		return ByteRange{}, fmt.Errorf("%w: suffix ranges not supported", ErrMalformedRange)
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return ByteRange{}, fmt.Errorf("%w: bad start %q", ErrMalformedRange, startStr)
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return ByteRange{}, fmt.Errorf("%w: bad end %q", ErrMalformedRange, endStr)
		}
	}
	if end > size-1 {
		end = size - 1
	}

	if start >= size || start > end {
		return ByteRange{}, fmt.Errorf("%w: %d-%d against %d bytes", ErrRangeNotSatisfiable, start, end, size)
	}

	return ByteRange{Start: start, End: end}, nil
}
