package bus

import (
	"context"
	"errors"
	"fmt"
)

// Driver errors.
var (
	// ErrNotSupported indicates the driver does not implement the operation.
	ErrNotSupported = errors.New("operation not supported")

	// ErrInvalidWidth indicates an access width other than 1, 2 or 4 bytes.
	ErrInvalidWidth = errors.New("invalid access width")

	// ErrInvalidStride indicates a block stride that is not a positive multiple of 4.
	ErrInvalidStride = errors.New("invalid block stride")
)

// DefaultStride is the address increment between block words.
const DefaultStride = 4

// Driver is the abstract bus access contract.
type Driver interface {
	// Open binds the driver to the device named by locator.
	Open(ctx context.Context, locator string) error

	// Close releases the device. It is safe to call Close more than once.
	Close() error

	// Read reads width bytes at offset and returns them right-aligned.
	Read(ctx context.Context, bar int, offset uint64, width int) (uint64, error)

	// Write writes the low width bytes of value at offset.
	Write(ctx context.Context, bar int, offset uint64, width int, value uint64) error

	// BlockRead reads length bytes as 32-bit words starting at offset,
	// advancing the address by stride after each word.
	BlockRead(ctx context.Context, bar int, offset uint64, length int, stride int) ([]uint32, error)

	// BlockWrite writes values in order starting at offset, advancing the
	// address by stride after each word.
	BlockWrite(ctx context.Context, bar int, offset uint64, values []uint32, stride int) error
}

// Unsupported provides the default block transfer behavior for drivers
// that only implement scalar access. Embed it in a driver struct.
type Unsupported struct{}

// BlockRead fails with ErrNotSupported.
func (Unsupported) BlockRead(context.Context, int, uint64, int, int) ([]uint32, error) {
	return nil, ErrNotSupported
}

// BlockWrite fails with ErrNotSupported.
func (Unsupported) BlockWrite(context.Context, int, uint64, []uint32, int) error {
	return ErrNotSupported
}

// ValidWidth checks a scalar access width.
func ValidWidth(width int) error {
	switch width {
	case 1, 2, 4:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}
}

// ValidStride checks a block stride. Zero selects DefaultStride.
func ValidStride(stride int) (int, error) {
	if stride == 0 {
		return DefaultStride, nil
	}
	if stride < 0 || stride%4 != 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidStride, stride)
	}
	return stride, nil
}

// WordCount returns the number of 32-bit words in a block of length bytes.
// A trailing partial word is included.
func WordCount(length int) int {
	if length <= 0 {
		return 0
	}
	return (length + 3) / 4
}

// Chunk splits words into consecutive slices of at most n words.
func Chunk(words []uint32, n int) [][]uint32 {
	if n <= 0 || len(words) == 0 {
		return nil
	}
	chunks := make([][]uint32, 0, (len(words)+n-1)/n)
	for len(words) > n {
		chunks = append(chunks, words[:n:n])
		words = words[n:]
	}
	return append(chunks, words)
}
