package bus

import "context"

// Read performs a 32-bit read on bar 0.
func Read(ctx context.Context, d Driver, offset uint64) (uint32, error) {
	return Read32(ctx, d, offset)
}

// Read32 performs a 32-bit read on bar 0.
func Read32(ctx context.Context, d Driver, offset uint64) (uint32, error) {
	v, err := d.Read(ctx, 0, offset, 4)
	return uint32(v), err
}

// Read16 performs a 16-bit read on bar 0.
func Read16(ctx context.Context, d Driver, offset uint64) (uint16, error) {
	v, err := d.Read(ctx, 0, offset, 2)
	return uint16(v), err
}

// Read8 performs an 8-bit read on bar 0.
func Read8(ctx context.Context, d Driver, offset uint64) (uint8, error) {
	v, err := d.Read(ctx, 0, offset, 1)
	return uint8(v), err
}

// Write performs a 32-bit write on bar 0.
func Write(ctx context.Context, d Driver, offset uint64, value uint32) error {
	return Write32(ctx, d, offset, value)
}

// Write32 performs a 32-bit write on bar 0.
func Write32(ctx context.Context, d Driver, offset uint64, value uint32) error {
	return d.Write(ctx, 0, offset, 4, uint64(value))
}

// Write16 performs a 16-bit write on bar 0.
func Write16(ctx context.Context, d Driver, offset uint64, value uint16) error {
	return d.Write(ctx, 0, offset, 2, uint64(value))
}

// Write8 performs an 8-bit write on bar 0.
func Write8(ctx context.Context, d Driver, offset uint64, value uint8) error {
	return d.Write(ctx, 0, offset, 1, uint64(value))
}
