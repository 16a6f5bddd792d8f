// Package mem provides the leaf byte-storage and register primitives shared
// by every peripheral: fixed-capacity backing buffers, typed bit-addressable
// registers, and the Latch primitive used for the CPU's one-cycle-delayed
// IME/HALT semantics (spec §3, §4.1).
package mem

import "github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/fault"

// Bytes is a fixed-capacity byte-addressable memory region, e.g. a ROM bank,
// a WRAM bank, or HRAM. Offsets are region-relative, not CPU addresses.
type Bytes struct {
	buf []byte
}

// NewBytes allocates a zeroed region of the given size.
func NewBytes(size int) *Bytes { return &Bytes{buf: make([]byte, size)} }

// WrapBytes adopts an existing slice (e.g. a loaded ROM bank) as a region.
func WrapBytes(b []byte) *Bytes { return &Bytes{buf: b} }

func (m *Bytes) Len() int { return len(m.buf) }

// Read returns the byte at offset, or a memory-fault if out of range.
func (m *Bytes) Read(offset int) (byte, error) {
	if offset < 0 || offset >= len(m.buf) {
		return 0, fault.Newf(fault.MemoryFault, uint16(offset), "read out of range (len=%d)", len(m.buf))
	}
	return m.buf[offset], nil
}

// Write stores v at offset, or returns a memory-fault if out of range.
func (m *Bytes) Write(offset int, v byte) error {
	if offset < 0 || offset >= len(m.buf) {
		return fault.Newf(fault.MemoryFault, uint16(offset), "write out of range (len=%d)", len(m.buf))
	}
	m.buf[offset] = v
	return nil
}

// Raw exposes the backing slice for bulk operations (ROM loading, save
// states). Callers must not resize it.
func (m *Bytes) Raw() []byte { return m.buf }

// Register8 is a bit-addressable 8-bit I/O register.
type Register8 struct{ V byte }

func (r *Register8) Bit(n uint) bool     { return r.V&(1<<n) != 0 }
func (r *Register8) SetBit(n uint)       { r.V |= 1 << n }
func (r *Register8) ClearBit(n uint)     { r.V &^= 1 << n }
func (r *Register8) WriteBit(n uint, v bool) {
	if v {
		r.SetBit(n)
	} else {
		r.ClearBit(n)
	}
}

// Latch models a value that is written now but only becomes visible on the
// next tick: load() stores into the pending side, tick() propagates pending
// into visible. Used for IME (EI's delayed enable) and halted (HALT's
// delayed-visibility entry), per spec §3/§4.1/§9.
type Latch[T any] struct {
	loaded  T
	visible T
}

// NewLatch creates a latch with both sides initialized to v.
func NewLatch[T any](v T) Latch[T] { return Latch[T]{loaded: v, visible: v} }

// Load stores a new pending value; it has no visible effect until Tick.
func (l *Latch[T]) Load(v T) { l.loaded = v }

// Tick propagates the pending value into the visible value.
func (l *Latch[T]) Tick() { l.visible = l.loaded }

// Reset sets both the pending and visible values to v immediately.
func (l *Latch[T]) Reset(v T) { l.loaded = v; l.visible = v }

// Value returns the currently visible value.
func (l *Latch[T]) Value() T { return l.visible }

// Loaded returns the pending value (not yet visible).
func (l *Latch[T]) Loaded() T { return l.loaded }
