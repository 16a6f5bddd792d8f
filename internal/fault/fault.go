// Package fault defines the event taxonomy surfaced by bus-touching
// operations across the emulation core (see spec §6/§7).
package fault

import "fmt"

// Kind enumerates the structured events a conforming core must be able to
// report. Unused I/O ranges and "not usable" memory are NOT faults — they
// silently read 0xFF / drop writes per spec §4.2 and §7.
type Kind int

const (
	BreakpointReached Kind = iota
	IllegalInstruction
	BusFault
	MemoryFault
	UnsupportedMBC
	InvalidMBCOp
	CGBSpeedSwitch
	UnsupportedCGB
)

func (k Kind) String() string {
	switch k {
	case BreakpointReached:
		return "breakpoint-reached"
	case IllegalInstruction:
		return "illegal-instruction"
	case BusFault:
		return "bus-fault"
	case MemoryFault:
		return "memory-fault"
	case UnsupportedMBC:
		return "unsupported-mbc"
	case InvalidMBCOp:
		return "invalid-mbc-op"
	case CGBSpeedSwitch:
		return "cgb-speed-switch"
	case UnsupportedCGB:
		return "unsupported-cgb"
	default:
		return "unknown-fault"
	}
}

// Event is the error value carried by every fallible core operation.
type Event struct {
	Kind   Kind
	Addr   uint16
	Detail string
}

func (e *Event) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s at %#04x: %s", e.Kind, e.Addr, e.Detail)
	}
	return fmt.Sprintf("%s at %#04x", e.Kind, e.Addr)
}

// New builds an *Event with no detail message.
func New(k Kind, addr uint16) *Event { return &Event{Kind: k, Addr: addr} }

// Newf builds an *Event with a formatted detail message.
func Newf(k Kind, addr uint16, format string, args ...any) *Event {
	return &Event{Kind: k, Addr: addr, Detail: fmt.Sprintf(format, args...)}
}
