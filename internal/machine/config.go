package machine

// Config contains settings that affect emulation behavior but not the
// semantics of the core (spec §4.9 supplement). Grounded on the teacher's
// internal/emu/config.go pattern: a plain struct of bools/ints, no external
// config library, since the teacher never reaches for one either.
type Config struct {
	Trace           bool // log stepped instructions (cmd/corerunner trace subcommand)
	RollbackOnFault bool // restore the CPU register snapshot on a mid-instruction fault
	SampleRate      int  // APU output sample rate in Hz; 0 selects the teacher's default (44100)
}
