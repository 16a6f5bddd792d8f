package serial_test

import (
	"testing"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/interrupt"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/serial"
)

func TestTransferCompletesImmediatelyAndRaisesIRQ(t *testing.T) {
	p := serial.New()
	var ctl interrupt.Controller
	ctl.WriteIE(1 << interrupt.Serial)
	p.WriteSB('X')
	p.WriteSC(0x81, &ctl)

	if got := p.ReadSC(); got&0x80 != 0 {
		t.Fatalf("ReadSC() start bit still set after immediate completion: %#02x", got)
	}
	if !ctl.Pending() {
		t.Fatalf("expected serial IRQ after a transfer completes")
	}
}

func TestSinkReceivesTransmittedByte(t *testing.T) {
	p := serial.New()
	var ctl interrupt.Controller
	var got byte
	p.SetSink(func(b byte) { got = b })
	p.WriteSB('A')
	p.WriteSC(0x81, &ctl)
	if got != 'A' {
		t.Fatalf("sink received %q, want 'A'", got)
	}
}

func TestWriteSCWithoutStartBitDoesNotTransfer(t *testing.T) {
	p := serial.New()
	var ctl interrupt.Controller
	called := false
	p.SetSink(func(b byte) { called = true })
	p.WriteSC(0x01, &ctl) // internal clock selected, but start bit clear
	if called {
		t.Fatalf("sink invoked without the start bit set")
	}
	if ctl.Pending() {
		t.Fatalf("IRQ raised without a transfer starting")
	}
}
