package ui

import (
	"encoding/binary"
	"time"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/machine"
)

// audioBufferDuration is the ebiten player's internal buffer size; grounded
// on the teacher's applyPlayerBufferSize, fixed at its "otherwise" value
// since this rewrite drops the fast-forward/low-latency toggle.
const audioBufferDuration = 40 * time.Millisecond

// apuStream implements io.Reader by pulling stereo PCM samples from the
// machine's bounded audio sink and converting them to 16-bit little-endian
// stereo frames, for ebiten's audio.Player. Grounded on the teacher's
// internal/ui/audio.go apuStream, simplified to a single blocking pull with
// a short wait instead of the teacher's mono/mute/low-latency variants.
type apuStream struct {
	m *machine.Machine
}

func (s *apuStream) Read(p []byte) (int, error) {
	if len(p) < 4 || s.m == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	want := len(p) / 4
	deadline := time.Now().Add(15 * time.Millisecond)
	for time.Now().Before(deadline) {
		frames := s.m.DrainAudio(want)
		if len(frames) > 0 {
			n := 0
			for i := 0; i+1 < len(frames) && n+3 < len(p); i += 2 {
				binary.LittleEndian.PutUint16(p[n:], uint16(frames[i]))
				binary.LittleEndian.PutUint16(p[n+2:], uint16(frames[i+1]))
				n += 4
			}
			return n, nil
		}
		time.Sleep(time.Millisecond)
	}

	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
