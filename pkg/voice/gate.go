package voice

import "sync/atomic"

// AudioGate tells the microphone path whether to drop frames. While TTS is
// playing the student's track carries the agent's own speech back as echo;
// gated frames never reach STT.
type AudioGate interface {
	// SetTTSPlaying flips the gate around TTS playback.
	SetTTSPlaying(playing bool)

	// ShouldDiscardAudio reports whether microphone frames should be
	// dropped right now.
	ShouldDiscardAudio() bool
}

// NewAudioGate creates an open gate.
func NewAudioGate() AudioGate {
	return &defaultGate{}
}

type defaultGate struct {
	ttsPlaying atomic.Bool
}

func (g *defaultGate) SetTTSPlaying(playing bool) { g.ttsPlaying.Store(playing) }

func (g *defaultGate) ShouldDiscardAudio() bool { return g.ttsPlaying.Load() }
