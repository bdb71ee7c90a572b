package voice

import (
	"sync"
	"testing"

	"github.com/matryer/is"
)

func TestAudioGate_FollowsTTSPlayback(t *testing.T) {
	is := is.New(t)

	gate := NewAudioGate()
	is.True(!gate.ShouldDiscardAudio()) // starts open

	gate.SetTTSPlaying(true)
	is.True(gate.ShouldDiscardAudio())

	gate.SetTTSPlaying(false)
	is.True(!gate.ShouldDiscardAudio())
}

func TestAudioGate_ConcurrentFlips(t *testing.T) {
	gate := NewAudioGate()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(playing bool) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				gate.SetTTSPlaying(playing)
			}
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = gate.ShouldDiscardAudio()
			}
		}()
	}
	wg.Wait()
}
