// Package rtc holds the audio primitives shared by the media pipeline.
package rtc

import (
	"fmt"
	"time"
)

// AudioFrame is one 10 ms slice of PCM audio as it moves between the room
// track, the voice detector, and the speech services. Data holds 16-bit
// little-endian samples, interleaved when NumChannels is 2, so its length
// is always SamplesPerChannel * NumChannels * 2.
//
// Frames are passed by value but Data is shared; Clone before holding a
// frame past the callback that delivered it.
type AudioFrame struct {
	Data              []byte
	SampleRate        int // 16000 or 48000 in this codebase
	SamplesPerChannel int // SampleRate / 100 for a 10 ms frame
	NumChannels       int
	Timestamp         time.Duration // offset from capture start; zero for live frames
}

// NewAudioFrame validates that data carries exactly 10 ms of audio at the
// given rate and channel count.
func NewAudioFrame(data []byte, sampleRate, numChannels int, timestamp time.Duration) (*AudioFrame, error) {
	perChannel := sampleRate / 100
	if want := perChannel * numChannels * 2; len(data) != want {
		return nil, fmt.Errorf("audio frame holds %d bytes, want %d for 10ms at %d Hz x%d",
			len(data), want, sampleRate, numChannels)
	}
	return &AudioFrame{
		Data:              data,
		SampleRate:        sampleRate,
		SamplesPerChannel: perChannel,
		NumChannels:       numChannels,
		Timestamp:         timestamp,
	}, nil
}

// Clone returns a copy whose Data does not alias the receiver's.
func (f *AudioFrame) Clone() *AudioFrame {
	c := *f
	c.Data = append([]byte(nil), f.Data...)
	return &c
}

// Duration reports how much audio the frame carries. Frames built through
// NewAudioFrame always report 10 ms; hand-built frames report whatever
// their sample counts imply.
func (f *AudioFrame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(f.SamplesPerChannel) * time.Second / time.Duration(f.SampleRate)
}
