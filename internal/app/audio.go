package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"

	"github.com/chriscow/tutor-agents-go/internal/observe"
	"github.com/chriscow/tutor-agents-go/pkg/voice"
)

const (
	// utteranceGap is how long the microphone must stay silent before the
	// buffered packets are flushed as one utterance.
	utteranceGap     = 600 * time.Millisecond
	gapCheckInterval = 250 * time.Millisecond

	// Opus over WebRTC is always clocked at 48kHz stereo.
	opusSampleRate = 48000
	opusChannels   = 2
)

// micPump reads the student's opus packets off the subscribed track and
// segments them into utterances on packet-gap silence. Each utterance is
// containerized as OGG without a decode step and handed to the transcription
// loop; packets arriving while our own TTS plays are dropped by the gate.
func (r *Runtime) micPump(ctx context.Context, track *webrtc.TrackRemote, gate voice.AudioGate, sess *voice.Session, logger *slog.Logger) {
	packets := make(chan *rtp.Packet, 64)
	go func() {
		defer close(packets)
		for {
			pkt, _, err := track.ReadRTP()
			if err != nil {
				if ctx.Err() == nil {
					logger.Debug("mic track read ended", slog.String("error", err.Error()))
				}
				return
			}
			if gate != nil && gate.ShouldDiscardAudio() {
				continue
			}
			select {
			case packets <- pkt:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Utterances are transcribed on a single goroutine so user turns reach
	// the session in speaking order.
	utterances := make(chan []byte, 4)
	go r.transcribeLoop(ctx, utterances, sess, logger)
	defer close(utterances)

	var (
		buf      bytes.Buffer
		ogg      *oggwriter.OggWriter
		lastSeen time.Time
	)
	flush := func() {
		if ogg == nil {
			return
		}
		if err := ogg.Close(); err != nil {
			logger.Warn("ogg close failed", slog.String("error", err.Error()))
		}
		ogg = nil
		if buf.Len() > 0 {
			data := make([]byte, buf.Len())
			copy(data, buf.Bytes())
			select {
			case utterances <- data:
			default:
				logger.Warn("transcription backlog, dropping utterance")
			}
		}
		buf.Reset()
	}

	ticker := time.NewTicker(gapCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Closed():
			return
		case <-ticker.C:
			if ogg != nil && time.Since(lastSeen) >= utteranceGap {
				flush()
			}
		case pkt, ok := <-packets:
			if !ok {
				flush()
				return
			}
			if ogg == nil {
				w, err := oggwriter.NewWith(&buf, opusSampleRate, opusChannels)
				if err != nil {
					logger.Error("ogg writer init failed", slog.String("error", err.Error()))
					return
				}
				ogg = w
			}
			if err := ogg.WriteRTP(pkt); err != nil {
				logger.Warn("ogg write failed", slog.String("error", err.Error()))
				continue
			}
			lastSeen = time.Now()
		}
	}
}

// transcribeLoop turns flushed utterances into user turns.
func (r *Runtime) transcribeLoop(ctx context.Context, utterances <-chan []byte, sess *voice.Session, logger *slog.Logger) {
	for audio := range utterances {
		text, err := r.STT.TranscribeOgg(ctx, audio)
		if err != nil {
			logger.Warn("utterance transcription failed", slog.String("error", err.Error()))
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		logger.Debug("user utterance", slog.String("text", observe.Truncate(text)))
		if err := sess.HandleUserTurn(ctx, text); err != nil {
			logger.Debug("user turn rejected", slog.String("error", err.Error()))
			return
		}
	}
}
