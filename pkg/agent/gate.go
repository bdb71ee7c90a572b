package agent

import "strings"

// sentenceTerminators end a sentence for guardrail purposes. The safety
// check runs per complete sentence, never on a partial one, except for the
// final flush when the text stream closes.
const sentenceTerminators = ".!?:;"

// SentenceGate buffers streamed text and emits it one sentence at a time.
// Write appends a chunk and emits whenever the trimmed buffer ends with a
// terminator; Flush emits any non-whitespace remainder.
type SentenceGate struct {
	emit func(sentence string) error
	buf  strings.Builder
}

// NewSentenceGate creates a gate that calls emit for each complete sentence.
func NewSentenceGate(emit func(sentence string) error) *SentenceGate {
	return &SentenceGate{emit: emit}
}

// Write appends chunk to the buffer, emitting every time the buffer reaches
// a sentence boundary. One chunk may carry several terminators and so
// trigger several emissions.
func (g *SentenceGate) Write(chunk string) error {
	for _, r := range chunk {
		g.buf.WriteRune(r)
		if strings.ContainsRune(sentenceTerminators, r) {
			if err := g.flushBuffer(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush emits the remaining partial sentence, if it has any non-whitespace
// content. Called when the upstream text stream closes.
func (g *SentenceGate) Flush() error {
	if strings.TrimSpace(g.buf.String()) == "" {
		g.buf.Reset()
		return nil
	}
	return g.flushBuffer()
}

func (g *SentenceGate) flushBuffer() error {
	sentence := g.buf.String()
	g.buf.Reset()
	if strings.TrimSpace(sentence) == "" {
		return nil
	}
	return g.emit(sentence)
}
