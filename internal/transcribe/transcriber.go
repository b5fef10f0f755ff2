package transcribe

import "context"

// Transcriber turns a voice note into text. The name carries the storage
// object path so implementations can infer the audio format from its
// extension.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, name string) (string, error)
}

// StaticTranscriber returns a fixed transcript. It stands in for the real
// speech-to-text backend when no API key is configured, keeping the full
// pipeline exercisable in local development and deterministic in tests.
type StaticTranscriber struct {
	Text string
}

func (t StaticTranscriber) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	if t.Text == "" {
		return "Transcript unavailable: speech-to-text is not configured.", nil
	}
	return t.Text, nil
}
