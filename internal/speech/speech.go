// Package speech provides speech-to-text and text-to-speech provider clients.
package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// TranscribeRequest carries captured audio plus transcriber options.
type TranscribeRequest struct {
	// AudioDataURI is a base64 data URI, e.g. "data:audio/webm;base64,...".
	AudioDataURI string
	Model        string
	Language     string
	Punctuate    bool
	SmartFormat  bool
	Keywords     []string
}

// Transcriber converts captured audio into text. Single-shot, no streaming.
type Transcriber interface {
	Transcribe(ctx context.Context, req *TranscribeRequest) (string, error)
	Name() string
}

// SynthesizeRequest carries reply text plus voice tuning.
type SynthesizeRequest struct {
	Text            string
	VoiceID         string
	Stability       float64
	SimilarityBoost float64
	Style           float64
	SpeakerBoost    bool
}

// Synthesizer converts text into playable audio, returned as a base64 data URI.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *SynthesizeRequest) (string, error)
	Name() string
}

// DecodeDataURI splits a base64 data URI into its MIME type and raw bytes.
func DecodeDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, errors.New("not a data URI")
	}
	rest := strings.TrimPrefix(uri, "data:")
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return "", nil, errors.New("data URI is not base64 encoded")
	}
	mimeType := rest[:sep]
	data, err := base64.StdEncoding.DecodeString(rest[sep+len(";base64,"):])
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URI: %w", err)
	}
	return mimeType, data, nil
}

// EncodeDataURI builds a base64 data URI from raw bytes.
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
