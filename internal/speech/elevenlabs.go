package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultElevenLabsBaseURL = "https://api.elevenlabs.io"
	defaultElevenLabsModel   = "eleven_turbo_v2"
)

// ElevenLabsClient synthesizes speech through the ElevenLabs REST API.
type ElevenLabsClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewElevenLabsClient creates a new ElevenLabs synthesis client.
func NewElevenLabsClient(apiKey string) (*ElevenLabsClient, error) {
	if apiKey == "" {
		return nil, errors.New("ElevenLabs API key is required")
	}

	return &ElevenLabsClient{
		apiKey:     apiKey,
		baseURL:    defaultElevenLabsBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Name returns the provider name.
func (c *ElevenLabsClient) Name() string {
	return "elevenlabs"
}

type elevenLabsRequest struct {
	Text          string                 `json:"text"`
	ModelID       string                 `json:"model_id"`
	VoiceSettings elevenLabsVoiceSetting `json:"voice_settings"`
}

type elevenLabsVoiceSetting struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// Synthesize converts text to audio and returns it as an mpeg data URI.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, req *SynthesizeRequest) (string, error) {
	if req.Text == "" {
		return "", errors.New("text is required")
	}
	if req.VoiceID == "" {
		return "", errors.New("voice ID is required")
	}

	payload, err := json.Marshal(elevenLabsRequest{
		Text:    req.Text,
		ModelID: defaultElevenLabsModel,
		VoiceSettings: elevenLabsVoiceSetting{
			Stability:       req.Stability,
			SimilarityBoost: req.SimilarityBoost,
			Style:           req.Style,
			UseSpeakerBoost: req.SpeakerBoost,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/v1/text-to-speech/" + req.VoiceID

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("synthesis failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return EncodeDataURI("audio/mpeg", body), nil
}
