package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultDeepgramBaseURL = "https://api.deepgram.com"

// DeepgramClient transcribes audio through the Deepgram REST API.
type DeepgramClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewDeepgramClient creates a new Deepgram transcription client.
func NewDeepgramClient(apiKey string) (*DeepgramClient, error) {
	if apiKey == "" {
		return nil, errors.New("Deepgram API key is required")
	}

	return &DeepgramClient{
		apiKey:     apiKey,
		baseURL:    defaultDeepgramBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Name returns the provider name.
func (c *DeepgramClient) Name() string {
	return "deepgram"
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe sends raw audio to Deepgram and returns the transcript text.
// An empty transcript on a successful call is returned as-is; the caller
// decides whether that constitutes a turn.
func (c *DeepgramClient) Transcribe(ctx context.Context, req *TranscribeRequest) (string, error) {
	mimeType, audio, err := DecodeDataURI(req.AudioDataURI)
	if err != nil {
		return "", fmt.Errorf("invalid audio payload: %w", err)
	}
	if len(audio) == 0 {
		return "", errors.New("audio payload is empty")
	}

	q := url.Values{}
	if req.Model != "" {
		q.Set("model", req.Model)
	}
	if req.Language != "" {
		q.Set("language", req.Language)
	}
	q.Set("punctuate", strconv.FormatBool(req.Punctuate))
	q.Set("smart_format", strconv.FormatBool(req.SmartFormat))
	for _, kw := range req.Keywords {
		if kw != "" {
			q.Add("keywords", kw)
		}
	}

	endpoint := c.baseURL + "/v1/listen?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+c.apiKey)
	httpReq.Header.Set("Content-Type", mimeType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result deepgramResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}

	return result.Results.Channels[0].Alternatives[0].Transcript, nil
}
