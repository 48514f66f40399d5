package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeepgramTranscribe(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	var gotQuery map[string][]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotQuery = r.URL.Query()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"hello world"}]}]}}`))
	}))
	defer server.Close()

	client, err := NewDeepgramClient("dg-key")
	if err != nil {
		t.Fatalf("NewDeepgramClient failed: %v", err)
	}
	client.baseURL = server.URL

	text, err := client.Transcribe(context.Background(), &TranscribeRequest{
		AudioDataURI: EncodeDataURI("audio/webm", []byte("pcm-bytes")),
		Model:        "nova-2",
		Language:     "en",
		Punctuate:    true,
		SmartFormat:  true,
		Keywords:     []string{"refund", "warranty"},
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if text != "hello world" {
		t.Errorf("expected transcript hello world, got %q", text)
	}
	if gotPath != "/v1/listen" {
		t.Errorf("expected path /v1/listen, got %s", gotPath)
	}
	if gotAuth != "Token dg-key" {
		t.Errorf("unexpected auth header: %s", gotAuth)
	}
	if gotContentType != "audio/webm" {
		t.Errorf("expected audio/webm content type, got %s", gotContentType)
	}
	if got := gotQuery["model"]; len(got) != 1 || got[0] != "nova-2" {
		t.Errorf("unexpected model param: %v", got)
	}
	if got := gotQuery["keywords"]; len(got) != 2 {
		t.Errorf("expected 2 keyword params, got %v", got)
	}
}

func TestDeepgramTranscribeEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":{"channels":[]}}`))
	}))
	defer server.Close()

	client, _ := NewDeepgramClient("dg-key")
	client.baseURL = server.URL

	text, err := client.Transcribe(context.Background(), &TranscribeRequest{
		AudioDataURI: EncodeDataURI("audio/webm", []byte("pcm-bytes")),
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty transcript, got %q", text)
	}
}

func TestDeepgramTranscribeErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client, _ := NewDeepgramClient("dg-key")
	client.baseURL = server.URL

	tests := []struct {
		name string
		uri  string
	}{
		{"upstream error", EncodeDataURI("audio/webm", []byte("pcm-bytes"))},
		{"not a data URI", "just-text"},
		{"empty payload", EncodeDataURI("audio/webm", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := client.Transcribe(context.Background(), &TranscribeRequest{AudioDataURI: tt.uri}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewDeepgramClientRequiresKey(t *testing.T) {
	if _, err := NewDeepgramClient(""); err == nil {
		t.Error("expected error for empty API key")
	}
}
