package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTTSURL   = "https://api.openai.com/v1/audio/speech"
	DefaultTTSModel = "tts-1"
	DefaultTTSVoice = "alloy"

	maxSpeechBytes = 16 << 20
)

type TTSConfig struct {
	URL     string
	Model   string
	Voice   string
	APIKey  string
	Timeout time.Duration
}

// HTTPSynthesizer calls a speech endpoint that accepts
// {"model","input","voice"} and answers with audio bytes.
type HTTPSynthesizer struct {
	cfg  TTSConfig
	http *http.Client
}

func NewHTTPSynthesizer(cfg TTSConfig) *HTTPSynthesizer {
	if cfg.URL == "" {
		cfg.URL = DefaultTTSURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultTTSModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultTTSVoice
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPSynthesizer{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{
		"model": s.cfg.Model,
		"input": text,
		"voice": s.cfg.Voice,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("speech endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxSpeechBytes))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("speech endpoint returned no audio")
	}
	return b, nil
}
