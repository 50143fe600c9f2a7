package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/vera/internal/reliability"
)

type HTTPConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// HTTPProvider talks to an OpenAI-compatible audio transcription endpoint
// (POST {base}/audio/transcriptions, multipart, response_format=text).
type HTTPProvider struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *HTTPProvider) Name() string { return "http" }

func (p *HTTPProvider) Transcribe(ctx context.Context, req Request) (string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if err := mw.WriteField("model", p.cfg.Model); err != nil {
		return "", Fatal(0, fmt.Errorf("build request: %w", err))
	}
	if err := mw.WriteField("response_format", "text"); err != nil {
		return "", Fatal(0, fmt.Errorf("build request: %w", err))
	}
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = "audio." + req.Format
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", Fatal(0, fmt.Errorf("build request: %w", err))
	}
	if _, err := part.Write(req.Audio); err != nil {
		return "", Fatal(0, fmt.Errorf("build request: %w", err))
	}
	if err := mw.Close(); err != nil {
		return "", Fatal(0, fmt.Errorf("build request: %w", err))
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/audio/transcriptions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", Fatal(0, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// Connection resets and client timeouts are worth retrying.
		return "", Transient(0, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", Transient(resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(payload))
		if msg == "" {
			msg = resp.Status
		}
		err := errors.New(msg)
		if reliability.IsRetryableHTTPStatus(resp.StatusCode) || reliability.IsRetryableMessage(msg) {
			return "", Transient(resp.StatusCode, err)
		}
		return "", Fatal(resp.StatusCode, err)
	}

	return strings.TrimSpace(string(payload)), nil
}
