package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/antoniostano/vera/internal/audio"
	"github.com/antoniostano/vera/internal/protocol"
	"github.com/antoniostano/vera/internal/transcribe"
)

func (s *Server) maxAudioBytes() int64 {
	return int64(s.cfg.TranscribeMaxAudioMB) << 20
}

type transcribeResponse struct {
	Text     string `json:"text"`
	Attempts int    `json:"attempts"`
}

// handleTranscribe accepts a multipart upload with an "audio" file part and
// returns the transcript. The request body is hard-capped before any read.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "transcription not configured")
		return
	}

	limit := s.maxAudioBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20)) // headroom for multipart framing
	if err := r.ParseMultipartForm(limit); err != nil {
		if maxBytesExceeded(err) {
			respondError(w, http.StatusRequestEntityTooLarge, "audio_too_large", "audio payload exceeds the configured limit")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "multipart field 'audio' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if maxBytesExceeded(err) {
			respondError(w, http.StatusRequestEntityTooLarge, "audio_too_large", "audio payload exceeds the configured limit")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	req := transcribe.Request{
		Audio:    data,
		Filename: header.Filename,
		Format:   resolveFormat(r.FormValue("format"), header.Filename, data),
	}
	if err := transcribe.ValidateRequest(req, limit); err != nil {
		if strings.Contains(err.Error(), "exceeds limit") {
			respondError(w, http.StatusRequestEntityTooLarge, "audio_too_large", err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "bad_audio", err.Error())
		return
	}

	result, err := s.transcriber.Transcribe(r.Context(), req, nil)
	if err != nil {
		respondTranscribeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transcribeResponse{Text: result.Text, Attempts: result.Attempts})
}

// resolveFormat prefers the explicit form value, then the filename extension,
// then content sniffing.
func resolveFormat(explicit, filename string, data []byte) string {
	if f := strings.ToLower(strings.TrimSpace(explicit)); f != "" {
		return f
	}
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."); ext != "" {
		return ext
	}
	return audio.SniffFormat(data)
}

func maxBytesExceeded(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

func respondTranscribeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transcribe.ErrBadAudio):
		respondError(w, http.StatusBadRequest, "bad_audio", err.Error())
	case errors.Is(err, transcribe.ErrUnavailable):
		respondRetryable(w, 2, "transcription_unavailable", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondRetryable(w, 2, "transcription_unavailable", err.Error())
	default:
		var pe *transcribe.ProviderError
		if errors.As(err, &pe) && pe.Kind == transcribe.KindFatal {
			respondError(w, http.StatusBadGateway, "provider_failed", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

// handleTranscribeWS runs one transcription per connection, streaming state
// transitions so the client can render retry progress.
func (s *Server) handleTranscribeWS(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "transcription not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()
	send := func(msg any) {
		select {
		case outbound <- msg:
		case <-ctx.Done():
		}
	}

	conn.SetReadLimit(s.maxAudioBytes() + (s.maxAudioBytes() / 2))
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

	req, ok := s.readTranscribeRequest(conn, send)
	if ok {
		obs := func(t transcribe.Transition) {
			send(protocol.StateUpdate{
				Type:      protocol.TypeStateUpdate,
				State:     string(t.State),
				Attempt:   t.Attempt,
				RetryInMS: t.RetryIn.Milliseconds(),
			})
		}
		result, err := s.transcriber.Transcribe(ctx, req, obs)
		if err != nil {
			send(protocol.ErrorEvent{
				Type:     protocol.TypeErrorEvent,
				Code:     wsErrorCode(err),
				Message:  err.Error(),
				Attempts: result.Attempts,
			})
		} else {
			send(protocol.TranscriptResult{
				Type:     protocol.TypeTranscriptResult,
				Text:     result.Text,
				Attempts: result.Attempts,
			})
		}
	}

	cancel()
	close(outbound)
	<-writerDone
}

func (s *Server) readTranscribeRequest(conn *websocket.Conn, send func(any)) (transcribe.Request, bool) {
	reject := func(code, message string) (transcribe.Request, bool) {
		send(protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: code, Message: message})
		return transcribe.Request{}, false
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return transcribe.Request{}, false
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			return reject("invalid_client_message", err.Error())
		}
		msg, ok := parsed.(protocol.TranscribeRequest)
		if !ok {
			return reject("invalid_client_message", "expected transcribe_request")
		}
		payload, err := base64.StdEncoding.DecodeString(msg.AudioBase64)
		if err != nil {
			return reject("bad_audio", "audio_base64 is not valid base64")
		}
		req := transcribe.Request{Audio: payload, Format: msg.Format}
		if err := transcribe.ValidateRequest(req, s.maxAudioBytes()); err != nil {
			return reject("bad_audio", err.Error())
		}
		return req, true
	}
}

func wsErrorCode(err error) string {
	switch {
	case errors.Is(err, transcribe.ErrBadAudio):
		return "bad_audio"
	case errors.Is(err, transcribe.ErrUnavailable):
		return "transcription_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "provider_failed"
	}
}

func (s *Server) handleTranscribeStats(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.metrics.SnapshotAttempts()
	respondJSON(w, http.StatusOK, snapshot)
	s.log.Debug("served transcription stats", zap.Int("window_total", snapshot.Total))
}
