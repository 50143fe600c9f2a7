package audio

import (
	"testing"
	"time"
)

func TestSniffFormatWAV(t *testing.T) {
	wav, err := EncodeWAVPCM16LE(make([]byte, 320), 16000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	if got := SniffFormat(wav); got != "wav" {
		t.Fatalf("SniffFormat() = %q, want %q", got, "wav")
	}
}

func TestSniffFormatSignatures(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"id3", []byte("ID3\x04\x00\x00\x00\x00\x00\x00"), "mp3"},
		{"mpeg_frame", []byte{0xFF, 0xFB, 0x90, 0x00, 0x00, 0x00}, "mp3"},
		{"mp4", []byte("\x00\x00\x00\x20ftypisom\x00\x00"), "mp4"},
		{"m4a", []byte("\x00\x00\x00\x20ftypM4A \x00\x00"), "m4a"},
		{"webm", []byte{0x1A, 0x45, 0xDF, 0xA3, 0x00, 0x00}, "webm"},
		{"ogg", []byte("OggS\x00\x02\x00\x00"), "ogg"},
		{"unknown", []byte("hello world"), ""},
		{"short", []byte{0x01}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SniffFormat(tc.data); got != tc.want {
				t.Fatalf("SniffFormat() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWAVDuration(t *testing.T) {
	// 16kHz mono PCM16 = 32000 bytes per second.
	wav, err := EncodeWAVPCM16LE(make([]byte, 32000), 16000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	d, err := WAVDuration(wav)
	if err != nil {
		t.Fatalf("WAVDuration() error = %v", err)
	}
	if d != time.Second {
		t.Fatalf("WAVDuration() = %v, want %v", d, time.Second)
	}
}

func TestWAVDurationRejectsNonWAV(t *testing.T) {
	if _, err := WAVDuration([]byte("ID3\x04\x00\x00 not wav")); err == nil {
		t.Fatalf("expected error for non-wav payload")
	}
}
