package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

// SniffFormat inspects the first bytes of an audio payload and returns the
// container format it carries, or "" when no known signature matches.
func SniffFormat(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	switch {
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav"
	case bytes.Equal(data[:3], []byte("ID3")):
		return "mp3"
	case data[0] == 0xFF && (data[1]&0xE0) == 0xE0:
		// Raw MPEG audio frame sync, covers mp3/mpga streams without ID3.
		return "mp3"
	case len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")):
		if bytes.HasPrefix(data[8:12], []byte("M4A")) {
			return "m4a"
		}
		return "mp4"
	case bytes.Equal(data[:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "webm"
	case bytes.Equal(data[:4], []byte("OggS")):
		return "ogg"
	default:
		return ""
	}
}

var ErrNotWAV = errors.New("not a wav payload")

// WAVDuration reads the fmt and data chunks of a PCM WAV payload and returns
// the audio duration. Only uncompressed PCM is supported.
func WAVDuration(data []byte) (time.Duration, error) {
	if SniffFormat(data) != "wav" || len(data) < 12 {
		return 0, ErrNotWAV
	}

	var (
		byteRate uint32
		dataSize uint32
		haveFmt  bool
		haveData bool
	)
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		body := offset + 8
		switch chunkID {
		case "fmt ":
			if int(chunkSize) < 16 || body+16 > len(data) {
				return 0, errors.New("wav fmt chunk truncated")
			}
			if format := binary.LittleEndian.Uint16(data[body : body+2]); format != 1 {
				return 0, errors.New("wav is not uncompressed pcm")
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			haveFmt = true
		case "data":
			dataSize = chunkSize
			haveData = true
		}
		if haveFmt && haveData {
			break
		}
		offset = body + int(chunkSize)
		if chunkSize%2 == 1 {
			offset++
		}
	}
	if !haveFmt || !haveData || byteRate == 0 {
		return 0, errors.New("wav missing fmt or data chunk")
	}
	return time.Duration(float64(dataSize) / float64(byteRate) * float64(time.Second)), nil
}
