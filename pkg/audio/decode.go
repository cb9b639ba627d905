package audio

import (
	"bytes"
	"fmt"

	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// decode turns fetched data into a stream. Data without a known format is
// sniffed from its header.
func (p *Player) decode(src *source) (*decoded, error) {
	f := src.format
	if f == "" {
		f = sniff(src.data)
	}

	switch f {
	case formatWAV:
		s, err := wav.DecodeWithSampleRate(SampleRate, bytes.NewReader(src.data))
		if err != nil {
			return nil, fmt.Errorf("%w: wav: %v", ErrInvalidFormat, err)
		}
		return &decoded{r: s, duration: durationOf(s.Length())}, nil
	case formatMP3:
		s, err := mp3.DecodeWithSampleRate(SampleRate, bytes.NewReader(src.data))
		if err != nil {
			return nil, fmt.Errorf("%w: mp3: %v", ErrInvalidFormat, err)
		}
		return &decoded{r: s, duration: durationOf(s.Length())}, nil
	case formatVorbis:
		s, err := vorbis.DecodeWithSampleRate(SampleRate, bytes.NewReader(src.data))
		if err != nil {
			return nil, fmt.Errorf("%w: ogg: %v", ErrInvalidFormat, err)
		}
		return &decoded{r: s, duration: durationOf(s.Length())}, nil
	case formatMIDI:
		return p.decodeMIDI(src.data)
	}
	return nil, ErrUnsupportedFormat
}

// sniff recognises formats by their magic bytes.
func sniff(data []byte) format {
	switch {
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return formatWAV
	case len(data) >= 4 && string(data[:4]) == "OggS":
		return formatVorbis
	case len(data) >= 4 && string(data[:4]) == "MThd":
		return formatMIDI
	case len(data) >= 3 && string(data[:3]) == "ID3",
		len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return formatMP3
	}
	return ""
}
