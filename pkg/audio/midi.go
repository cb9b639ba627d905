package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sinshu/go-meltysynth/meltysynth"
	"github.com/zurustar/dimscript/pkg/fileutil"
)

// MIDIStream renders a MIDI sequence as 16-bit stereo PCM for
// Ebitengine/audio. It ends after the sequence length.
type MIDIStream struct {
	sequencer    *meltysynth.MidiFileSequencer
	sampleCount  int64
	totalSamples int64
	left, right  []float32
	mu           sync.Mutex
}

// NewMIDIStream starts playing midi on a fresh synthesizer.
func NewMIDIStream(sf *meltysynth.SoundFont, midi *meltysynth.MidiFile) (*MIDIStream, error) {
	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	synth, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}
	seq := meltysynth.NewMidiFileSequencer(synth)
	seq.Play(midi, false)

	return &MIDIStream{
		sequencer:    seq,
		totalSamples: int64(midi.GetLength().Seconds() * SampleRate),
	}, nil
}

// Read implements io.Reader.
func (s *MIDIStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.totalSamples - s.sampleCount
	if remaining <= 0 {
		return 0, io.EOF
	}
	samples := int64(len(p) / bytesPerSample)
	if samples == 0 {
		return 0, nil
	}
	samples = min(samples, remaining)

	if int64(cap(s.left)) < samples {
		s.left = make([]float32, samples)
		s.right = make([]float32, samples)
	}
	left, right := s.left[:samples], s.right[:samples]
	s.sequencer.Render(left, right)
	s.sampleCount += samples

	for i := range samples {
		l := int16(clamp(left[i], -1, 1) * 32767)
		r := int16(clamp(right[i], -1, 1) * 32767)
		binary.LittleEndian.PutUint16(p[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(r))
	}
	return int(samples * bytesPerSample), nil
}

// Duration returns the length of the sequence.
func (s *MIDIStream) Duration() time.Duration {
	return time.Duration(s.totalSamples) * time.Second / SampleRate
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// decodeMIDI parses a Standard MIDI File. Headless players only need its
// length; a device player also needs the SoundFont.
func (p *Player) decodeMIDI(data []byte) (*decoded, error) {
	midi, err := meltysynth.NewMidiFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: midi: %v", ErrInvalidFormat, err)
	}
	if p.Headless() {
		return &decoded{duration: midi.GetLength()}, nil
	}

	sf, err := p.loadSoundFont()
	if err != nil {
		return nil, err
	}
	stream, err := NewMIDIStream(sf, midi)
	if err != nil {
		return nil, err
	}
	return &decoded{r: stream, duration: stream.Duration()}, nil
}

func (p *Player) loadSoundFont() (*meltysynth.SoundFont, error) {
	p.soundFontOnce.Do(func() {
		if p.soundFontPath == "" {
			p.soundFontErr = ErrNoSoundFont
			return
		}
		p.soundFont, p.soundFontErr = LoadSoundFontFS(p.soundFontFS, p.soundFontPath)
		if p.soundFontErr == nil {
			p.log.Info("SoundFont loaded", "path", p.soundFontPath)
		}
	})
	return p.soundFont, p.soundFontErr
}

// ReadSoundFontFS reads a SoundFont file through fs, or the regular file
// system when fs is nil.
func ReadSoundFontFS(fs fileutil.FileSystem, path string) ([]byte, error) {
	if fs == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrSoundFontNotFound, path)
			}
			return nil, fmt.Errorf("failed to read SoundFont file: %w", err)
		}
		return data, nil
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSoundFontNotFound, path)
	}
	return data, nil
}

// LoadSoundFontFS reads and parses a SoundFont file.
//
// Parameters:
//   - fs: The FileSystem to read from (nil for the regular file system)
//   - path: Path to the SoundFont (.sf2) file
//
// Returns:
//   - *meltysynth.SoundFont: The parsed SoundFont
//   - error: Error if the file cannot be read or parsed
func LoadSoundFontFS(fs fileutil.FileSystem, path string) (*meltysynth.SoundFont, error) {
	data, err := ReadSoundFontFS(fs, path)
	if err != nil {
		return nil, err
	}

	soundFont, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SoundFont: %w", err)
	}
	return soundFont, nil
}
