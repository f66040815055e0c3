// Package chime plays a short sound whenever a chat message arrives.
package chime

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"

	"meshchat/internal/wire"
)

const (
	SampleRate = beep.SampleRate(44100)

	toneFreq     = 880.0
	toneDuration = 120 * time.Millisecond
	toneVolume   = 0.3

	// MinGap is the shortest interval between two chimes; a burst of
	// flooded messages plays once.
	MinGap = 300 * time.Millisecond
)

// Notifier is a display sink that only reacts to chat messages.
type Notifier struct {
	self wire.Addr

	sound  []byte
	format string

	initOnce sync.Once
	initErr  error
	disabled atomic.Bool

	mu   sync.Mutex
	last time.Time

	initSpeaker func() error
	play        func(beep.Streamer)
	now         func() time.Time
}

// New returns a notifier that ignores messages sent from self. If path is
// set, that WAV or MP3 file is played instead of the built-in tone.
func New(self wire.Addr, path string) (*Notifier, error) {
	n := &Notifier{
		self: self,
		initSpeaker: func() error {
			return speaker.Init(SampleRate, SampleRate.N(time.Second/10))
		},
		play: func(s beep.Streamer) { speaker.Play(s) },
		now:  time.Now,
	}
	if path == "" {
		return n, nil
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format != "wav" && format != "mp3" {
		return nil, fmt.Errorf("unsupported chime format %q (want .wav or .mp3)", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chime file: %w", err)
	}
	n.sound, n.format = data, format

	// Decode once up front so a bad file fails at startup.
	s, _, err := n.decode()
	if err != nil {
		return nil, err
	}
	s.Close()
	return n, nil
}

func (n *Notifier) ShowMessage(msg wire.Message) {
	if msg.SenderAddr == n.self || n.disabled.Load() {
		return
	}

	n.mu.Lock()
	t := n.now()
	if !n.last.IsZero() && t.Sub(n.last) < MinGap {
		n.mu.Unlock()
		return
	}
	n.last = t
	n.mu.Unlock()

	n.initOnce.Do(func() {
		n.initErr = n.initSpeaker()
	})
	if n.initErr != nil {
		log.Printf("CHIME: failed to initialise speaker, chime disabled: %v", n.initErr)
		n.disabled.Store(true)
		return
	}

	s, err := n.streamer()
	if err != nil {
		log.Printf("CHIME: %v", err)
		return
	}
	n.play(s)
}

func (n *Notifier) ShowSystem(string) {}

func (n *Notifier) streamer() (beep.Streamer, error) {
	if n.sound == nil {
		return Tone(SampleRate, toneFreq, toneDuration), nil
	}

	s, format, err := n.decode()
	if err != nil {
		return nil, err
	}
	resampled := beep.Resample(4, format.SampleRate, SampleRate, s)
	return beep.Seq(resampled, beep.Callback(func() {
		s.Close()
	})), nil
}

func (n *Notifier) decode() (beep.StreamSeekCloser, beep.Format, error) {
	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch n.format {
	case "mp3":
		s, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(n.sound)))
	default:
		s, format, err = wav.Decode(bytes.NewReader(n.sound))
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to decode chime: %w", err)
	}
	return s, format, nil
}

// Tone is a sine beep of the given length that fades out linearly.
func Tone(sr beep.SampleRate, freq float64, d time.Duration) beep.Streamer {
	total := sr.N(d)
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= total {
			return 0, false
		}
		i := 0
		for ; i < len(samples) && pos < total; i++ {
			fade := 1 - float64(pos)/float64(total)
			v := toneVolume * fade * math.Sin(2*math.Pi*freq*float64(pos)/float64(sr))
			samples[i][0], samples[i][1] = v, v
			pos++
		}
		return i, true
	})
}
