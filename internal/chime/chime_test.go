package chime

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"

	"meshchat/internal/wire"
)

var (
	self  = wire.Addr{Host: "127.0.0.1", Port: 5000}
	other = wire.Message{SenderName: "Pedro", SenderAddr: wire.Addr{Host: "127.0.0.1", Port: 5001}, Content: "oi"}
)

func drain(s beep.Streamer) int {
	buf := make([][2]float64, 512)
	total := 0
	for {
		n, ok := s.Stream(buf)
		total += n
		if !ok {
			return total
		}
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestNotifier(t *testing.T, path string) (*Notifier, *[]beep.Streamer, *fakeClock) {
	t.Helper()
	n, err := New(self, path)
	if err != nil {
		t.Fatal(err)
	}
	var played []beep.Streamer
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	n.initSpeaker = func() error { return nil }
	n.play = func(s beep.Streamer) { played = append(played, s) }
	n.now = clock.now
	return n, &played, clock
}

func TestToneLength(t *testing.T) {
	want := SampleRate.N(100 * time.Millisecond)
	if got := drain(Tone(SampleRate, 440, 100*time.Millisecond)); got != want {
		t.Fatalf("tone produced %d samples, want %d", got, want)
	}
}

func TestChimesForPeerMessagesOnly(t *testing.T) {
	n, played, clock := newTestNotifier(t, "")

	n.ShowMessage(wire.Message{SenderName: "Julia", SenderAddr: self, Content: "mine"})
	n.ShowSystem("[connected] 127.0.0.1:5001")
	if len(*played) != 0 {
		t.Fatalf("played %d sounds for own message and system line", len(*played))
	}

	n.ShowMessage(other)
	if len(*played) != 1 {
		t.Fatalf("played %d sounds, want 1", len(*played))
	}

	// Bursts inside MinGap collapse into one chime.
	clock.t = clock.t.Add(MinGap / 2)
	n.ShowMessage(other)
	if len(*played) != 1 {
		t.Fatalf("burst played %d sounds", len(*played))
	}

	clock.t = clock.t.Add(MinGap)
	n.ShowMessage(other)
	if len(*played) != 2 {
		t.Fatalf("played %d sounds, want 2", len(*played))
	}
}

func TestSpeakerFailureDisables(t *testing.T) {
	n, played, clock := newTestNotifier(t, "")
	calls := 0
	n.initSpeaker = func() error {
		calls++
		return errors.New("no audio device")
	}

	for i := 0; i < 3; i++ {
		n.ShowMessage(other)
		clock.t = clock.t.Add(time.Second)
	}
	if calls != 1 || len(*played) != 0 {
		t.Fatalf("init calls=%d played=%d", calls, len(*played))
	}
}

func TestWAVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ding.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	format := beep.Format{SampleRate: 22050, NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, Tone(format.SampleRate, 660, 50*time.Millisecond), format); err != nil {
		t.Fatal(err)
	}
	f.Close()

	n, played, _ := newTestNotifier(t, path)
	n.ShowMessage(other)
	if len(*played) != 1 {
		t.Fatalf("played %d sounds, want 1", len(*played))
	}
	if got := drain((*played)[0]); got == 0 {
		t.Fatal("decoded chime is empty")
	}
}

func TestBadChimeFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := New(self, filepath.Join(dir, "ding.ogg")); err == nil {
		t.Fatal("unsupported extension accepted")
	}
	if _, err := New(self, filepath.Join(dir, "missing.wav")); err == nil {
		t.Fatal("missing file accepted")
	}

	junk := filepath.Join(dir, "junk.wav")
	if err := os.WriteFile(junk, []byte("not a wav"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(self, junk); err == nil {
		t.Fatal("corrupt file accepted")
	}
}
