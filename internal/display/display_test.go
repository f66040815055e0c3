package display

import (
	"testing"

	"meshchat/internal/wire"
)

func TestMultiForwardsToAllSinks(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	d := Multi(a, nil, b)

	msg := wire.Message{SenderName: "Ana", SenderAddr: wire.Addr{Host: "127.0.0.1", Port: 5002}, Content: "oi"}
	d.ShowMessage(msg)
	d.ShowSystem("[connected] 127.0.0.1:5002")

	for _, r := range []*Recorder{a, b} {
		if got := r.Messages(); len(got) != 1 || got[0] != msg {
			t.Fatalf("messages = %v", got)
		}
		if got := r.System(); len(got) != 1 {
			t.Fatalf("system = %v", got)
		}
	}
}
