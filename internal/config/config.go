package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"meshchat/internal/wire"
)

type Config struct {
	Host string
	Port int
	Name string

	// Bootstrap holds the optional trailing peer pair followed by every
	// -peer flag, in that order.
	Bootstrap []wire.Addr

	TUI       bool
	Chime     bool
	ChimeFile string
	WSAddr    string

	Dedup       bool
	DedupWindow time.Duration

	LogDir       string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

func Default() Config {
	return Config{
		Host:         "127.0.0.1",
		LogDir:       ".",
		DedupWindow:  30 * time.Second,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// ErrUsage is returned when the positional arguments do not match the
// invocation shape.
var ErrUsage = errors.New("usage: meshchat [flags] <host> <port> <name> [<peer-host> <peer-port>]")

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// Parse reads flags and positional arguments (without the program name).
// Flag errors and -h output go to out.
func Parse(args []string, out io.Writer) (Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("meshchat", flag.ContinueOnError)
	fs.SetOutput(out)

	var peers stringList
	fs.Var(&peers, "peer", "extra bootstrap peer host:port (repeatable)")
	fs.BoolVar(&cfg.TUI, "tui", false, "use the full-screen terminal UI")
	fs.BoolVar(&cfg.Chime, "chime", false, "play a sound for every received message")
	fs.StringVar(&cfg.ChimeFile, "chime-file", "", "WAV or MP3 file to play instead of the built-in tone (implies -chime)")
	fs.StringVar(&cfg.WSAddr, "ws", "", "serve a read-only websocket mirror of the chat on this address")
	fs.BoolVar(&cfg.Dedup, "dedup", false, "drop messages already seen recently instead of re-flooding them")
	fs.DurationVar(&cfg.DedupWindow, "dedup-window", cfg.DedupWindow, "how long a seen message is remembered")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "directory for chat_history_<port>.log")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "timeout for outbound connections")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "per-peer write timeout")
	fs.Usage = func() {
		fmt.Fprintln(out, ErrUsage.Error())
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	pos := fs.Args()
	if len(pos) != 3 && len(pos) != 5 {
		return cfg, ErrUsage
	}

	cfg.Host = pos[0]
	port, err := strconv.Atoi(pos[1])
	if err != nil {
		return cfg, fmt.Errorf("invalid port %q", pos[1])
	}
	cfg.Port = port
	cfg.Name = pos[2]

	if len(pos) == 5 {
		bport, err := strconv.Atoi(pos[4])
		if err != nil {
			return cfg, fmt.Errorf("invalid peer port %q", pos[4])
		}
		cfg.Bootstrap = append(cfg.Bootstrap, wire.Addr{Host: pos[3], Port: bport})
	}
	for _, p := range peers {
		addr, err := wire.ParseAddr(p)
		if err != nil {
			return cfg, fmt.Errorf("invalid -peer %q: %w", p, err)
		}
		cfg.Bootstrap = append(cfg.Bootstrap, addr)
	}

	if cfg.ChimeFile != "" {
		cfg.Chime = true
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.New("port must be 1..65535")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("name is required")
	}
	if strings.ContainsAny(c.Name, "|\r\n") {
		return errors.New("name must not contain '|' or line breaks")
	}
	for _, b := range c.Bootstrap {
		if strings.TrimSpace(b.Host) == "" {
			return errors.New("peer host is required")
		}
		if b.Port < 1 || b.Port > 65535 {
			return fmt.Errorf("peer port must be 1..65535, got %d", b.Port)
		}
	}
	if c.Dedup && c.DedupWindow <= 0 {
		return errors.New("dedup-window must be > 0")
	}
	if c.DialTimeout <= 0 {
		return errors.New("dial-timeout must be > 0")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write-timeout must be > 0")
	}
	return nil
}
