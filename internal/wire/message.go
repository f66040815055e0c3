package wire

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Delimiter separates the three fields of a wire line.
const Delimiter = '|'

var (
	// ErrMalformed is returned for lines that are readable text but do not
	// carry the three expected fields.
	ErrMalformed = errors.New("malformed wire line")

	// ErrCorrupt is returned for lines that are not text at all.
	ErrCorrupt = errors.New("corrupt wire line")
)

// Addr is the (host, port) identity of a node.
type Addr struct {
	Host string
	Port int
}

func (a Addr) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// IsZero reports whether a is the empty address.
func (a Addr) IsZero() bool {
	return a.Host == "" && a.Port == 0
}

// ParseAddr parses "host:port".
func ParseAddr(s string) (Addr, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Addr{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return Addr{}, fmt.Errorf("invalid port %q", portStr)
	}
	return Addr{Host: host, Port: port}, nil
}

// Message is a chat line as it travels between nodes.
type Message struct {
	SenderName string
	SenderAddr Addr
	Content    string
}

// Encode renders m as a single newline-terminated wire line.
func (m Message) Encode() []byte {
	var b strings.Builder
	b.Grow(len(m.SenderName) + len(m.Content) + 24)
	b.WriteString(m.SenderName)
	b.WriteByte(Delimiter)
	b.WriteString(m.SenderAddr.String())
	b.WriteByte(Delimiter)
	b.WriteString(m.Content)
	b.WriteByte('\n')
	return []byte(b.String())
}

// Display renders m the way it is shown to the operator.
func (m Message) Display() string {
	return fmt.Sprintf("[%s (%s) disse]: %s", m.SenderName, m.SenderAddr, m.Content)
}

// Decode parses one wire line (without its trailing newline). Content may
// itself contain the delimiter; only the first two are significant.
func Decode(line string) (Message, error) {
	line = strings.TrimSuffix(line, "\r")
	if !IsText(line) {
		return Message{}, ErrCorrupt
	}

	parts := strings.SplitN(line, string(Delimiter), 3)
	if len(parts) != 3 {
		return Message{}, fmt.Errorf("%w: expected 3 fields, got %d", ErrMalformed, len(parts))
	}

	addr, err := ParseAddr(parts[1])
	if err != nil {
		return Message{}, fmt.Errorf("%w: sender address: %v", ErrMalformed, err)
	}

	return Message{
		SenderName: parts[0],
		SenderAddr: addr,
		Content:    parts[2],
	}, nil
}

// CleanContent makes s safe to carry as the content field of one wire
// line: line breaks and other control characters except tab become spaces
// and invalid UTF-8 is replaced.
func CleanContent(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.Map(func(r rune) rune {
		if r != '\t' && unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

// IsText reports whether s is valid UTF-8 without control characters
// other than tab.
func IsText(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if r != '\t' && unicode.IsControl(r) {
			return false
		}
	}
	return true
}
