package wsfeed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"
)

// Server serves a Hub on /ws.
type Server struct {
	*Hub

	ln   net.Listener
	http *http.Server
}

// Start binds addr and serves the feed in the background.
func Start(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	hub := NewHub()
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)

	s := &Server{
		Hub: hub,
		ln:  ln,
		http: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("WS: server stopped: %v", err)
		}
	}()
	log.Printf("WS: feed available at ws://%s/ws", ln.Addr())
	return s, nil
}

func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Close stops accepting clients, then closes the hub.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.http.Shutdown(ctx)
	s.Hub.Close()
	return err
}
