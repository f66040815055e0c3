package config

import (
	"bytes"
	"errors"
	"flag"
	"io"
	"strings"
	"testing"

	"meshchat/internal/wire"
)

func TestParsePositional(t *testing.T) {
	cfg, err := Parse([]string{"127.0.0.1", "5001", "Pedro", "127.0.0.1", "5000"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "127.0.0.1" || cfg.Port != 5001 || cfg.Name != "Pedro" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.Bootstrap) != 1 || cfg.Bootstrap[0] != (wire.Addr{Host: "127.0.0.1", Port: 5000}) {
		t.Fatalf("bootstrap = %v", cfg.Bootstrap)
	}
	if cfg.TUI || cfg.Chime || cfg.Dedup {
		t.Fatal("optional features should default off")
	}
}

func TestParseFlags(t *testing.T) {
	cfg, err := Parse([]string{
		"-tui", "-dedup", "-chime-file", "ding.wav", "-ws", "127.0.0.1:8080",
		"-peer", "10.0.0.2:7000", "-peer", "10.0.0.3:7000",
		"0.0.0.0", "5000", "Julia",
	}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.TUI || !cfg.Dedup || !cfg.Chime || cfg.ChimeFile != "ding.wav" || cfg.WSAddr != "127.0.0.1:8080" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if len(cfg.Bootstrap) != 2 || cfg.Bootstrap[1].Host != "10.0.0.3" {
		t.Fatalf("bootstrap = %v", cfg.Bootstrap)
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string][]string{
		"too few":        {"127.0.0.1", "5000"},
		"dangling peer":  {"127.0.0.1", "5000", "Julia", "127.0.0.1"},
		"bad port":       {"127.0.0.1", "http", "Julia"},
		"port range":     {"127.0.0.1", "70000", "Julia"},
		"zero port":      {"127.0.0.1", "0", "Julia"},
		"pipe in name":   {"127.0.0.1", "5000", "Ju|lia"},
		"bad peer port":  {"127.0.0.1", "5000", "Julia", "127.0.0.1", "x"},
		"bad peer flag":  {"-peer", "nohost", "127.0.0.1", "5000", "Julia"},
		"unknown flag":   {"-nope", "127.0.0.1", "5000", "Julia"},
		"blank name":     {"127.0.0.1", "5000", "  "},
		"bad dial flag":  {"-dial-timeout", "0s", "127.0.0.1", "5000", "Julia"},
		"peer port zero": {"127.0.0.1", "5000", "Julia", "127.0.0.1", "0"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(args, io.Discard); err == nil {
				t.Fatalf("Parse(%q) succeeded", args)
			}
		})
	}
}

func TestParseUsageSentinel(t *testing.T) {
	_, err := Parse([]string{"only-host"}, io.Discard)
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("err = %v, want ErrUsage", err)
	}
}

func TestChimeFileHelpNamesFormats(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Parse([]string{"-h"}, &buf); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("err = %v, want flag.ErrHelp", err)
	}
	if !strings.Contains(buf.String(), "WAV or MP3 file") {
		t.Fatalf("-chime-file help does not mention MP3:\n%s", buf.String())
	}
}
