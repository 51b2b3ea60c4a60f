package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestRun_Usage(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{nil, {"--help"}, {"-h"}} {
		var out bytes.Buffer
		if err := run(args, &out); err != nil {
			t.Fatalf("args %v: unexpected error %v", args, err)
		}
		if !strings.Contains(out.String(), "rebuild-grid") {
			t.Errorf("args %v: usage missing commands: %q", args, out.String())
		}
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr error
		wantX   int
	}{
		{name: "flag", args: []string{"--x", "12"}, wantX: 12},
		{name: "default", wantX: 20},
		{name: "help", args: []string{"--help"}, wantErr: errHelp, wantX: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
			flags.SetOutput(&bytes.Buffer{})
			x := flags.Int("x", 20, "")

			err := parse(flags, tt.args)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if *x != tt.wantX {
				t.Errorf("expected x=%d, got %d", tt.wantX, *x)
			}
		})
	}
}

func TestParse_RejectsPositionalArgs(t *testing.T) {
	t.Parallel()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := parse(flags, []string{"extra"}); err == nil {
		t.Fatal("expected an error for a positional argument")
	}
}
