package main

import (
	"bytes"
	"math/rand"
	"testing"

	"tc2100/pkg/observation"
)

func TestGenStreamFramesCleanly(t *testing.T) {
	var buf bytes.Buffer
	if err := genStream(&buf, 5, 0, false, rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("genStream failed: %v", err)
	}
	if buf.Len() != 5*observation.MessageSize {
		t.Fatalf("unexpected stream length: %d", buf.Len())
	}

	obs, rest := observation.ParseStream(buf.Bytes())
	if len(obs) != 5 || len(rest) != 0 {
		t.Fatalf("expected 5 clean observations, got %d with %d rest bytes", len(obs), len(rest))
	}
}

func TestGenStreamSurvivesJunk(t *testing.T) {
	var buf bytes.Buffer
	if err := genStream(&buf, 8, 3, false, rand.New(rand.NewSource(42))); err != nil {
		t.Fatalf("genStream failed: %v", err)
	}

	obs, rest := observation.ParseStream(buf.Bytes())
	if len(obs) != 8 {
		t.Fatalf("expected all 8 observations through the junk, got %d", len(obs))
	}
	if len(rest) != 0 {
		t.Fatalf("unexpected remainder: % x", rest)
	}
}

func TestGenStreamTruncatedTail(t *testing.T) {
	var buf bytes.Buffer
	if err := genStream(&buf, 3, 0, true, rand.New(rand.NewSource(7))); err != nil {
		t.Fatalf("genStream failed: %v", err)
	}

	obs, rest := observation.ParseStream(buf.Bytes())
	if len(obs) != 2 {
		t.Fatalf("expected 2 complete observations, got %d", len(obs))
	}
	if len(rest) != observation.MessageSize/2 {
		t.Fatalf("unexpected remainder length: %d", len(rest))
	}
}

func TestRunGenRejectsUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"frobnicate"}, &stdout, &stderr); code != 2 {
		t.Fatalf("unexpected exit code: %d", code)
	}
}
