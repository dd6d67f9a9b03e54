package rag

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestNewChunker_InvalidParams(t *testing.T) {
	cases := []struct {
		name         string
		max, overlap int
	}{
		{"overlap equals max", 100, 100},
		{"overlap exceeds max", 100, 150},
		{"zero max", 0, 0},
		{"negative overlap", 100, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewChunker(tc.max, tc.overlap); !errors.Is(err, ErrInvalidChunkParams) {
				t.Fatalf("expected ErrInvalidChunkParams, got %v", err)
			}
		})
	}
}

func TestSplit_WindowArithmetic(t *testing.T) {
	c, err := NewChunker(500, 100)
	if err != nil {
		t.Fatal(err)
	}
	segments := []Segment{
		{Index: 0, Text: strings.Repeat("a", 450)},
		{Index: 1, Text: strings.Repeat("b", 450)},
	}

	chunks := c.Split(segments)

	var lengths []int
	for _, ch := range chunks {
		lengths = append(lengths, len([]rune(ch.Text)))
	}
	if want := []int{500, 500, 100}; !reflect.DeepEqual(lengths, want) {
		t.Fatalf("chunk lengths = %v, want %v", lengths, want)
	}
	if chunks[0].Start != 0 || chunks[1].Start != 400 || chunks[2].Start != 800 {
		t.Fatalf("unexpected starts: %d %d %d", chunks[0].Start, chunks[1].Start, chunks[2].Start)
	}
	if !reflect.DeepEqual(chunks[0].Segments, []int{0, 1}) {
		t.Errorf("first chunk pages = %v, want [0 1]", chunks[0].Segments)
	}
	if !reflect.DeepEqual(chunks[2].Segments, []int{1}) {
		t.Errorf("last chunk pages = %v, want [1]", chunks[2].Segments)
	}
}

func TestSplit_CoverageAndOverlap(t *testing.T) {
	c, _ := NewChunker(50, 12)
	segments := []Segment{
		{Index: 0, Text: "Section 1. The insured must notify the insurer within thirty days. "},
		{Index: 1, Text: ""},
		{Index: 2, Text: "Section 2. Pre-existing diseases are covered after 36 months of continuous coverage. "},
		{Index: 3, Text: "Sección 3, período de gracia: treinta días."},
	}
	full := []rune(segments[0].Text + segments[1].Text + segments[2].Text + segments[3].Text)

	chunks := c.Split(segments)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}

	covered := make([]bool, len(full))
	for i, ch := range chunks {
		text := []rune(ch.Text)
		if len(text) > 50 {
			t.Fatalf("chunk %d longer than max: %d", i, len(text))
		}
		if string(full[ch.Start:ch.End]) != ch.Text {
			t.Fatalf("chunk %d text does not match its span", i)
		}
		for p := ch.Start; p < ch.End; p++ {
			covered[p] = true
		}
		if ch.Order != i {
			t.Errorf("chunk %d has order %d", i, ch.Order)
		}
		for _, page := range ch.Segments {
			if page == 1 {
				t.Errorf("chunk %d references empty page 1", i)
			}
		}
	}
	for p, ok := range covered {
		if !ok {
			t.Fatalf("character %d not covered", p)
		}
	}

	for i := 0; i+1 < len(chunks); i++ {
		prev := []rune(chunks[i].Text)
		next := []rune(chunks[i+1].Text)
		n := min(12, len(next))
		if string(prev[len(prev)-n:]) != string(next[:n]) {
			t.Fatalf("chunks %d and %d do not share the overlap", i, i+1)
		}
	}
}

func TestSplit_ShortAndEmptyText(t *testing.T) {
	c, _ := NewChunker(500, 100)

	if got := c.Split([]Segment{{Index: 0, Text: ""}}); len(got) != 0 {
		t.Fatalf("expected no chunks for empty text, got %d", len(got))
	}

	got := c.Split([]Segment{{Index: 0, Text: "short policy"}})
	if len(got) != 1 || got[0].Text != "short policy" {
		t.Fatalf("unexpected chunks: %+v", got)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	c, _ := NewChunker(20, 5)
	segs := []Segment{{Index: 0, Text: strings.Repeat("policy terms ", 10)}}
	if !reflect.DeepEqual(c.Split(segs), c.Split(segs)) {
		t.Fatal("split is not deterministic")
	}
}
