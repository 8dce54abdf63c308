package graph

import (
	"strings"
	"testing"

	"github.com/quay/vexgraph"
)

func TestParseFormat(t *testing.T) {
	tt := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "dot", want: FormatDOT},
		{in: "", want: FormatDOT},
		{in: "Mermaid", want: FormatMermaid},
		{in: "svg", wantErr: true},
	}
	for _, tc := range tt {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseFormat(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got: %v, want: %v", got, tc.want)
			}
		})
	}
}

func TestRenderDOT(t *testing.T) {
	root := Node{NodeID: "root", Name: "app", Version: "1.0"}
	rel := vexgraph.DependencyOf
	collected := []CollectedNode{
		{Base: Node{NodeID: "dep", Name: "lib", Version: "2.0"}, Relationship: &rel},
	}
	out := NewRenderer(FormatDOT).Render(root, collected, Outgoing)
	s := string(out)
	if !strings.HasPrefix(s, "digraph sbom {\n") {
		t.Errorf("unexpected preamble: %q", s)
	}
	if !strings.Contains(s, `"root" -> "dep" [label="DependencyOf"];`) {
		t.Errorf("missing expected edge line, got:\n%s", s)
	}
	if !strings.Contains(s, `"dep" [label="lib@2.0"];`) {
		t.Errorf("missing expected node line, got:\n%s", s)
	}
}

func TestRenderMermaid(t *testing.T) {
	root := Node{NodeID: "root", Name: "app"}
	rel := vexgraph.DependencyOf
	collected := []CollectedNode{
		{Base: Node{NodeID: "dep", Name: "lib"}, Relationship: &rel},
	}
	out := NewRenderer(FormatMermaid).Render(root, collected, Outgoing)
	s := string(out)
	if !strings.HasPrefix(s, "graph LR\n") {
		t.Errorf("unexpected preamble: %q", s)
	}
	if !strings.Contains(s, "nroot -->|DependencyOf| ndep") {
		t.Errorf("missing expected edge line, got:\n%s", s)
	}
}
