// Package viz draws the change history of the stored list document.
package viz

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/astromechza/shared-list/pkg/list"
	"github.com/astromechza/shared-list/pkg/store"
)

// Step is the list as it stood after one change.
type Step struct {
	Hash         string
	Actor        string
	Seq          uint64
	Dependencies []string
	Document     list.Document
}

func (s Step) Label() string {
	p := list.ProgressOf(s.Document.Items)
	return fmt.Sprintf("%s %s@%d %d/%d done", s.Hash[:8], s.Actor, s.Seq, p.Done, p.Total)
}

// History checks out every change in order.
func History(doc *automerge.Doc) ([]Step, error) {
	changes, err := doc.Changes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate changes: %w", err)
	}
	out := make([]Step, 0, len(changes))
	for _, change := range changes {
		d, err := store.DocumentAt(doc, change.Hash())
		if err != nil {
			return nil, err
		}
		deps := make([]string, 0, len(change.Dependencies()))
		for _, h := range change.Dependencies() {
			deps = append(deps, h.String())
		}
		out = append(out, Step{
			Hash:         change.Hash().String(),
			Actor:        change.ActorID(),
			Seq:          change.ActorSeq(),
			Dependencies: deps,
			Document:     d,
		})
	}
	return out, nil
}

// WriteDot prints the history as a dot digraph.
func WriteDot(steps []Step, w io.Writer) error {
	if _, err := fmt.Fprintln(w, `digraph "log" {`); err != nil {
		return err
	}
	for _, s := range steps {
		if _, err := fmt.Fprintf(w, "    %q [label=%q]\n", s.Hash, s.Label()); err != nil {
			return err
		}
		for _, dep := range s.Dependencies {
			if _, err := fmt.Fprintf(w, "    %q -> %q\n", dep, s.Hash); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

func RenderSvg(steps []Step, w io.Writer) error {
	g := graphviz.New()
	defer g.Close()

	graph, err := g.Graph()
	if err != nil {
		return fmt.Errorf("failed to setup graph: %w", err)
	}
	defer graph.Close()

	nodeMap := make(map[string]*cgraph.Node, len(steps))
	edgeCounter := 0
	for _, s := range steps {
		n, err := graph.CreateNode(s.Hash)
		if err != nil {
			return fmt.Errorf("failed to create node: %w", err)
		}
		n.SetLabel(s.Label())
		nodeMap[s.Hash] = n

		for _, dep := range s.Dependencies {
			parent, ok := nodeMap[dep]
			if !ok {
				continue
			}
			edgeCounter++
			if _, err := graph.CreateEdge(strconv.Itoa(edgeCounter), parent, n); err != nil {
				return fmt.Errorf("failed to create edge: %w", err)
			}
		}
	}

	if err := g.Render(graph, graphviz.SVG, w); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	return nil
}

func RenderSvgFile(steps []Step, outputPath string) error {
	var buff bytes.Buffer
	if err := RenderSvg(steps, &buff); err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, buff.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}
	return nil
}

func RenderToTemp(steps []Step) (string, error) {
	tf := filepath.Join(os.TempDir(), fmt.Sprintf("%d%d.svg", time.Now().UnixNano(), rand.Int()))
	if err := RenderSvgFile(steps, tf); err != nil {
		return "", err
	}
	return tf, nil
}
