package units

import (
	"fmt"

	"github.com/framelens/framelens/internal/bitio"
)

// UnitNode is one parsed structural unit. Nodes are built once per parse
// pass and are read-only afterwards; consumers never mutate them in place.
// Children represent container nesting and are never cyclic.
type UnitNode struct {
	Key      UnitKey
	UnitType int
	TypeName string
	Offset   int64
	Size     int64

	// FrameIndex is the display-order index when this node is a
	// display-addressable frame, or -1 otherwise. Frame indices are unique
	// across a stream's frame nodes.
	FrameIndex int
	FrameType  FrameType

	// PTS and DTS are -1 when not known for this unit.
	PTS int64
	DTS int64

	QPAvg      *QP
	RefFrames  []int
	RefSlots   []uint8
	TemporalID int

	Children []*UnitNode
	Diags    []Diagnostic
}

// NewUnitNode returns a node with optional fields marked absent.
func NewUnitNode(key UnitKey) *UnitNode {
	return &UnitNode{
		Key:        key,
		UnitType:   key.UnitType,
		Offset:     key.ByteOffset,
		Size:       key.Size,
		FrameIndex: -1,
		PTS:        -1,
		DTS:        -1,
	}
}

// AddDiag attaches a diagnostic to the node.
func (n *UnitNode) AddDiag(sev Severity, offset int64, msg string) {
	n.Diags = append(n.Diags, Diagnostic{Severity: sev, Offset: offset, Message: msg})
}

// Tree is the unit tree for one stream, replaced wholesale on re-parse.
type Tree struct {
	StreamID string
	Units    []*UnitNode

	frames map[int]*UnitNode
}

// NewTree returns an empty tree for the stream.
func NewTree(streamID string) *Tree {
	return &Tree{StreamID: streamID}
}

// Append adds a top-level unit in decode order.
func (t *Tree) Append(n *UnitNode) {
	t.Units = append(t.Units, n)
}

// Finalize builds the display-index lookup and validates structural
// invariants: nesting no deeper than maxDepth and frame indices unique.
// The tree is read-only after Finalize.
func (t *Tree) Finalize(maxDepth int) error {
	frames := make(map[int]*UnitNode)
	var visit func(n *UnitNode, depth int) error
	visit = func(n *UnitNode, depth int) error {
		if depth > maxDepth {
			return &bitio.InvalidDataError{Msg: fmt.Sprintf("unit nesting exceeds max recursion depth %d", maxDepth)}
		}
		if n.FrameIndex >= 0 {
			if _, dup := frames[n.FrameIndex]; dup {
				return &bitio.InvalidDataError{Msg: fmt.Sprintf("duplicate frame index %d", n.FrameIndex)}
			}
			frames[n.FrameIndex] = n
		}
		for _, ch := range n.Children {
			if err := visit(ch, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range t.Units {
		if err := visit(n, 0); err != nil {
			return err
		}
	}
	t.frames = frames
	return nil
}

// FrameByDisplayIndex resolves a display index to its unit node.
func (t *Tree) FrameByDisplayIndex(i int) (*UnitNode, bool) {
	n, ok := t.frames[i]
	return n, ok
}

// FrameCount returns the number of display-addressable frames.
func (t *Tree) FrameCount() int {
	return len(t.frames)
}

// Walk visits every node depth-first in decode order. The visitor returns
// false to stop the walk early.
func (t *Tree) Walk(fn func(*UnitNode) bool) {
	var visit func(n *UnitNode) bool
	visit = func(n *UnitNode) bool {
		if !fn(n) {
			return false
		}
		for _, ch := range n.Children {
			if !visit(ch) {
				return false
			}
		}
		return true
	}
	for _, n := range t.Units {
		if !visit(n) {
			return
		}
	}
}

// Diagnostics collects every diagnostic in the tree in decode order.
func (t *Tree) Diagnostics() []Diagnostic {
	var out []Diagnostic
	t.Walk(func(n *UnitNode) bool {
		out = append(out, n.Diags...)
		return true
	})
	return out
}
