// Package edgebreaker compresses triangle mesh connectivity with the
// Edgebreaker scheme: a depth-first traversal that labels every face with
// one of the CLERS symbols, plus topology split events for traversal
// branches that meet again. The decoder replays the symbols in reverse to
// rebuild an equivalent corner table.
package edgebreaker

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt reports connectivity data that cannot be decoded into a
	// consistent corner table.
	ErrCorrupt = errors.New("edgebreaker: corrupt connectivity")
	// ErrUnsupportedTraversal reports an unknown traversal method.
	ErrUnsupportedTraversal = errors.New("edgebreaker: unsupported traversal method")
	// ErrTooLarge reports a header announcing more faces than allowed.
	ErrTooLarge = errors.New("edgebreaker: mesh too large")
)

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrCorrupt}, args...)...)
}

// Symbol is a CLERS topology symbol. The values are the bit patterns
// written by the standard traversal, least significant bit first.
type Symbol uint8

const (
	SymbolC       Symbol = 0 // 0b0
	SymbolS       Symbol = 1 // 0b001
	SymbolL       Symbol = 3 // 0b011
	SymbolR       Symbol = 5 // 0b101
	SymbolE       Symbol = 7 // 0b111
	SymbolInvalid Symbol = 0xff
)

// bitLength returns the number of bits of the symbol's pattern.
func (s Symbol) bitLength() int {
	if s == SymbolC {
		return 1
	}
	return 3
}

// id returns the dense index of s used by context coding.
func (s Symbol) id() uint32 {
	switch s {
	case SymbolC:
		return 0
	case SymbolS:
		return 1
	case SymbolL:
		return 2
	case SymbolR:
		return 3
	case SymbolE:
		return 4
	}
	return 5
}

func symbolFromID(id uint32) Symbol {
	switch id {
	case 0:
		return SymbolC
	case 1:
		return SymbolS
	case 2:
		return SymbolL
	case 3:
		return SymbolR
	case 4:
		return SymbolE
	}
	return SymbolInvalid
}

func (s Symbol) String() string {
	switch s {
	case SymbolC:
		return "C"
	case SymbolS:
		return "S"
	case SymbolL:
		return "L"
	case SymbolR:
		return "R"
	case SymbolE:
		return "E"
	}
	return "?"
}

// TraversalMethod selects how CLERS symbols are entropy coded.
type TraversalMethod uint8

const (
	// TraversalStandard stores every symbol as its bit pattern.
	TraversalStandard TraversalMethod = iota
	// TraversalPredictive predicts the next symbol from the valence of
	// the active vertex and stores one bit per prediction.
	TraversalPredictive
	// TraversalValence codes symbols in contexts selected by the valence
	// of the active vertex.
	TraversalValence
)

func (m TraversalMethod) String() string {
	switch m {
	case TraversalStandard:
		return "standard"
	case TraversalPredictive:
		return "predictive"
	case TraversalValence:
		return "valence"
	}
	return fmt.Sprintf("TraversalMethod(%d)", uint8(m))
}

// EdgeFace names the edge of a source face that touches a split face.
type EdgeFace uint8

const (
	LeftFaceEdge  EdgeFace = 0
	RightFaceEdge EdgeFace = 1
)

// TopologySplitEvent records that the face of SourceSymbolID borders the
// split face of SplitSymbolID along SourceEdge. Symbol ids count in
// encoder order.
type TopologySplitEvent struct {
	SplitSymbolID  int
	SourceSymbolID int
	SourceEdge     EdgeFace
}

// HoleEvent records the encoder symbol at which a boundary loop was
// first visited.
type HoleEvent struct {
	SymbolID int
}
