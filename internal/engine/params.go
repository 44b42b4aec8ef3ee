package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Params holds the tunable search knobs. The zero value is not usable;
// start from DefaultParams.
type Params struct {
	AspirationWindow   int // initial half-width of the root window
	AspirationMinDepth int // first depth searched with a window

	NullMinDepth     int // null move pruning from this depth on
	NullReduction    int // base depth reduction
	NullDepthDivisor int // extra reduction of depth/NullDepthDivisor
	NullTTMargin     int // extra TT depth required for cutoffs below a null move

	LMRMinDepth       int
	LMRMinMoves       int // moves searched at full depth before reducing
	LMRBase           int // hundredths
	LMRDivisor        int // hundredths
	LMRHistoryDivisor int // butterfly score worth one ply of reduction

	RFPDepth       int // reverse futility pruning up to this depth
	RFPMargin      int // per ply
	FutilityDepth  int
	FutilityMargin int // per ply
	SEEPruneDepth  int
	SEEPruneMargin int // per ply, for losing captures

	DeltaMargin       int // quiescence delta pruning slack
	QRecaptureOnlyPly int // quiescence plies before only recaptures are tried

	DoubleExtLimit int // double extensions allowed on one path

	reductions *[64][64]int
}

// DefaultParams returns the tuned defaults.
func DefaultParams() Params {
	p := Params{
		AspirationWindow:   50,
		AspirationMinDepth: 5,

		NullMinDepth:     3,
		NullReduction:    3,
		NullDepthDivisor: 4,
		NullTTMargin:     1,

		LMRMinDepth:       3,
		LMRMinMoves:       3,
		LMRBase:           75,
		LMRDivisor:        225,
		LMRHistoryDivisor: 4096,

		RFPDepth:       6,
		RFPMargin:      90,
		FutilityDepth:  3,
		FutilityMargin: 120,
		SEEPruneDepth:  6,
		SEEPruneMargin: 90,

		DeltaMargin:       200,
		QRecaptureOnlyPly: 6,

		DoubleExtLimit: 4,
	}
	p.initReductions()
	return p
}

// initReductions rebuilds the LMR table. A fresh table is allocated so
// that searches holding the previous one are unaffected.
func (p *Params) initReductions() {
	t := new([64][64]int)
	base := float64(p.LMRBase) / 100
	div := float64(p.LMRDivisor) / 100
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			t[d][m] = int(base + math.Log(float64(d))*math.Log(float64(m))/div)
		}
	}
	p.reductions = t
}

// reduction returns the late move reduction for depth and move number.
func (p *Params) reduction(depth, moveNumber int) int {
	return p.reductions[min(depth, 63)][min(moveNumber, 63)]
}

// ttDepthRequired returns the entry depth a TT cutoff needs at a node of
// depth. Inside a null-move search the remaining depth must exceed it by
// NullTTMargin.
func (p *Params) ttDepthRequired(depth int, inNull bool) int {
	if inNull {
		return depth + p.NullTTMargin
	}
	return depth
}

// Tunable describes one knob for the UCI option list.
type Tunable struct {
	Name     string
	Value    int
	Min, Max int
}

type paramSpec struct {
	name     string
	min, max int
	field    func(*Params) *int
}

var paramSpecs = []paramSpec{
	{"AspirationWindow", 5, 500, func(p *Params) *int { return &p.AspirationWindow }},
	{"AspirationMinDepth", 1, 64, func(p *Params) *int { return &p.AspirationMinDepth }},
	{"NullMinDepth", 1, 16, func(p *Params) *int { return &p.NullMinDepth }},
	{"NullReduction", 1, 8, func(p *Params) *int { return &p.NullReduction }},
	{"NullDepthDivisor", 1, 16, func(p *Params) *int { return &p.NullDepthDivisor }},
	{"NullTTMargin", 0, 8, func(p *Params) *int { return &p.NullTTMargin }},
	{"LMRMinDepth", 1, 16, func(p *Params) *int { return &p.LMRMinDepth }},
	{"LMRMinMoves", 1, 32, func(p *Params) *int { return &p.LMRMinMoves }},
	{"LMRBase", 0, 300, func(p *Params) *int { return &p.LMRBase }},
	{"LMRDivisor", 50, 600, func(p *Params) *int { return &p.LMRDivisor }},
	{"LMRHistoryDivisor", 512, 65536, func(p *Params) *int { return &p.LMRHistoryDivisor }},
	{"RFPDepth", 0, 16, func(p *Params) *int { return &p.RFPDepth }},
	{"RFPMargin", 0, 500, func(p *Params) *int { return &p.RFPMargin }},
	{"FutilityDepth", 0, 16, func(p *Params) *int { return &p.FutilityDepth }},
	{"FutilityMargin", 0, 500, func(p *Params) *int { return &p.FutilityMargin }},
	{"SEEPruneDepth", 0, 16, func(p *Params) *int { return &p.SEEPruneDepth }},
	{"SEEPruneMargin", 0, 500, func(p *Params) *int { return &p.SEEPruneMargin }},
	{"DeltaMargin", 0, 1000, func(p *Params) *int { return &p.DeltaMargin }},
	{"QRecaptureOnlyPly", 0, 64, func(p *Params) *int { return &p.QRecaptureOnlyPly }},
	{"DoubleExtLimit", 0, 16, func(p *Params) *int { return &p.DoubleExtLimit }},
}

func findParam(name string) (paramSpec, bool) {
	for _, s := range paramSpecs {
		if strings.EqualFold(s.name, name) {
			return s, true
		}
	}
	return paramSpec{}, false
}

// Set assigns a knob by name (case-insensitive).
func (p *Params) Set(name, value string) error {
	spec, ok := findParam(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOption, name)
	}
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %s=%q", ErrInvalidOptionValue, spec.name, value)
	}
	if v < spec.min || v > spec.max {
		return fmt.Errorf("%w: %s=%d outside [%d, %d]", ErrInvalidOptionValue, spec.name, v, spec.min, spec.max)
	}
	*spec.field(p) = v
	if spec.name == "LMRBase" || spec.name == "LMRDivisor" {
		p.initReductions()
	}
	return nil
}

// Tunables lists every knob with its current value and range.
func (p *Params) Tunables() []Tunable {
	out := make([]Tunable, len(paramSpecs))
	for i, s := range paramSpecs {
		out[i] = Tunable{Name: s.name, Value: *s.field(p), Min: s.min, Max: s.max}
	}
	return out
}
