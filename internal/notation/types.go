package notation

// Span locates an instruction in the source text. Lines start at 1, columns
// at 0, and the end is exclusive.
type Span struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Merge returns the smallest span covering s and o.
func (s Span) Merge(o Span) Span {
	out := s
	if o.StartLine < s.StartLine || (o.StartLine == s.StartLine && o.StartCol < s.StartCol) {
		out.StartLine, out.StartCol = o.StartLine, o.StartCol
	}
	if o.EndLine > s.EndLine || (o.EndLine == s.EndLine && o.EndCol > s.EndCol) {
		out.EndLine, out.EndCol = o.EndLine, o.EndCol
	}
	return out
}

type Kind int

const (
	KindInvalid Kind = iota
	KindTempo
	KindRamp
	KindATempo
	KindSwing
	KindAssign
	KindPlay
	KindReinterpret
	KindMeasure
	KindBeatList
	KindBlock
	KindRepeat
)

var kindNames = map[Kind]string{
	KindTempo:       "bpm",
	KindRamp:        "adjust_bpm",
	KindATempo:      "a_tempo",
	KindSwing:       "swing",
	KindAssign:      "assign",
	KindPlay:        "play",
	KindReinterpret: "reinterpret",
	KindMeasure:     "Measure",
	KindBeatList:    "BeatList",
	KindBlock:       "instrs",
	KindRepeat:      "RepeatingSection",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// IsSection reports whether instructions of this kind produce playable
// content.
func (k Kind) IsSection() bool {
	switch k {
	case KindPlay, KindReinterpret, KindMeasure, KindBeatList, KindBlock, KindRepeat:
		return true
	}
	return false
}

type Intensity string

const (
	High Intensity = "hi"
	Mid  Intensity = "mid"
	Low  Intensity = "lo"
)

// Beat is one entry of a beats instruction. Relative durations are in beats
// at the prevailing tempo, the rest in seconds.
type Beat struct {
	Intensity Intensity
	Duration  float64
	Relative  bool
}

// Instr is a single instruction. Only the fields relevant to Kind are set.
type Instr struct {
	Kind Kind
	Span Span

	// KindTempo, KindRamp
	BPM      float64
	Relative bool
	// KindRamp
	Beats float64
	Delay float64

	// KindSwing; no ratios turns swing off.
	Ratios []float64
	Phrase int

	// KindAssign, KindPlay, KindReinterpret
	Name string

	// KindAssign, KindRepeat
	Body  *Instr
	Count int

	// KindMeasure
	Rhythms [][]int
	Denom   int

	// KindBeatList
	BeatSpecs []Beat

	// KindBlock
	Block *Block
}

// Block is a sequence of instructions, either a whole program or the
// contents of parentheses.
type Block struct {
	Instrs []Instr
	Span   Span
}
