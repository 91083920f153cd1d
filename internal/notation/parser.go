package notation

import (
	"fmt"
	"math"
)

var reserved = map[string]bool{
	"bpm":      true,
	"acc":      true,
	"rit":      true,
	"swing":    true,
	"straight": true,
	"exactly":  true,
	"beats":    true,
}

type parser struct {
	toks []token
	pos  int
}

// Parse turns program text into an instruction tree. The tree is validated
// before it is returned.
func Parse(src string) (*Block, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	block, err := p.parseBlock(tokEOF)
	if err != nil {
		return nil, err
	}
	if err := Validate(block); err != nil {
		return nil, err
	}
	return block, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Line: t.line, Col: t.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(typ tokenType) (token, error) {
	t := p.peek()
	if t.typ != typ {
		return t, p.errorf(t, "expected %s, got %s", typ, t.describe())
	}
	return p.advance(), nil
}

func (p *parser) skipNewlines() {
	for p.peek().typ == tokNewline {
		p.advance()
	}
}

// parseBlock reads newline separated instructions until the closing token,
// which is left unconsumed.
func (p *parser) parseBlock(closing tokenType) (*Block, error) {
	block := &Block{}
	start := p.peek()
	block.Span = Span{StartLine: start.line, StartCol: start.col, EndLine: start.line, EndCol: start.col}
	p.skipNewlines()
	for p.peek().typ != closing {
		if p.peek().typ == tokEOF {
			return nil, p.errorf(p.peek(), "expected %s, got end of input", closing)
		}
		instr, err := p.parseInstr()
		if err != nil {
			return nil, err
		}
		block.Instrs = append(block.Instrs, instr)
		if len(block.Instrs) == 1 {
			block.Span = instr.Span
		} else {
			block.Span = block.Span.Merge(instr.Span)
		}
		switch t := p.peek(); t.typ {
		case tokNewline:
			p.skipNewlines()
		case closing:
		default:
			return nil, p.errorf(t, "expected end of line, got %s", t.describe())
		}
	}
	return block, nil
}

func (p *parser) parseInstr() (Instr, error) {
	t := p.peek()
	if t.typ == tokIdent {
		switch t.text {
		case "bpm":
			return p.parseTempo()
		case "acc", "rit":
			return p.parseRamp()
		case "swing", "straight":
			return p.parseSwing()
		case "a":
			if next := p.peekAt(1); next.typ == tokIdent && next.text == "tempo" {
				p.advance()
				end := p.advance()
				return Instr{Kind: KindATempo, Span: t.span().Merge(end.span())}, nil
			}
		}
		if next := p.peekAt(1); next.typ == tokEquals {
			return p.parseAssign()
		}
	}
	return p.parseSection()
}

func (p *parser) number() (token, error) {
	t, err := p.expect(tokNumber)
	if err != nil {
		return t, err
	}
	if math.IsInf(t.num, 0) || math.IsNaN(t.num) {
		return t, p.errorf(t, "number out of range")
	}
	return t, nil
}

func (p *parser) integer() (token, int, error) {
	t, err := p.number()
	if err != nil {
		return t, 0, err
	}
	if t.num != math.Trunc(t.num) || t.num > math.MaxInt32 {
		return t, 0, p.errorf(t, "expected a whole number, got %s", t.text)
	}
	return t, int(t.num), nil
}

// bpm N | bpm * R
func (p *parser) parseTempo() (Instr, error) {
	kw := p.advance()
	instr := Instr{Kind: KindTempo}
	if p.peek().typ == tokStar {
		p.advance()
		instr.Relative = true
	}
	n, err := p.number()
	if err != nil {
		return Instr{}, err
	}
	instr.BPM = n.num
	instr.Span = kw.span().Merge(n.span())
	return instr, nil
}

// acc|rit [*] TARGET BEATS [DELAY]
func (p *parser) parseRamp() (Instr, error) {
	kw := p.advance()
	instr := Instr{Kind: KindRamp}
	if p.peek().typ == tokStar {
		p.advance()
		instr.Relative = true
	}
	target, err := p.number()
	if err != nil {
		return Instr{}, err
	}
	beats, err := p.number()
	if err != nil {
		return Instr{}, err
	}
	instr.BPM, instr.Beats = target.num, beats.num
	last := beats
	if p.peek().typ == tokNumber {
		delay, err := p.number()
		if err != nil {
			return Instr{}, err
		}
		instr.Delay = delay.num
		last = delay
	}
	instr.Span = kw.span().Merge(last.span())
	return instr, nil
}

// swing off | straight | swing R1 [R2 ...] [... PHRASE]
func (p *parser) parseSwing() (Instr, error) {
	kw := p.advance()
	instr := Instr{Kind: KindSwing, Span: kw.span()}
	if kw.text == "straight" {
		return instr, nil
	}
	if t := p.peek(); t.typ == tokIdent && t.text == "off" {
		p.advance()
		instr.Span = instr.Span.Merge(t.span())
		return instr, nil
	}
	for p.peek().typ == tokNumber {
		r := p.advance()
		instr.Ratios = append(instr.Ratios, r.num)
		instr.Span = instr.Span.Merge(r.span())
	}
	if len(instr.Ratios) == 0 {
		t := p.peek()
		return Instr{}, p.errorf(t, "expected swing ratios or 'off', got %s", t.describe())
	}
	if p.peek().typ == tokEllipsis {
		p.advance()
		t, phrase, err := p.integer()
		if err != nil {
			return Instr{}, err
		}
		instr.Phrase = phrase
		instr.Span = instr.Span.Merge(t.span())
	}
	return instr, nil
}

// NAME = SECTION
func (p *parser) parseAssign() (Instr, error) {
	name := p.advance()
	if reserved[name.text] {
		return Instr{}, p.errorf(name, "cannot assign to reserved word %s", name.describe())
	}
	p.advance()
	body, err := p.parseSection()
	if err != nil {
		return Instr{}, err
	}
	return Instr{Kind: KindAssign, Name: name.text, Body: &body, Span: name.span().Merge(body.Span)}, nil
}

// PRIMARY { * COUNT }
func (p *parser) parseSection() (Instr, error) {
	instr, err := p.parsePrimary()
	if err != nil {
		return Instr{}, err
	}
	for p.peek().typ == tokStar {
		p.advance()
		t, count, err := p.integer()
		if err != nil {
			return Instr{}, err
		}
		if count < 1 {
			return Instr{}, p.errorf(t, "repeat count must be at least 1, got %d", count)
		}
		body := instr
		instr = Instr{Kind: KindRepeat, Body: &body, Count: count, Span: body.Span.Merge(t.span())}
	}
	return instr, nil
}

func (p *parser) parsePrimary() (Instr, error) {
	t := p.peek()
	switch t.typ {
	case tokNumber:
		return p.parseMeter()
	case tokLParen:
		p.advance()
		block, err := p.parseBlock(tokRParen)
		if err != nil {
			return Instr{}, err
		}
		end := p.advance()
		span := t.span().Merge(end.span())
		block.Span = span
		return Instr{Kind: KindBlock, Block: block, Span: span}, nil
	case tokIdent:
		switch {
		case t.text == "beats":
			return p.parseBeats()
		case t.text == "exactly":
			p.advance()
			name, err := p.expect(tokIdent)
			if err != nil {
				return Instr{}, err
			}
			if reserved[name.text] {
				return Instr{}, p.errorf(name, "expected a section name, got %s", name.describe())
			}
			return Instr{Kind: KindPlay, Name: name.text, Span: t.span().Merge(name.span())}, nil
		case !reserved[t.text]:
			p.advance()
			return Instr{Kind: KindReinterpret, Name: t.text, Span: t.span()}, nil
		}
	}
	return Instr{}, p.errorf(t, "unexpected %s", t.describe())
}

// R1[+R2...][:R1[+R2...]...]/DENOM
func (p *parser) parseMeter() (Instr, error) {
	first := p.peek()
	var rhythms [][]int
	for {
		var rhythm []int
		for {
			_, n, err := p.integer()
			if err != nil {
				return Instr{}, err
			}
			rhythm = append(rhythm, n)
			if p.peek().typ != tokPlus {
				break
			}
			p.advance()
		}
		rhythms = append(rhythms, rhythm)
		if p.peek().typ != tokColon {
			break
		}
		p.advance()
	}
	if _, err := p.expect(tokSlash); err != nil {
		return Instr{}, err
	}
	denom, d, err := p.integer()
	if err != nil {
		return Instr{}, err
	}
	return Instr{Kind: KindMeasure, Rhythms: rhythms, Denom: d, Span: first.span().Merge(denom.span())}, nil
}

// beats (hi|mid|lo) [*] DURATION ...
func (p *parser) parseBeats() (Instr, error) {
	kw := p.advance()
	instr := Instr{Kind: KindBeatList, Span: kw.span()}
	for {
		t := p.peek()
		if t.typ != tokIdent {
			break
		}
		intensity := Intensity(t.text)
		if intensity != High && intensity != Mid && intensity != Low {
			return Instr{}, p.errorf(t, "expected hi, mid or lo, got %s", t.describe())
		}
		p.advance()
		beat := Beat{Intensity: intensity}
		if p.peek().typ == tokStar {
			p.advance()
			beat.Relative = true
		}
		d, err := p.number()
		if err != nil {
			return Instr{}, err
		}
		beat.Duration = d.num
		instr.BeatSpecs = append(instr.BeatSpecs, beat)
		instr.Span = instr.Span.Merge(d.span())
	}
	if len(instr.BeatSpecs) == 0 {
		t := p.peek()
		return Instr{}, p.errorf(t, "expected at least one beat, got %s", t.describe())
	}
	return instr, nil
}

// Validate checks that every instruction in the tree has a known kind and
// the payload that kind requires. Trees built by Parse always pass.
func Validate(block *Block) error {
	if block == nil {
		return &SyntaxError{Line: 1, Msg: "missing instruction block"}
	}
	for i := range block.Instrs {
		if err := validateInstr(&block.Instrs[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateInstr(in *Instr) error {
	bad := func(format string, args ...any) error {
		return &SyntaxError{Line: in.Span.StartLine, Col: in.Span.StartCol, Msg: fmt.Sprintf(format, args...)}
	}
	switch in.Kind {
	case KindTempo, KindRamp, KindATempo, KindSwing:
	case KindPlay, KindReinterpret:
		if in.Name == "" {
			return bad("%s without a name", in.Kind)
		}
	case KindAssign:
		if in.Name == "" || in.Body == nil {
			return bad("incomplete assignment")
		}
		if !in.Body.Kind.IsSection() {
			return bad("cannot assign %s to %s", in.Body.Kind, in.Name)
		}
		return validateInstr(in.Body)
	case KindRepeat:
		if in.Body == nil || !in.Body.Kind.IsSection() {
			return bad("nothing to repeat")
		}
		return validateInstr(in.Body)
	case KindMeasure:
		if len(in.Rhythms) == 0 {
			return bad("measure without beats")
		}
	case KindBeatList:
		for _, b := range in.BeatSpecs {
			switch b.Intensity {
			case High, Mid, Low:
			default:
				return bad("unknown beat intensity %q", b.Intensity)
			}
		}
	case KindBlock:
		return Validate(in.Block)
	default:
		return bad("unrecognized instruction kind %d", int(in.Kind))
	}
	return nil
}
