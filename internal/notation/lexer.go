package notation

import (
	"strconv"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokNewline
	tokNumber
	tokIdent
	tokLParen
	tokRParen
	tokStar
	tokSlash
	tokPlus
	tokColon
	tokEquals
	tokEllipsis
)

var tokenNames = map[tokenType]string{
	tokEOF:      "end of input",
	tokNewline:  "end of line",
	tokNumber:   "number",
	tokIdent:    "name",
	tokLParen:   "'('",
	tokRParen:   "')'",
	tokStar:     "'*'",
	tokSlash:    "'/'",
	tokPlus:     "'+'",
	tokColon:    "':'",
	tokEquals:   "'='",
	tokEllipsis: "'...'",
}

func (t tokenType) String() string { return tokenNames[t] }

type token struct {
	typ  tokenType
	text string
	num  float64
	line int
	col  int
	end  int // exclusive end column on line
}

func (t token) describe() string {
	switch t.typ {
	case tokNumber, tokIdent:
		return "'" + t.text + "'"
	}
	return t.typ.String()
}

func (t token) span() Span {
	return Span{StartLine: t.line, StartCol: t.col, EndLine: t.line, EndCol: t.end}
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool { return isIdentStart(ch) || isDigit(ch) }

// lex splits src into tokens. Comments run from "//" to the end of the line.
func lex(src string) ([]token, error) {
	toks := make([]token, 0, len(src)/2)
	line, lineStart := 1, 0
	i := 0
	emit := func(typ tokenType, start, end int) {
		toks = append(toks, token{typ: typ, text: src[start:end], line: line, col: start - lineStart, end: end - lineStart})
	}
	for i < len(src) {
		ch := src[i]
		switch {
		case ch == '\n':
			emit(tokNewline, i, i+1)
			i++
			line++
			lineStart = i
		case ch == ' ' || ch == '\t' || ch == '\r':
			i++
		case ch == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case ch == '.' && i+2 < len(src) && src[i+1] == '.' && src[i+2] == '.':
			emit(tokEllipsis, i, i+3)
			i += 3
		case isDigit(ch) || (ch == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			for i < len(src) && isDigit(src[i]) {
				i++
			}
			if i < len(src) && src[i] == '.' && !(i+1 < len(src) && src[i+1] == '.') {
				i++
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			v, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, &SyntaxError{Line: line, Col: start - lineStart, Msg: "invalid number " + src[start:i]}
			}
			emit(tokNumber, start, i)
			toks[len(toks)-1].num = v
		case isIdentStart(ch):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			emit(tokIdent, start, i)
		default:
			typ, ok := punctuation[ch]
			if !ok {
				return nil, &SyntaxError{Line: line, Col: i - lineStart, Msg: "unexpected character " + strconv.QuoteRune(rune(ch))}
			}
			emit(typ, i, i+1)
			i++
		}
	}
	toks = append(toks, token{typ: tokEOF, line: line, col: i - lineStart, end: i - lineStart})
	return toks, nil
}

var punctuation = map[byte]tokenType{
	'(': tokLParen,
	')': tokRParen,
	'*': tokStar,
	'/': tokSlash,
	'+': tokPlus,
	':': tokColon,
	'=': tokEquals,
}
