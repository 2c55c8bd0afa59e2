package battle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// FormulaStats holds the values a damage or reward formula may read.
type FormulaStats struct {
	HP, MP, TP                   int
	MaxHP, MaxMP                 int
	Atk, Def, Mat, Mdf, Agi, Luk int
	Level                        int
}

// EvalFormula evaluates an RMMV-style formula string.
// Variables: a.atk a.def a.mat a.mdf a.agi a.luk a.hp a.mp a.tp a.mhp a.mmp a.level
//
//	b.*  (same for the target)
//
// Operators: + - * /  with parentheses.
// Functions: Math.floor, Math.ceil, Math.round, Math.max, Math.min, Math.abs
//
// Anything that looks like script (statements, blocks) is rejected; formulas are
// expressions over explicit inputs only.
func EvalFormula(formula string, a, b *FormulaStats) (float64, error) {
	lower := strings.ToLower(formula)
	for _, kw := range []string{"if", "function", "var", "let", "const", ";", "{", "}", "=>"} {
		if strings.Contains(lower, kw) {
			return 0, fmt.Errorf("formula is not an expression: %q", formula)
		}
	}
	if a == nil {
		a = &FormulaStats{}
	}
	if b == nil {
		b = &FormulaStats{}
	}
	p := &parser{input: formula, a: a, b: b}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipWS()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected chars at pos %d: %q", p.pos, p.input[p.pos:])
	}
	return v, nil
}

// ---- Recursive-descent parser ----

type parser struct {
	input string
	pos   int
	a, b  *FormulaStats
}

func (p *parser) skipWS() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipWS()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) consume() byte {
	p.skipWS()
	if p.pos >= len(p.input) {
		return 0
	}
	ch := p.input[p.pos]
	p.pos++
	return ch
}

// parseExpr = parseTerm (('+' | '-') parseTerm)*
func (p *parser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return v, nil
		}
		p.consume()
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			v += right
		} else {
			v -= right
		}
	}
}

// parseTerm = parseFactor (('*' | '/') parseFactor)*
func (p *parser) parseTerm() (float64, error) {
	v, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return v, nil
		}
		p.consume()
		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			v *= right
			continue
		}
		if right == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		v /= right
	}
}

// parseFactor = '(' parseExpr ')' | '-' parseFactor | number | variable | Math.func(args)
func (p *parser) parseFactor() (float64, error) {
	ch := p.peek()
	switch {
	case ch == '(':
		p.consume()
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.consume() != ')' {
			return 0, fmt.Errorf("expected ')'")
		}
		return v, nil
	case ch == '-':
		p.consume()
		v, err := p.parseFactor()
		return -v, err
	case unicode.IsDigit(rune(ch)) || ch == '.':
		return p.parseNumber()
	case ch == 'a' || ch == 'b':
		return p.parseVariable()
	case ch == 'M':
		return p.parseMathFunc()
	default:
		return 0, fmt.Errorf("unexpected character %q at pos %d", ch, p.pos)
	}
}

func (p *parser) parseNumber() (float64, error) {
	p.skipWS()
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] == '.' || (p.input[p.pos] >= '0' && p.input[p.pos] <= '9')) {
		p.pos++
	}
	return strconv.ParseFloat(p.input[start:p.pos], 64)
}

func (p *parser) parseVariable() (float64, error) {
	p.skipWS()
	who := p.input[p.pos]
	p.pos++
	if p.pos >= len(p.input) || p.input[p.pos] != '.' {
		return 0, fmt.Errorf("expected '.' after '%c'", who)
	}
	p.pos++
	start := p.pos
	for p.pos < len(p.input) && unicode.IsLetter(rune(p.input[p.pos])) {
		p.pos++
	}
	stats := p.a
	if who == 'b' {
		stats = p.b
	}
	return statField(stats, p.input[start:p.pos])
}

func statField(s *FormulaStats, field string) (float64, error) {
	switch field {
	case "hp":
		return float64(s.HP), nil
	case "mp":
		return float64(s.MP), nil
	case "tp":
		return float64(s.TP), nil
	case "mhp":
		return float64(s.MaxHP), nil
	case "mmp":
		return float64(s.MaxMP), nil
	case "atk":
		return float64(s.Atk), nil
	case "def":
		return float64(s.Def), nil
	case "mat":
		return float64(s.Mat), nil
	case "mdf":
		return float64(s.Mdf), nil
	case "agi":
		return float64(s.Agi), nil
	case "luk":
		return float64(s.Luk), nil
	case "level":
		return float64(s.Level), nil
	}
	return 0, fmt.Errorf("unknown stat field %q", field)
}

func (p *parser) parseMathFunc() (float64, error) {
	p.skipWS()
	const prefix = "Math."
	if !strings.HasPrefix(p.input[p.pos:], prefix) {
		return 0, fmt.Errorf("expected Math.xxx at pos %d", p.pos)
	}
	p.pos += len(prefix)
	start := p.pos
	for p.pos < len(p.input) && unicode.IsLetter(rune(p.input[p.pos])) {
		p.pos++
	}
	fname := p.input[start:p.pos]
	if p.consume() != '(' {
		return 0, fmt.Errorf("expected '(' after Math.%s", fname)
	}
	var args []float64
	for {
		if p.peek() == ')' {
			p.consume()
			break
		}
		if p.peek() == 0 {
			return 0, fmt.Errorf("unterminated Math.%s call", fname)
		}
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		args = append(args, v)
		if p.peek() == ',' {
			p.consume()
		}
	}
	return applyMathFunc(fname, args)
}

func applyMathFunc(name string, args []float64) (float64, error) {
	unary := func(fn func(float64) float64) (float64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("Math.%s expects 1 argument", name)
		}
		return fn(args[0]), nil
	}
	switch name {
	case "floor":
		return unary(math.Floor)
	case "ceil":
		return unary(math.Ceil)
	case "round":
		return unary(math.Round)
	case "abs":
		return unary(math.Abs)
	case "max", "min":
		if len(args) == 0 {
			return 0, fmt.Errorf("Math.%s expects at least 1 argument", name)
		}
		v := args[0]
		for _, x := range args[1:] {
			if name == "max" {
				v = math.Max(v, x)
			} else {
				v = math.Min(v, x)
			}
		}
		return v, nil
	}
	return 0, fmt.Errorf("unknown function Math.%s", name)
}
