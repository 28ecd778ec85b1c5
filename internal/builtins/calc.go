// ABOUTME: Calculator tool: evaluates arithmetic expressions over a closed
// ABOUTME: operator set (+ - * / % // ** and parentheses), nothing else.

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/2389/toolgate/internal/tools"
)

// CalcTool evaluates arithmetic expressions. The parser admits only numeric
// literals, the whitelisted operators, and parentheses, so no expression can
// reach anything outside pure arithmetic.
type CalcTool struct{}

// NewCalcTool creates the calculator tool.
func NewCalcTool() *CalcTool {
	return &CalcTool{}
}

// Descriptor implements tools.Tool.
func (t *CalcTool) Descriptor() tools.Descriptor {
	return tools.Descriptor{
		ID:           "calc",
		Title:        "Calculator",
		Description:  "Evaluate safe arithmetic expressions.",
		InputSchema:  json.RawMessage(`{"type":"object","properties":{"expr":{"type":"string"}},"required":["expr"]}`),
		OutputSchema: json.RawMessage(`{"type":"object","properties":{"value":{"type":"number"}}}`),
	}
}

type calcParams struct {
	Expr string `json:"expr"`
}

type calcResult struct {
	OK    bool    `json:"ok"`
	Value float64 `json:"value"`
}

// Call implements tools.Tool.
func (t *CalcTool) Call(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	var in calcParams
	if err := json.Unmarshal(params, &in); err != nil {
		return fail("invalid params: %v", err)
	}
	if strings.TrimSpace(in.Expr) == "" {
		return fail("expr required")
	}

	value, err := evalExpr(in.Expr)
	if err != nil {
		return fail("%v", err)
	}
	return result(calcResult{OK: true, Value: value})
}

// Expression evaluation. Recursive descent with the usual precedence:
// additive < multiplicative < unary minus < power, with ** right-associative
// and binding tighter than unary minus (-2**2 == -4, 2**-1 == 0.5).

type exprParser struct {
	tokens []exprToken
	pos    int
}

type exprToken struct {
	kind  byte // 'n' number, 'o' operator, '(' or ')'
	op    string
	value float64
}

func (t exprToken) String() string {
	switch t.kind {
	case 'n':
		return strconv.FormatFloat(t.value, 'g', -1, 64)
	case 'o':
		return t.op
	default:
		return string(t.kind)
	}
}

func evalExpr(expr string) (float64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, errors.New("empty expression")
	}

	p := &exprParser{tokens: tokens}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.tokens) {
		return 0, fmt.Errorf("unexpected token %q", p.tokens[p.pos])
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errors.New("result is not finite")
	}
	return v, nil
}

func tokenize(expr string) ([]exprToken, error) {
	var tokens []exprToken
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.') {
				j++
			}
			v, err := strconv.ParseFloat(expr[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", expr[i:j])
			}
			tokens = append(tokens, exprToken{kind: 'n', value: v})
			i = j
		case c == '(' || c == ')':
			tokens = append(tokens, exprToken{kind: c})
			i++
		case c == '*':
			if i+1 < len(expr) && expr[i+1] == '*' {
				tokens = append(tokens, exprToken{kind: 'o', op: "**"})
				i += 2
			} else {
				tokens = append(tokens, exprToken{kind: 'o', op: "*"})
				i++
			}
		case c == '/':
			if i+1 < len(expr) && expr[i+1] == '/' {
				tokens = append(tokens, exprToken{kind: 'o', op: "//"})
				i += 2
			} else {
				tokens = append(tokens, exprToken{kind: 'o', op: "/"})
				i++
			}
		case c == '+' || c == '-' || c == '%':
			tokens = append(tokens, exprToken{kind: 'o', op: string(c)})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q", string(c))
		}
	}
	return tokens, nil
}

func (p *exprParser) peekOp() (string, bool) {
	if p.pos < len(p.tokens) && p.tokens[p.pos].kind == 'o' {
		return p.tokens[p.pos].op, true
	}
	return "", false
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp()
		if !ok || (op != "+" && op != "-") {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp()
		if !ok || (op != "*" && op != "/" && op != "//" && op != "%") {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				return 0, errors.New("division by zero")
			}
			left /= right
		case "//":
			if right == 0 {
				return 0, errors.New("division by zero")
			}
			left = math.Floor(left / right)
		case "%":
			if right == 0 {
				return 0, errors.New("division by zero")
			}
			// Remainder takes the divisor's sign, matching floor division.
			r := math.Mod(left, right)
			if r != 0 && (r < 0) != (right < 0) {
				r += right
			}
			left = r
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	if op, ok := p.peekOp(); ok && op == "-" {
		p.pos++
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	return p.parsePower()
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parseAtom()
	if err != nil {
		return 0, err
	}
	if op, ok := p.peekOp(); ok && op == "**" {
		p.pos++
		// Right-associative; the exponent may carry a unary minus.
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parseAtom() (float64, error) {
	if p.pos >= len(p.tokens) {
		return 0, errors.New("unexpected end of expression")
	}
	tok := p.tokens[p.pos]
	switch tok.kind {
	case 'n':
		p.pos++
		return tok.value, nil
	case '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.pos >= len(p.tokens) || p.tokens[p.pos].kind != ')' {
			return 0, errors.New("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	default:
		return 0, fmt.Errorf("unexpected token %q", tok)
	}
}
