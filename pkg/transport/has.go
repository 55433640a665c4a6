package transport

import "strings"

// hasNode is one term of a has! expression. A node with a then branch is a
// condition on the feature named by term.
type hasNode struct {
	term string
	then *hasNode
	els  *hasNode
}

type hasParser struct {
	tokens []string
	pos    int
}

func tokenizeHas(expr string) []string {
	var tokens []string
	start := 0
	for i := 0; i < len(expr); i++ {
		if expr[i] == '?' || expr[i] == ':' {
			tokens = append(tokens, strings.TrimSpace(expr[start:i]), expr[i:i+1])
			start = i + 1
		}
	}
	return append(tokens, strings.TrimSpace(expr[start:]))
}

// parse reads term ['?' expr [':' expr]].
func (p *hasParser) parse() (*hasNode, error) {
	if p.pos >= len(p.tokens) {
		return nil, ErrMalformedHasExpression
	}
	tok := p.tokens[p.pos]
	if tok == "?" || tok == ":" {
		return nil, ErrMalformedHasExpression
	}
	p.pos++
	node := &hasNode{term: tok}
	if p.pos < len(p.tokens) && p.tokens[p.pos] == "?" {
		if tok == "" {
			return nil, ErrMalformedHasExpression
		}
		p.pos++
		then, err := p.parse()
		if err != nil {
			return nil, err
		}
		node.then = then
		if p.pos < len(p.tokens) && p.tokens[p.pos] == ":" {
			p.pos++
			els, err := p.parse()
			if err != nil {
				return nil, err
			}
			node.els = els
		}
	}
	return node, nil
}

func parseHas(expr string) (*hasNode, error) {
	p := &hasParser{tokens: tokenizeHas(expr)}
	node, err := p.parse()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) || node.then == nil {
		return nil, ErrMalformedHasExpression
	}
	return node, nil
}

// HasFeatures returns the feature names a has! expression (without the
// "has!" prefix) tests, in order of appearance.
func HasFeatures(expr string) ([]string, error) {
	node, err := parseHas(expr)
	if err != nil {
		return nil, err
	}
	var names []string
	var walk func(n *hasNode)
	walk = func(n *hasNode) {
		if n == nil || n.then == nil {
			return
		}
		names = append(names, n.term)
		walk(n.then)
		walk(n.els)
	}
	walk(node)
	return names, nil
}

// ResolveHas evaluates a has! expression against the request features and
// returns the selected module id, or "" when no branch applies. Unset
// features count as false.
func ResolveHas(expr string, req *DecodedRequest) (string, error) {
	node, err := parseHas(expr)
	if err != nil {
		return "", err
	}
	for node != nil && node.then != nil {
		if value, _ := req.Feature(node.term); value {
			node = node.then
		} else {
			node = node.els
		}
	}
	if node == nil {
		return "", nil
	}
	return node.term, nil
}
