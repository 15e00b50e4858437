package sqlfront

import "strings"

type parserFn func(*scanner) (bool, interface{})

type nodify func(tokens []item)

type nodifyMany func(tokens [][]item)

// lazy defers construction of a parser until it runs, letting a parser
// reference itself (needed for expressions nested in parens).
func lazy(x func() parserFn) parserFn {
	return func(s *scanner) (bool, interface{}) {
		return x()(s)
	}
}

// text matches the next token case-insensitively against r.
func text(r string) parserFn {
	return func(s *scanner) (bool, interface{}) {
		next := s.peek()
		if strings.EqualFold(r, next.text) {
			s.next()
			return true, r
		}
		return false, nil
	}
}

// separatedBy1 requires one match of parser followed by zero or more
// (separator, parser) pairs. Used for column lists and VALUES tuples.
func separatedBy1(separator parserFn, parser parserFn) parserFn {
	return all([]parserFn{
		parser,
		zeroOrMore(all([]parserFn{separator, parser}, nil)),
	}, nil)
}

func zeroOrMore(parser parserFn) parserFn {
	return func(s *scanner) (bool, interface{}) {
		var results []interface{}
		for {
			_, reset := s.mark()
			if success, result := parser(s); success {
				results = append(results, result)
			} else {
				reset()
				break
			}
		}
		return true, results
	}
}

// all requires every parser to succeed in sequence; on any failure the
// scanner is rewound and nothing is consumed.
func all(parsers []parserFn, nodify nodifyMany) parserFn {
	return func(s *scanner) (bool, interface{}) {
		_, reset := s.mark()
		var tokens [][]item

		for _, p := range parsers {
			before := s.position
			if success, _ := p(s); !success {
				reset()
				return false, nil
			}
			tokens = append(tokens, s.rangeSince(before))
		}

		if nodify != nil {
			nodify(tokens)
		}
		return true, tokens
	}
}

func allX(parsers ...parserFn) parserFn {
	return all(parsers, nil)
}

// oneOf tries each parser in turn, returning the first success.
func oneOf(parsers []parserFn, nodify nodify) parserFn {
	return func(s *scanner) (bool, interface{}) {
		start, reset := s.mark()
		for _, p := range parsers {
			if success, result := p(s); success {
				if nodify != nil {
					nodify(s.rangeSince(start))
				}
				return true, result
			}
			reset()
		}
		return false, nil
	}
}

// optional always succeeds; it consumes input only if parser matches.
func optional(parser parserFn, nodify nodify) parserFn {
	return func(s *scanner) (bool, interface{}) {
		start, reset := s.mark()
		if success, _ := parser(s); success {
			if nodify != nil {
				nodify(s.rangeSince(start))
			}
			return true, s.rangeSince(start)
		}
		reset()
		return true, nil
	}
}

func optionalX(parser parserFn) parserFn {
	return optional(parser, nil)
}

// required fails (rewinding) if parser fails, unlike optional.
func required(parser parserFn, nodify nodify) parserFn {
	return func(s *scanner) (bool, interface{}) {
		start, reset := s.mark()
		if success, result := parser(s); success {
			if nodify != nil {
				nodify(s.rangeSince(start))
			}
			return true, result
		}
		reset()
		return false, nil
	}
}

// committed marks a landmark for error reporting: once reached, a
// later failure's message can point at the furthest clause attempted.
func committed(landmark string, p parserFn) parserFn {
	return func(s *scanner) (bool, interface{}) {
		s.commit(landmark)
		return p(s)
	}
}

// chainl builds a left-associative expression parser out of a term
// parser and an operator parser, used to build the precedence chain
// for arithmetic, comparison, and logical operators.
func chainl(term expressionParser, combine expressionMaker, op opParser) expressionParser {
	return func(s *scanner) (bool, Expression) {
		success, expr := term(s)
		if !success {
			return false, nil
		}

		for {
			if matched, operator := op(s); matched {
				if rSuccess, right := term(s); rSuccess {
					expr = combine(operator, expr, right)
					continue
				}
				return false, nil
			}
			return true, expr
		}
	}
}
