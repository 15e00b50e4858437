package sqlfront

import (
	"errors"
	"fmt"
	"strconv"
)

type expressionParser func(*scanner) (bool, Expression)

type opParser func(*scanner) (bool, string)

type expressionMaker func(op string, left, right Expression) Expression

type nodifyExpression func(e Expression)

type topLevelStatement struct {
	name  string
	parse func(*scanner) Statement
}

var topLevelStatements = []topLevelStatement{
	{"CREATE TABLE", parseCreateTable},
	{"DROP TABLE", parseDropTable},
	{"INSERT", parseInsert},
	{"UPDATE", parseUpdate},
	{"DELETE", parseDelete},
	{"SELECT", parseSelect},
	{"BEGIN", parseBegin},
	{"COMMIT", parseCommit},
	{"ROLLBACK", parseRollback},
}

// Parse parses a single SQL statement, trying each top-level statement
// form in turn until one matches the full input.
func Parse(sql string) (Statement, error) {
	s := newScanner(sql)

	for _, candidate := range topLevelStatements {
		if stmt := candidate.parse(s); stmt != nil {
			return stmt, nil
		}
		s.reset()
	}

	return nil, fmt.Errorf("sqlfront: %w: %q", errUnrecognized, sql)
}

var errUnrecognized = errors.New("unrecognized statement")

// ---- CREATE TABLE ----

func parseCreateTable(s *scanner) Statement {
	stmt := &CreateTableStatement{}
	flags := make(map[string]bool)

	columnDef := all([]parserFn{
		optionalToken(tokWhiteSpace),
		requiredToken(tokIdentifier, nil),
		optionalToken(tokWhiteSpace),
		requiredToken(tokIdentifier, nil),
		optional(parens(requiredToken(tokNumber, nil)), nil),
		optional(allX(
			optionalToken(tokWhiteSpace),
			text("PRIMARY"),
			optionalToken(tokWhiteSpace),
			text("KEY"),
		), func(tokens []item) {
			flags["primary_key"] = true
		}),
		optionalToken(tokWhiteSpace),
	}, func(tokens [][]item) {
		typ := tokens[3][0].text
		for _, tok := range tokens[4] {
			if tok.token != tokWhiteSpace {
				typ += tok.text
			}
		}
		stmt.Columns = append(stmt.Columns, ColumnDefinition{
			Name:       tokens[1][0].text,
			Type:       typ,
			PrimaryKey: flags["primary_key"],
		})
		flags = make(map[string]bool)
	})

	ok, _ := allX(
		keyword(tokCreate),
		keyword(tokTable),
		optional(allX(
			keyword(tokIf), keyword(tokNot), keyword(tokExists),
		), func(tokens []item) {
			stmt.IfNotExists = true
		}),
		requiredToken(tokIdentifier, func(tokens []item) {
			stmt.TableName = tokens[0].text
		}),
		optionalToken(tokWhiteSpace),
		parens(commaSeparated(columnDef)),
		optionalToken(tokWhiteSpace),
		optionalToken(tokSemicolon),
		optionalToken(tokWhiteSpace),
		requiredToken(tokEOF, nil),
	)(s)

	if !ok {
		return nil
	}
	return stmt
}

// ---- DROP TABLE ----

func parseDropTable(s *scanner) Statement {
	stmt := &DropTableStatement{}

	ok, _ := allX(
		keyword(tokDrop),
		keyword(tokTable),
		optional(allX(keyword(tokIf), keyword(tokExists)), func(tokens []item) {
			stmt.IfExists = true
		}),
		requiredToken(tokIdentifier, func(tokens []item) {
			stmt.TableName = tokens[0].text
		}),
		optionalToken(tokWhiteSpace),
		optionalToken(tokSemicolon),
		optionalToken(tokWhiteSpace),
		requiredToken(tokEOF, nil),
	)(s)

	if !ok {
		return nil
	}
	return stmt
}

// ---- INSERT ----

func parseInsert(s *scanner) Statement {
	var table string
	var columns []string
	var values []Expression

	ok, _ := allX(
		keyword(tokInsert),
		keyword(tokInto),
		requiredToken(tokIdentifier, func(tokens []item) {
			table = tokens[0].text
		}),
		optionalToken(tokWhiteSpace),
		parens(commaSeparated(requiredToken(tokIdentifier, func(tokens []item) {
			columns = append(columns, tokens[0].text)
		}))),
		optionalToken(tokWhiteSpace),
		keyword(tokValues),
		parens(commaSeparated(makeExpressionParser(func(e Expression) {
			values = append(values, e)
		}))),
		optionalToken(tokWhiteSpace),
		optionalToken(tokSemicolon),
		optionalToken(tokWhiteSpace),
		requiredToken(tokEOF, nil),
	)(s)

	if !ok {
		return nil
	}
	if len(columns) != len(values) {
		return nil
	}

	stmt := &InsertStatement{Table: table, Values: make(map[string]Expression, len(columns))}
	for i, col := range columns {
		stmt.Values[col] = values[i]
	}
	return stmt
}

// ---- UPDATE ----

func parseUpdate(s *scanner) Statement {
	stmt := &UpdateStatement{Set: make(map[string]Expression)}
	var column string

	assignment := allX(
		optionalToken(tokWhiteSpace),
		requiredToken(tokIdentifier, func(tokens []item) {
			column = tokens[0].text
		}),
		optionalToken(tokWhiteSpace),
		requiredToken(tokEquals, nil),
		makeExpressionParser(func(e Expression) {
			stmt.Set[column] = e
		}),
	)

	whereClause := allX(
		optionalToken(tokWhiteSpace),
		keyword(tokWhere),
		committed("WHERE", makeExpressionParser(func(e Expression) {
			stmt.Filter = e
		})),
	)

	ok, _ := allX(
		keyword(tokUpdate),
		requiredToken(tokIdentifier, func(tokens []item) {
			stmt.Table = tokens[0].text
		}),
		optionalToken(tokWhiteSpace),
		keyword(tokSet),
		commaSeparated(assignment),
		optional(whereClause, nil),
		optionalToken(tokWhiteSpace),
		optionalToken(tokSemicolon),
		optionalToken(tokWhiteSpace),
		requiredToken(tokEOF, nil),
	)(s)

	if !ok {
		return nil
	}
	return stmt
}

// ---- DELETE ----

func parseDelete(s *scanner) Statement {
	stmt := &DeleteStatement{}

	whereClause := allX(
		optionalToken(tokWhiteSpace),
		keyword(tokWhere),
		committed("WHERE", makeExpressionParser(func(e Expression) {
			stmt.Filter = e
		})),
	)

	ok, _ := allX(
		keyword(tokDelete),
		keyword(tokFrom),
		requiredToken(tokIdentifier, func(tokens []item) {
			stmt.Table = tokens[0].text
		}),
		optional(whereClause, nil),
		optionalToken(tokWhiteSpace),
		optionalToken(tokSemicolon),
		optionalToken(tokWhiteSpace),
		requiredToken(tokEOF, nil),
	)(s)

	if !ok {
		return nil
	}
	return stmt
}

// ---- SELECT ----

func parseSelect(s *scanner) Statement {
	stmt := &SelectStatement{}

	whereClause := allX(
		optionalToken(tokWhiteSpace),
		keyword(tokWhere),
		committed("WHERE", makeExpressionParser(func(e Expression) {
			stmt.Filter = e
		})),
	)

	offsetClause := allX(
		optionalToken(tokWhiteSpace),
		keyword(tokOffset),
		committed("OFFSET", requiredToken(tokNumber, func(tokens []item) {
			n, _ := strconv.Atoi(tokens[0].text)
			stmt.Offset = &n
		})),
	)

	fetchClause := allX(
		optionalToken(tokWhiteSpace),
		keyword(tokFetch),
		committed("FETCH", allX(
			keyword(tokFirst),
			requiredToken(tokNumber, func(tokens []item) {
				n, _ := strconv.Atoi(tokens[0].text)
				stmt.Limit = &n
			}),
			optionalToken(tokWhiteSpace),
			keyword(tokRows),
			keyword(tokOnly),
		)),
	)

	ok, _ := allX(
		committed("SELECT", keyword(tokSelect)),
		committed("COLUMNS", commaSeparated(
			oneOf([]parserFn{
				requiredToken(tokIdentifier, nil),
				requiredToken(tokAsterisk, nil),
			}, func(tokens []item) {
				stmt.Columns = append(stmt.Columns, tokens[0].text)
			}),
		)),
		optionalToken(tokWhiteSpace),
		committed("FROM", keyword(tokFrom)),
		committed("SOURCE", parseSelectSource(stmt)),
		optional(whereClause, nil),
		optional(offsetClause, nil),
		optional(fetchClause, nil),
		optionalToken(tokWhiteSpace),
		optionalToken(tokSemicolon),
		optionalToken(tokWhiteSpace),
		requiredToken(tokEOF, nil),
	)(s)

	if !ok {
		return nil
	}
	return stmt
}

// parseSelectSource parses either a bare table name (with an optional
// alias) or a VALUES (...) row constructor used as a derived table,
// and records the result onto stmt.From.
func parseSelectSource(stmt *SelectStatement) parserFn {
	return func(s *scanner) (bool, interface{}) {
		if success, _ := parseValuesSource(stmt)(s); success {
			return true, nil
		}
		return parseTableSource(stmt)(s)
	}
}

func parseTableSource(stmt *SelectStatement) parserFn {
	return allX(
		requiredToken(tokIdentifier, func(tokens []item) {
			stmt.From = &TableSource{Name: tokens[0].text}
		}),
		optional(allX(
			optionalToken(tokWhiteSpace),
			requiredToken(tokIdentifier, func(tokens []item) {
				if ts, ok := stmt.From.(*TableSource); ok {
					ts.Alias = tokens[0].text
				}
			}),
		), nil),
	)
}

func parseValuesSource(stmt *SelectStatement) parserFn {
	source := &ValuesSource{}
	var currentRow []Expression

	row := allX(
		optionalToken(tokWhiteSpace),
		requiredToken(tokOpenParen, nil),
		commaSeparated(makeExpressionParser(func(e Expression) {
			currentRow = append(currentRow, e)
		})),
		requiredToken(tokCloseParen, nil),
		optionalToken(tokWhiteSpace),
	)

	// valuesBody is the VALUES (...), (...) row list; it sits inside the
	// outer parens of the "(VALUES (...), (...))" derived-table form.
	valuesBody := allX(
		keyword(tokValues),
		separatedBy1(commaSeparator, func(s *scanner) (bool, interface{}) {
			currentRow = nil
			success, result := row(s)
			if success {
				source.Rows = append(source.Rows, currentRow)
			}
			return success, result
		}),
	)

	return func(s *scanner) (bool, interface{}) {
		_, reset := s.mark()

		ok, _ := allX(
			parens(valuesBody),
			optional(allX(
				keyword(tokAs),
				requiredToken(tokIdentifier, func(tokens []item) {
					source.Alias = tokens[0].text
				}),
				optional(parens(commaSeparated(requiredToken(tokIdentifier, func(tokens []item) {
					source.Columns = append(source.Columns, tokens[0].text)
				}))), nil),
			), nil),
		)(s)

		if !ok {
			reset()
			return false, nil
		}
		stmt.From = source
		return true, nil
	}
}

// ---- Transactions ----

func parseBegin(s *scanner) Statement {
	startForm := allX(keyword(tokStart), keyword(tokTransaction))
	beginForm := keyword(tokBegin)

	ok, _ := allX(
		oneOf([]parserFn{startForm, beginForm}, nil),
		optionalToken(tokSemicolon),
		optionalToken(tokWhiteSpace),
		requiredToken(tokEOF, nil),
	)(s)

	if !ok {
		return nil
	}
	return &BeginStatement{}
}

func parseCommit(s *scanner) Statement {
	ok, _ := allX(
		keyword(tokCommit),
		optionalToken(tokSemicolon),
		optionalToken(tokWhiteSpace),
		requiredToken(tokEOF, nil),
	)(s)
	if !ok {
		return nil
	}
	return &CommitStatement{}
}

func parseRollback(s *scanner) Statement {
	ok, _ := allX(
		keyword(tokRollback),
		optionalToken(tokSemicolon),
		optionalToken(tokWhiteSpace),
		requiredToken(tokEOF, nil),
	)(s)
	if !ok {
		return nil
	}
	return &RollbackStatement{}
}

// ---- Expressions ----

func parseTermExpression() expressionParser {
	return func(s *scanner) (bool, Expression) {
		var expr Expression

		ok, _ := oneOf([]parserFn{
			parseTerm(func(e Expression) { expr = e }),
			parens(lazy(func() parserFn {
				return func(s *scanner) (bool, interface{}) {
					success, e := parseExpression()(s)
					if success {
						expr = e
					}
					return success, e
				}
			})),
		}, nil)(s)

		return ok, expr
	}
}

func makeBinaryExpression() expressionMaker {
	return func(op string, left, right Expression) Expression {
		return &BinaryOperation{Left: left, Right: right, Operator: op}
	}
}

// operatorCase pairs a token produced by the lexer with the canonical
// operator text to record on the resulting BinaryOperation.
type operatorCase struct {
	token Token
	text  string
}

// operatorOneOf matches the next token's type against cases, tolerating
// surrounding whitespace. Dispatching on token type rather than regexing
// the raw token text avoids false positives against identifiers that
// happen to contain an operator keyword as a substring (ORDER_ID vs OR),
// and it matches AND/OR regardless of input case since the lexer's
// keyword table already folds case when choosing the token type.
func operatorOneOf(cases []operatorCase) opParser {
	return func(s *scanner) (bool, string) {
		_, reset := s.mark()
		optionalToken(tokWhiteSpace)(s)
		next := s.peek()
		for _, c := range cases {
			if next.token == c.token {
				s.next()
				optionalToken(tokWhiteSpace)(s)
				return true, c.text
			}
		}
		reset()
		return false, ""
	}
}

func comparison() opParser {
	return operatorOneOf([]operatorCase{
		{tokEquals, "="}, {tokNotEq, "!="},
		{tokLte, "<="}, {tokGte, ">="},
		{tokLt, "<"}, {tokGt, ">"},
	})
}

func logical() opParser {
	return operatorOneOf([]operatorCase{
		{tokAnd, "AND"}, {tokOr, "OR"},
	})
}

func mult() opParser {
	return operatorOneOf([]operatorCase{
		{tokAsterisk, "*"}, {tokDivide, "/"},
	})
}

func sum() opParser {
	return operatorOneOf([]operatorCase{
		{tokPlus, "+"}, {tokMinus, "-"},
	})
}

func parseExpression() expressionParser {
	return chainl(
		chainl(
			chainl(
				chainl(
					parseTermExpression(),
					makeBinaryExpression(),
					mult(),
				),
				makeBinaryExpression(),
				sum(),
			),
			makeBinaryExpression(),
			comparison(),
		),
		makeBinaryExpression(),
		logical(),
	)
}

func parseTerm(nodify nodifyExpression) parserFn {
	return oneOf([]parserFn{
		requiredToken(tokIdentifier, func(tokens []item) {
			nodify(&Ident{Value: tokens[0].text})
		}),
		requiredToken(tokString, func(tokens []item) {
			text := tokens[0].text
			nodify(&BasicLiteral{Value: text[1 : len(text)-1], TokenType: tokString})
		}),
		requiredToken(tokNumber, func(tokens []item) {
			nodify(&BasicLiteral{Value: tokens[0].text, TokenType: tokNumber})
		}),
		requiredToken(tokBoolean, func(tokens []item) {
			nodify(&BasicLiteral{Value: tokens[0].text, TokenType: tokBoolean})
		}),
		requiredToken(tokNull, func(tokens []item) {
			nodify(&BasicLiteral{Value: "", TokenType: tokNull})
		}),
	}, nil)
}

// ---- Token-level helpers ----

func optionalToken(expected Token) parserFn {
	return func(s *scanner) (bool, interface{}) {
		if s.peek().token == expected {
			s.next()
		}
		return true, nil
	}
}

// requiredToken matches the next significant token against expected,
// skipping a single pending whitespace token first (the lexer never
// emits two whitespace tokens in a row). Matching tokWhiteSpace itself
// bypasses the skip, since that's how callers require a mandatory
// separator between two tokens with no other delimiter between them.
func requiredToken(expected Token, nodify nodify) parserFn {
	return required(func(s *scanner) (bool, interface{}) {
		if expected != tokWhiteSpace && s.peek().token == tokWhiteSpace {
			s.next()
		}
		if s.next().token == expected {
			return true, nil
		}
		return false, nil
	}, nodify)
}

func parens(inner parserFn) parserFn {
	return allX(
		requiredToken(tokOpenParen, nil),
		inner,
		optionalToken(tokWhiteSpace),
		requiredToken(tokCloseParen, nil),
	)
}

func commaSeparated(p parserFn) parserFn {
	return allX(optionalToken(tokWhiteSpace), separatedBy1(commaSeparator, p), optionalToken(tokWhiteSpace))
}

var commaSeparator = allX(optionalToken(tokWhiteSpace), requiredToken(tokComma, nil), optionalToken(tokWhiteSpace))

func keyword(t Token) parserFn {
	return allX(optionalToken(tokWhiteSpace), requiredToken(t, nil))
}

func makeExpressionParser(nodify nodifyExpression) parserFn {
	return func(s *scanner) (bool, interface{}) {
		success, expr := parseExpression()(s)
		if success {
			nodify(expr)
		}
		return success, expr
	}
}
