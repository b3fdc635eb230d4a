/*
Copyright (C) 2026  Ferrite Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package resp

import (
	"errors"

	packrat "github.com/launix-de/go-packrat/v2"
)

// inline command grammar: a line of shell-like whitespace-separated
// tokens, each either bare (no internal whitespace or quotes), single
// quoted (literal, no escapes), or double quoted (C-style backslash
// escapes for \" \\ \n \r \t). Mirrors the quoting rules real Redis
// clients rely on for the inline protocol form.
var (
	barewordParser = packrat.NewRegexParser(`[^'"\s]+`, false, true)
	dquotedParser  = packrat.NewRegexParser(`"(\\.|[^"\\])*"`, false, true)
	squotedParser  = packrat.NewRegexParser(`'[^']*'`, false, true)
	tokenParser    = packrat.NewOrParser(dquotedParser, squotedParser, barewordParser)
	lineParser     = packrat.NewKleeneParser(tokenParser, packrat.NewEmptyParser())
)

var errUnbalancedQuotes = errors.New("unbalanced quotes in inline request")

// splitInline tokenizes one inline-protocol command line the way a
// shell would: bareword/double/single-quoted tokens separated by
// whitespace, returning the unquoted token strings in order.
func splitInline(line string) ([]string, error) {
	scanner := packrat.NewScanner(line, packrat.SkipWhitespaceRegex)
	node, err := packrat.Parse(lineParser, scanner)
	if err != nil {
		return nil, errUnbalancedQuotes
	}
	out := make([]string, 0, len(node.Children))
	for _, child := range node.Children {
		tok, err := unquoteToken(child.Matched)
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}

func unquoteToken(raw string) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	switch raw[0] {
	case '\'':
		if len(raw) < 2 || raw[len(raw)-1] != '\'' {
			return "", errUnbalancedQuotes
		}
		return raw[1 : len(raw)-1], nil
	case '"':
		if len(raw) < 2 || raw[len(raw)-1] != '"' {
			return "", errUnbalancedQuotes
		}
		return unescapeDouble(raw[1 : len(raw)-1])
	default:
		return raw, nil
	}
}

func unescapeDouble(s string) (string, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(s) {
			return "", errUnbalancedQuotes
		}
		switch s[i] {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case '"':
			out = append(out, '"')
		case '\\':
			out = append(out, '\\')
		default:
			out = append(out, s[i])
		}
	}
	return string(out), nil
}
