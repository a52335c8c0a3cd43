package graph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Decode reads an N-Triples document (the repository's wire format,
// application/n-triples) into a new graph. Blank lines and comment lines
// are skipped. Blank node labels are kept verbatim as IRIs with their
// "_:" prefix; the repository never emits them for the properties this
// service asks for, but a stray one must not abort the whole response.
func Decode(r io.Reader) (*Graph, error) {
	g := New()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t, err := parseTripleLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		g.Add(t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read n-triples: %w", err)
	}
	return g, nil
}

// Encode writes the graph as N-Triples, one triple per line, in insertion
// order.
func Encode(w io.Writer, g *Graph) error {
	bw := bufio.NewWriter(w)
	for _, t := range g.Triples() {
		var obj string
		switch o := t.Object.(type) {
		case IRI:
			obj = "<" + string(o) + ">"
		case Literal:
			obj = strconv.Quote(o.Val)
			switch {
			case o.Lang != "":
				obj += "@" + o.Lang
			case o.Datatype != "":
				obj += "^^<" + o.Datatype + ">"
			}
		}
		if _, err := fmt.Fprintf(bw, "<%s> <%s> %s .\n", t.Subject, t.Predicate, obj); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func parseTripleLine(line string) (Triple, error) {
	rest := line

	subject, rest, err := parseResource(rest)
	if err != nil {
		return Triple{}, fmt.Errorf("subject: %w", err)
	}

	rest = strings.TrimLeft(rest, " \t")
	predicate, rest, err := parseIRIRef(rest)
	if err != nil {
		return Triple{}, fmt.Errorf("predicate: %w", err)
	}

	rest = strings.TrimLeft(rest, " \t")
	object, rest, err := parseObject(rest)
	if err != nil {
		return Triple{}, fmt.Errorf("object: %w", err)
	}

	rest = strings.TrimLeft(rest, " \t")
	if !strings.HasPrefix(rest, ".") {
		return Triple{}, fmt.Errorf("missing terminating dot")
	}

	return Triple{Subject: subject, Predicate: IRI(predicate), Object: object}, nil
}

// parseResource accepts an IRI reference or a blank node label.
func parseResource(s string) (IRI, string, error) {
	if strings.HasPrefix(s, "_:") {
		end := strings.IndexAny(s, " \t")
		if end < 0 {
			return "", "", fmt.Errorf("unterminated blank node label")
		}
		return IRI(s[:end]), s[end:], nil
	}
	iri, rest, err := parseIRIRef(s)
	return IRI(iri), rest, err
}

func parseIRIRef(s string) (string, string, error) {
	if !strings.HasPrefix(s, "<") {
		return "", "", fmt.Errorf("expected '<', got %q", truncate(s, 20))
	}
	end := strings.IndexByte(s, '>')
	if end < 0 {
		return "", "", fmt.Errorf("unterminated IRI reference")
	}
	return s[1:end], s[end+1:], nil
}

func parseObject(s string) (Term, string, error) {
	if strings.HasPrefix(s, "<") || strings.HasPrefix(s, "_:") {
		res, rest, err := parseResource(s)
		if err != nil {
			return nil, "", err
		}
		return res, rest, nil
	}
	if !strings.HasPrefix(s, `"`) {
		return nil, "", fmt.Errorf("expected IRI, blank node or literal, got %q", truncate(s, 20))
	}

	value, rest, err := parseQuoted(s)
	if err != nil {
		return nil, "", err
	}

	lit := Literal{Val: value}
	switch {
	case strings.HasPrefix(rest, "@"):
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			end = len(rest)
		}
		lit.Lang = rest[1:end]
		rest = rest[end:]
	case strings.HasPrefix(rest, "^^"):
		var dt string
		dt, rest, err = parseIRIRef(rest[2:])
		if err != nil {
			return nil, "", fmt.Errorf("datatype: %w", err)
		}
		lit.Datatype = dt
	}
	return lit, rest, nil
}

func parseQuoted(s string) (string, string, error) {
	// s starts with the opening quote
	var sb strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		switch c {
		case '"':
			return sb.String(), s[i+1:], nil
		case '\\':
			if i+1 >= len(s) {
				return "", "", fmt.Errorf("truncated escape sequence")
			}
			i++
			switch s[i] {
			case 't':
				sb.WriteByte('\t')
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case '"', '\\':
				sb.WriteByte(s[i])
			case 'u', 'U':
				width := 4
				if s[i] == 'U' {
					width = 8
				}
				if i+width >= len(s) {
					return "", "", fmt.Errorf("truncated \\%c escape", s[i])
				}
				code, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32)
				if err != nil {
					return "", "", fmt.Errorf("invalid \\%c escape: %w", s[i], err)
				}
				sb.WriteRune(rune(code))
				i += width
			default:
				return "", "", fmt.Errorf("unknown escape sequence \\%c", s[i])
			}
		default:
			sb.WriteByte(c)
		}
		i++
	}
	return "", "", fmt.Errorf("unterminated literal")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
