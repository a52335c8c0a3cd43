package graph

// Term is an RDF term: either an IRI or a Literal.
// The two concrete types are comparable values, so terms can be used
// as map keys and compared with ==.
type Term interface {
	// Value returns the lexical value: the IRI string for IRIs,
	// the literal value for literals.
	Value() string

	// Equals reports whether two terms are the same RDF term.
	Equals(other Term) bool

	isTerm()
}

// IRI identifies a graph node or predicate. Two nodes are equal iff
// their IRI strings are equal.
type IRI string

func (i IRI) Value() string { return string(i) }

func (i IRI) Equals(other Term) bool {
	o, ok := other.(IRI)
	return ok && i == o
}

func (IRI) isTerm() {}

// Literal is a literal value with an optional language tag and datatype IRI.
type Literal struct {
	Val      string
	Lang     string
	Datatype string
}

func (l Literal) Value() string { return l.Val }

func (l Literal) Equals(other Term) bool {
	o, ok := other.(Literal)
	return ok && l == o
}

func (Literal) isTerm() {}

// NewLiteral returns a plain literal with the given value and language tag.
func NewLiteral(value, lang string) Literal {
	return Literal{Val: value, Lang: lang}
}
