// Package graph provides an in-memory RDF triple store with the
// predicate-indexed lookups the IIIF resolvers are built on.
//
// Iteration order over matching triples is insertion order. Callers that
// apply a "last match wins" policy over multi-valued properties therefore
// get a stable, reproducible result for a given input serialization.
package graph

// Triple is a single (subject, predicate, object) assertion.
type Triple struct {
	Subject   IRI
	Predicate IRI
	Object    Term
}

// Graph is an append-only collection of triples. The zero value is not
// usable; construct with New.
type Graph struct {
	triples []Triple

	bySubjPred map[spKey][]int
	byPred     map[IRI][]int
}

type spKey struct {
	subject   IRI
	predicate IRI
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		bySubjPred: make(map[spKey][]int),
		byPred:     make(map[IRI][]int),
	}
}

// Add appends a triple. Duplicates are kept; the store never removes facts.
func (g *Graph) Add(t Triple) {
	idx := len(g.triples)
	g.triples = append(g.triples, t)
	k := spKey{t.Subject, t.Predicate}
	g.bySubjPred[k] = append(g.bySubjPred[k], idx)
	g.byPred[t.Predicate] = append(g.byPred[t.Predicate], idx)
}

// Len returns the number of triples in the graph.
func (g *Graph) Len() int { return len(g.triples) }

// Triples returns every triple in insertion order. The returned slice is
// a copy; mutating it does not affect the graph.
func (g *Graph) Triples() []Triple {
	out := make([]Triple, len(g.triples))
	copy(out, g.triples)
	return out
}

// Objects returns all objects of (subject, predicate, ?) triples in
// insertion order. The result may be empty.
func (g *Graph) Objects(subject, predicate IRI) []Term {
	idxs := g.bySubjPred[spKey{subject, predicate}]
	if len(idxs) == 0 {
		return nil
	}
	objects := make([]Term, 0, len(idxs))
	for _, i := range idxs {
		objects = append(objects, g.triples[i].Object)
	}
	return objects
}

// ObjectValue returns the first object of (subject, predicate, ?), if any.
func (g *Graph) ObjectValue(subject, predicate IRI) (Term, bool) {
	idxs := g.bySubjPred[spKey{subject, predicate}]
	if len(idxs) == 0 {
		return nil, false
	}
	return g.triples[idxs[0]].Object, true
}

// Subjects returns the distinct subjects of (?, predicate, object) triples
// in first-occurrence order.
func (g *Graph) Subjects(predicate IRI, object Term) []IRI {
	var subjects []IRI
	seen := make(map[IRI]struct{})
	for _, i := range g.byPred[predicate] {
		t := g.triples[i]
		if !t.Object.Equals(object) {
			continue
		}
		if _, ok := seen[t.Subject]; ok {
			continue
		}
		seen[t.Subject] = struct{}{}
		subjects = append(subjects, t.Subject)
	}
	return subjects
}

// Any reports whether at least one triple matches the pattern. An empty
// subject or predicate and a nil object act as wildcards.
func (g *Graph) Any(subject, predicate IRI, object Term) bool {
	switch {
	case subject != "" && predicate != "":
		for _, i := range g.bySubjPred[spKey{subject, predicate}] {
			if object == nil || g.triples[i].Object.Equals(object) {
				return true
			}
		}
		return false
	case predicate != "":
		for _, i := range g.byPred[predicate] {
			t := g.triples[i]
			if subject != "" && t.Subject != subject {
				continue
			}
			if object == nil || t.Object.Equals(object) {
				return true
			}
		}
		return false
	default:
		for _, t := range g.triples {
			if subject != "" && t.Subject != subject {
				continue
			}
			if object == nil || t.Object.Equals(object) {
				return true
			}
		}
		return false
	}
}

// None reports whether no triple matches the pattern.
func (g *Graph) None(subject, predicate IRI, object Term) bool {
	return !g.Any(subject, predicate, object)
}
