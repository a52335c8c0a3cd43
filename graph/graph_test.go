package graph

import (
	"testing"
)

const (
	subj = IRI("https://repo/1")
	pred = IRI("https://repo/schema#p")
	obj  = IRI("https://repo/2")
)

func TestTermEquality(t *testing.T) {
	t.Run("IRIs compare by string", func(t *testing.T) {
		if !IRI("https://a").Equals(IRI("https://a")) {
			t.Error("equal IRIs reported unequal")
		}
		if IRI("https://a").Equals(IRI("https://b")) {
			t.Error("different IRIs reported equal")
		}
	})

	t.Run("literals compare by value, language and datatype", func(t *testing.T) {
		if !NewLiteral("x", "en").Equals(NewLiteral("x", "en")) {
			t.Error("equal literals reported unequal")
		}
		if NewLiteral("x", "en").Equals(NewLiteral("x", "de")) {
			t.Error("literals with different languages reported equal")
		}
	})

	t.Run("IRI never equals literal", func(t *testing.T) {
		if IRI("x").Equals(NewLiteral("x", "")) {
			t.Error("IRI reported equal to literal with same value")
		}
	})
}

func TestGraphQueries(t *testing.T) {
	g := New()
	g.Add(Triple{Subject: subj, Predicate: pred, Object: obj})
	g.Add(Triple{Subject: subj, Predicate: pred, Object: NewLiteral("label", "en")})
	g.Add(Triple{Subject: obj, Predicate: pred, Object: subj})

	t.Run("Objects preserves insertion order", func(t *testing.T) {
		objects := g.Objects(subj, pred)
		if len(objects) != 2 {
			t.Fatalf("expected 2 objects, got %d", len(objects))
		}
		if !objects[0].Equals(obj) {
			t.Errorf("first object = %v, want %v", objects[0], obj)
		}
		if !objects[1].Equals(NewLiteral("label", "en")) {
			t.Errorf("second object = %v", objects[1])
		}
	})

	t.Run("ObjectValue returns the first match", func(t *testing.T) {
		first, ok := g.ObjectValue(subj, pred)
		if !ok {
			t.Fatal("expected a match")
		}
		if !first.Equals(obj) {
			t.Errorf("ObjectValue = %v, want %v", first, obj)
		}
		if _, ok := g.ObjectValue(subj, IRI("https://missing")); ok {
			t.Error("expected no match for unknown predicate")
		}
	})

	t.Run("Subjects finds and deduplicates", func(t *testing.T) {
		g2 := New()
		g2.Add(Triple{Subject: subj, Predicate: pred, Object: obj})
		g2.Add(Triple{Subject: subj, Predicate: pred, Object: obj})
		subjects := g2.Subjects(pred, obj)
		if len(subjects) != 1 || subjects[0] != subj {
			t.Errorf("Subjects = %v, want [%s]", subjects, subj)
		}
	})

	t.Run("Any with wildcards", func(t *testing.T) {
		cases := []struct {
			name    string
			subject IRI
			pred    IRI
			object  Term
			want    bool
		}{
			{"fully specified", subj, pred, obj, true},
			{"object wildcard", subj, pred, nil, true},
			{"subject wildcard", "", pred, obj, true},
			{"all wildcards", "", "", nil, true},
			{"no match", subj, pred, IRI("https://missing"), false},
			{"unknown subject", IRI("https://missing"), pred, nil, false},
		}
		for _, tc := range cases {
			if got := g.Any(tc.subject, tc.pred, tc.object); got != tc.want {
				t.Errorf("%s: Any = %v, want %v", tc.name, got, tc.want)
			}
			if got := g.None(tc.subject, tc.pred, tc.object); got == tc.want {
				t.Errorf("%s: None = %v, want %v", tc.name, got, !tc.want)
			}
		}
	})

	t.Run("empty graph matches nothing", func(t *testing.T) {
		empty := New()
		if empty.Any("", "", nil) {
			t.Error("empty graph reported a match")
		}
		if empty.Len() != 0 {
			t.Errorf("Len = %d, want 0", empty.Len())
		}
	})
}
