package iiif

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acdh-oeaw/arche-iiif/graph"
)

// mixedGraph extends the base fixture with a sub-collection at the head
// of the chain: 21 (collection) -> 11 -> 13.
func mixedGraph() *graph.Graph {
	s := testSchema()
	g := graph.New()
	g.Add(graph.Triple{Subject: testColl, Predicate: s.RDFType, Object: graph.IRI(s.CollectionClass)})
	g.Add(graph.Triple{Subject: testColl, Predicate: s.NextItem, Object: testSubColl})
	g.Add(graph.Triple{Subject: testColl, Predicate: s.Label, Object: graph.NewLiteral("collection 1", "en")})

	g.Add(graph.Triple{Subject: testSubColl, Predicate: s.Parent, Object: testColl})
	g.Add(graph.Triple{Subject: testSubColl, Predicate: s.RDFType, Object: graph.IRI(s.CollectionClass)})
	g.Add(graph.Triple{Subject: testSubColl, Predicate: s.NextItem, Object: testNode11})
	g.Add(graph.Triple{Subject: testSubColl, Predicate: s.Label, Object: graph.NewLiteral("sub collection", "en")})

	g.Add(graph.Triple{Subject: testNode11, Predicate: s.Parent, Object: testColl})
	g.Add(graph.Triple{Subject: testNode11, Predicate: s.NextItem, Object: testNode13})
	g.Add(graph.Triple{Subject: testNode11, Predicate: s.Mime, Object: graph.NewLiteral(testTiffMime, "")})

	g.Add(graph.Triple{Subject: testNode13, Predicate: s.Parent, Object: testColl})
	g.Add(graph.Triple{Subject: testNode13, Predicate: s.Mime, Object: graph.NewLiteral(testTiffMime, "")})
	return g
}

func decodeCollection(t *testing.T, body []byte) collectionDoc {
	t.Helper()
	var doc collectionDoc
	require.NoError(t, json.Unmarshal(body, &doc))
	return doc
}

func TestCollection(t *testing.T) {
	t.Run("one collection entry and one manifest entry in chain order", func(t *testing.T) {
		r := newTestResource(mixedGraph(), testColl)
		out, err := r.Output(context.Background(), Request{ID: testIDColl, Mode: ModeCollection, RawQuery: "id=1&mode=collection"})
		require.NoError(t, err)
		require.Equal(t, 200, out.Status)

		doc := decodeCollection(t, out.Body)
		assert.Equal(t, "sc:Collection", doc.Type)
		assert.Equal(t, testBaseURL+"?id=1&mode=collection", doc.ID)
		assert.Equal(t, []labelValue{{Value: "collection 1", Language: "en"}}, doc.Label)

		require.Len(t, doc.Items, 2)
		assert.Equal(t, "sc:Collection", doc.Items[0].Type)
		assert.Contains(t, doc.Items[0].ID, "mode=collection")
		assert.Equal(t, []labelValue{{Value: "sub collection", Language: "en"}}, doc.Items[0].Label)

		assert.Equal(t, "sc:Manifest", doc.Items[1].Type)
		assert.Contains(t, doc.Items[1].ID, "mode=manifest")
	})

	t.Run("only the first plain member contributes a manifest entry", func(t *testing.T) {
		r := newTestResource(mixedGraph(), testColl)
		out, err := r.Output(context.Background(), Request{ID: testIDColl, Mode: ModeCollection})
		require.NoError(t, err)

		doc := decodeCollection(t, out.Body)
		manifests := 0
		for _, item := range doc.Items {
			if item.Type == "sc:Manifest" {
				manifests++
			}
		}
		assert.Equal(t, 1, manifests)
	})

	t.Run("auto mode dispatches to collection output", func(t *testing.T) {
		r := newTestResource(mixedGraph(), testColl)
		out, err := r.Output(context.Background(), Request{ID: testIDColl, Mode: ModeAuto})
		require.NoError(t, err)

		doc := decodeCollection(t, out.Body)
		assert.Equal(t, "sc:Collection", doc.Type)
	})

	t.Run("auto mode dispatches to manifest output for plain chains", func(t *testing.T) {
		r := newTestResource(chainGraph(), testNode13)
		out, err := r.Output(context.Background(), Request{ID: testID13, Mode: ModeAuto})
		require.NoError(t, err)

		doc := decodeManifest(t, out.Body)
		assert.Equal(t, "sc:Manifest", doc.Type)
	})
}
