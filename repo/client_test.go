package repo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acdh-oeaw/arche-iiif/graph"
	"github.com/acdh-oeaw/arche-iiif/iiif"
)

const (
	testID  = "https://id.acdh.oeaw.ac.at/foo/13"
	testURI = "https://arche.example.org/api/13"
)

func testResponse() string {
	return "<" + testURI + "> <https://vocabs.acdh.oeaw.ac.at/schema#hasIdentifier> <" + testID + "> .\n" +
		"<" + testURI + "> <https://vocabs.acdh.oeaw.ac.at/schema#hasFormat> \"image/tiff\" .\n"
}

func newTestServer(t *testing.T, body string, capture *url.Values) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "application/n-triples", r.Header.Get("Accept"))
		if capture != nil {
			*capture = r.URL.Query()
		}
		w.Header().Set("Content-Type", "application/n-triples")
		_, _ = w.Write([]byte(body))
	}))
}

func TestCheckNamespace(t *testing.T) {
	t.Run("empty allow-list allows all", func(t *testing.T) {
		c := New("https://arche.example.org/api", nil, iiif.DefaultSchema(), nil)
		assert.NoError(t, c.CheckNamespace("https://anything/at/all"))
	})

	t.Run("prefix match", func(t *testing.T) {
		c := New("https://arche.example.org/api",
			[]string{"https://id.acdh.oeaw.ac.at/", "https://hdl.handle.net/"},
			iiif.DefaultSchema(), nil)
		assert.NoError(t, c.CheckNamespace(testID))
		err := c.CheckNamespace("https://elsewhere.org/x")
		assert.ErrorIs(t, err, ErrNamespace)
	})
}

func TestFetchGraph(t *testing.T) {
	t.Run("resolves node by identifier fact", func(t *testing.T) {
		var query url.Values
		srv := newTestServer(t, testResponse(), &query)
		defer srv.Close()

		c := New(srv.URL, nil, iiif.DefaultSchema(), nil)
		g, node, err := c.FetchGraph(context.Background(), testID, iiif.ModeManifest)
		require.NoError(t, err)
		assert.Equal(t, graph.IRI(testURI), node)
		assert.Equal(t, 2, g.Len())

		assert.Equal(t, testID, query.Get("value[]"))
		assert.Equal(t, "resource", query.Get("readMode"))
		assert.Equal(t, "99999_99999_0_0", query.Get("metadataMode"))
		assert.NotEmpty(t, query.Get("metadataParentProperty"))
		assert.Contains(t, query["resourceProperties[]"], string(iiif.DefaultSchema().Label))
	})

	t.Run("image mode fetches the resource only", func(t *testing.T) {
		var query url.Values
		srv := newTestServer(t, testResponse(), &query)
		defer srv.Close()

		c := New(srv.URL, nil, iiif.DefaultSchema(), nil)
		_, _, err := c.FetchGraph(context.Background(), testID, iiif.ModeImage)
		require.NoError(t, err)
		assert.Equal(t, "0_0_0_0", query.Get("metadataMode"))
		assert.Empty(t, query.Get("metadataParentProperty"))
		assert.NotContains(t, query["resourceProperties[]"], string(iiif.DefaultSchema().Label))
	})

	t.Run("identifier as subject URI fallback", func(t *testing.T) {
		body := "<" + testURI + "> <https://vocabs.acdh.oeaw.ac.at/schema#hasFormat> \"image/tiff\" .\n"
		srv := newTestServer(t, body, nil)
		defer srv.Close()

		c := New(srv.URL, nil, iiif.DefaultSchema(), nil)
		_, node, err := c.FetchGraph(context.Background(), testURI, iiif.ModeImage)
		require.NoError(t, err)
		assert.Equal(t, graph.IRI(testURI), node)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		srv := newTestServer(t, testResponse(), nil)
		defer srv.Close()

		c := New(srv.URL, nil, iiif.DefaultSchema(), nil)
		_, _, err := c.FetchGraph(context.Background(), "https://id.acdh.oeaw.ac.at/other", iiif.ModeImage)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("namespace rejected before any request", func(t *testing.T) {
		called := false
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer srv.Close()

		c := New(srv.URL, []string{"https://id.acdh.oeaw.ac.at/"}, iiif.DefaultSchema(), nil)
		_, _, err := c.FetchGraph(context.Background(), "https://elsewhere.org/x", iiif.ModeImage)
		assert.ErrorIs(t, err, ErrNamespace)
		assert.False(t, called)
	})

	t.Run("upstream error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := New(srv.URL, nil, iiif.DefaultSchema(), nil)
		_, _, err := c.FetchGraph(context.Background(), testID, iiif.ModeImage)
		assert.Error(t, err)
	})

	t.Run("malformed response body", func(t *testing.T) {
		srv := newTestServer(t, "this is not n-triples\n", nil)
		defer srv.Close()

		c := New(srv.URL, nil, iiif.DefaultSchema(), nil)
		_, _, err := c.FetchGraph(context.Background(), testID, iiif.ModeImage)
		assert.Error(t, err)
	})
}
