package iiif

import (
	"context"
	"net/url"

	"github.com/acdh-oeaw/arche-iiif/graph"
)

type collectionItem struct {
	ID    string       `json:"@id"`
	Type  string       `json:"@type"`
	Label []labelValue `json:"label"`
}

type collectionDoc struct {
	Context string           `json:"@context"`
	ID      string           `json:"@id"`
	Type    string           `json:"@type"`
	Label   []labelValue     `json:"label"`
	Items   []collectionItem `json:"items"`
}

// collection answers mode=collection. The same custom-manifest
// passthrough applies as for manifests. Otherwise the items enumerate, in
// chain order, one Collection entry per chain member typed as collection
// and exactly one Manifest entry at the position of the first member that
// is not.
func (r *Resource) collection(ctx context.Context, req Request, first, collectionRes graph.IRI) (*Output, error) {
	if out, ok, err := r.customManifest(ctx, collectionRes); ok || err != nil {
		return out, err
	}

	nodes, err := r.chain(first, collectionRes)
	if err != nil {
		return nil, err
	}

	items := []collectionItem{}
	manifestIncluded := false
	for _, sbj := range nodes {
		if r.graph.Any(sbj, r.schema.RDFType, r.schema.CollectionClass) {
			items = append(items, collectionItem{
				ID:    r.selfLink(string(sbj), ModeCollection),
				Type:  "sc:Collection",
				Label: r.labelsOf(sbj),
			})
			continue
		}
		if manifestIncluded {
			continue
		}
		manifestIncluded = true
		items = append(items, collectionItem{
			ID:    r.selfLink(string(collectionRes), ModeManifest),
			Type:  "sc:Manifest",
			Label: r.labelsOf(collectionRes),
		})
	}

	doc := collectionDoc{
		Context: presentationContext,
		ID:      r.cfg.BaseURL + "?" + req.RawQuery,
		Type:    "sc:Collection",
		Label:   r.labelsOf(collectionRes),
		Items:   items,
	}

	body, err := marshalJSON(doc)
	if err != nil {
		return nil, err
	}
	return r.jsonOutput(body), nil
}

// selfLink builds a recursive request URL against this service.
func (r *Resource) selfLink(id string, mode Mode) string {
	q := url.Values{}
	q.Set("id", id)
	q.Set("mode", string(mode))
	return r.cfg.BaseURL + "?" + q.Encode()
}
