package iiif

import (
	"fmt"

	"github.com/acdh-oeaw/arche-iiif/graph"
	"github.com/acdh-oeaw/arche-iiif/vocabulary/arche"
)

// Schema maps the abstract property roles the resolvers operate on to the
// predicate IRIs actually used by the backing repository. It is resolved
// once at construction and immutable for the lifetime of a request.
type Schema struct {
	ID             graph.IRI `yaml:"id"`
	Label          graph.IRI `yaml:"label"`
	Mime           graph.IRI `yaml:"mime"`
	NextItem       graph.IRI `yaml:"nextItem"`
	Parent         graph.IRI `yaml:"parent"`
	ImageWidth     graph.IRI `yaml:"imageWidth"`
	ImageHeight    graph.IRI `yaml:"imageHeight"`
	RDFType        graph.IRI `yaml:"rdfType"`
	CustomManifest graph.IRI `yaml:"customManifest"`

	CollectionClass    graph.IRI `yaml:"collectionClass"`
	TopCollectionClass graph.IRI `yaml:"topCollectionClass"`
}

// DefaultSchema returns the ARCHE repository schema.
func DefaultSchema() Schema {
	return Schema{
		ID:                 arche.HasIdentifier,
		Label:              arche.HasTitle,
		Mime:               arche.HasFormat,
		NextItem:           arche.HasNextItem,
		Parent:             arche.IsPartOf,
		ImageWidth:         arche.HasPixelWidth,
		ImageHeight:        arche.HasPixelHeight,
		RDFType:            arche.RDFType,
		CustomManifest:     arche.HasCustomIiifManifest,
		CollectionClass:    arche.ClassCollection,
		TopCollectionClass: arche.ClassTopCollection,
	}
}

// Merge overlays the non-empty roles of other onto s.
func (s Schema) Merge(other Schema) Schema {
	merge := func(dst *graph.IRI, src graph.IRI) {
		if src != "" {
			*dst = src
		}
	}
	merge(&s.ID, other.ID)
	merge(&s.Label, other.Label)
	merge(&s.Mime, other.Mime)
	merge(&s.NextItem, other.NextItem)
	merge(&s.Parent, other.Parent)
	merge(&s.ImageWidth, other.ImageWidth)
	merge(&s.ImageHeight, other.ImageHeight)
	merge(&s.RDFType, other.RDFType)
	merge(&s.CustomManifest, other.CustomManifest)
	merge(&s.CollectionClass, other.CollectionClass)
	merge(&s.TopCollectionClass, other.TopCollectionClass)
	return s
}

// Validate checks that every role is bound to a predicate.
func (s Schema) Validate() error {
	roles := map[string]graph.IRI{
		"id":                 s.ID,
		"label":              s.Label,
		"mime":               s.Mime,
		"nextItem":           s.NextItem,
		"parent":             s.Parent,
		"imageWidth":         s.ImageWidth,
		"imageHeight":        s.ImageHeight,
		"rdfType":            s.RDFType,
		"customManifest":     s.CustomManifest,
		"collectionClass":    s.CollectionClass,
		"topCollectionClass": s.TopCollectionClass,
	}
	for role, iri := range roles {
		if iri == "" {
			return fmt.Errorf("schema role %s is not bound to a predicate", role)
		}
	}
	return nil
}
