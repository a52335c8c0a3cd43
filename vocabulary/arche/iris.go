package arche

// Namespace is the base IRI prefix for ARCHE schema terms.
const Namespace = "https://vocabs.acdh.oeaw.ac.at/schema#"

// RDFType is the rdf:type predicate IRI.
const RDFType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

// Property IRIs used by the ordered-sequence resolution and the IIIF
// output builders.
const (
	// HasIdentifier lists the alternative identifiers of a resource.
	// The requested identifier is matched against these values.
	HasIdentifier = Namespace + "hasIdentifier"

	// HasTitle is the human-readable, possibly multilingual label.
	HasTitle = Namespace + "hasTitle"

	// HasFormat is the MIME type of a resource's binary payload.
	HasFormat = Namespace + "hasFormat"

	// HasNextItem links a resource to its successor in an ordered
	// sibling chain (or a collection to the chain head).
	HasNextItem = Namespace + "hasNextItem"

	// IsPartOf links a resource to its parent collection. Chain links
	// only count when both ends share the same parent.
	IsPartOf = Namespace + "isPartOf"

	// HasPixelWidth and HasPixelHeight carry image dimensions when the
	// repository knows them; otherwise they may be backfilled from the
	// image service's info.json.
	HasPixelWidth  = Namespace + "hasPixelWidth"
	HasPixelHeight = Namespace + "hasPixelHeight"

	// HasCustomIiifManifest points at an externally hosted, pre-built
	// manifest that replaces the generated one.
	HasCustomIiifManifest = Namespace + "hasCustomIiifManifest"
)

// Class IRIs relevant for chain anchoring and collection output.
const (
	// ClassCollection marks an ordered collection of resources.
	ClassCollection = Namespace + "Collection"

	// ClassTopCollection marks a root-level collection.
	ClassTopCollection = Namespace + "TopCollection"
)
