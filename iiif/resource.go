// Package iiif turns the RDF description of a repository resource and its
// ordered siblings into IIIF Presentation/Image API artifacts.
//
// The entry point is Resource.Output, which dispatches on the requested
// mode: an image-service redirect, an ordered image list, a Presentation
// API v2 Manifest, a Collection, or automatic manifest/collection
// detection. All chain-based outputs share the same two-step resolution:
// find the collection anchor and the chain head (resolveOrder), then
// enumerate siblings by repeatedly picking the next-item successor scoped
// to that anchor (next).
package iiif

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/acdh-oeaw/arche-iiif/graph"
)

// Mode selects the output artifact.
type Mode string

const (
	ModeImage      Mode = "image"
	ModeImages     Mode = "images"
	ModeManifest   Mode = "manifest"
	ModeCollection Mode = "collection"
	ModeAuto       Mode = "auto"
)

// ParseMode validates a caller-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeImage, ModeImages, ModeManifest, ModeCollection, ModeAuto:
		return m, nil
	default:
		return "", &StatusError{
			Status: http.StatusBadRequest,
			Err:    fmt.Errorf("%w: %q", ErrUnknownMode, s),
		}
	}
}

// Config carries the deployment settings the output builders need.
type Config struct {
	// IIIFServiceBase is the URL prefix of the image service's info.json
	// documents, including a trailing slash.
	IIIFServiceBase string

	// BaseURL is the public URL of this service, used as the manifest's
	// own @id and for the links inside collection output.
	BaseURL string

	// Profile is the default IIIF Image API profile advertised in the
	// nested service descriptors.
	Profile string

	// FetchDimensions enables the best-effort info.json lookup for
	// canvases whose width, height or profile is not in the graph.
	FetchDimensions bool

	// DefaultCustomManifest is the placeholder value a custom-manifest
	// fact must differ from to trigger the verbatim passthrough.
	DefaultCustomManifest string

	// HTTPClient performs the best-effort dimension lookups and the
	// custom-manifest fetch. Left nil, a client with a short timeout
	// is used.
	HTTPClient *http.Client
}

// Request is the per-call context: the identifier exactly as the caller
// supplied it (which may be an alias of the resolved node's URI), the
// requested mode, and the original query string echoed into manifest IDs.
type Request struct {
	ID       string
	Mode     Mode
	RawQuery string
}

// Output is the computed response payload. The transport wrapper maps it
// onto HTTP status, headers and body.
type Output struct {
	Status      int
	ContentType string
	Headers     map[string]string
	Body        []byte

	// Touched lists every identifier that participated in building this
	// output: the resolved node, the chain head, the collection anchor
	// and every chain member, each expanded to its id property values.
	// The response cache uses it to alias all of them to one entry.
	Touched []string
}

// Resource binds one request's graph to the resolution algorithms. It is
// constructed per request and never shared: the touched-identifier set
// accumulates as the resolvers run.
type Resource struct {
	graph  *graph.Graph
	node   graph.IRI
	schema Schema
	cfg    Config
	logger *slog.Logger

	touched     map[string]struct{}
	touchedSeq  []string
	chainLogged bool
}

// New creates a Resource for the resolved node within g.
func New(g *graph.Graph, node graph.IRI, schema Schema, cfg Config, logger *slog.Logger) *Resource {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resource{
		graph:   g,
		node:    node,
		schema:  schema,
		cfg:     cfg,
		logger:  logger,
		touched: make(map[string]struct{}),
	}
	r.touch(node)
	return r
}

// Output builds the response payload for the requested mode.
func (r *Resource) Output(ctx context.Context, req Request) (*Output, error) {
	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}

	if mode == ModeImage {
		return r.imageRedirect(), nil
	}

	first, collection, err := r.resolveOrder()
	if err != nil {
		return nil, err
	}
	r.logger.Debug("resolved order",
		"resolved", r.node, "collection", collection, "first", first)

	if mode == ModeAuto {
		mode, err = r.guessMode(first, collection)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("guessed mode", "mode", mode)
	}

	switch mode {
	case ModeImages:
		return r.imageList(req, first, collection)
	case ModeManifest:
		return r.manifest(ctx, req, first, collection)
	case ModeCollection:
		return r.collection(ctx, req, first, collection)
	default:
		// ParseMode already rejected everything else.
		panic("unreachable mode " + string(mode))
	}
}

// resolveOrder determines the collection anchor and the head of the
// ordered sibling chain for the resolved node.
//
// A resource typed as (top-)collection anchors its own chain and points
// at the head directly. Any other resource anchors to its declared
// parent; the head is found by walking the next-item relation backwards
// to a fixed point, re-scanning the full predicate index each pass until
// no predecessor within the same collection remains.
func (r *Resource) resolveOrder() (first, collection graph.IRI, err error) {
	first = r.node
	collection = r.node

	if r.isCollection(r.node) {
		first, err = r.collectionHead(collection)
		if err != nil {
			return "", "", err
		}
	} else {
		parent, ok := r.graph.ObjectValue(r.node, r.schema.Parent)
		if !ok {
			return "", "", badRequest(ErrMissingParent, "resolve order for %s", r.node)
		}
		parentIRI, ok := parent.(graph.IRI)
		if !ok {
			return "", "", badRequest(ErrMissingParent, "parent of %s is a literal", r.node)
		}
		collection = parentIRI

		visited := map[graph.IRI]struct{}{first: {}}
		for changed := true; changed; {
			changed = false
			for _, sbj := range r.graph.Subjects(r.schema.NextItem, first) {
				if sbj == first {
					continue
				}
				if !r.graph.Any(sbj, r.schema.Parent, collection) {
					continue
				}
				if _, seen := visited[sbj]; seen {
					return "", "", badRequest(ErrCyclicChain, "backward walk from %s", r.node)
				}
				visited[sbj] = struct{}{}
				first = sbj
				changed = true
			}
		}
	}

	r.touch(first)
	r.touch(collection)
	return first, collection, nil
}

// collectionHead finds the chain head a collection anchor points at: the
// next-item object whose parent is the collection itself. With malformed
// data several objects may qualify; the last one in insertion order wins
// and a diagnostic is logged.
func (r *Resource) collectionHead(collection graph.IRI) (graph.IRI, error) {
	var head graph.IRI
	matches := 0
	for _, obj := range r.graph.Objects(collection, r.schema.NextItem) {
		n, ok := obj.(graph.IRI)
		if !ok {
			continue
		}
		if r.graph.Any(n, r.schema.Parent, collection) {
			head = n
			matches++
		}
	}
	switch {
	case matches == 0:
		return "", badRequest(ErrUnorderedCollection, "collection %s", collection)
	case matches > 1:
		r.logger.Warn("multiple chain head candidates, keeping the last one",
			"collection", collection, "candidates", matches, "chosen", head)
	}
	return head, nil
}

// next returns the successor of sbj within the chain scoped to the
// collection anchor: the next-item object sharing the anchor as parent.
// Duplicate candidates indicate malformed data; the last one in insertion
// order wins, matching collectionHead. The chosen successor joins the
// touched set.
func (r *Resource) next(sbj, collection graph.IRI) (graph.IRI, bool) {
	var nxt graph.IRI
	matches := 0
	for _, obj := range r.graph.Objects(sbj, r.schema.NextItem) {
		n, ok := obj.(graph.IRI)
		if !ok {
			continue
		}
		if r.graph.Any(n, r.schema.Parent, collection) {
			nxt = n
			matches++
		}
	}
	if matches == 0 {
		return "", false
	}
	if matches > 1 && !r.chainLogged {
		r.chainLogged = true
		r.logger.Warn("multiple successor candidates, keeping the last one",
			"node", sbj, "candidates", matches, "chosen", nxt)
	}
	r.touch(nxt)
	return nxt, true
}

// chain enumerates the sibling chain starting at first. A revisited node
// means the next-item relation is cyclic and aborts the request instead
// of looping forever.
func (r *Resource) chain(first, collection graph.IRI) ([]graph.IRI, error) {
	visited := make(map[graph.IRI]struct{})
	var nodes []graph.IRI
	for sbj, ok := first, true; ok; {
		if _, seen := visited[sbj]; seen {
			return nil, badRequest(ErrCyclicChain, "forward walk from %s", first)
		}
		visited[sbj] = struct{}{}
		nodes = append(nodes, sbj)
		sbj, ok = r.next(sbj, collection)
	}
	return nodes, nil
}

// guessMode picks manifest or collection when the caller asked for auto:
// a plain resource always renders as manifest; a collection renders as
// collection iff its chain contains at least one sub-collection.
func (r *Resource) guessMode(first, collection graph.IRI) (Mode, error) {
	if !r.isCollection(r.node) {
		return ModeManifest, nil
	}
	nodes, err := r.chain(first, collection)
	if err != nil {
		return "", err
	}
	for _, n := range nodes {
		if r.graph.Any(n, r.schema.RDFType, r.schema.CollectionClass) {
			return ModeCollection, nil
		}
	}
	return ModeManifest, nil
}

func (r *Resource) isCollection(node graph.IRI) bool {
	return r.graph.Any(node, r.schema.RDFType, r.schema.CollectionClass) ||
		r.graph.Any(node, r.schema.RDFType, r.schema.TopCollectionClass)
}

// imageRedirect answers mode=image: a 302 to the image service's
// info.json for the resolved node. No chain resolution happens.
func (r *Resource) imageRedirect() *Output {
	location := r.imageInfoURL(string(r.node))
	return &Output{
		Status:      http.StatusFound,
		ContentType: "text/plain",
		Headers:     map[string]string{"Location": location},
		Body:        []byte("Redirect to " + location),
		Touched:     r.touchedIDs(),
	}
}

// imagesPayload is the mode=images response body.
type imagesPayload struct {
	Index  *int     `json:"index"`
	Images []string `json:"images"`
}

// imageList answers mode=images: the chain filtered to image resources,
// as info.json URLs, plus the position of the node whose identifiers
// contain the originally requested one.
func (r *Resource) imageList(req Request, first, collection graph.IRI) (*Output, error) {
	nodes, err := r.chain(first, collection)
	if err != nil {
		return nil, err
	}

	payload := imagesPayload{Images: []string{}}
	for _, sbj := range nodes {
		if !strings.HasPrefix(r.mimeOf(sbj), "image/") {
			continue
		}
		if r.identifiedBy(sbj, req.ID) && payload.Index == nil {
			idx := len(payload.Images)
			payload.Index = &idx
		}
		payload.Images = append(payload.Images, r.imageInfoURL(string(sbj)))
	}

	body, err := marshalJSON(payload)
	if err != nil {
		return nil, err
	}
	return r.jsonOutput(body), nil
}

// identifiedBy reports whether reqID names sbj: either as its URI or as
// one of its id property values.
func (r *Resource) identifiedBy(sbj graph.IRI, reqID string) bool {
	if string(sbj) == reqID {
		return true
	}
	for _, id := range r.graph.Objects(sbj, r.schema.ID) {
		if id.Value() == reqID {
			return true
		}
	}
	return false
}

func (r *Resource) mimeOf(sbj graph.IRI) string {
	mime, ok := r.graph.ObjectValue(sbj, r.schema.Mime)
	if !ok {
		return ""
	}
	return mime.Value()
}

// labelsOf serializes a node's label literals in the IIIF value/language
// form.
func (r *Resource) labelsOf(sbj graph.IRI) []labelValue {
	labels := []labelValue{}
	for _, obj := range r.graph.Objects(sbj, r.schema.Label) {
		lit, ok := obj.(graph.Literal)
		if !ok {
			continue
		}
		labels = append(labels, labelValue{Value: lit.Val, Language: lit.Lang})
	}
	return labels
}

// imageInfoURL derives the image service's info.json URL from a resource
// URI: the configured base plus the URI's last path segment.
func (r *Resource) imageInfoURL(uri string) string {
	seg := uri
	if i := strings.LastIndexByte(uri, '/'); i >= 0 {
		seg = uri[i+1:]
	}
	return r.cfg.IIIFServiceBase + seg + "/info.json"
}

func (r *Resource) jsonOutput(body []byte) *Output {
	return &Output{
		Status:      http.StatusOK,
		ContentType: "application/json",
		Body:        body,
		Touched:     r.touchedIDs(),
	}
}

// touch records a node as part of the answer to the original request,
// expanding it to all of its id property values.
func (r *Resource) touch(node graph.IRI) {
	add := func(id string) {
		if _, ok := r.touched[id]; ok {
			return
		}
		r.touched[id] = struct{}{}
		r.touchedSeq = append(r.touchedSeq, id)
	}
	add(string(node))
	for _, id := range r.graph.Objects(node, r.schema.ID) {
		add(id.Value())
	}
}

func (r *Resource) touchedIDs() []string {
	out := make([]string, len(r.touchedSeq))
	copy(out, r.touchedSeq)
	return out
}

func (r *Resource) httpClient() *http.Client {
	if r.cfg.HTTPClient != nil {
		return r.cfg.HTTPClient
	}
	return &http.Client{Timeout: 5 * time.Second}
}

// marshalJSON marshals without HTML escaping so the many URLs in IIIF
// documents stay readable.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
