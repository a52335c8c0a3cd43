// Package repo is the client for the repository's metadata search
// endpoint. Given a resource identifier it fetches the RDF description of
// the resource and of everything reachable over the ordering properties,
// already filtered to the predicates the IIIF builders read.
//
// The client only fetches; all interpretation of the returned graph
// happens in the iiif package.
package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/acdh-oeaw/arche-iiif/graph"
	"github.com/acdh-oeaw/arche-iiif/iiif"
)

// ErrNotFound is returned when the search response contains no subject
// carrying the requested identifier.
var ErrNotFound = errors.New("resource not found in repository response")

// ErrNamespace is returned for identifiers outside the allowed
// namespaces.
var ErrNamespace = errors.New("identifier out of allowed namespaces")

// metadataModeFull asks the repository to include every relative
// reachable over the parent property, unbounded in both directions.
// metadataModeNone fetches the resource itself only (mode=image needs no
// chain facts at all).
const (
	metadataModeFull = "99999_99999_0_0"
	metadataModeNone = "0_0_0_0"
)

// Client fetches resource graphs from a repository instance.
type Client struct {
	baseURL     string
	allowedNmsp []string
	schema      iiif.Schema
	httpClient  *http.Client
	logger      *slog.Logger
}

// New creates a repository client. baseURL is the repository API root
// (e.g. "https://arche.acdh.oeaw.ac.at/api"). allowedNmsp restricts which
// identifier namespaces may be resolved; empty allows all.
func New(baseURL string, allowedNmsp []string, schema iiif.Schema, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		allowedNmsp: allowedNmsp,
		schema:      schema,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

// CheckNamespace verifies the identifier against the allow-list.
func (c *Client) CheckNamespace(id string) error {
	if len(c.allowedNmsp) == 0 {
		return nil
	}
	for _, nmsp := range c.allowedNmsp {
		if strings.HasPrefix(id, nmsp) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNamespace, id)
}

// FetchGraph retrieves the metadata graph for the given identifier and
// locates the resolved node within it. For mode=image only the resource
// itself is fetched; chain modes pull the full relative closure plus
// labels for manifest and collection output.
func (c *Client) FetchGraph(ctx context.Context, id string, mode iiif.Mode) (*graph.Graph, graph.IRI, error) {
	if err := c.CheckNamespace(id); err != nil {
		return nil, "", err
	}

	q := url.Values{}
	q.Set("property[]", string(c.schema.ID))
	q.Set("value[]", id)
	q.Set("readMode", "resource")
	switch mode {
	case iiif.ModeImage:
		q.Set("metadataMode", metadataModeNone)
	default:
		q.Set("metadataMode", metadataModeFull)
		q.Set("metadataParentProperty", string(c.schema.NextItem))
	}
	for _, p := range c.resourceProperties(mode) {
		q.Add("resourceProperties[]", string(p))
		q.Add("relativesProperties[]", string(p))
	}

	reqURL := c.baseURL + "/search?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/n-triples")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("repository search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("repository search: unexpected status %d", resp.StatusCode)
	}

	g, err := graph.Decode(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("parse repository response: %w", err)
	}
	c.logger.Debug("fetched resource graph",
		"id", id, "triples", g.Len(), "elapsed", time.Since(started))

	node, err := c.resolve(g, id)
	if err != nil {
		return nil, "", err
	}
	return g, node, nil
}

// resolve finds the subject whose id property carries the requested
// identifier. Falls back to treating the identifier as the subject URI
// itself when the repository response omits the id facts.
func (c *Client) resolve(g *graph.Graph, id string) (graph.IRI, error) {
	for _, obj := range []graph.Term{graph.IRI(id), graph.NewLiteral(id, "")} {
		if subjects := g.Subjects(c.schema.ID, obj); len(subjects) > 0 {
			return subjects[0], nil
		}
	}
	if g.Any(graph.IRI(id), "", nil) {
		return graph.IRI(id), nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, id)
}

// resourceProperties lists the predicates the IIIF builders read. Labels
// are only needed for manifest and collection output.
func (c *Client) resourceProperties(mode iiif.Mode) []graph.IRI {
	props := []graph.IRI{
		c.schema.NextItem,
		c.schema.Parent,
		c.schema.ID,
		c.schema.Mime,
		c.schema.ImageWidth,
		c.schema.ImageHeight,
		c.schema.RDFType,
		c.schema.CustomManifest,
	}
	switch mode {
	case iiif.ModeManifest, iiif.ModeCollection, iiif.ModeAuto:
		props = append(props, c.schema.Label)
	}
	return props
}
