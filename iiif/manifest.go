package iiif

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/acdh-oeaw/arche-iiif/graph"
)

// IIIF context IRIs.
const (
	presentationContext = "http://iiif.io/api/presentation/2/context.json"
	imageContext        = "http://iiif.io/api/image/2/context.json"
)

type labelValue struct {
	Value    string `json:"@value"`
	Language string `json:"@language"`
}

type imageService struct {
	Context string `json:"@context"`
	ID      string `json:"@id"`
	Profile string `json:"profile"`
}

type imageResource struct {
	ID      string       `json:"@id"`
	Type    string       `json:"@type"`
	Service imageService `json:"service"`
	Height  *int         `json:"height"`
	Width   *int         `json:"width"`
	Format  string       `json:"format"`
}

type annotation struct {
	ID         string        `json:"@id"`
	Type       string        `json:"@type"`
	Motivation string        `json:"motivation"`
	On         string        `json:"on"`
	Resource   imageResource `json:"resource"`
}

type canvas struct {
	ID     string       `json:"@id"`
	Type   string       `json:"@type"`
	Label  []labelValue `json:"label"`
	Height *int         `json:"height"`
	Width  *int         `json:"width"`
	Images []annotation `json:"images"`
}

type sequence struct {
	ID       string   `json:"@id"`
	Type     string   `json:"@type"`
	Canvases []canvas `json:"canvases"`
}

type manifestDoc struct {
	Context     string       `json:"@context"`
	ID          string       `json:"@id"`
	Type        string       `json:"@type"`
	Label       []labelValue `json:"label"`
	Description string       `json:"description"`
	Metadata    []any        `json:"metadata"`
	Sequences   []sequence   `json:"sequences"`
}

// manifest answers mode=manifest. A collection anchor declaring a custom
// manifest different from the configured placeholder short-circuits all
// generation: its content is fetched and returned verbatim. Otherwise one
// canvas is built per chain member with an image MIME type.
func (r *Resource) manifest(ctx context.Context, req Request, first, collection graph.IRI) (*Output, error) {
	if out, ok, err := r.customManifest(ctx, collection); ok || err != nil {
		return out, err
	}

	nodes, err := r.chain(first, collection)
	if err != nil {
		return nil, err
	}

	canvases := []canvas{}
	for _, sbj := range nodes {
		mime := r.mimeOf(sbj)
		if !strings.HasPrefix(mime, "image/") {
			continue
		}
		canvases = append(canvases, r.buildCanvas(ctx, sbj, mime))
	}

	doc := manifestDoc{
		Context:     presentationContext,
		ID:          r.cfg.BaseURL + "?" + req.RawQuery,
		Type:        "sc:Manifest",
		Label:       r.labelsOf(collection),
		Description: " ",
		Metadata:    []any{},
		Sequences: []sequence{{
			ID:       string(collection) + "#IIIF-Sequence",
			Type:     "sc:Sequence",
			Canvases: canvases,
		}},
	}

	body, err := marshalJSON(doc)
	if err != nil {
		return nil, err
	}
	return r.jsonOutput(body), nil
}

// buildCanvas renders one chain member as a canvas with a nested Image
// API service descriptor. Missing dimensions are backfilled from the
// image service when the fetch-dimensions policy is enabled; a failed
// lookup leaves them null.
func (r *Resource) buildCanvas(ctx context.Context, sbj graph.IRI, mime string) canvas {
	infoURL := r.imageInfoURL(string(sbj))
	width := r.intValueOf(sbj, r.schema.ImageWidth)
	height := r.intValueOf(sbj, r.schema.ImageHeight)
	profile := r.cfg.Profile

	if r.cfg.FetchDimensions && (width == nil || height == nil || profile == "") {
		if info, ok := r.fetchImageInfo(ctx, infoURL); ok {
			width = &info.Width
			height = &info.Height
			if p := info.firstProfile(); p != "" {
				profile = p
			}
		}
	}

	serviceID := infoURL
	if i := strings.LastIndexByte(infoURL, '/'); i >= 0 {
		serviceID = infoURL[:i]
	}

	return canvas{
		ID:     string(sbj) + "#IIIF-canvas",
		Type:   "sc:Canvas",
		Label:  r.labelsOf(sbj),
		Height: height,
		Width:  width,
		Images: []annotation{{
			ID:         string(sbj) + "#IIIF-annotation",
			Type:       "oa:Annotation",
			Motivation: "sc:painting",
			On:         string(sbj) + "#IIIF-canvas",
			Resource: imageResource{
				ID:   infoURL,
				Type: "dctypes:Image",
				Service: imageService{
					Context: imageContext,
					ID:      serviceID,
					Profile: profile,
				},
				Height: height,
				Width:  width,
				Format: mime,
			},
		}},
	}
}

// customManifest implements the passthrough for anchors carrying a
// custom-manifest fact whose value differs from the configured
// placeholder. A failed fetch is terminal for the request.
func (r *Resource) customManifest(ctx context.Context, collection graph.IRI) (*Output, bool, error) {
	obj, ok := r.graph.ObjectValue(collection, r.schema.CustomManifest)
	if !ok {
		return nil, false, nil
	}
	target := obj.Value()
	if target == "" || target == r.cfg.DefaultCustomManifest {
		return nil, false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, &StatusError{
			Status: http.StatusInternalServerError,
			Err:    fmt.Errorf("%w: %v", ErrUpstreamFetch, err),
		}
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return nil, false, &StatusError{
			Status: http.StatusInternalServerError,
			Err:    fmt.Errorf("%w: %v", ErrUpstreamFetch, err),
		}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false, &StatusError{
			Status: http.StatusInternalServerError,
			Err:    fmt.Errorf("%w: %s returned %d", ErrUpstreamFetch, target, resp.StatusCode),
		}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, &StatusError{
			Status: http.StatusInternalServerError,
			Err:    fmt.Errorf("%w: %v", ErrUpstreamFetch, err),
		}
	}

	r.logger.Info("serving custom manifest", "collection", collection, "source", target)
	return r.jsonOutput(body), true, nil
}

// imageInfo is the subset of an Image API info.json document the canvas
// builder reads.
type imageInfo struct {
	Width   int             `json:"width"`
	Height  int             `json:"height"`
	Profile json.RawMessage `json:"profile"`
}

// firstProfile extracts the leading profile IRI; info.json allows both a
// plain string and a mixed array.
func (i imageInfo) firstProfile() string {
	if len(i.Profile) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(i.Profile, &s); err == nil {
		return s
	}
	var list []json.RawMessage
	if err := json.Unmarshal(i.Profile, &list); err == nil && len(list) > 0 {
		if err := json.Unmarshal(list[0], &s); err == nil {
			return s
		}
	}
	return ""
}

// fetchImageInfo is the best-effort dimension lookup: one attempt, errors
// absorbed.
func (r *Resource) fetchImageInfo(ctx context.Context, infoURL string) (imageInfo, bool) {
	var info imageInfo

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return info, false
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		r.logger.Debug("dimension lookup failed", "url", infoURL, "error", err)
		return info, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		r.logger.Debug("dimension lookup failed", "url", infoURL, "status", resp.StatusCode)
		return info, false
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		r.logger.Debug("dimension lookup returned invalid JSON", "url", infoURL, "error", err)
		return info, false
	}
	return info, true
}

// intValueOf parses a numeric literal property, nil when absent or not a
// number.
func (r *Resource) intValueOf(sbj, predicate graph.IRI) *int {
	obj, ok := r.graph.ObjectValue(sbj, predicate)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(obj.Value())
	if err != nil {
		return nil
	}
	return &n
}
