// Package openapi turns an OpenAPI description into one document per
// operation.
package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/normalisers/text"
	"github.com/custodia-labs/mnemo/internal/providers/segment"
)

const (
	// Name is the provider name and the namespace of its documents.
	Name = "openapi"

	// Priority places OpenAPI documents before repository crawls.
	Priority = 5

	// DefaultTimeout bounds fetching a remote description.
	DefaultTimeout = 30 * time.Second
)

var _ driven.Provider = (*Provider)(nil)

// Provider reads an OpenAPI description from a file path or http(s) URL.
type Provider struct {
	source string
	client *http.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient overrides the client used for URL sources.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// New creates an OpenAPI provider for source.
func New(source string, opts ...Option) *Provider {
	p := &Provider{
		source: source,
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name.
func (p *Provider) Name() string { return Name }

// Priority returns the registry priority.
func (p *Provider) Priority() int { return Priority }

// LoadDocuments fetches and parses the description.
func (p *Provider) LoadDocuments(ctx context.Context) ([]domain.Document, error) {
	raw, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(raw), nil
}

func (p *Provider) load(ctx context.Context) ([]byte, error) {
	if !strings.HasPrefix(p.source, "http://") && !strings.HasPrefix(p.source, "https://") {
		raw, err := os.ReadFile(p.source)
		if err != nil {
			return nil, fmt.Errorf("read openapi source: %w", err)
		}
		return raw, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.source, nil)
	if err != nil {
		return nil, fmt.Errorf("create openapi request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch openapi source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch openapi source: unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openapi response: %w", err)
	}
	return raw, nil
}

// Parse decodes raw as JSON, falling back to YAML, and builds one document
// per (method, route). Unparsable input yields no documents.
func Parse(raw []byte) []domain.Document {
	spec, ok := decode(raw)
	if !ok {
		return nil
	}
	paths, ok := asMap(spec["paths"])
	if !ok {
		return nil
	}

	var schemas map[string]any
	if components, ok := asMap(spec["components"]); ok {
		schemas, _ = asMap(components["schemas"])
	}

	var docs []domain.Document
	for _, route := range sortedKeys(paths) {
		methods, ok := asMap(paths[route])
		if !ok {
			continue
		}
		for _, method := range sortedKeys(methods) {
			op, ok := asMap(methods[method])
			if !ok {
				continue
			}
			body := text.Normalize(operationBody(op, schemas))
			size := int64(len(body))
			docs = append(docs, domain.Document{
				Path:        strings.ToUpper(method) + " " + route,
				Content:     body,
				Fingerprint: segment.Fingerprint(body),
				Namespace:   Name,
				FileSize:    &size,
				FileType:    Name,
				Language:    Name,
			})
		}
	}
	return docs
}

func operationBody(op, schemas map[string]any) string {
	var b strings.Builder

	desc := stringField(op, "description")
	if desc == "" {
		desc = stringField(op, "summary")
	}
	if desc != "" {
		fmt.Fprintf(&b, "Description: %s\n", desc)
	}

	if params, ok := op["parameters"].([]any); ok {
		b.WriteString("Parameters:\n")
		for _, p := range params {
			param, _ := asMap(p)
			fmt.Fprintf(&b, "- %s: %s\n", stringField(param, "name"), stringField(param, "description"))
		}
	}

	if responses, ok := asMap(op["responses"]); ok {
		b.WriteString("Responses:\n")
		for _, code := range sortedKeys(responses) {
			resp, _ := asMap(responses[code])
			fmt.Fprintf(&b, "%s: %s\n", code, stringField(resp, "description"))
		}
	}

	if schemas != nil {
		b.WriteString("Schemas:\n")
		for _, name := range sortedKeys(schemas) {
			schema, _ := asMap(schemas[name])
			fmt.Fprintf(&b, "%s: %s\n", name, stringField(schema, "description"))
		}
	}

	return b.String()
}

func decode(raw []byte) (map[string]any, bool) {
	var spec map[string]any
	if err := json.Unmarshal(raw, &spec); err == nil {
		return spec, true
	}
	var node any
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, false
	}
	return asMap(node)
}

// asMap accepts both string keyed maps and the interface keyed maps yaml.v3
// produces for mappings with non-string keys such as response codes.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
