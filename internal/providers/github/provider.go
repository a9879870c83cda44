package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/logger"
	"github.com/custodia-labs/mnemo/internal/normalisers/text"
	"github.com/custodia-labs/mnemo/internal/providers/langdetect"
	"github.com/custodia-labs/mnemo/internal/providers/segment"
)

const (
	// Name is the provider name.
	Name = "github"

	// Priority places repository crawls last.
	Priority = 10

	// MaxFileBytes skips larger blobs.
	MaxFileBytes = 5 * 1024 * 1024
)

// Ensure Provider implements the interface.
var _ driven.Provider = (*Provider)(nil)

var log = logger.Named("github")

// Provider crawls the default-branch tree of one repository.
type Provider struct {
	client   *Client
	owner    string
	name     string
	segments segment.Options
}

// Option configures a Provider.
type Option func(*Provider)

// WithSegmentOptions overrides the segmentation thresholds.
func WithSegmentOptions(opts segment.Options) Option {
	return func(p *Provider) { p.segments = opts }
}

// New creates a provider for repo in "owner/name" form.
func New(repo string, client *Client, opts ...Option) (*Provider, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, ErrInvalidRepo
	}
	p := &Provider{
		client:   client,
		owner:    owner,
		name:     name,
		segments: segment.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the provider name.
func (p *Provider) Name() string { return Name }

// Priority returns the registry priority.
func (p *Provider) Priority() int { return Priority }

// Repo returns the repository in owner/name form, also the namespace.
func (p *Provider) Repo() string { return p.owner + "/" + p.name }

// LoadDocuments lists the tree and fetches every text blob. Blobs that
// cannot be fetched are skipped.
func (p *Provider) LoadDocuments(ctx context.Context) ([]domain.Document, error) {
	repo, err := p.client.GetRepository(ctx, p.owner, p.name)
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", p.Repo(), err)
	}
	branch := repo.GetDefaultBranch()
	if branch == "" {
		branch = "main"
	}

	tree, err := p.client.GetTree(ctx, p.owner, p.name, branch)
	if err != nil {
		return nil, fmt.Errorf("get tree %s@%s: %w", p.Repo(), branch, err)
	}

	var docs []domain.Document
	for _, entry := range tree.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.GetType() != "blob" {
			continue
		}
		path := entry.GetPath()
		if isBinaryExtension(path) || entry.GetSize() > MaxFileBytes {
			continue
		}

		raw, err := p.fetchBlob(ctx, entry.GetSHA())
		if err != nil {
			log.Warn("skipping %s: %v", path, err)
			continue
		}
		if bytes.IndexByte(raw, 0) >= 0 {
			continue
		}

		content := text.Normalize(string(raw))
		size := int64(len(raw))
		tmpl := domain.Document{
			Path:      path,
			Namespace: p.Repo(),
			FileSize:  &size,
			FileType:  langdetect.Extension(path),
			Language:  langdetect.Detect(path, content),
			Metadata: map[string]any{
				"sha":      entry.GetSHA(),
				"branch":   branch,
				"html_url": fmt.Sprintf("https://github.com/%s/blob/%s/%s", p.Repo(), branch, path),
			},
		}
		docs = append(docs, segment.Documents(tmpl, content, p.segments)...)
	}

	log.Info("%s produced %d documents", p.Repo(), len(docs))
	return docs, nil
}

func (p *Provider) fetchBlob(ctx context.Context, sha string) ([]byte, error) {
	blob, err := p.client.GetBlob(ctx, p.owner, p.name, sha)
	if err != nil {
		return nil, err
	}
	return decodeBlob(blob)
}

func decodeBlob(blob *gh.Blob) ([]byte, error) {
	if blob.GetEncoding() == "base64" {
		content := strings.ReplaceAll(blob.GetContent(), "\n", "")
		return base64.StdEncoding.DecodeString(content)
	}
	return []byte(blob.GetContent()), nil
}

// isBinaryExtension checks if a file extension indicates a binary file.
func isBinaryExtension(path string) bool {
	return binaryExts[strings.ToLower(filepath.Ext(path))]
}

var binaryExts = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".7z": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true, ".webp": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".bin": true, ".dat": true, ".db": true, ".sqlite": true,
	".pyc": true, ".pyo": true, ".class": true, ".o": true, ".a": true,
}
