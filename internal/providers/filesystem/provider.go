// Package filesystem loads documents from local directory trees.
package filesystem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/logger"
	"github.com/custodia-labs/mnemo/internal/normalisers/docx"
	"github.com/custodia-labs/mnemo/internal/normalisers/pdf"
	"github.com/custodia-labs/mnemo/internal/normalisers/text"
	"github.com/custodia-labs/mnemo/internal/providers/langdetect"
	"github.com/custodia-labs/mnemo/internal/providers/segment"
)

const (
	// Name is the provider name.
	Name = "filesystem"

	// Priority orders the provider first in the registry.
	Priority = 1

	// DefaultNamespace is used when no namespace is configured.
	DefaultNamespace = "local"

	// MaxFileBytes is the largest file the provider reads.
	MaxFileBytes = 5 * 1024 * 1024
)

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("filesystem provider closed")

var allowedExtensions = map[string]bool{
	"md": true, "txt": true, "json": true, "yaml": true, "yml": true,
	"rs": true, "toml": true, "pdf": true, "docx": true, "ts": true,
	"tsx": true, "js": true, "py": true, "go": true, "java": true, "rb": true,
}

// PDFExtractor converts PDF bytes to text and properties.
type PDFExtractor interface {
	Extract(ctx context.Context, content []byte) (*pdf.Result, error)
}

// Ensure Provider implements the interface.
var _ driven.Provider = (*Provider)(nil)

var log = logger.Named("filesystem")

// Provider walks one or more root directories.
type Provider struct {
	roots     []string
	namespace string
	segments  segment.Options
	pdf       PDFExtractor

	mu      sync.Mutex
	closed  bool
	watcher *fsnotify.Watcher
}

// Option configures a Provider.
type Option func(*Provider)

// WithNamespace overrides the "local" namespace.
func WithNamespace(ns string) Option {
	return func(p *Provider) {
		if ns != "" {
			p.namespace = ns
		}
	}
}

// WithSegmentOptions overrides the segmentation thresholds.
func WithSegmentOptions(opts segment.Options) Option {
	return func(p *Provider) { p.segments = opts }
}

// WithPDFExtractor overrides the pdftotext based extractor.
func WithPDFExtractor(e PDFExtractor) Option {
	return func(p *Provider) { p.pdf = e }
}

// New creates a filesystem provider for the given roots.
func New(roots []string, opts ...Option) *Provider {
	p := &Provider{
		roots:     roots,
		namespace: DefaultNamespace,
		segments:  segment.DefaultOptions(),
		pdf:       pdf.New(),
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

// Roots returns the configured root directories.
func (p *Provider) Roots() []string { return p.roots }

// LoadDocuments walks every root and returns the accepted documents.
// A missing root is an error.
func (p *Provider) LoadDocuments(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	for _, root := range p.roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("ingestion root %s: %w", root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("ingestion root %s: not a directory", root)
		}

		log.Info("scanning root %s", root)
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Debug("walk error at %s: %v", path, err)
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && isHidden(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || isHidden(d.Name()) {
				return nil
			}
			docs = append(docs, p.loadFile(ctx, path)...)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	log.Info("produced %d documents", len(docs))
	return docs, nil
}

// LoadFile returns the documents for a single path, or nil when the file is
// rejected.
func (p *Provider) LoadFile(ctx context.Context, path string) []domain.Document {
	return p.loadFile(ctx, path)
}

func (p *Provider) loadFile(ctx context.Context, path string) []domain.Document {
	info, err := os.Stat(path)
	if err != nil {
		log.Debug("stat %s: %v", path, err)
		return nil
	}
	ext := langdetect.Extension(path)
	if !isAllowed(ext, info.Size()) {
		log.Debug("file rejected (ext/size): %s", path)
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Debug("read %s: %v", path, err)
		return nil
	}

	var content string
	var meta map[string]any
	switch ext {
	case "pdf":
		res, err := p.pdf.Extract(ctx, raw)
		if err != nil {
			log.Warn("pdf extraction failed for %s: %v", path, err)
			return nil
		}
		content, meta = res.Text, res.Metadata()
	case "docx":
		res, err := docx.Extract(raw)
		if err != nil {
			log.Warn("docx extraction failed for %s: %v", path, err)
			return nil
		}
		content, meta = res.Text, res.Metadata()
	default:
		if !IsText(raw) {
			log.Debug("file rejected (binary): %s", path)
			return nil
		}
		content = string(raw)
	}

	normalized := text.Normalize(content)
	modified := info.ModTime()
	size := info.Size()

	tmpl := domain.Document{
		Path:       path,
		Namespace:  p.namespace,
		ModifiedAt: &modified,
		FileSize:   &size,
		FileType:   ext,
		Language:   langdetect.Detect(path, normalized),
		Metadata:   meta,
	}
	return segment.Documents(tmpl, normalized, p.segments)
}

// Watch emits the paths of accepted files that are created or written under
// the roots. The channel closes when ctx is done.
func (p *Provider) Watch(ctx context.Context) (<-chan string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	for _, root := range p.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && isHidden(d.Name()) {
					return filepath.SkipDir
				}
				return watcher.Add(path)
			}
			return nil
		})
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("root path error: %w", err)
		}
	}
	p.watcher = watcher

	changes := make(chan string, 64)
	go func() {
		defer close(changes)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				path, ok := p.handleFsEvent(watcher, event)
				if !ok {
					continue
				}
				select {
				case changes <- path:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("watch error: %v", err)
			}
		}
	}()

	return changes, nil
}

// handleFsEvent returns the path to re-ingest for an event, if any. New
// directories are added to the watcher.
func (p *Provider) handleFsEvent(watcher *fsnotify.Watcher, event fsnotify.Event) (string, bool) {
	if isHidden(filepath.Base(event.Name)) {
		return "", false
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		if watcher != nil && event.Has(fsnotify.Create) {
			if err := watcher.Add(event.Name); err != nil {
				log.Debug("watch %s: %v", event.Name, err)
			}
		}
		return "", false
	}
	if !isAllowed(langdetect.Extension(event.Name), info.Size()) {
		return "", false
	}
	return event.Name, true
}

// Close stops any active watcher.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

func isAllowed(ext string, size int64) bool {
	return size <= MaxFileBytes && allowedExtensions[ext]
}

// IsText reports whether raw has no NUL bytes and is valid UTF-8.
func IsText(raw []byte) bool {
	return bytes.IndexByte(raw, 0) < 0 && utf8.Valid(raw)
}

// isHidden reports whether a file or directory name starts with a dot.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
