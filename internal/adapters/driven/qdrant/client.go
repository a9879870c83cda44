// Package qdrant provides a vector store adapter over the Qdrant gRPC API,
// using the official Go client.
//
// Points carry a named dense vector and a named sparse vector. When a query
// has sparse terms, dense and sparse candidates are fused with reciprocal
// rank fusion on the server.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Default configuration values.
const (
	DefaultEndpoint   = "localhost:6334"
	DefaultPort       = 6334
	DefaultCollection = "mnemo_chunks"
	DefaultDimensions = 1536

	DenseVector  = "dense"
	SparseVector = "sparse"
)

var log = logger.Named("qdrant")

// Config holds configuration for the Qdrant store.
type Config struct {
	// URLs are the cluster gRPC endpoints, as host:port or
	// grpc(s)/http(s)://host:port. A namespace always maps to the same one.
	URLs []string

	// Collection is the collection name (default: mnemo_chunks).
	Collection string

	// Dimensions is the dense vector size (default: 1536).
	Dimensions int

	// APIKey is sent with every call when set.
	APIKey string
}

// pointsAPI is the subset of *qdrant.Client the store calls.
type pointsAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	SetPayload(ctx context.Context, request *qdrant.SetPayloadPoints) (*qdrant.UpdateResult, error)
	Close() error
}

type cluster struct {
	addr string
	api  pointsAPI
}

// Store is a Qdrant-backed vector store.
type Store struct {
	clusters   []cluster
	collection string
	dimensions int
}

// New dials every configured cluster. Connections are established lazily
// by gRPC, so an unreachable cluster surfaces on first use.
func New(cfg Config) (*Store, error) {
	return newStore(cfg, func(c *qdrant.Config) (pointsAPI, error) {
		return qdrant.NewClient(c)
	})
}

func newStore(cfg Config, dial func(*qdrant.Config) (pointsAPI, error)) (*Store, error) {
	var endpoints []*qdrant.Config
	for _, raw := range cfg.URLs {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		ep, err := ParseEndpoint(raw)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	if len(endpoints) == 0 {
		endpoints = []*qdrant.Config{{Host: "localhost", Port: DefaultPort}}
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	s := &Store{collection: cfg.Collection, dimensions: cfg.Dimensions}
	for _, ep := range endpoints {
		ep.APIKey = cfg.APIKey
		ep.PoolSize = 1
		ep.SkipCompatibilityCheck = true
		api, err := dial(ep)
		if err != nil {
			s.Close() //nolint:errcheck
			return nil, fmt.Errorf("qdrant: connect %s:%d: %w", ep.Host, ep.Port, err)
		}
		s.clusters = append(s.clusters, cluster{addr: fmt.Sprintf("%s:%d", ep.Host, ep.Port), api: api})
	}
	return s, nil
}

// ParseEndpoint turns host[:port] or scheme://host[:port] into a client
// config. https and grpcs enable TLS; the port defaults to 6334.
func ParseEndpoint(raw string) (*qdrant.Config, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if !strings.Contains(raw, "://") {
		raw = "grpc://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("qdrant: endpoint %q: %w", raw, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("qdrant: endpoint %q has no host", raw)
	}
	port := DefaultPort
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return nil, fmt.Errorf("qdrant: endpoint %q: bad port: %w", raw, err)
		}
	}
	return &qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		UseTLS: u.Scheme == "https" || u.Scheme == "grpcs",
	}, nil
}

// ClusterFor returns the endpoint serving namespace.
func (s *Store) ClusterFor(namespace string) string {
	return s.clusterFor(namespace).addr
}

func (s *Store) clusterFor(namespace string) cluster {
	if len(s.clusters) == 1 {
		return s.clusters[0]
	}
	h := fnv.New64a()
	h.Write([]byte(namespace))
	return s.clusters[h.Sum64()%uint64(len(s.clusters))]
}

// Close closes every cluster connection.
func (s *Store) Close() error {
	var errs []error
	for _, c := range s.clusters {
		if err := c.api.Close(); err != nil {
			errs = append(errs, fmt.Errorf("qdrant: close %s: %w", c.addr, err))
		}
	}
	return errors.Join(errs...)
}
