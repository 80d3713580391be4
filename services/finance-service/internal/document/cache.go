// services/finance-service/internal/document/cache.go

package document

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/invoice"
	"github.com/IvanGarzon/lfm-admin-sub002/shared/logger"
)

const (
	DefaultURLTTL  = 15 * time.Minute
	DefaultTimeout = 15 * time.Second
)

// Artifact is one rendered output. Rows are only ever appended; the newest
// row for an owner and kind is the one served.
type Artifact struct {
	ID              uuid.UUID
	OwnerDocumentID uuid.UUID
	Kind            Kind
	ContentHash     string
	BlobKey         string
	BlobLocation    string
	ByteSize        int64
	CreatedAt       time.Time
}

type ArtifactStore interface {
	// LatestArtifact returns nil, nil when nothing was rendered yet.
	LatestArtifact(ctx context.Context, owner uuid.UUID, kind Kind) (*Artifact, error)
	InsertArtifact(ctx context.Context, a *Artifact) error
	// ListArtifacts returns every artifact, newest first.
	ListArtifacts(ctx context.Context, owner uuid.UUID, kind Kind) ([]Artifact, error)
}

type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) (location string, err error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Renderer produces PDF bytes from a document snapshot.
type Renderer interface {
	Render(ctx context.Context, doc *invoice.Invoice, kind Kind) ([]byte, error)
}

type Options struct {
	URLTTL  time.Duration
	Timeout time.Duration
}

type Result struct {
	BlobKey     string
	SignedURL   string
	ArtifactID  uuid.UUID
	ContentHash string
	Regenerated bool
}

// CacheService serves rendered documents keyed by their content hash.
type CacheService struct {
	artifacts ArtifactStore
	blobs     BlobStore
	renderer  Renderer
	log       zerolog.Logger
	now       func() time.Time

	// sf collapses concurrent renders of the same owner, kind and hash.
	sf singleflight.Group
}

func NewCacheService(artifacts ArtifactStore, blobs BlobStore, renderer Renderer) *CacheService {
	return &CacheService{
		artifacts: artifacts,
		blobs:     blobs,
		renderer:  renderer,
		log:       logger.WithComponent("document-cache"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (c *CacheService) WithLogger(l zerolog.Logger) *CacheService {
	c.log = l
	return c
}

// GetOrCreate returns a servable artifact for doc, rendering only when the
// content changed or the stored blob went missing. The signed URL is always
// fresh.
func (c *CacheService) GetOrCreate(ctx context.Context, doc *invoice.Invoice, kind Kind, opts Options) (*Result, error) {
	if doc == nil {
		return nil, domainErr.NewValidationError("document", "document is required")
	}
	if !kind.Valid() {
		return nil, domainErr.NewValidationError("kind", fmt.Sprintf("unknown document kind %q", kind))
	}
	if kind == KindReceipt && doc.Status != invoice.StatusPaid {
		return nil, domainErr.NewOperationError("getOrCreate", fmt.Sprintf("receipts exist only for PAID documents, %s is %s", doc.DocumentNumber, doc.Status))
	}
	opts = withDefaults(opts)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	result, err := c.getOrCreate(ctx, doc, kind, opts)
	return result, domainErr.WrapTimeout(err)
}

func withDefaults(opts Options) Options {
	if opts.URLTTL <= 0 {
		opts.URLTTL = DefaultURLTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return opts
}

func (c *CacheService) getOrCreate(ctx context.Context, doc *invoice.Invoice, kind Kind, opts Options) (*Result, error) {
	hash, err := ContentHash(doc, kind)
	if err != nil {
		return nil, err
	}

	latest, err := c.artifacts.LatestArtifact(ctx, doc.ID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest artifact: %w", err)
	}

	if latest != nil && latest.ContentHash == hash {
		exists, err := c.blobs.Exists(ctx, latest.BlobKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check blob %s: %w", latest.BlobKey, err)
		}
		if exists {
			return c.sign(ctx, latest, false, opts)
		}
		c.log.Warn().
			Str("artifact_id", latest.ID.String()).
			Str("blob_key", latest.BlobKey).
			Msg("cached blob missing, regenerating")
	}

	// The shared render outlives any single caller: one caller giving up
	// must not fail the others waiting on the same key.
	key := fmt.Sprintf("%s/%s/%s", doc.ID, kind, hash)
	ch := c.sf.DoChan(key, func() (interface{}, error) {
		renderCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.Timeout)
		defer cancel()
		return c.regenerate(renderCtx, doc, kind, hash)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.log.Debug().Str("key", key).Msg("joined in-flight render")
		}
		return c.sign(ctx, res.Val.(*Artifact), true, opts)
	}
}

// regenerate renders, uploads under a fresh key and appends the artifact row.
func (c *CacheService) regenerate(ctx context.Context, doc *invoice.Invoice, kind Kind, hash string) (*Artifact, error) {
	data, err := c.renderer.Render(ctx, doc, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s %s: %w", strings.ToLower(string(kind)), doc.DocumentNumber, err)
	}

	id := uuid.New()
	blobKey := BlobKey(doc.ID, kind, hash, id)
	location, err := c.blobs.Put(ctx, blobKey, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store blob %s: %w", blobKey, err)
	}

	artifact := &Artifact{
		ID:              id,
		OwnerDocumentID: doc.ID,
		Kind:            kind,
		ContentHash:     hash,
		BlobKey:         blobKey,
		BlobLocation:    location,
		ByteSize:        int64(len(data)),
		CreatedAt:       c.now(),
	}
	if err := c.artifacts.InsertArtifact(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to record artifact: %w", err)
	}

	c.log.Info().
		Str("document_number", doc.DocumentNumber).
		Str("kind", string(kind)).
		Str("artifact_id", id.String()).
		Int64("bytes", artifact.ByteSize).
		Msg("document rendered")
	return artifact, nil
}

func (c *CacheService) sign(ctx context.Context, a *Artifact, regenerated bool, opts Options) (*Result, error) {
	url, err := c.blobs.SignedURL(ctx, a.BlobKey, opts.URLTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign url for %s: %w", a.BlobKey, err)
	}
	return &Result{
		BlobKey:     a.BlobKey,
		SignedURL:   url,
		ArtifactID:  a.ID,
		ContentHash: a.ContentHash,
		Regenerated: regenerated,
	}, nil
}

// History lists every artifact ever produced for owner and kind, newest first.
func (c *CacheService) History(ctx context.Context, owner uuid.UUID, kind Kind) ([]Artifact, error) {
	if !kind.Valid() {
		return nil, domainErr.NewValidationError("kind", fmt.Sprintf("unknown document kind %q", kind))
	}
	artifacts, err := c.artifacts.ListArtifacts(ctx, owner, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	return artifacts, nil
}

// Download fetches the bytes behind a blob key.
func (c *CacheService) Download(ctx context.Context, blobKey string, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	data, err := c.blobs.Get(ctx, blobKey)
	return data, domainErr.WrapTimeout(err)
}

// BlobKey is documents/<owner>/<kind>/<hash[:16]>-<artifact>.pdf.
func BlobKey(owner uuid.UUID, kind Kind, hash string, artifactID uuid.UUID) string {
	short := hash
	if len(short) > 16 {
		short = short[:16]
	}
	return fmt.Sprintf("documents/%s/%s/%s-%s.pdf", owner, strings.ToLower(string(kind)), short, artifactID)
}
