package patients

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/medpulse/medpulse-connect/internal/notify"
)

// Directory resolves notification recipients from the patient repository.
type Directory struct {
	repo Repository
}

var _ notify.RecipientDirectory = (*Directory)(nil)

func NewDirectory(repo Repository) *Directory {
	if repo == nil {
		panic("patients: repository required")
	}
	return &Directory{repo: repo}
}

func (d *Directory) Recipient(ctx context.Context, patientID string) (notify.Recipient, error) {
	p, err := d.repo.GetByID(ctx, patientID)
	if err != nil {
		return notify.Recipient{}, err
	}
	return p.Recipient(), nil
}

// CachedDirectory memoizes recipient lookups. Every transition and reminder
// resolves the patient, so the cache absorbs bursts during cascades.
type CachedDirectory struct {
	next  notify.RecipientDirectory
	cache *gocache.Cache
}

var _ notify.RecipientDirectory = (*CachedDirectory)(nil)

func NewCachedDirectory(next notify.RecipientDirectory, ttl time.Duration) *CachedDirectory {
	if next == nil {
		panic("patients: directory required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDirectory{next: next, cache: gocache.New(ttl, 2*ttl)}
}

func (c *CachedDirectory) Recipient(ctx context.Context, patientID string) (notify.Recipient, error) {
	if v, ok := c.cache.Get(patientID); ok {
		return v.(notify.Recipient), nil
	}
	r, err := c.next.Recipient(ctx, patientID)
	if err != nil {
		return notify.Recipient{}, err
	}
	c.cache.SetDefault(patientID, r)
	return r, nil
}

// Put seeds the cache, e.g. right after registration.
func (c *CachedDirectory) Put(r notify.Recipient) {
	c.cache.SetDefault(r.ID, r)
}

// Invalidate drops a cached recipient after its contact details change.
func (c *CachedDirectory) Invalidate(patientID string) {
	c.cache.Delete(patientID)
}
