package tanlink

import (
	"context"
	"errors"
	"strconv"

	"github.com/tanlink/tanlink/links"
)

// LinkMapping is one short-key record.
type LinkMapping = links.Mapping

// CreateLink allocates a random short key for destination. restrictedIP
// may be empty; when set, resolution is limited to that caller address.
func (e *Engine) CreateLink(ctx context.Context, destination, restrictedIP string) (string, error) {
	key, err := e.allocator.Allocate(ctx, destination, restrictedIP)
	if err != nil {
		return "", err
	}

	e.metrics.incLinkCreated("random")
	e.emitAudit(ctx, auditLinkCreated, "", true, nil, map[string]string{
		"key": key, "mode": "random",
	})

	return key, nil
}

// CreateNamedLink reserves a caller-chosen key. An existing mapping is
// never overwritten; the conflict comes back as ErrKeyTaken.
func (e *Engine) CreateNamedLink(ctx context.Context, key, destination, restrictedIP string) error {
	if err := e.allocator.AllocateNamed(ctx, key, destination, restrictedIP); err != nil {
		return err
	}

	e.metrics.incLinkCreated("named")
	e.emitAudit(ctx, auditLinkCreated, "", true, nil, map[string]string{
		"key": key, "mode": "named",
	})

	return nil
}

// ResolveLink looks up key and enforces any caller-IP restriction
// against the address in ctx. A restricted miss reports ErrIPRestricted
// rather than pretending the link does not exist.
func (e *Engine) ResolveLink(ctx context.Context, key string) (LinkMapping, error) {
	mapping, err := e.allocator.Resolve(ctx, key)
	if err != nil {
		if errors.Is(err, links.ErrNotFound) {
			e.metrics.incLinkResolved("miss")
		}
		return LinkMapping{}, err
	}

	if mapping.RestrictedIP != "" && mapping.RestrictedIP != clientIPFromContext(ctx) {
		e.metrics.incLinkResolved("forbidden")
		return LinkMapping{}, ErrIPRestricted
	}

	e.metrics.incLinkResolved("hit")
	return mapping, nil
}

// PurgeLinks removes every link mapping and returns how many were
// deleted. Privileged callers only; the HTTP layer gates it.
func (e *Engine) PurgeLinks(ctx context.Context) (int, error) {
	purged, err := e.allocator.Purge(ctx)
	if err != nil {
		return purged, err
	}

	e.metrics.addLinksPurged(purged)
	e.emitAudit(ctx, auditLinksPurged, "", true, nil, map[string]string{
		"purged": strconv.Itoa(purged),
	})

	return purged, nil
}
