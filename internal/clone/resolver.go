package clone

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotrs-io/eventclone/internal/models"
	"github.com/gotrs-io/eventclone/internal/repository"
)

// AssociationResolver links shared entities to contexts. Every operation is
// safe to repeat and to run concurrently with other jobs: the store's unique
// key on (kind, context, entity) settles races.
type AssociationResolver struct {
	store repository.AssociationStore
}

// NewAssociationResolver creates a resolver over the association store.
func NewAssociationResolver(store repository.AssociationStore) *AssociationResolver {
	return &AssociationResolver{store: store}
}

// Associate links every entity of kind linked to sourceContextID to
// targetContextID as well. Existing links count as skipped.
func (r *AssociationResolver) Associate(ctx context.Context, jobID string, kind models.EntityKind, sourceContextID, targetContextID string) (linked, skipped int, err error) {
	if !kind.Shared() {
		return 0, 0, &Error{Code: CodeInternal, Kind: kind, Op: string(models.OpAssociate),
			Err: fmt.Errorf("kind is not shared")}
	}
	ids, err := r.store.ListEntityIDs(ctx, kind, sourceContextID)
	if err != nil {
		return 0, 0, wrapError(err, kind, "", string(models.OpAssociate))
	}
	for _, entityID := range ids {
		if err := ctx.Err(); err != nil {
			return linked, skipped, wrapError(err, kind, entityID, string(models.OpAssociate))
		}
		created, err := r.link(ctx, kind, targetContextID, entityID)
		if err != nil {
			return linked, skipped, wrapError(err, kind, entityID, string(models.OpAssociate))
		}
		if created {
			linked++
		} else {
			skipped++
		}
	}
	associations.WithLabelValues(string(kind), "linked").Add(float64(linked))
	associations.WithLabelValues(string(kind), "skipped").Add(float64(skipped))
	return linked, skipped, nil
}

// link creates one link and reports whether this call created it.
func (r *AssociationResolver) link(ctx context.Context, kind models.EntityKind, contextID, entityID string) (bool, error) {
	exists, err := r.store.Exists(ctx, kind, contextID, entityID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	err = r.store.Insert(ctx, models.Association{Kind: kind, ContextID: contextID, EntityID: entityID})
	if errors.Is(err, repository.ErrAlreadyExists) {
		// A concurrent job linked it between the check and the insert.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Disassociate removes the links between contextID and entityIDs. Links that
// are already gone are not counted.
func (r *AssociationResolver) Disassociate(ctx context.Context, jobID string, kind models.EntityKind, contextID string, entityIDs []string) (removed int, err error) {
	for _, entityID := range entityIDs {
		if err := ctx.Err(); err != nil {
			return removed, wrapError(err, kind, entityID, string(models.OpDisassociate))
		}
		ok, err := r.store.Delete(ctx, kind, contextID, entityID)
		if err != nil {
			return removed, wrapError(err, kind, entityID, string(models.OpDisassociate))
		}
		if ok {
			removed++
		}
	}
	associations.WithLabelValues(string(kind), "removed").Add(float64(removed))
	return removed, nil
}

// Move relinks every entity of kind from one context to another. Each link
// is created on the target and confirmed before the source link is removed,
// so an entity is never left without a link.
func (r *AssociationResolver) Move(ctx context.Context, jobID string, kind models.EntityKind, fromContextID, toContextID string) (moved int, err error) {
	if _, _, err := r.Associate(ctx, jobID, kind, fromContextID, toContextID); err != nil {
		return 0, err
	}
	return r.DisassociateConfirmed(ctx, jobID, kind, fromContextID, toContextID)
}

// DisassociateConfirmed unlinks from fromContextID only the entities that are
// already linked to toContextID.
func (r *AssociationResolver) DisassociateConfirmed(ctx context.Context, jobID string, kind models.EntityKind, fromContextID, toContextID string) (removed int, err error) {
	confirmed, err := r.confirmed(ctx, kind, fromContextID, toContextID)
	if err != nil {
		return 0, err
	}
	return r.Disassociate(ctx, jobID, kind, fromContextID, confirmed)
}

// confirmed returns the source-linked entities that are also linked to the target.
func (r *AssociationResolver) confirmed(ctx context.Context, kind models.EntityKind, fromContextID, toContextID string) ([]string, error) {
	ids, err := r.store.ListEntityIDs(ctx, kind, fromContextID)
	if err != nil {
		return nil, wrapError(err, kind, "", string(models.OpDisassociate))
	}
	var out []string
	for _, entityID := range ids {
		ok, err := r.store.Exists(ctx, kind, toContextID, entityID)
		if err != nil {
			return nil, wrapError(err, kind, entityID, string(models.OpDisassociate))
		}
		if ok {
			out = append(out, entityID)
		}
	}
	return out, nil
}
