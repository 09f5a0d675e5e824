package clone

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotrs-io/eventclone/internal/models"
	"github.com/gotrs-io/eventclone/internal/repository"
)

// StepCounts summarises one step execution.
type StepCounts struct {
	Processed int
	Skipped   int
	Errors    int
	Warnings  []string
}

func (c *StepCounts) warn(msg string) {
	if len(c.Warnings) < models.MaxStepWarnings {
		c.Warnings = append(c.Warnings, msg)
	}
}

// EntityCloner copies the records of one owned kind into another context.
type EntityCloner interface {
	Kind() models.EntityKind
	// Clone copies a single source record. Calling it again for the same job
	// and record returns the record created the first time.
	Clone(ctx context.Context, jobID, sourceContextID, targetContextID string, source models.OwnedRecord) (models.OwnedRecord, error)
	// CloneAll copies every record of the kind in the source context.
	CloneAll(ctx context.Context, jobID, sourceContextID, targetContextID string) (StepCounts, error)
}

// resolveFunc maps a parent record's source id to the id the job created for it.
type resolveFunc func(kind models.EntityKind, sourceID string) (string, error)

// kindSpec describes how records of one kind are rewritten.
type kindSpec[T models.OwnedRecord] struct {
	kind models.EntityKind
	// rewrite returns src moved to contextID with foreign keys resolved.
	// The identity is assigned afterwards by withID.
	rewrite func(src T, contextID string, resolve resolveFunc) (T, error)
	withID  func(rec T, id string) T
	// prepare runs before the target record is inserted.
	prepare func(ctx context.Context, src, dst T) (T, error)
}

type recordCloner[T models.OwnedRecord] struct {
	spec  kindSpec[T]
	store repository.OwnedStore[T]
	ids   *IdentityMap
}

func newRecordCloner[T models.OwnedRecord](spec kindSpec[T], store repository.OwnedStore[T], ids *IdentityMap) *recordCloner[T] {
	return &recordCloner[T]{spec: spec, store: store, ids: ids}
}

func (c *recordCloner[T]) Kind() models.EntityKind { return c.spec.kind }

func (c *recordCloner[T]) Clone(ctx context.Context, jobID, sourceContextID, targetContextID string, source models.OwnedRecord) (models.OwnedRecord, error) {
	src, ok := source.(T)
	if !ok {
		return nil, &Error{Code: CodeInternal, Kind: c.spec.kind, Op: string(models.OpCopy),
			Err: fmt.Errorf("unexpected record type %T", source)}
	}
	if src.RecordContextID() != sourceContextID {
		return nil, &Error{Code: CodeInternal, Kind: c.spec.kind, SourceID: src.RecordID(), Op: string(models.OpCopy),
			Err: fmt.Errorf("record belongs to context %s", src.RecordContextID())}
	}
	dst, err := c.clone(ctx, jobID, targetContextID, src)
	if err != nil {
		return nil, err
	}
	return dst, nil
}

func (c *recordCloner[T]) clone(ctx context.Context, jobID, targetContextID string, src T) (T, error) {
	var zero T
	kind := c.spec.kind

	targetID, mapped, err := c.ids.Get(ctx, jobID, kind, src.RecordID())
	if err != nil {
		return zero, wrapError(err, kind, src.RecordID(), "identity")
	}
	if mapped {
		existing, found, err := c.store.Get(ctx, targetID)
		if err != nil {
			return zero, wrapError(err, kind, src.RecordID(), "lookup")
		}
		if found {
			return existing, nil
		}
		// Mapped on an earlier attempt that stopped before the insert.
	}

	resolve := func(parent models.EntityKind, parentID string) (string, error) {
		id, ok, err := c.ids.Get(ctx, jobID, parent, parentID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("%s %s references %s %s: %w", kind, src.RecordID(), parent, parentID, ErrOrphanReference)
		}
		return id, nil
	}
	dst, err := c.spec.rewrite(src, targetContextID, resolve)
	if err != nil {
		return zero, wrapError(err, kind, src.RecordID(), "rewrite")
	}

	if !mapped {
		if targetID, err = c.ids.Put(ctx, jobID, kind, src.RecordID()); err != nil {
			return zero, wrapError(err, kind, src.RecordID(), "identity")
		}
	}
	dst = c.spec.withID(dst, targetID)

	if c.spec.prepare != nil {
		if dst, err = c.spec.prepare(ctx, src, dst); err != nil {
			return zero, wrapError(err, kind, src.RecordID(), "prepare")
		}
	}

	if err := c.store.Insert(ctx, dst); err != nil {
		if !errors.Is(err, repository.ErrAlreadyExists) {
			return zero, wrapError(err, kind, src.RecordID(), "insert")
		}
		existing, found, getErr := c.store.Get(ctx, targetID)
		if getErr != nil {
			return zero, wrapError(getErr, kind, src.RecordID(), "lookup")
		}
		if found {
			return existing, nil
		}
		return zero, wrapError(err, kind, src.RecordID(), "insert")
	}
	return dst, nil
}

func (c *recordCloner[T]) CloneAll(ctx context.Context, jobID, sourceContextID, targetContextID string) (StepCounts, error) {
	var counts StepCounts
	kind := c.spec.kind

	records, err := c.store.ListByContext(ctx, sourceContextID)
	if err != nil {
		return counts, wrapError(err, kind, "", "list")
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return counts, wrapError(err, kind, rec.RecordID(), string(models.OpCopy))
		}
		_, err := c.clone(ctx, jobID, targetContextID, rec)
		switch {
		case err == nil:
			counts.Processed++
			recordsCloned.WithLabelValues(string(kind)).Inc()
		case isSkippable(err):
			counts.Skipped++
			counts.warn(skipWarning(err))
			recordsSkipped.WithLabelValues(string(kind)).Inc()
		default:
			counts.Errors++
			return counts, err
		}
	}
	return counts, nil
}

// isSkippable reports record-level problems that leave the record out of the
// clone without failing the step.
func isSkippable(err error) bool {
	return errors.Is(err, ErrOrphanReference) || errors.Is(err, ErrAssetMissing)
}

func skipWarning(err error) string {
	var ce *Error
	if errors.As(err, &ce) && ce.Err != nil {
		return "skipped: " + ce.Err.Error()
	}
	return "skipped: " + err.Error()
}
