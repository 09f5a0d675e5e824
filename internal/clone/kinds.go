package clone

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotrs-io/eventclone/internal/models"
	"github.com/gotrs-io/eventclone/internal/repository"
	"github.com/gotrs-io/eventclone/internal/storage"
)

// NewCloners builds one cloner per owned kind. assets backs reference
// material copies and may be nil when that kind is never selected.
func NewCloners(tables *repository.OwnedTables, ids *IdentityMap, assets storage.Backend) map[models.EntityKind]EntityCloner {
	return map[models.EntityKind]EntityCloner{
		models.KindMainZones:          newRecordCloner(mainZoneSpec, tables.MainZones, ids),
		models.KindSubZones:           newRecordCloner(subZoneSpec, tables.SubZones, ids),
		models.KindCameraZones:        newRecordCloner(cameraZoneSpec, tables.CameraZones, ids),
		models.KindMessageCenters:     newRecordCloner(messageCenterSpec, tables.MessageCenters, ids),
		models.KindReferenceMaterials: newRecordCloner(referenceMaterialSpec(assets), tables.ReferenceMaterials, ids),
		models.KindPresetMessages:     newRecordCloner(presetMessageSpec, tables.PresetMessages, ids),
		models.KindDepartments:        newRecordCloner(departmentSpec, tables.Departments, ids),
		models.KindContacts:           newRecordCloner(contactSpec, tables.Contacts, ids),
	}
}

var mainZoneSpec = kindSpec[models.MainZone]{
	kind: models.KindMainZones,
	rewrite: func(src models.MainZone, contextID string, _ resolveFunc) (models.MainZone, error) {
		src.ContextID = contextID
		return src, nil
	},
	withID: func(rec models.MainZone, id string) models.MainZone { rec.ID = id; return rec },
}

var subZoneSpec = kindSpec[models.SubZone]{
	kind: models.KindSubZones,
	rewrite: func(src models.SubZone, contextID string, resolve resolveFunc) (models.SubZone, error) {
		parent, err := resolve(models.KindMainZones, src.MainZoneID)
		if err != nil {
			return src, err
		}
		src.ContextID = contextID
		src.MainZoneID = parent
		return src, nil
	},
	withID: func(rec models.SubZone, id string) models.SubZone { rec.ID = id; return rec },
}

var cameraZoneSpec = kindSpec[models.CameraZone]{
	kind: models.KindCameraZones,
	rewrite: func(src models.CameraZone, contextID string, _ resolveFunc) (models.CameraZone, error) {
		src.ContextID = contextID
		return src, nil
	},
	withID: func(rec models.CameraZone, id string) models.CameraZone { rec.ID = id; return rec },
}

var messageCenterSpec = kindSpec[models.MessageCenter]{
	kind: models.KindMessageCenters,
	rewrite: func(src models.MessageCenter, contextID string, _ resolveFunc) (models.MessageCenter, error) {
		src.ContextID = contextID
		return src, nil
	},
	withID: func(rec models.MessageCenter, id string) models.MessageCenter { rec.ID = id; return rec },
}

var presetMessageSpec = kindSpec[models.PresetMessage]{
	kind: models.KindPresetMessages,
	rewrite: func(src models.PresetMessage, contextID string, _ resolveFunc) (models.PresetMessage, error) {
		src.ContextID = contextID
		return src, nil
	},
	withID: func(rec models.PresetMessage, id string) models.PresetMessage { rec.ID = id; return rec },
}

var departmentSpec = kindSpec[models.Department]{
	kind: models.KindDepartments,
	rewrite: func(src models.Department, contextID string, _ resolveFunc) (models.Department, error) {
		src.ContextID = contextID
		return src, nil
	},
	withID: func(rec models.Department, id string) models.Department { rec.ID = id; return rec },
}

var contactSpec = kindSpec[models.Contact]{
	kind: models.KindContacts,
	rewrite: func(src models.Contact, contextID string, resolve resolveFunc) (models.Contact, error) {
		if src.DepartmentID != nil {
			dept, err := resolve(models.KindDepartments, *src.DepartmentID)
			if err != nil {
				return src, err
			}
			src.DepartmentID = &dept
		}
		src.ContextID = contextID
		return src, nil
	},
	withID: func(rec models.Contact, id string) models.Contact { rec.ID = id; return rec },
}

func referenceMaterialSpec(assets storage.Backend) kindSpec[models.ReferenceMaterial] {
	return kindSpec[models.ReferenceMaterial]{
		kind: models.KindReferenceMaterials,
		rewrite: func(src models.ReferenceMaterial, contextID string, _ resolveFunc) (models.ReferenceMaterial, error) {
			src.ContextID = contextID
			return src, nil
		},
		withID: func(rec models.ReferenceMaterial, id string) models.ReferenceMaterial { rec.ID = id; return rec },
		prepare: func(ctx context.Context, src, dst models.ReferenceMaterial) (models.ReferenceMaterial, error) {
			if src.StorageKey == nil || *src.StorageKey == "" {
				return dst, nil
			}
			if assets == nil {
				return dst, fmt.Errorf("asset storage is not configured")
			}
			var fileName string
			if src.FileName != nil {
				fileName = *src.FileName
			}
			key := storage.AssetKey(dst.ContextID, dst.ID, fileName)
			dst.StorageKey = &key
			if err := assets.Copy(ctx, *src.StorageKey, key); err != nil {
				if errors.Is(err, storage.ErrAssetNotFound) {
					return dst, fmt.Errorf("%s %s: %w", models.KindReferenceMaterials, *src.StorageKey, ErrAssetMissing)
				}
				return dst, fmt.Errorf("copy asset: %w", err)
			}
			return dst, nil
		},
	}
}
