package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gotrs-io/eventclone/internal/models"
	"github.com/gotrs-io/eventclone/internal/service"
)

// readCloneRequest parses a YAML request file:
//
//	source_context_id: event-2025
//	target_context_id: event-2026
//	scope:
//	  copy_all_zones: true
//	  associate_divisions: true
func readCloneRequest(path string) (service.CloneRequest, error) {
	var req service.CloneRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("failed to read scope file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("failed to parse scope file %s: %w", path, err)
	}
	return req, nil
}

// parseKinds splits a comma separated kind list and rejects unknown names.
func parseKinds(values []string) ([]models.EntityKind, error) {
	var kinds []models.EntityKind
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			kind := models.EntityKind(part)
			if !kind.Valid() {
				return nil, fmt.Errorf("unknown entity kind %q", part)
			}
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

// withKinds returns scope with every listed kind selected as well.
func withKinds(scope models.CloneScope, kinds []models.EntityKind) models.CloneScope {
	for _, kind := range kinds {
		switch kind {
		case models.KindMainZones:
			scope.CopyMainZones = true
		case models.KindSubZones:
			scope.CopySubZones = true
		case models.KindCameraZones:
			scope.CopyCameraZones = true
		case models.KindMessageCenters:
			scope.CopyMessageCenters = true
		case models.KindReferenceMaterials:
			scope.CopyReferenceMaterials = true
		case models.KindPresetMessages:
			scope.CopyPresetMessages = true
		case models.KindDepartments:
			scope.CopyDepartments = true
		case models.KindContacts:
			scope.CopyContacts = true
		case models.KindTaxonomyTypes:
			scope.AssociateTaxonomyTypes = true
		case models.KindDivisions:
			scope.AssociateDivisions = true
		case models.KindSources:
			scope.AssociateSources = true
		}
	}
	return scope
}
