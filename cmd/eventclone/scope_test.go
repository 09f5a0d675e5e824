package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/eventclone/internal/models"
)

func writeScopeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadCloneRequest(t *testing.T) {
	path := writeScopeFile(t, `
source_context_id: event-2025
target_context_id: event-2026
scope:
  copy_all_zones: true
  copy_contacts: true
  associate_divisions: true
`)
	req, err := readCloneRequest(path)
	require.NoError(t, err)
	assert.Equal(t, "event-2025", req.SourceContextID)
	assert.Equal(t, "event-2026", req.TargetContextID)
	assert.True(t, req.Scope.CopyAllZones)
	assert.True(t, req.Scope.CopyContacts)
	assert.True(t, req.Scope.AssociateDivisions)
	assert.False(t, req.Scope.CopyDepartments)

	t.Run("UnknownField", func(t *testing.T) {
		path := writeScopeFile(t, "scope:\n  copy_everything: true\n")
		_, err := readCloneRequest(path)
		assert.Error(t, err)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := readCloneRequest(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestParseKinds(t *testing.T) {
	kinds, err := parseKinds([]string{"main_zones, sub_zones", "divisions", ""})
	require.NoError(t, err)
	assert.Equal(t, []models.EntityKind{models.KindMainZones, models.KindSubZones, models.KindDivisions}, kinds)

	_, err = parseKinds([]string{"main_zones,tickets"})
	assert.ErrorContains(t, err, `"tickets"`)
}

func TestWithKinds(t *testing.T) {
	scope := withKinds(models.CloneScope{CopyContacts: true}, []models.EntityKind{
		models.KindDepartments, models.KindSources,
	})
	assert.True(t, scope.CopyContacts)
	assert.True(t, scope.CopyDepartments)
	assert.True(t, scope.AssociateSources)
	assert.False(t, scope.AssociateDivisions)

	for _, kind := range append(models.OwnedKinds(), models.SharedKinds()...) {
		assert.True(t, withKinds(models.CloneScope{}, []models.EntityKind{kind}).Selects(kind), kind)
	}
}

func TestBuildCloneRequest(t *testing.T) {
	t.Cleanup(func() {
		sourceFlag, targetFlag, scopeFileFlag, kindsFlag = "", "", "", nil
	})

	scopeFileFlag = writeScopeFile(t, `
source_context_id: event-2025
target_context_id: event-2026
scope:
  copy_main_zones: true
`)
	targetFlag = "event-2027"
	kindsFlag = []string{"message_centers"}

	req, err := buildCloneRequest()
	require.NoError(t, err)
	assert.Equal(t, "event-2025", req.SourceContextID)
	assert.Equal(t, "event-2027", req.TargetContextID)
	assert.True(t, req.Scope.CopyMainZones)
	assert.True(t, req.Scope.CopyMessageCenters)
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "worker", "migrate", "submit", "import", "status", "cancel", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	assert.NotNil(t, workerCmd.Flags().Lookup("once"))
	assert.NotNil(t, submitCmd.Flags().Lookup("scope-file"))

	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "eventclone ")
}
