package fsstore

import (
	"github.com/google/uuid"

	"github.com/jjvcs/opgraph/modules/objectid"
)

// NewWorkspaceID mints a fresh WorkspaceID when a caller creates a workspace
// without naming one explicitly. The reference VCS has no workspace
// concept of its own; this follows the wider example pack's convention of
// reaching for google/uuid wherever an entity needs an id nobody supplied
// (spec §4.9).
func NewWorkspaceID() objectid.WorkspaceID {
	return objectid.WorkspaceID(uuid.NewString())
}
