package invoice

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"

	domainErr "github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/domain/errors"
)

// MetadataSchemaVersion is the only schema accepted at the boundary.
const MetadataSchemaVersion = 1

const (
	maxMetadataEntries  = 32
	maxMetadataValueLen = 512
)

var metadataKeyPattern = regexp.MustCompile(`^[a-z0-9_.-]{1,64}$`)

// Metadata is the typed replacement for free-form JSON on documents.
// Entries are flat string pairs; anything richer belongs in a real column.
type Metadata struct {
	SchemaVersion int               `json:"schema_version"`
	Entries       map[string]string `json:"entries,omitempty"`
}

// NewMetadata returns an empty metadata block at the current schema version.
func NewMetadata() Metadata {
	return Metadata{SchemaVersion: MetadataSchemaVersion}
}

func (m Metadata) Validate() error {
	if m.SchemaVersion != MetadataSchemaVersion {
		return domainErr.NewValidationError("metadata.schema_version",
			fmt.Sprintf("unsupported schema version %d (want %d)", m.SchemaVersion, MetadataSchemaVersion))
	}
	if len(m.Entries) > maxMetadataEntries {
		return domainErr.NewValidationError("metadata.entries",
			fmt.Sprintf("at most %d entries allowed", maxMetadataEntries))
	}
	for key, value := range m.Entries {
		if !metadataKeyPattern.MatchString(key) {
			return domainErr.NewValidationError("metadata.entries", fmt.Sprintf("invalid key %q", key))
		}
		if len(value) > maxMetadataValueLen {
			return domainErr.NewValidationError("metadata.entries", fmt.Sprintf("value for %q is too long", key))
		}
	}
	return nil
}

// Value stores metadata as JSONB.
func (m Metadata) Value() (driver.Value, error) {
	if m.SchemaVersion == 0 {
		m.SchemaVersion = MetadataSchemaVersion
	}
	return json.Marshal(m)
}

// Scan reads the JSONB column back.
func (m *Metadata) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = NewMetadata()
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("metadata: unsupported scan type %T", src)
	}
	var decoded Metadata
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	*m = decoded
	return nil
}
