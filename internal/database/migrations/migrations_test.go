package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(files, "sql")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	assert.Equal(t, ups, downs)
}

func TestInitialMigrationDeclaresUniqueRegistrationIndex(t *testing.T) {
	body, err := fs.ReadFile(files, "sql/000001_create_registration_schema.up.sql")
	require.NoError(t, err)

	assert.Contains(t, string(body), "registrations_event_attendee_unique")
	assert.Contains(t, string(body), "ON DELETE CASCADE")
}
