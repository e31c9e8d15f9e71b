package domains

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/breachwatch/breachwatch/internal/db"
	"github.com/breachwatch/breachwatch/migrations"
)

func migrationSQL(t *testing.T) string {
	t.Helper()
	entries, err := migrations.FS.ReadDir(".")
	require.NoError(t, err)

	var sb strings.Builder
	for _, entry := range entries {
		data, err := migrations.FS.ReadFile(entry.Name())
		require.NoError(t, err)
		sb.Write(data)
	}
	return sb.String()
}

// The duplicate-registration mapping matches on the index names postgres
// reports in ConstraintName; they must stay in sync with the schema.
func TestDuplicateConstraintNamesMatchSchema(t *testing.T) {
	schema := migrationSQL(t)

	for _, constraint := range []string{userOwnerConstraint, orgOwnerConstraint} {
		require.Contains(t, schema, fmt.Sprintf("CREATE UNIQUE INDEX %s", constraint))
	}
}

func TestDuplicateDomainErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		pgErr      *pgconn.PgError
		constraint string
		want       bool
	}{
		{
			name:       "direct owner duplicate",
			pgErr:      &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: userOwnerConstraint},
			constraint: userOwnerConstraint,
			want:       true,
		},
		{
			name:       "org duplicate",
			pgErr:      &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: orgOwnerConstraint},
			constraint: orgOwnerConstraint,
			want:       true,
		},
		{
			name:       "different constraint",
			pgErr:      &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "api_keys_user_id_name_key"},
			constraint: userOwnerConstraint,
			want:       false,
		},
		{
			name:       "not a unique violation",
			pgErr:      &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: userOwnerConstraint},
			constraint: userOwnerConstraint,
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("insert domain: %w", tt.pgErr)
			require.Equal(t, tt.want, db.IsUniqueViolation(wrapped, tt.constraint))
		})
	}
}
