package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "Add Refund Reason!")
	require.NoError(t, err)
	assert.Regexp(t, `\d{14}_add_refund_reason\.sql$`, path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "-- rollback add_refund_reason")
	require.NoError(t, ValidateDir(dir))
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	_, err := CreateSQLMigration(t.TempDir(), "  !!  ")
	assert.Error(t, err)
}

func TestValidateDirCollectsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("bad-name.sql", "-- +goose Up\n-- +goose Down\n")
	write("20260101000000_no_down.sql", "-- +goose Up\n")
	write("20260101000000_dupe.sql", "-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n")
	write("notes.txt", "ignored")

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
	assert.Contains(t, err.Error(), "bad-name.sql")
	assert.Contains(t, err.Error(), "already used")
	assert.Contains(t, err.Error(), "StatementBegin")
}
