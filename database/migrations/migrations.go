// Package migrations holds the schema migrations for the demo app.
// Nothing here registers itself; All hands the complete list to
// whoever builds the migration runner.
package migrations

import "github.com/setulabs/setu/pkg/migration"

// All returns every migration in this build.
func All() []migration.Migration {
	return []migration.Migration{
		&CreateUsersTable{},
		&CreateFailedJobsTable{},
	}
}
