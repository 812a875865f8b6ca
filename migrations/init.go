package migrations

import (
	"io/fs"

	presence "github.com/goliatone/go-presence"
)

func init() {
	coreFS, err := fs.Sub(presence.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return
	}
	Register(coreFS)
}
