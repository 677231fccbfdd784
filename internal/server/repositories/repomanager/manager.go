package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/courtsync/internal/dbx"
	"github.com/dmitrijs2005/courtsync/internal/server/repositories/entries"
	"github.com/dmitrijs2005/courtsync/internal/server/repositories/linkages"
	"github.com/dmitrijs2005/courtsync/internal/server/repositories/notifications"
	"github.com/dmitrijs2005/courtsync/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/courtsync/internal/server/repositories/snapshots"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Profiles(db dbx.DBTX) profiles.Repository
	Linkages(db dbx.DBTX) linkages.Repository
	Snapshots(db dbx.DBTX) snapshots.Repository
	Entries(db dbx.DBTX) entries.Repository
	Notifications(db dbx.DBTX) notifications.Repository
}
