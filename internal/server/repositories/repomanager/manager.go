package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/soultalk/internal/dbx"
	"github.com/dmitrijs2005/soultalk/internal/server/repositories/providers"
	"github.com/dmitrijs2005/soultalk/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/soultalk/internal/server/repositories/users"
	"github.com/dmitrijs2005/soultalk/internal/server/repositories/verifications"
)

// RepositoryManager vends repositories bound to a DBTX, so one service call
// can run every repository against the same transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Providers(db dbx.DBTX) providers.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Verifications(db dbx.DBTX) verifications.Repository
}
