package userrepo

import (
	"testing"

	"github.com/traveal-app/traveal-api/internal/adapters/contracttest"
	"github.com/traveal-app/traveal-api/internal/adapters/postgres/testutil"
	userrepoport "github.com/traveal-app/traveal-api/internal/ports/out/userrepo"
)

func TestContract_PostgresUserRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunUserRepo(t, func(t *testing.T) (userrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(pool), nil
	})
}
