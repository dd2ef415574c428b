package notificationrepo

import (
	"testing"

	"github.com/traveal-app/traveal-api/internal/adapters/contracttest"
	"github.com/traveal-app/traveal-api/internal/adapters/postgres/testutil"
	pguserrepo "github.com/traveal-app/traveal-api/internal/adapters/postgres/userrepo"
	notificationrepoport "github.com/traveal-app/traveal-api/internal/ports/out/notificationrepo"
	userrepoport "github.com/traveal-app/traveal-api/internal/ports/out/userrepo"
)

func TestContract_PostgresNotificationRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunNotificationRepo(
		t,
		func(t *testing.T) (userrepoport.Repository, func()) {
			t.Helper()
			return pguserrepo.NewRepo(pool), nil
		},
		func(t *testing.T) (notificationrepoport.Repository, func()) {
			t.Helper()
			return NewRepo(pool), nil
		},
	)
}
