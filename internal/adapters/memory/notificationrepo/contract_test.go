package notificationrepo

import (
	"testing"

	"github.com/traveal-app/traveal-api/internal/adapters/contracttest"
	memuserrepo "github.com/traveal-app/traveal-api/internal/adapters/memory/userrepo"
	notificationrepoport "github.com/traveal-app/traveal-api/internal/ports/out/notificationrepo"
	userrepoport "github.com/traveal-app/traveal-api/internal/ports/out/userrepo"
)

func TestContract_MemoryNotificationRepo(t *testing.T) {
	t.Parallel()

	contracttest.RunNotificationRepo(
		t,
		func(t *testing.T) (userrepoport.Repository, func()) {
			t.Helper()
			return memuserrepo.NewRepo(), nil
		},
		func(t *testing.T) (notificationrepoport.Repository, func()) {
			t.Helper()
			return NewRepo(), nil
		},
	)
}
