package tokenrepo

import (
	"testing"

	"github.com/traveal-app/traveal-api/internal/adapters/contracttest"
	memuserrepo "github.com/traveal-app/traveal-api/internal/adapters/memory/userrepo"
	tokenrepoport "github.com/traveal-app/traveal-api/internal/ports/out/tokenrepo"
	userrepoport "github.com/traveal-app/traveal-api/internal/ports/out/userrepo"
)

func TestContract_MemoryTokenRepo(t *testing.T) {
	t.Parallel()

	contracttest.RunTokenRepo(
		t,
		func(t *testing.T) (userrepoport.Repository, func()) {
			t.Helper()
			return memuserrepo.NewRepo(), nil
		},
		func(t *testing.T) (tokenrepoport.Repository, func()) {
			t.Helper()
			return NewRepo(), nil
		},
	)
}
