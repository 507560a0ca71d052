package combatfakes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/louisbranch/fulcrum/internal/core/dice"
	httpapi "github.com/louisbranch/fulcrum/internal/services/rules/api/http"
	"github.com/louisbranch/fulcrum/internal/services/rules/content"
	"github.com/louisbranch/fulcrum/internal/services/rules/domain"
)

// RulesHandler serves the real rules routes over the embedded tables,
// rolling dice from src.
func RulesHandler(t testing.TB, src dice.Source) http.Handler {
	t.Helper()
	tables, err := content.Load()
	if err != nil {
		t.Fatalf("load rule tables: %v", err)
	}
	return httpapi.NewHandler(tables, domain.NewRoller(src), nil)
}

// RulesServer starts the rules routes on a test server.
func RulesServer(t testing.TB, src dice.Source) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(RulesHandler(t, src))
	t.Cleanup(srv.Close)
	return srv
}
