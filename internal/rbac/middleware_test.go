package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vaultry/vaultry/internal/shared"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestWithActor(actor shared.Actor) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/groups", nil)
	return req.WithContext(shared.ContextWithActor(req.Context(), actor))
}

func TestRequireActionAccess(t *testing.T) {
	store := newMockStore()
	eval := NewEvaluator(store, DefaultCatalog(), &mockGroups{}, nil, testLogger())
	mw := NewMiddleware(eval, testLogger())
	guarded := mw.RequireActionAccess(NameGroupsAdd)(okHandler())

	allowed := testActor(store, shared.RoleUser)
	store.addPolicy(allowed.RoleID, KindBackendAction, NameGroupsAdd, ControlFunctionAllow)
	denied := testActor(store, "auditor")
	store.addPolicy(denied.RoleID, KindBackendAction, NameGroupsAdd, ControlFunctionDeny)

	t.Run("allowed role passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, requestWithActor(allowed))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("denied role gets 403", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, requestWithActor(denied))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("role without policy gets 403", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, requestWithActor(testActor(store, "intern")))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("anonymous gets 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/groups", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("admin bypasses policy", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, requestWithActor(testActor(store, shared.RoleAdmin)))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAdminOnly(t *testing.T) {
	store := newMockStore()
	eval := NewEvaluator(store, DefaultCatalog(), &mockGroups{}, nil, testLogger())
	mw := NewMiddleware(eval, testLogger())
	guarded := mw.AdminOnly(okHandler())

	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, requestWithActor(testActor(store, shared.RoleAdmin)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, requestWithActor(testActor(store, shared.RoleUser)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rbacs", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
