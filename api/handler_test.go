package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/getkayan/kayan-link/core/features"
	"github.com/getkayan/kayan-link/core/identity"
	"github.com/getkayan/kayan-link/core/linking"
	"github.com/getkayan/kayan-link/kgorm"
)

func TestAPIIntegration(t *testing.T) {
	dbPath := "test_kayanlink.db"
	defer os.Remove(dbPath)

	storage, err := kgorm.NewStorage("sqlite", dbPath, nil)
	if err != nil {
		t.Fatalf("failed to setup storage: %v", err)
	}
	repo := storage.(*kgorm.Repository)
	manager := kgorm.NewDefaultLinkingManager(repo.DB(), map[string]bool{
		features.AccountLinking: true,
	})

	ctx := context.Background()
	seed := func(id, email string) {
		t.Helper()
		err := repo.CreateLoginMethod(ctx, "app1", &identity.LoginMethod{
			ID:          id,
			Recipe:      identity.RecipeEmailPassword,
			AccountInfo: identity.AccountInfo{Email: email},
		})
		if err != nil {
			t.Fatalf("seed %s failed: %v", id, err)
		}
	}
	seed("u1", "x@example.com")
	seed("u2", "x@example.com")
	seed("u3", "other@example.com")
	if err := repo.CreateMapping(ctx, "app1", "e1", "u1"); err != nil {
		t.Fatalf("mapping failed: %v", err)
	}

	h := NewHandler(manager)
	e := echo.New()
	g := e.Group("/api/v1")
	h.RegisterRoutes(g)

	do := func(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
		t.Helper()
		var buf bytes.Buffer
		if body != nil {
			json.NewEncoder(&buf).Encode(body)
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-App-ID", "app1")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		var out map[string]any
		json.Unmarshal(rec.Body.Bytes(), &out)
		return rec, out
	}

	// 1. Create primary through the external id.
	rec, out := do(http.MethodPost, "/api/v1/recipe/accountlinking/user/primary",
		map[string]string{"recipeUserId": "e1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("create primary: code %d: %s", rec.Code, rec.Body.String())
	}
	if out["status"] != string(linking.StatusOK) {
		t.Fatalf("create primary: status %v", out["status"])
	}
	if out["wasAlreadyAPrimaryUser"] != false {
		t.Errorf("first claim should not be already-primary")
	}
	if user, ok := out["user"].(map[string]any); !ok || user["id"] != "e1" {
		t.Errorf("user should surface the external id, got %v", out["user"])
	}

	// 2. Conflicting claim reports the owner in external form.
	rec, out = do(http.MethodPost, "/api/v1/recipe/accountlinking/user/primary",
		map[string]string{"recipeUserId": "u2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("conflict: code %d", rec.Code)
	}
	if out["status"] != string(linking.StatusAccountInfoAlreadyAssociated) {
		t.Fatalf("conflict: status %v", out["status"])
	}
	if out["primaryUserId"] != "e1" {
		t.Errorf("conflict should report external owner id, got %v", out["primaryUserId"])
	}

	// 3. Link u3 under the primary.
	rec, out = do(http.MethodPost, "/api/v1/recipe/accountlinking/user/link",
		map[string]string{"primaryUserId": "e1", "recipeUserId": "u3"})
	if rec.Code != http.StatusOK || out["status"] != string(linking.StatusOK) {
		t.Fatalf("link: code %d, status %v", rec.Code, out["status"])
	}

	// 4. Unlinking the root while it has a child is rejected.
	rec, out = do(http.MethodPost, "/api/v1/recipe/accountlinking/user/unlink",
		map[string]string{"recipeUserId": "e1"})
	if rec.Code != http.StatusOK || out["status"] != string(linking.StatusCannotUnlinkPrimary) {
		t.Fatalf("unlink root: code %d, status %v", rec.Code, out["status"])
	}

	// 5. Unlinking the child succeeds.
	rec, out = do(http.MethodPost, "/api/v1/recipe/accountlinking/user/unlink",
		map[string]string{"recipeUserId": "u3"})
	if rec.Code != http.StatusOK || out["status"] != string(linking.StatusOK) {
		t.Fatalf("unlink child: code %d, status %v", rec.Code, out["status"])
	}

	// 6. Unknown ids are a 400.
	rec, _ = do(http.MethodPost, "/api/v1/recipe/accountlinking/user/primary",
		map[string]string{"recipeUserId": "does-not-exist"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown user: expected 400, got %d", rec.Code)
	}

	// 7. Aggregate view by any member id.
	rec, out = do(http.MethodGet, "/api/v1/recipe/accountlinking/user?userId=u1", nil)
	if rec.Code != http.StatusOK || out["status"] != string(linking.StatusOK) {
		t.Fatalf("get user: code %d, status %v", rec.Code, out["status"])
	}
}

func TestAPIFeatureDisabled(t *testing.T) {
	dbPath := "test_kayanlink_gated.db"
	defer os.Remove(dbPath)

	storage, err := kgorm.NewStorage("sqlite", dbPath, nil)
	if err != nil {
		t.Fatalf("failed to setup storage: %v", err)
	}
	repo := storage.(*kgorm.Repository)
	manager := kgorm.NewDefaultLinkingManager(repo.DB(), map[string]bool{
		features.AccountLinking: false,
	})

	repo.CreateLoginMethod(context.Background(), "app1", &identity.LoginMethod{
		ID:          "u1",
		Recipe:      identity.RecipeEmailPassword,
		AccountInfo: identity.AccountInfo{Email: "x@example.com"},
	})

	h := NewHandler(manager)
	e := echo.New()
	h.RegisterRoutes(e.Group("/api/v1"))

	body, _ := json.Marshal(map[string]string{"recipeUserId": "u1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recipe/accountlinking/user/primary", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-App-ID", "app1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("gated feature: expected 402, got %d: %s", rec.Code, rec.Body.String())
	}
}
