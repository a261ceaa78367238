// Package api exposes the linking engine over HTTP.
//
// Expected business outcomes travel as 200 responses with a non-OK status
// field; only infrastructure failures become 5xx. The application scope is
// resolved from the request (X-App-ID header by default) before the engine
// is invoked.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/getkayan/kayan-link/core/linking"
	"github.com/getkayan/kayan-link/core/tenant"
	"github.com/getkayan/kayan-link/core/useridmapping"
)

type Handler struct {
	manager  *linking.Manager
	resolver tenant.Resolver
}

func NewHandler(manager *linking.Manager) *Handler {
	return &Handler{
		manager:  manager,
		resolver: tenant.NewHeaderResolver(""),
	}
}

// SetScopeResolver replaces the default header-based application resolution.
func (h *Handler) SetScopeResolver(r tenant.Resolver) {
	h.resolver = r
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/recipe/accountlinking/user/primary", h.HandleCreatePrimaryUser)
	g.POST("/recipe/accountlinking/user/link", h.HandleLinkAccounts)
	g.POST("/recipe/accountlinking/user/unlink", h.HandleUnlinkAccount)
	g.GET("/recipe/accountlinking/user", h.HandleGetUser)
}

func (h *Handler) appScope(c echo.Context) (tenant.AppID, error) {
	app, err := h.resolver.Resolve(c.Request().Context(), c.Request())
	if err != nil {
		return "", err
	}
	return app, nil
}

func (h *Handler) HandleCreatePrimaryUser(c echo.Context) error {
	var body struct {
		RecipeUserID string `json:"recipeUserId"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}
	if body.RecipeUserID == "" {
		return h.Error(c, http.StatusBadRequest, "recipeUserId is required", nil)
	}

	app, err := h.appScope(c)
	if err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid app scope", err)
	}

	res, err := h.manager.CreatePrimaryUser(c.Request().Context(), app, body.RecipeUserID, useridmapping.IDTypeAny)
	if err != nil {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}

	switch res.Status {
	case linking.StatusUnknownUserID:
		return h.Error(c, http.StatusBadRequest, "Unknown user ID provided", nil)
	case linking.StatusFeatureNotEnabled:
		return h.Error(c, http.StatusPaymentRequired, res.Description, nil)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) HandleLinkAccounts(c echo.Context) error {
	var body struct {
		PrimaryUserID string `json:"primaryUserId"`
		RecipeUserID  string `json:"recipeUserId"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}
	if body.PrimaryUserID == "" || body.RecipeUserID == "" {
		return h.Error(c, http.StatusBadRequest, "primaryUserId and recipeUserId are required", nil)
	}

	app, err := h.appScope(c)
	if err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid app scope", err)
	}

	res, err := h.manager.LinkAccounts(c.Request().Context(), app, body.PrimaryUserID, body.RecipeUserID, useridmapping.IDTypeAny)
	if err != nil {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}

	switch res.Status {
	case linking.StatusUnknownUserID:
		return h.Error(c, http.StatusBadRequest, "Unknown user ID provided", nil)
	case linking.StatusFeatureNotEnabled:
		return h.Error(c, http.StatusPaymentRequired, res.Description, nil)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) HandleUnlinkAccount(c echo.Context) error {
	var body struct {
		RecipeUserID string `json:"recipeUserId"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}
	if body.RecipeUserID == "" {
		return h.Error(c, http.StatusBadRequest, "recipeUserId is required", nil)
	}

	app, err := h.appScope(c)
	if err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid app scope", err)
	}

	res, err := h.manager.UnlinkAccount(c.Request().Context(), app, body.RecipeUserID, useridmapping.IDTypeAny)
	if err != nil {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}

	switch res.Status {
	case linking.StatusUnknownUserID:
		return h.Error(c, http.StatusBadRequest, "Unknown user ID provided", nil)
	case linking.StatusFeatureNotEnabled:
		return h.Error(c, http.StatusPaymentRequired, res.Description, nil)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) HandleGetUser(c echo.Context) error {
	userID := c.QueryParam("userId")
	if userID == "" {
		return h.Error(c, http.StatusBadRequest, "userId is required", nil)
	}

	app, err := h.appScope(c)
	if err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid app scope", err)
	}

	res, err := h.manager.GetUser(c.Request().Context(), app, userID, useridmapping.IDTypeAny)
	if err != nil {
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}
	if res.Status == linking.StatusUnknownUserID {
		return h.Error(c, http.StatusNotFound, "Unknown user ID provided", nil)
	}
	return c.JSON(http.StatusOK, res)
}

// Helper for professional errors
func (h *Handler) Error(c echo.Context, code int, message string, err error) error {
	resp := map[string]interface{}{
		"status": message,
		"code":   code,
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	return c.JSON(code, resp)
}
