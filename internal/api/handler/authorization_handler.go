package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/firefly/security-center/internal/core/ports"
)

// ReadAction is the scope action required by session guarded read routes.
const ReadAction = "READ"

// AuthorizationHandler answers product access and permission questions for
// a party's current session.
type AuthorizationHandler struct {
	authz ports.AuthorizationService
}

func NewAuthorizationHandler(authz ports.AuthorizationService) *AuthorizationHandler {
	return &AuthorizationHandler{authz: authz}
}

// ProductAccess handles GET /api/v1/authorization/parties/:partyId/products/:productId.
func (h *AuthorizationHandler) ProductAccess(c echo.Context) error {
	partyID, err := uuidParam(c, "partyId")
	if err != nil {
		return err
	}
	productID, err := uuidParam(c, "productId")
	if err != nil {
		return err
	}

	granted, err := h.authz.HasAccessToProduct(c.Request().Context(), partyID, productID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, decisionResponse{
		PartyID:   partyID.String(),
		ProductID: productID.String(),
		Granted:   granted,
	})
}

// Permission handles
// GET /api/v1/authorization/parties/:partyId/products/:productId/permissions?action=&resource=.
func (h *AuthorizationHandler) Permission(c echo.Context) error {
	partyID, err := uuidParam(c, "partyId")
	if err != nil {
		return err
	}
	productID, err := uuidParam(c, "productId")
	if err != nil {
		return err
	}
	action := c.QueryParam("action")
	if action == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "action is required")
	}
	resource := c.QueryParam("resource")

	granted, err := h.authz.HasPermission(c.Request().Context(), partyID, productID, action, resource)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, decisionResponse{
		PartyID:   partyID.String(),
		ProductID: productID.String(),
		Action:    action,
		Resource:  resource,
		Granted:   granted,
	})
}

// SessionRead handles GET /api/v1/authorization/products/:productId/read.
// The route sits behind RequirePermission, so reaching it means the session
// named in X-Session-Id may read the product.
func (h *AuthorizationHandler) SessionRead(c echo.Context) error {
	productID, err := uuidParam(c, "productId")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, decisionResponse{
		ProductID: productID.String(),
		Action:    ReadAction,
		Granted:   true,
	})
}
