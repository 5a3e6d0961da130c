package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"valeservice/internal/models"
	"valeservice/internal/services"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTenantResolver struct {
	mock.Mock
}

func (m *MockTenantResolver) Resolve(ctx context.Context, claims *models.Claims) (models.Scope, error) {
	args := m.Called(ctx, claims)
	return args.Get(0).(models.Scope), args.Error(1)
}

// claimsResolver trusts the tenant claim without looking the tenant up.
type claimsResolver struct{}

func (claimsResolver) Resolve(_ context.Context, claims *models.Claims) (models.Scope, error) {
	if claims == nil {
		return models.Scope{}, services.ErrMissingTenantContext
	}
	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return models.Scope{}, services.ErrMissingTenantContext
	}
	scope := models.Scope{TenantID: tenantID}
	if userID, err := uuid.Parse(claims.Subject); err == nil {
		scope.UserID = &userID
	}
	return scope, nil
}

// newScopedContext builds a request context carrying verified claims for scope,
// the way the JWT middleware leaves it.
func newScopedContext(e *echo.Echo, req *http.Request, scope models.Scope) (echo.Context, *httptest.ResponseRecorder) {
	claims := &models.Claims{TenantID: scope.TenantID.String()}
	if scope.UserID != nil {
		claims.Subject = scope.UserID.String()
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user", &jwt.Token{Claims: claims, Valid: true})
	return c, rec
}

func TestResolveScope_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "missing tenant claim", err: services.ErrMissingTenantContext, wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "inactive tenant", err: services.ErrTenantInactive, wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
		{name: "lookup failure", err: errors.New("connection refused"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := new(MockTenantResolver)
			resolver.On("Resolve", mock.Anything, mock.Anything).Return(models.Scope{}, tt.err)
			svc := new(MockOrderService)

			e := echo.New()
			c, rec := newScopedContext(e, httptest.NewRequest(http.MethodGet, "/v1/orders", nil), models.Scope{TenantID: uuid.New()})

			require.NoError(t, NewOrderHandlers(svc, resolver).GetOrders(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Error.Code)
			}
			svc.AssertNotCalled(t, "ListOrders")
		})
	}
}

func TestResolveScope_PassesTokenClaimsAndScope(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	resolved := models.Scope{TenantID: tenantID, UserID: &userID}

	resolver := new(MockTenantResolver)
	resolver.On("Resolve", mock.Anything, mock.MatchedBy(func(c *models.Claims) bool {
		return c != nil && c.TenantID == tenantID.String() && c.Subject == userID.String()
	})).Return(resolved, nil).Once()
	svc := new(MockOrderService)
	svc.On("ListOrders", mock.Anything, tenantID, mock.Anything).Return([]*models.Order{}, nil)

	e := echo.New()
	c, rec := newScopedContext(e, httptest.NewRequest(http.MethodGet, "/v1/orders", nil), resolved)

	require.NoError(t, NewOrderHandlers(svc, resolver).GetOrders(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	resolver.AssertExpectations(t)
	svc.AssertExpectations(t)
}
