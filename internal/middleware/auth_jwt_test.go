package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims(role string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub":  "user-1",
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	}
}

// AuthJWT → AdminRoleGuard(任意) → 200 を返すハンドラ
func run(t *testing.T, authz string, admin bool) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	if admin {
		h = AdminRoleGuard()(h)
	}
	require.NoError(t, AuthJWT(testSecret)(h)(c))
	return rec, c
}

func TestAuthJWT_OK(t *testing.T) {
	rec, c := run(t, "Bearer "+sign(t, validClaims(RoleUser), testSecret), false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", c.Get(CtxUserIDKey))
	assert.Equal(t, RoleUser, c.Get(CtxUserRoleKey))
}

func TestAuthJWT_Rejects(t *testing.T) {
	expired := validClaims(RoleUser)
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	noSub := validClaims(RoleUser)
	delete(noSub, "sub")

	numericSub := validClaims(RoleUser)
	numericSub["sub"] = 42

	badRole := validClaims("ROOT")

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"empty token":    "Bearer ",
		"garbage":        "Bearer not-a-jwt",
		"wrong secret":   "Bearer " + sign(t, validClaims(RoleUser), "other"),
		"expired":        "Bearer " + sign(t, expired, testSecret),
		"no sub":         "Bearer " + sign(t, noSub, testSecret),
		"numeric sub":    "Bearer " + sign(t, numericSub, testSecret),
		"unknown role":   "Bearer " + sign(t, badRole, testSecret),
	}
	for name, authz := range cases {
		t.Run(name, func(t *testing.T) {
			rec, _ := run(t, authz, false)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
		})
	}
}

func TestAuthJWT_RejectsOtherAlgorithms(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, validClaims(RoleUser))
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec, _ := run(t, "Bearer "+s, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoleGuard(t *testing.T) {
	rec, _ := run(t, "Bearer "+sign(t, validClaims(RoleUser), testSecret), true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"admin only"}`, rec.Body.String())

	rec, _ = run(t, "Bearer "+sign(t, validClaims(RoleAdmin), testSecret), true)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoleGuard_WithoutAuth(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := AdminRoleGuard()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole_AnyOf(t *testing.T) {
	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	guard := RequireRole(RoleUser, RoleAdmin)

	for _, role := range []string{RoleUser, RoleAdmin} {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		c.Set(CtxUserRoleKey, role)
		require.NoError(t, guard(ok)(c))
		assert.Equal(t, http.StatusOK, rec.Code, role)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.Set(CtxUserRoleKey, "GUEST")
	require.NoError(t, RequireRole(RoleUser)(ok)(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
}
