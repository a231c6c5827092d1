package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner() *Signer {
	return NewSigner("geoattend", "test-signing-key", 15*time.Minute, 24*time.Hour)
}

func TestSigner_IssueAndParse(t *testing.T) {
	s := testSigner()
	pair, err := s.Issue("subject-1", "student")
	require.NoError(t, err)
	assert.True(t, pair.RefreshExp.After(pair.AccessExp))

	claims, err := s.Parse(pair.AccessToken, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "subject-1", claims.Subject)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, AccessToken, claims.Type)

	_, err = s.Parse(pair.RefreshToken, AccessToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	_, err = s.Parse(pair.RefreshToken, RefreshToken)
	assert.NoError(t, err)
}

func TestSigner_RejectsForeignTokens(t *testing.T) {
	s := testSigner()
	pair, err := s.Issue("subject-1", "admin")
	require.NoError(t, err)

	other := NewSigner("geoattend", "another-key", time.Minute, time.Hour)
	_, err = other.Parse(pair.AccessToken, AccessToken)
	assert.Error(t, err)

	wrongIssuer := NewSigner("someone-else", "test-signing-key", time.Minute, time.Hour)
	_, err = wrongIssuer.Parse(pair.AccessToken, AccessToken)
	assert.Error(t, err)

	_, err = s.Parse("not-a-jwt", AccessToken)
	assert.Error(t, err)
}

func TestSigner_Expiry(t *testing.T) {
	s := testSigner()
	issued := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }
	pair, err := s.Issue("subject-1", "student")
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(16 * time.Minute) }
	_, err = s.Parse(pair.AccessToken, AccessToken)
	assert.Error(t, err)

	_, err = s.Parse(pair.RefreshToken, RefreshToken)
	assert.NoError(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := testSigner()
	r := gin.New()
	r.GET("/me", Bearer(s), func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.String(http.StatusOK, claims.Subject)
	})
	r.GET("/admin", Bearer(s), RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	student, err := s.Issue("stu", "student")
	require.NoError(t, err)
	admin, err := s.Issue("adm", "admin")
	require.NoError(t, err)

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"no header", "/me", "", http.StatusUnauthorized},
		{"not bearer", "/me", "Basic abc", http.StatusUnauthorized},
		{"refresh token", "/me", "Bearer " + student.RefreshToken, http.StatusUnauthorized},
		{"valid", "/me", "Bearer " + student.AccessToken, http.StatusOK},
		{"student on admin route", "/admin", "Bearer " + student.AccessToken, http.StatusForbidden},
		{"admin", "/admin", "bearer " + admin.AccessToken, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}
