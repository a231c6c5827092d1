package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"geoattend/internal/attendance"
	"geoattend/internal/auth"
	"geoattend/internal/geofence"
	"geoattend/internal/httpapi"
	"geoattend/internal/subject"
)

const (
	nearOffice = `"latitude": 13.2746, "longitude": 79.1214`
	// about 500 m north of the office
	farFromOffice = `"latitude": 13.278993, "longitude": 79.121317`
)

type HandlerSuite struct {
	suite.Suite
	router       *gin.Engine
	subjects     *subject.Service
	now          time.Time
	studentID    string
	studentToken string
	adminToken   string
}

func TestHandlerSuite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctx := context.Background()
	s.now = time.Date(2026, 10, 17, 8, 30, 0, 0, time.UTC)

	records := attendance.NewInMemoryStore()
	s.subjects = subject.NewService(subject.NewInMemoryStore(), records, subject.WithHashCost(bcrypt.MinCost))
	fence := geofence.Fence{Center: geofence.Coordinate{Latitude: 13.274497, Longitude: 79.121317}, RadiusMeters: 100}
	att := attendance.NewService(records, s.subjects, fence, attendance.WithClock(func() time.Time { return s.now }))
	signer := auth.NewSigner("geoattend", "test-key", 15*time.Minute, time.Hour)

	s.router = httpapi.NewRouter(httpapi.NewHandler(att, s.subjects, signer, nil), httpapi.RouterConfig{
		Health: []httpapi.HealthCheck{{Name: "db", Check: func(context.Context) bool { return true }}},
	})

	s.Require().NoError(s.subjects.EnsureAdmin(ctx, "admin", "admin123"))
	student, err := s.subjects.Register(ctx, subject.NewStudent{Username: "arun", Password: "pass123", FullName: "Arun Kumar"})
	s.Require().NoError(err)
	s.studentID = student.ID

	s.studentToken = s.login("arun", "pass123")
	s.adminToken = s.login("admin", "admin123")
}

func (s *HandlerSuite) do(method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (s *HandlerSuite) login(username, password string) string {
	w, body := s.do(http.MethodPost, "/v1/auth/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	tokens := body["tokens"].(map[string]any)
	return tokens["access_token"].(string)
}

func (s *HandlerSuite) TestLogin() {
	w, body := s.do(http.MethodPost, "/v1/auth/login", "", `{"username":"arun","password":"nope"}`)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("invalid_credentials", body["code"])

	w, body = s.do(http.MethodPost, "/v1/auth/login", "", `{"username":"arun","password":"pass123"}`)
	s.Require().Equal(http.StatusOK, w.Code)
	profile := body["subject"].(map[string]any)
	s.Equal("Arun Kumar", profile["full_name"])
	s.Equal("morning", profile["assigned_shift"])
	s.NotContains(w.Body.String(), "password_hash")
}

func (s *HandlerSuite) TestRefresh() {
	_, body := s.do(http.MethodPost, "/v1/auth/login", "", `{"username":"arun","password":"pass123"}`)
	tokens := body["tokens"].(map[string]any)

	w, _ := s.do(http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+tokens["access_token"].(string)+`"}`)
	s.Equal(http.StatusUnauthorized, w.Code, "access tokens cannot refresh")

	w, _ = s.do(http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+tokens["refresh_token"].(string)+`"}`)
	s.Equal(http.StatusOK, w.Code)

	s.Require().NoError(s.subjects.Delete(context.Background(), s.studentID))
	w, _ = s.do(http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+tokens["refresh_token"].(string)+`"}`)
	s.Equal(http.StatusUnauthorized, w.Code, "deleted subjects cannot refresh")
}

func (s *HandlerSuite) TestChangePassword() {
	w, _ := s.do(http.MethodPost, "/v1/auth/change-password", s.studentToken, `{"current_password":"bad","new_password":"secret99"}`)
	s.Equal(http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodPost, "/v1/auth/change-password", s.studentToken, `{"current_password":"pass123","new_password":"secret99"}`)
	s.Require().Equal(http.StatusOK, w.Code)
	s.login("arun", "secret99")
}

func (s *HandlerSuite) TestMarkFlow() {
	w, body := s.do(http.MethodPost, "/v1/attendance/mark", s.studentToken,
		`{"type":"checkin",`+nearOffice+`,"verification_token":"office-qr"}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("Checked In", body["action"])
	s.Equal("Checked In successfully!", body["message"])
	s.Equal("2026-10-17", body["date"])
	s.Equal("skipped", body["evidence"])

	w, body = s.do(http.MethodPost, "/v1/attendance/mark", s.studentToken,
		`{"type":"checkin",`+nearOffice+`,"verification_token":"office-qr"}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Already checked in for today.", body["error"])

	s.now = s.now.Add(8 * time.Hour)
	w, body = s.do(http.MethodPost, "/v1/attendance/mark", s.studentToken,
		`{"type":"checkout",`+nearOffice+`,"verification_token":"office-qr","photo":"data:image/jpeg;base64,QUJD"}`)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("Checked Out", body["action"])
	s.Equal("fallback_raw", body["evidence"])
}

func (s *HandlerSuite) TestMarkErrorMapping() {
	cases := []struct {
		name   string
		token  string
		body   string
		status int
		code   string
	}{
		{"no bearer", "", `{"type":"checkin",` + nearOffice + `,"verification_token":"x"}`, http.StatusUnauthorized, ""},
		{"no verification", s.studentToken, `{"type":"checkin",` + nearOffice + `}`, http.StatusForbidden, "no_verification"},
		{"outside fence", s.studentToken, `{"type":"checkin",` + farFromOffice + `,"verification_token":"x"}`, http.StatusForbidden, "location_mismatch"},
		{"no gps", s.studentToken, `{"type":"checkin","verification_token":"x"}`, http.StatusBadRequest, "missing_location"},
		{"checkout first", s.studentToken, `{"type":"checkout",` + nearOffice + `,"verification_token":"x"}`, http.StatusBadRequest, "must_check_in_first"},
		{"unknown type", s.studentToken, `{"type":"lunch",` + nearOffice + `,"verification_token":"x"}`, http.StatusBadRequest, "unknown_type"},
		{"missing type", s.studentToken, `{` + nearOffice + `,"verification_token":"x"}`, http.StatusBadRequest, "invalid_body"},
		{"unknown field", s.studentToken, `{"type":"checkin","qrCodeData":"x"}`, http.StatusBadRequest, "invalid_body"},
		{"malformed json", s.studentToken, `{"type":`, http.StatusBadRequest, "invalid_body"},
		{"other subject", s.studentToken, `{"subject_id":"someone-else","type":"checkin",` + nearOffice + `,"verification_token":"x"}`, http.StatusForbidden, "foreign_subject"},
		{"admin marks unknown subject", s.adminToken, `{"subject_id":"missing","type":"checkin",` + nearOffice + `,"verification_token":"x"}`, http.StatusNotFound, "subject_not_found"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			w, body := s.do(http.MethodPost, "/v1/attendance/mark", tc.token, tc.body)
			s.Equal(tc.status, w.Code, w.Body.String())
			if tc.code != "" {
				s.Equal(tc.code, body["code"])
			}
		})
	}
}

func (s *HandlerSuite) TestLocationMismatchReportsDistance() {
	w, body := s.do(http.MethodPost, "/v1/attendance/mark", s.studentToken,
		`{"type":"checkin",`+farFromOffice+`,"verification_token":"x"}`)
	s.Require().Equal(http.StatusForbidden, w.Code)
	s.Equal("forbidden", body["kind"])
	s.InDelta(500, body["distance_meters"].(float64), 2)
	s.Contains(body["error"], "Please stay at the office.")
}

func (s *HandlerSuite) TestAdminMarksForStudent() {
	w, _ := s.do(http.MethodPost, "/v1/attendance/mark", s.adminToken,
		`{"subject_id":"`+s.studentID+`","type":"checkin",`+nearOffice+`,"verification_token":"x"}`)
	s.Require().Equal(http.StatusOK, w.Code)

	w, body := s.do(http.MethodGet, "/v1/attendance/today", s.adminToken, "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("2026-10-17", body["date"])
	records := body["records"].([]any)
	s.Require().Len(records, 1)
	s.Equal(s.studentID, records[0].(map[string]any)["subject_id"])
}

func (s *HandlerSuite) TestAdminOnlyRoutes() {
	for _, path := range []string{"/v1/students", "/v1/attendance/today", "/v1/students/" + s.studentID} {
		w, _ := s.do(http.MethodGet, path, s.studentToken, "")
		s.Equal(http.StatusForbidden, w.Code, path)
	}
}

func (s *HandlerSuite) TestStudentRegistry() {
	w, body := s.do(http.MethodPost, "/v1/students", s.adminToken,
		`{"full_name":"Bala","username":"bala","password":"bala123","assigned_shift":"afternoon","due_amount":1200}`)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	created := body["student"].(map[string]any)
	id := created["id"].(string)
	s.Equal("No Dues", created["fee_status"])
	s.Equal("All Clear", created["record_status"])

	w, body = s.do(http.MethodPost, "/v1/students", s.adminToken, `{"full_name":"Bala","username":"bala","password":"bala123"}`)
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("username_taken", body["code"])

	w, _ = s.do(http.MethodPost, "/v1/students", s.adminToken, `{"full_name":"C","username":"c","password":"c12345","assigned_shift":"night"}`)
	s.Equal(http.StatusBadRequest, w.Code)

	w, body = s.do(http.MethodPatch, "/v1/students/"+id, s.adminToken, `{"due_date":"17/10/2026"}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("invalid_body", body["code"])

	w, body = s.do(http.MethodPatch, "/v1/students/"+id, s.adminToken, `{"fee_status":"Pending","paid_fees":300}`)
	s.Require().Equal(http.StatusOK, w.Code)
	updated := body["student"].(map[string]any)
	s.Equal("Pending", updated["fee_status"])
	s.Equal("afternoon", updated["assigned_shift"])

	w, body = s.do(http.MethodGet, "/v1/students", s.adminToken, "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(body["students"], 2)

	w, _ = s.do(http.MethodDelete, "/v1/students/"+id, s.adminToken, "")
	s.Require().Equal(http.StatusOK, w.Code)

	w, body = s.do(http.MethodGet, "/v1/students/"+id, s.adminToken, "")
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("not_found", body["kind"])

	w, _ = s.do(http.MethodDelete, "/v1/students/"+id, s.adminToken, "")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestHealthz() {
	w, body := s.do(http.MethodGet, "/healthz", "", "")
	s.Equal(http.StatusOK, w.Code)
	s.Equal(true, body["db"])
	s.Equal("nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestHealthzStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	signer := auth.NewSigner("geoattend", "test-key", time.Minute, time.Hour)

	cases := []struct {
		name   string
		checks []httpapi.HealthCheck
		status int
		want   string
	}{
		{"no dependencies", nil, http.StatusOK, "ok"},
		{"all healthy", []httpapi.HealthCheck{{Name: "db", Check: func(context.Context) bool { return true }}}, http.StatusOK, "ok"},
		{"redis down", []httpapi.HealthCheck{
			{Name: "db", Check: func(context.Context) bool { return true }},
			{Name: "redis", Check: func(context.Context) bool { return false }},
		}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httpapi.NewRouter(httpapi.NewHandler(nil, nil, signer, nil), httpapi.RouterConfig{Health: tc.checks})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.want, body["status"])
		})
	}
}
