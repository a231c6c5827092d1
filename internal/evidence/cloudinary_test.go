package evidence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudinary_Upload(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1_1/demo/image/upload", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		form = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			form[k] = v[0]
		}
		_, _ = w.Write([]byte(`{"public_id":"att/1","secure_url":"https://res.cloudinary.com/demo/att/1.jpg"}`))
	}))
	defer srv.Close()

	c := NewCloudinary("demo", "key", "secret", "attendance")
	c.BaseURL = srv.URL
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	url, err := c.Upload(context.Background(), Photo{MIME: "image/png", Data: "QUJD"})
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/att/1.jpg", url)
	assert.Equal(t, "data:image/png;base64,QUJD", form["file"])
	assert.Equal(t, "attendance", form["folder"])
	assert.Equal(t, "1700000000", form["timestamp"])
	assert.Equal(t, c.sign(map[string]string{"folder": "attendance", "timestamp": "1700000000"}), form["signature"])
}

func TestCloudinary_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid Signature"}}`))
	}))
	defer srv.Close()

	c := NewCloudinary("demo", "key", "secret", "")
	c.BaseURL = srv.URL

	_, err := c.Upload(context.Background(), Photo{Data: "QUJD"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestCloudinary_NotConfigured(t *testing.T) {
	_, err := NewCloudinary("", "", "", "").Upload(context.Background(), Photo{Data: "QUJD"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
