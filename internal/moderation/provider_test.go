package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClassifierImageRequest(t *testing.T) {
	assert := assert.New(t)

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/moderate-image", r.URL.Path)
		assert.Equal(http.MethodPost, r.Method)
		assert.Equal("Bearer secret-key", r.Header.Get("Authorization"))
		assert.Equal("application/json", r.Header.Get("Content-Type"))
		assert.NoError(json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"risk":0.65,"tags":["nudity","nudity"],"confidence":0.7,"extra":"ignored"}`))
	}))
	defer srv.Close()

	hc := NewHTTPClassifier(srv.URL+"/", "secret-key")
	v, err := hc.ClassifyImage(context.Background(), "https://cdn.example/thumb.jpg")
	require.NoError(t, err)
	assert.Equal(0.65, v.Risk)
	assert.Equal([]string{"nudity"}, v.Tags)
	assert.Equal(0.7, v.Confidence)
	assert.Equal("https://cdn.example/thumb.jpg", got["image_url"])
	assert.Equal(true, got["fast_mode"])
}

func TestHTTPClassifierDeepRequest(t *testing.T) {
	assert := assert.New(t)

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/moderate-deep", r.URL.Path)
		assert.NoError(json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"risk":0.1,"confidence":0.9}`))
	}))
	defer srv.Close()

	hc := NewHTTPClassifier(srv.URL, "k")
	v, err := hc.AnalyzeDeep(context.Background(), Input{
		Type:         ContentVideo,
		MediaRef:     "https://cdn.example/v.mp4",
		ThumbnailRef: "https://cdn.example/v.jpg",
		Metadata:     &Metadata{DurationSeconds: 12, SizeBytes: 2048},
	})
	require.NoError(t, err)
	assert.Equal(0.1, v.Risk)
	assert.Empty(v.Tags)

	assert.Equal("VIDEO", got["type"])
	assert.Equal("https://cdn.example/v.mp4", got["media_url"])
	assert.NotContains(got, "text")
	meta := got["metadata"].(map[string]any)
	assert.Equal(12.0, meta["duration"])
	assert.Equal(2048.0, meta["size"])
}

func TestHTTPClassifierFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"server error":        {http.StatusInternalServerError, `{"risk":0.1,"confidence":0.9}`},
		"unauthorized":        {http.StatusUnauthorized, ``},
		"not json":            {http.StatusOK, `<html>oops</html>`},
		"missing risk":        {http.StatusOK, `{"tags":[],"confidence":0.9}`},
		"missing confidence":  {http.StatusOK, `{"risk":0.3}`},
		"risk out of range":   {http.StatusOK, `{"risk":1.5,"confidence":0.9}`},
		"risk wrong type":     {http.StatusOK, `{"risk":"high","confidence":0.9}`},
		"tags wrong type":     {http.StatusOK, `{"risk":0.3,"tags":"spam","confidence":0.9}`},
		"negative confidence": {http.StatusOK, `{"risk":0.3,"confidence":-1}`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			hc := NewHTTPClassifier(srv.URL, "k")
			v, err := hc.ClassifyImage(context.Background(), "https://cdn.example/t.jpg")
			assert.Nil(t, v)
			var perr *ProviderError
			require.True(t, errors.As(err, &perr), "expected ProviderError, got %v", err)
			assert.Equal(t, endpointImage, perr.Endpoint)
		})
	}
}

func TestHTTPClassifierUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	hc := NewHTTPClassifier(url, "k")
	_, err := hc.AnalyzeDeep(context.Background(), Input{Type: ContentText, Text: "hi"})
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 0, perr.StatusCode)
}
