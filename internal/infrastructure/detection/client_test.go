package detection

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ar-overlay/internal/domain/entity"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var testFrame = &entity.EncodedFrame{Data: []byte{0xff, 0xd8, 0xff}, MimeType: "image/jpeg", Width: 4, Height: 3}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClient_SendsFrameAndFacingMode(t *testing.T) {
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Equal(t, got.RequestID, r.Header.Get("X-Request-ID"))
		_, _ = io.WriteString(w, `{"detected": true, "overlay_url": "https://cdn/model.glb"}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, discardLogger)
	res, err := c.Detect(context.Background(), testFrame, entity.FacingUser)
	require.NoError(t, err)
	require.True(t, res.Detected)
	require.Equal(t, "https://cdn/model.glb", res.OverlayRef)

	require.Equal(t, "user", got.FacingMode)
	require.Equal(t, 4, got.Width)
	require.True(t, strings.HasPrefix(got.Image, "data:image/jpeg;base64,"))
	require.NotEmpty(t, got.RequestID)
}

func TestHTTPClient_ReachableButNotFound(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"valid": false, "objects": [], "overlay_url": "https://cdn/model.glb", "diagnostic_image": "data:image/png;base64,AA=="}`)

	c := NewHTTPClient(srv.URL, time.Second, discardLogger)
	res, err := c.Detect(context.Background(), testFrame, entity.FacingEnvironment)
	require.NoError(t, err)
	require.False(t, res.Detected)
	require.Empty(t, res.OverlayRef)
	require.Equal(t, "data:image/png;base64,AA==", res.DiagnosticImage)
}

func TestHTTPClient_ValidWithObjects(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"valid": true, "objects": [{"label": "marker"}], "overlay_url": "m.glb"}`)

	c := NewHTTPClient(srv.URL, time.Second, discardLogger)
	res, err := c.Detect(context.Background(), testFrame, entity.FacingEnvironment)
	require.NoError(t, err)
	require.True(t, res.Detected)
	require.Equal(t, "m.glb", res.OverlayRef)
}

func TestHTTPClient_ValidWithoutObjects(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"valid": true, "objects": []}`)

	c := NewHTTPClient(srv.URL, time.Second, discardLogger)
	res, err := c.Detect(context.Background(), testFrame, entity.FacingEnvironment)
	require.NoError(t, err)
	require.False(t, res.Detected)
}

func TestHTTPClient_TransportFailuresMapToNotDetected(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"detected": true}`},
		{"malformed", http.StatusOK, `{"detected": tru`},
		{"no detection field", http.StatusOK, `{"overlay_url": "m.glb"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := serve(t, tc.status, tc.body)
			c := NewHTTPClient(srv.URL, time.Second, discardLogger)
			res, err := c.Detect(context.Background(), testFrame, entity.FacingEnvironment)
			require.Error(t, err)
			require.Equal(t, entity.NotDetected(), res)
		})
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	srv := serve(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url, time.Second, discardLogger)
	res, err := c.Detect(context.Background(), testFrame, entity.FacingEnvironment)
	require.Error(t, err)
	require.False(t, res.Detected)
}

func TestHTTPClient_Cancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewHTTPClient(srv.URL, time.Minute, discardLogger)
	res, err := c.Detect(ctx, testFrame, entity.FacingEnvironment)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, res.Detected)
}

func TestHTTPClient_EmptyFrame(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", time.Second, discardLogger)
	_, err := c.Detect(context.Background(), &entity.EncodedFrame{}, entity.FacingEnvironment)
	require.Error(t, err)
}
