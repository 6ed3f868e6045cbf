package video

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(idx int64) *Frame {
	return &Frame{
		Image:      image.NewRGBA(image.Rect(0, 0, 16, 16)),
		Index:      idx,
		CapturedAt: time.Unix(10000, 0),
	}
}

func TestHTTPTracker_Infer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		assert.Equal(t, "3", r.URL.Query().Get("frame"))

		json.NewEncoder(w).Encode([]TrackedObject{
			{TrackID: 42, Box: BoundingBox{X1: 1, Y1: 2, X2: 3, Y2: 4}, Class: "bus", Confidence: 0.7},
		})
	}))
	defer srv.Close()

	tracker := NewHTTPTracker(srv.URL, 90)
	objs, err := tracker.Infer(context.Background(), testFrame(3))
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, int64(42), objs[0].TrackID)
	assert.Equal(t, "bus", objs[0].Class)
}

func TestHTTPTracker_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tracker := NewHTTPTracker(srv.URL, 90)
	_, err := tracker.Infer(context.Background(), testFrame(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestHTTPTracker_DeadlineExceeded(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	tracker := NewHTTPTracker(srv.URL, 90)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tracker.Infer(ctx, testFrame(0))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
