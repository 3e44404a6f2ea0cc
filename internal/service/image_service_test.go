package service

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name  string
	image []byte
	err   error
	calls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Generate(ctx context.Context, prompt string) ([]byte, error) {
	p.calls++
	return p.image, p.err
}

func TestImageChain_FirstSuccessWins(t *testing.T) {
	failing := &stubProvider{name: "a", err: errors.New("quota")}
	notImage := &stubProvider{name: "b", image: []byte("<html>oops</html>")}
	good := &stubProvider{name: "c", image: pngHeader}
	unused := &stubProvider{name: "d", image: pngHeader}

	got := NewImageChain(failing, notImage, good, unused).GenerateImage(context.Background(), "beach")

	assert.Equal(t, pngHeader, got)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, notImage.calls)
	assert.Equal(t, 1, good.calls)
	assert.Equal(t, 0, unused.calls)
}

func TestImageChain_AllFail(t *testing.T) {
	p := &stubProvider{name: "a", err: errors.New("down")}

	assert.Nil(t, NewImageChain(p).GenerateImage(context.Background(), "beach"))
}

func TestImageChain_EmptyPromptSkipsProviders(t *testing.T) {
	p := &stubProvider{name: "a", image: pngHeader}

	assert.Nil(t, NewImageChain(p).GenerateImage(context.Background(), "  "))
	assert.Equal(t, 0, p.calls)
}

func TestOpenAIImageProvider_DecodesBase64(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"` + base64.StdEncoding.EncodeToString(pngHeader) + `"}]}`))
	}))
	defer srv.Close()

	image, err := NewOpenAIImageProvider(srv.URL, "key", "dall-e-3").Generate(context.Background(), "beach")

	require.NoError(t, err)
	assert.Equal(t, pngHeader, image)
}

func TestOpenAIImageProvider_ReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"content policy"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIImageProvider(srv.URL, "key", "gpt-image-1").Generate(context.Background(), "beach")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "content policy")
}

func TestStabilityImageProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		if r.FormValue("prompt") == "bad" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"name":"bad_request","errors":["prompt too short"]}`))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	p := NewStabilityImageProvider(srv.URL, "key")

	image, err := p.Generate(context.Background(), "mountain lake")
	require.NoError(t, err)
	assert.Equal(t, pngHeader, image)

	_, err = p.Generate(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt too short")
}
