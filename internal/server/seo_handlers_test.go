package server

import (
	"io"
	"net/http"
	"testing"

	"explorer/internal/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSitemap(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/sitemap.xml", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/xml")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "<loc>https://explorer.example.com/</loc>")
	assert.Contains(t, body, "<loc>https://explorer.example.com/province/2/district/23/city/Nuwara%20Eliya</loc>")
}

func TestRobots(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/robots.txt", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Sitemap: https://explorer.example.com/sitemap.xml")
	assert.Contains(t, string(raw), "Disallow: /profile")
}

func TestLocations(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/locations", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeEnvelope(t, resp)
	require.NotNil(t, body.Count)
	assert.Equal(t, 9, *body.Count)

	resp = env.do(t, http.MethodGet, "/api/locations/3", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var province geo.Province
	decodeData(t, decodeEnvelope(t, resp), &province)
	assert.Equal(t, "Southern Province", province.Name)
	assert.NotEmpty(t, province.Districts)

	resp = env.do(t, http.MethodGet, "/api/locations/99", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Province not found", decodeEnvelope(t, resp).Message)
}
