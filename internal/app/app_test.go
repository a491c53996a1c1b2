package app

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"svgserve/internal/theme"
	u "svgserve/internal/utils"
)

func testAppCfg() u.Config {
	var cfg u.Config
	cfg.Cache.RedisHost = "127.0.0.1:1" // nothing listens here; limiter falls back to memory
	cfg.Cache.SVGCacheEnabled = false
	return cfg
}

func TestSetupApp_NotFoundIsJSON(t *testing.T) {
	app := SetupApp(testAppCfg(), nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/nope", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(resp.Body)
	assert.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, fiber.StatusNotFound, body.Error.Code)
	assert.Equal(t, "Not Found", body.Error.Message)
}

func TestSetupApp_SVGRouteWired(t *testing.T) {
	app := SetupApp(testAppCfg(), nil)

	// Empty resource name is a graceful no-op with SVG headers.
	resp, err := app.Test(httptest.NewRequest("GET", "/v1/svg?svg=", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml; charset=utf-8", resp.Header.Get("Content-Type"))
	raw, _ := io.ReadAll(resp.Body)
	assert.Empty(t, raw)

	// A missing template surfaces as a JSON 500.
	resp, err = app.Test(httptest.NewRequest("GET", "/v1/svg?svg=missing", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestReadinessProbeTracksThemeTables(t *testing.T) {
	app := SetupApp(testAppCfg(), nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/readyz", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	theme.LoadFromMap(nil, nil, 0, 0)

	resp, err = app.Test(httptest.NewRequest("GET", "/readyz", nil))
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
