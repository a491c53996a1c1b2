package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"svgserve/internal/cache"
	"svgserve/internal/render"
	"svgserve/internal/theme"
	u "svgserve/internal/utils"
)

// RenderRequest holds the validated input parameters. It is built once per
// request and never mutated afterwards.
type RenderRequest struct {
	StyleID          int
	LanguageID       int
	ResourceName     string
	ClientModifiedAt int64
}

// SVGService bundles configuration and dependencies for SVG rendering.
type SVGService struct {
	Config   *u.Config
	Cache    cache.Store
	Renderer render.Renderer
}

// NewSVGService creates a new SVGService instance.
func NewSVGService(cfg u.Config, store cache.Store, renderer render.Renderer) *SVGService {
	return &SVGService{
		Config:   &cfg, // convert value to pointer
		Cache:    store,
		Renderer: renderer,
	}
}

// HandleSVGRender returns a Fiber handler for SVG requests.
func HandleSVGRender(cfg u.Config, rdb *redis.Client, renderer render.Renderer) fiber.Handler {
	svc := NewSVGService(cfg, cache.New(cfg, rdb), renderer)
	return svc.HandleRender
}

// HandleRender serves one SVG request: conditional GET first, then cache,
// then a full render.
func (svc *SVGService) HandleRender(c *fiber.Ctx) error {
	req := resolveSVGParams(c)

	if !shouldRender(req, c.Get(fiber.HeaderIfModifiedSince)) {
		return c.SendStatus(fiber.StatusNotModified)
	}

	return svc.processSVGRender(c, req)
}

// resolveSVGParams parses the raw query parameters. Malformed numeric input
// degrades to 0; it never fails.
func resolveSVGParams(c *fiber.Ctx) RenderRequest {
	req := RenderRequest{
		StyleID:      int(leadingInt(c.Query("style"))),
		LanguageID:   int(leadingInt(c.Query("language"))),
		ResourceName: c.Query("svg"),
	}
	if d := c.Query("d"); d != "" {
		req.ClientModifiedAt = leadingInt(d)
	}
	return req
}

// leadingInt parses the longest numeric prefix of s ("12abc" is 12, "abc" is
// 0). Negative values clamp to 0.
func leadingInt(s string) int64 {
	var n int64
	for _, r := range strings.TrimSpace(s) {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int64(r-'0')
		if n < 0 {
			// overflowed
			return 0
		}
	}
	return n
}

// shouldRender is the conditional-GET gate: false means the client's copy is
// current and a 304 must be sent. An unparseable header always renders.
func shouldRender(req RenderRequest, ifModifiedSince string) bool {
	if ifModifiedSince == "" || req.ClientModifiedAt == 0 {
		return true
	}
	t, err := http.ParseTime(ifModifiedSince)
	if err != nil {
		return true
	}
	return req.ClientModifiedAt > t.Unix()
}

// processSVGRender handles caching and SVG rendering.
func (svc *SVGService) processSVGRender(c *fiber.Ctx, req RenderRequest) error {
	name := strings.TrimSpace(req.ResourceName)
	if name == "" {
		// Nothing to render: normal headers, empty body.
		svc.writeSVGHeaders(c, 0)
		return nil
	}

	// Context resolution happens before the key is computed so the text
	// direction is part of the key.
	renderCtx := theme.Resolve(req.StyleID, req.LanguageID, theme.Snapshot())
	cacheKey := computeSVGCacheKey(req, renderCtx.Direction)

	if entry, ok := svc.Cache.Load(c.Context(), cacheKey); ok {
		u.Info("SVG cache hit", "key", cacheKey, "svg", name)
		svc.writeSVGHeaders(c, entry.LastModified)
		return c.Send(entry.Body)
	}

	body, err := svc.Renderer.Render(name+".svg", renderCtx)
	if err != nil {
		// Renderer failure is fatal to the request; nothing is cached.
		u.Error("SVG rendering failed", "svg", name, "error", err.Error())
		return fiber.NewError(fiber.StatusInternalServerError, "SVG rendering failed: "+err.Error())
	}

	svc.Cache.Save(c.Context(), cacheKey, &cache.Entry{
		LastModified: renderCtx.StyleLastModified,
		Body:         body,
	})

	requestID := c.Get("X-Request-ID")
	u.Info("SVG rendered", "svg", name, "style", renderCtx.StyleID, "language", renderCtx.LanguageID, "request_id", requestID)

	svc.writeSVGHeaders(c, renderCtx.StyleLastModified)
	return c.Send(body)
}

// computeSVGCacheKey creates a SHA256-based cache key over the canonical
// field-prefixed concatenation of every render-affecting input.
func computeSVGCacheKey(req RenderRequest, dir theme.Direction) string {
	h := sha256.New()
	fmt.Fprintf(h, "style=%d|language=%d|svg=%s|d=%d|dir=%s",
		req.StyleID, req.LanguageID, req.ResourceName, req.ClientModifiedAt, dir)
	return "svgcache:" + hex.EncodeToString(h.Sum(nil))
}

func (svc *SVGService) writeSVGHeaders(c *fiber.Ctx, lastModified int64) {
	expires := svc.Config.SVG.ExpiresTTL.Std()
	if expires <= 0 {
		expires = 365 * 24 * time.Hour
	}

	c.Set(fiber.HeaderContentType, "image/svg+xml; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "public")
	c.Set(fiber.HeaderExpires, time.Now().Add(expires).UTC().Format(http.TimeFormat))
	if lastModified > 0 {
		c.Set(fiber.HeaderLastModified, time.Unix(lastModified, 0).UTC().Format(http.TimeFormat))
	}
}
