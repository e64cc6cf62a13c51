package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rednote/cache"
	"github.com/use-agent/rednote/models"
)

// NoteScraper is the scraping dependency of the handler. Satisfied by
// *scraper.Scraper.
type NoteScraper interface {
	ScrapeNote(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error)
}

// Scrape returns a handler for POST /api/v1/scrape.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup (when max_age_ms is set).
//  3. ScrapeNote → normalized note (+ optional Markdown body)
//  4. Fill Timing, cache store, return 200.
func Scrape(sc NoteScraper, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScrapeResponse{
				Status: models.StatusError,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		// ── 2. Cache lookup ─────────────────────────────────────────
		var cacheKey string
		if cc != nil && req.MaxAgeMs > 0 {
			cacheKey = cache.Key(req.URL, req.IncludeContent)
			if cached, hit := cc.Get(cacheKey, req.MaxAgeMs); hit {
				out := *cached
				out.CacheStatus = "hit"
				out.Timing = models.TimingInfo{
					TotalMs: time.Since(totalStart).Milliseconds(),
				}
				c.JSON(http.StatusOK, out)
				return
			}
		}

		// ── 3. Scrape ───────────────────────────────────────────────
		navStart := time.Now()
		result, err := sc.ScrapeNote(c.Request.Context(), &req)
		navigationMs := time.Since(navStart).Milliseconds()

		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs:      time.Since(totalStart).Milliseconds(),
				NavigationMs: navigationMs,
			})
			return
		}

		// ── 4. Respond (and store) ──────────────────────────────────
		resp := models.ScrapeResponse{
			Status:    models.StatusSuccess,
			Data:      result.Note,
			ContentMD: result.ContentMD,
			Timing: models.TimingInfo{
				TotalMs:      time.Since(totalStart).Milliseconds(),
				NavigationMs: navigationMs,
			},
		}

		if cc != nil && cacheKey != "" {
			cc.Set(cacheKey, &resp)
			resp.CacheStatus = "miss"
		}

		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response. Extraction failures carry the diagnostic
// detail so callers can tell structural drift apart from blocking.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.ScrapeResponse{
		Status:  models.StatusError,
		Error:   scrapeErr.ToDetail(),
		Failure: scrapeErr.Failure,
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput,
		models.ErrCodeNoInitialState,
		models.ErrCodeNoteDetailMissing:
		return http.StatusBadRequest // 400
	case models.ErrCodeRiskControl:
		return http.StatusForbidden // 403
	case models.ErrCodeNoLoginSession, models.ErrCodeCredential:
		return http.StatusConflict // 409
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
