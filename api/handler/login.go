package handler

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rednote/models"
)

// LoginFlow is the QR login dependency of the handlers. Satisfied by
// *login.Orchestrator.
type LoginFlow interface {
	IssueChallenge(ctx context.Context, probeURL string) ([]byte, error)
	Poll(ctx context.Context, timeout time.Duration, verifyURL string) (*models.LoginWaitResponse, error)
	Close()
}

// LoginQR returns a handler for GET /api/v1/login/qr.
// It issues a fresh QR challenge and streams the screenshot back with a
// sniffed content type. Query param "url" overrides the probe page.
func LoginQR(lo LoginFlow) gin.HandlerFunc {
	return func(c *gin.Context) {
		img, err := lo.IssueChallenge(c.Request.Context(), c.Query("url"))
		if err != nil {
			respondError(c, err, models.TimingInfo{})
			return
		}
		contentType := sniffImageType(img)
		if contentType == "application/octet-stream" {
			respondError(c, models.NewScrapeError(models.ErrCodeBrowserCrash,
				"QR screenshot is not a recognizable image", nil), models.TimingInfo{})
			return
		}
		c.Data(http.StatusOK, contentType, img)
	}
}

// LoginWait returns a handler for GET /api/v1/login/wait.
// Query params: "timeout" (seconds), "url" (note URL used for the
// validation fetch). A poll that elapses without a validated credential
// answers 200 with status "waiting", never an error.
func LoginWait(lo LoginFlow) gin.HandlerFunc {
	return func(c *gin.Context) {
		var timeout time.Duration
		if raw := c.Query("timeout"); raw != "" {
			sec, err := strconv.Atoi(raw)
			if err != nil || sec < 0 {
				c.JSON(http.StatusBadRequest, models.ScrapeResponse{
					Status: models.StatusError,
					Error: &models.ErrorDetail{
						Code:    models.ErrCodeInvalidInput,
						Message: "timeout must be a non-negative integer",
					},
				})
				return
			}
			timeout = time.Duration(sec) * time.Second
		}

		resp, err := lo.Poll(c.Request.Context(), timeout, c.Query("url"))
		if err != nil {
			respondError(c, err, models.TimingInfo{})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// LoginClose returns a handler for POST /api/v1/login/close.
func LoginClose(lo LoginFlow) gin.HandlerFunc {
	return func(c *gin.Context) {
		lo.Close()
		c.JSON(http.StatusOK, gin.H{"status": models.StatusSuccess})
	}
}

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G'}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
)

// sniffImageType identifies the screenshot format from magic bytes.
// Chromium answers PNG for element captures but JPEG has been observed
// for viewport fallbacks under some headless builds.
func sniffImageType(img []byte) string {
	switch {
	case bytes.HasPrefix(img, pngMagic):
		return "image/png"
	case bytes.HasPrefix(img, jpegMagic):
		return "image/jpeg"
	case len(img) >= 12 && bytes.HasPrefix(img, riffMagic) && bytes.Equal(img[8:12], webpMagic):
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
