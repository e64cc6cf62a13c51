package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// scrapeRequest mirrors the Rednote API request model.
type scrapeRequest struct {
	URL            string `json:"url"`
	Timeout        int    `json:"timeout,omitempty"`
	IncludeContent bool   `json:"include_content,omitempty"`
}

// scrapeResponse mirrors the Rednote API response model.
type scrapeResponse struct {
	Status string `json:"status"`
	Data   *struct {
		Title     string   `json:"title"`
		Desc      string   `json:"desc"`
		Type      string   `json:"type"`
		ImageList []string `json:"image_list"`
		User      string   `json:"user"`
		RawURL    string   `json:"raw_url"`
	} `json:"data"`
	ContentMD string `json:"content_md"`
	Error     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Failure *struct {
		Reason    string `json:"reason"`
		PageTitle string `json:"page_title"`
	} `json:"failure"`
}

// loginWaitResponse mirrors the Rednote login wait API response model.
type loginWaitResponse struct {
	Status string `json:"status"`
	Data   struct {
		CookiesCount int `json:"cookies_count"`
	} `json:"data"`
}

func main() {
	apiURL := os.Getenv("REDNOTE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}
	apiKey := os.Getenv("REDNOTE_API_KEY")

	s := server.NewMCPServer(
		"rednote",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	scrapeNoteTool := mcp.NewTool("scrape_note",
		mcp.WithDescription("Fetch a xiaohongshu note by URL and return its structured metadata (title, description, images, author). Share links (xhslink.com) are resolved automatically."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The note URL or share link to scrape"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Maximum seconds for the scrape (default: 30, max: 120)"),
		),
		mcp.WithBoolean("include_content",
			mcp.Description("Additionally render the note body as Markdown"),
		),
	)
	s.AddTool(scrapeNoteTool, handleScrapeNote(apiURL, apiKey))

	loginQRTool := mcp.NewTool("login_qr",
		mcp.WithDescription("Start a QR login challenge and return the QR code image. Scan it with the mobile app, then call login_wait."),
	)
	s.AddTool(loginQRTool, handleLoginQR(apiURL, apiKey))

	loginWaitTool := mcp.NewTool("login_wait",
		mcp.WithDescription("Wait for a previously issued QR login challenge to complete. Returns 'success' once the session validates, or 'waiting' if the timeout elapsed before a scan."),
		mcp.WithNumber("timeout",
			mcp.Description("Maximum seconds to wait (default: 120, max: 300)"),
		),
	)
	s.AddTool(loginWaitTool, handleLoginWait(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiGet sends a GET request to the Rednote API and returns the response body
// and content type.
func apiGet(ctx context.Context, client *http.Client, apiURL, apiKey, path string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	return body, resp.Header.Get("Content-Type"), err
}

func handleScrapeNote(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 150 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		reqBody := scrapeRequest{
			URL:            url,
			Timeout:        request.GetInt("timeout", 0),
			IncludeContent: request.GetBool("include_content", false),
		}

		body, err := json.Marshal(reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/v1/scrape", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var scrapeResp scrapeResponse
		if err := json.Unmarshal(respBody, &scrapeResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if scrapeResp.Status != "success" || scrapeResp.Data == nil {
			errMsg := "scrape failed"
			if scrapeResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", scrapeResp.Error.Code, scrapeResp.Error.Message)
			}
			if scrapeResp.Failure != nil {
				errMsg += fmt.Sprintf(" (reason: %s, page title: %q)",
					scrapeResp.Failure.Reason, scrapeResp.Failure.PageTitle)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		d := scrapeResp.Data
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Title: %s\nAuthor: %s\nType: %s\nSource: %s\n",
			d.Title, d.User, d.Type, d.RawURL))
		if d.Desc != "" {
			sb.WriteString("\n" + d.Desc + "\n")
		}
		if len(d.ImageList) > 0 {
			sb.WriteString(fmt.Sprintf("\nImages (%d):\n", len(d.ImageList)))
			for _, img := range d.ImageList {
				sb.WriteString(img + "\n")
			}
		}
		if scrapeResp.ContentMD != "" {
			sb.WriteString("\n---\n" + scrapeResp.ContentMD)
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleLoginQR(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body, contentType, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/login/qr")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("login QR request failed: %v", err)), nil
		}

		if !strings.HasPrefix(contentType, "image/") {
			// Error responses come back as JSON.
			return mcp.NewToolResultError(fmt.Sprintf("login QR failed: %s", string(body))), nil
		}

		encoded := base64.StdEncoding.EncodeToString(body)
		return mcp.NewToolResultImage(
			"Scan this QR code with the xiaohongshu app, then call login_wait.",
			encoded, contentType), nil
	}
}

func handleLoginWait(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 330 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := "/api/v1/login/wait"
		if sec := request.GetInt("timeout", 0); sec > 0 {
			path += "?timeout=" + strconv.Itoa(sec)
		}

		body, _, err := apiGet(ctx, client, apiURL, apiKey, path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("login wait request failed: %v", err)), nil
		}

		var waitResp loginWaitResponse
		if err := json.Unmarshal(body, &waitResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		switch waitResp.Status {
		case "success":
			return mcp.NewToolResultText(fmt.Sprintf(
				"Login succeeded: session validated (%d cookies).", waitResp.Data.CookiesCount)), nil
		case "waiting":
			return mcp.NewToolResultText(fmt.Sprintf(
				"Still waiting for a scan (%d cookies so far). Call login_wait again.", waitResp.Data.CookiesCount)), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("login wait failed: %s", string(body))), nil
		}
	}
}
