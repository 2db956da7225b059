package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockDDoSGuard  BlockType = "ddos_guard"
	BlockQrator     BlockType = "qrator"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// DetectBlock checks an HTTP response for signs of anti-bot protection,
// including the DDoS-Guard and Qrator walls common on Russian shops.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	server := strings.ToLower(resp.Header.Get("Server"))
	if resp.StatusCode == 403 || resp.StatusCode == 503 || resp.StatusCode == 429 || resp.StatusCode == 401 {
		switch {
		case resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" || server == "cloudflare":
			return true, BlockCloudflare
		case strings.Contains(server, "ddos-guard"):
			return true, BlockDDoSGuard
		case strings.Contains(server, "qrator") || resp.Header.Get("X-Qrator-Id") != "":
			return true, BlockQrator
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}

	if strings.Contains(lower, "ddos-guard") && len(body) < 20000 {
		return true, BlockDDoSGuard
	}

	// Full catalogue pages often embed a captcha widget for their forms.
	if len(body) < 50000 && (strings.Contains(lower, "captcha") ||
		strings.Contains(lower, "вы не робот") ||
		strings.Contains(lower, "проверка браузера")) {
		return true, BlockCaptcha
	}

	// JS-only shell: very small body with noscript or meta refresh.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, "meta http-equiv=\"refresh\"") {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
