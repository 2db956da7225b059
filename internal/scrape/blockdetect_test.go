package scrape

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   BlockType
	}{
		{"cloudflare ray", 403, http.Header{"Cf-Ray": {"abc123"}}, "", BlockCloudflare},
		{"cloudflare server", 503, http.Header{"Server": {"cloudflare"}}, "", BlockCloudflare},
		{"ddos-guard server", 403, http.Header{"Server": {"ddos-guard"}}, "", BlockDDoSGuard},
		{"qrator header", 401, http.Header{"X-Qrator-Id": {"1"}}, "", BlockQrator},
		{"ddos-guard body", 200, http.Header{}, "<html><script src=/.well-known/ddos-guard/js></script></html>", BlockDDoSGuard},
		{"cloudflare challenge", 200, http.Header{}, "<html>Checking your browser before accessing</html>", BlockCloudflare},
		{"recaptcha", 200, http.Header{}, "<html><body>Please complete the reCAPTCHA to continue</body></html>", BlockCaptcha},
		{"russian captcha", 200, http.Header{}, "<html><body>Подтвердите, что вы не робот</body></html>", BlockCaptcha},
		{"js shell", 200, http.Header{}, "<html><noscript>Enable JavaScript to continue</noscript></html>", BlockJSShell},
		{"meta refresh", 200, http.Header{}, `<html><meta http-equiv="refresh" content="0;url=/x"></html>`, BlockJSShell},
		{"clean page", 200, http.Header{}, "<html><body>Ноутбук Acer Aspire 5, цена 45 000 руб.</body></html>", BlockNone},
		{"plain 404", 404, http.Header{}, "<html>not found</html>", BlockNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.status, Header: tt.header}
			blocked, bt := DetectBlock(resp, []byte(tt.body))
			assert.Equal(t, tt.want != BlockNone, blocked)
			assert.Equal(t, tt.want, bt)
		})
	}
}

func TestDetectBlock_LargeCatalogueWithCaptchaWidget(t *testing.T) {
	body := "<html><body>" + strings.Repeat("<p>Ноутбук Acer</p>", 5000) + "<div class=g-recaptcha></div></body></html>"
	blocked, _ := DetectBlock(&http.Response{StatusCode: 200, Header: http.Header{}}, []byte(body))
	assert.False(t, blocked)
}

func TestDetectBlock_NilResponse(t *testing.T) {
	blocked, bt := DetectBlock(nil, nil)
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, bt)
}
