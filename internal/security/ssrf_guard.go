package security

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedSchemes は外部呼び出しで許可されるURLスキーム。
var allowedSchemes = []string{"https"}

// allowedPorts は外部呼び出しで許可されるポート。
var allowedPorts = []int{443}

// NewSafeClient はOAuthプロバイダー呼び出し用のSSRF防止機能付きHTTPクライアントを生成する。
// safeurlのデフォルト設定により以下がブロックされる:
//   - プライベートIPアドレス (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16)
//   - ループバックアドレス (127.0.0.0/8, ::1)
//   - リンクローカルアドレス (169.254.0.0/16, fe80::/10)
//
// safeurlはnet.DialerのControlフックでDNS解決後のIPアドレスを検証するため、
// DNS再バインディング攻撃にも対応している。
func NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(allowedPorts...).
		Build()

	return safeurl.Client(config).Client
}
