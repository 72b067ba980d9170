package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily は指定名のメトリクスファミリーを返す。見つからない場合はテストを失敗させる。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labeledCounter はラベル値が一致するカウンタの値を返す。
func labeledCounter(mf *dto.MetricFamily, label, value string) float64 {
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if NewCollector(prometheus.NewRegistry()) == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordAuthOutcome_CountsByOutcome は判定結果ごとに集計されることを検証する。
func TestRecordAuthOutcome_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthOutcome("authenticated")
	c.RecordAuthOutcome("authenticated")
	c.RecordAuthOutcome("invalid_token")

	mf := findMetricFamily(t, reg, "booklib_auth_gateway_total")
	if got := labeledCounter(mf, "outcome", "authenticated"); got != 2 {
		t.Errorf("authenticated = %v, want 2", got)
	}
	if got := labeledCounter(mf, "outcome", "invalid_token"); got != 1 {
		t.Errorf("invalid_token = %v, want 1", got)
	}
}

// TestRecordLogin_Counters はログイン成功・失敗カウンタを検証する。
func TestRecordLogin_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginSuccess()
	c.RecordLoginFailure("provider")
	c.RecordLoginFailure("provider")
	c.RecordLoginFailure("invalid_state")

	success := findMetricFamily(t, reg, "booklib_login_success_total")
	if got := success.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("login_success_total = %v, want 1", got)
	}

	fail := findMetricFamily(t, reg, "booklib_login_fail_total")
	if got := labeledCounter(fail, "reason", "provider"); got != 2 {
		t.Errorf("provider failures = %v, want 2", got)
	}
	if got := labeledCounter(fail, "reason", "invalid_state"); got != 1 {
		t.Errorf("invalid_state failures = %v, want 1", got)
	}
}

// TestRecordBookCreated_IncrementsCounter は蔵書登録カウンタが増加することを検証する。
func TestRecordBookCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBookCreated()
	c.RecordBookCreated()
	c.RecordBookCreated()

	mf := findMetricFamily(t, reg, "booklib_books_created_total")
	if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 3 {
		t.Errorf("books_created_total = %v, want 3", got)
	}
}

// TestNewHTTPMiddleware_RecordsStatusAndLatency はミドルウェアがステータスと処理時間を記録することを検証する。
func TestNewHTTPMiddleware_RecordsStatusAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	handler := NewHTTPMiddleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/", "/", "/missing"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	status := findMetricFamily(t, reg, "booklib_http_status_total")
	if got := labeledCounter(status, "status_code", "200"); got != 2 {
		t.Errorf("200 count = %v, want 2", got)
	}
	if got := labeledCounter(status, "status_code", "404"); got != 1 {
		t.Errorf("404 count = %v, want 1", got)
	}

	latency := findMetricFamily(t, reg, "booklib_http_request_duration_seconds")
	if got := latency.GetMetric()[0].GetHistogram().GetSampleCount(); got != 3 {
		t.Errorf("latency sample count = %v, want 3", got)
	}
}

// TestRecordRequestLatency_Observes はヒストグラムに観測値が入ることを検証する。
func TestRecordRequestLatency_Observes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(150 * time.Millisecond)

	mf := findMetricFamily(t, reg, "booklib_http_request_duration_seconds")
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", h.GetSampleCount())
	}
	if h.GetSampleSum() < 0.15 {
		t.Errorf("sample sum = %v, want >= 0.15", h.GetSampleSum())
	}
}

func TestRecordPanic_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPanic()

	mf := findMetricFamily(t, reg, "booklib_http_panics_total")
	if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("panics_total = %v, want 1", got)
	}
}

// TestHandler_ServesMetrics はスクレイプ用ハンドラーがメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordBookCreated()

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "booklib_books_created_total") {
		t.Error("response should contain booklib_books_created_total metric")
	}
}
