package srv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ScanReport 一次扫描的结论
type ScanReport struct {
	Infected         bool   `json:"infected"`
	ThreatName       string `json:"threat_name"`
	ScannerVersion   string `json:"scanner_version"`
	SignatureVersion string `json:"signature_version"`
}

// Scanner 扫描引擎抽象。引擎只回答文件是否感染，
// 处置动作由调用方按租户策略决定
type Scanner interface {
	Scan(ctx context.Context, name string, content []byte) (*ScanReport, error)
}

// NoopScanner 未配置扫描引擎时的占位实现，所有文件视为干净
type NoopScanner struct{}

func (NoopScanner) Scan(ctx context.Context, name string, content []byte) (*ScanReport, error) {
	return &ScanReport{
		Infected:       false,
		ScannerVersion: "noop",
	}, nil
}

// HTTPScanner 通过 HTTP 调用外部扫描服务（如 clamd 的 REST 网关）
type HTTPScanner struct {
	endpoint string
	client   *http.Client
}

func NewHTTPScanner(endpoint string) *HTTPScanner {
	return &HTTPScanner{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: time.Minute * 2,
		},
	}
}

func (s *HTTPScanner) Scan(ctx context.Context, name string, content []byte) (*ScanReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-File-Name", name)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scanner responded with status %d", resp.StatusCode)
	}

	var report ScanReport
	if err = json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode scanner response: %w", err)
	}
	return &report, nil
}
