package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/eleven-am/pose-bridge/internal/pose"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	jpegQuality        = 90
)

type HTTPConfig struct {
	URL     string
	Timeout time.Duration
}

// HTTPBackend talks to a pose inference sidecar. The sidecar is stateless
// per request, so a loaded model only records the options to send along
// with each frame.
type HTTPBackend struct {
	httpClient *http.Client
	baseURL    string
}

func NewHTTPBackend(cfg HTTPConfig) *HTTPBackend {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}

	return &HTTPBackend{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.URL, "/"),
	}
}

type modelInfo struct {
	Name      string   `json:"name"`
	Delegates []string `json:"delegates"`
}

type detectRequest struct {
	Model                  string  `json:"model"`
	Delegate               string  `json:"delegate"`
	NumPoses               int     `json:"num_poses"`
	MinDetectionConfidence float64 `json:"min_detection_confidence"`
	MinPresenceConfidence  float64 `json:"min_presence_confidence"`
	MinTrackingConfidence  float64 `json:"min_tracking_confidence"`
	Image                  []byte  `json:"image"`
}

type sidecarError struct {
	Error string `json:"error"`
}

func (b *HTTPBackend) Load(ctx context.Context, cfg pose.SessionConfig) (Model, error) {
	info, err := b.lookupModel(ctx, cfg.ModelPath)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(info.Delegates, string(cfg.Delegate)) {
		return nil, pose.NewInitError(pose.ErrBackendUnavailable,
			fmt.Errorf("delegate %s not supported for %s", cfg.Delegate, cfg.ModelPath))
	}

	return &httpModel{backend: b, cfg: cfg}, nil
}

func (b *HTTPBackend) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (b *HTTPBackend) lookupModel(ctx context.Context, name string) (*modelInfo, error) {
	endpoint := b.baseURL + "/v1/models/" + url.PathEscape(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pose.NewInitError(pose.ErrBackendUnavailable, fmt.Errorf("create request: %w", err))
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, pose.NewInitError(pose.ErrBackendUnavailable, fmt.Errorf("model lookup: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, pose.NewInitError(pose.ErrModelNotFound, fmt.Errorf("%s", name))
	case resp.StatusCode != http.StatusOK:
		return nil, pose.NewInitError(pose.ErrBackendUnavailable, statusError(resp))
	}

	var info modelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, pose.NewInitError(pose.ErrBackendUnavailable, fmt.Errorf("decode model info: %w", err))
	}
	return &info, nil
}

type httpModel struct {
	backend *HTTPBackend
	cfg     pose.SessionConfig
	closed  atomic.Bool
}

func (m *httpModel) Detect(ctx context.Context, img image.Image) (*pose.RawResult, error) {
	if m.closed.Load() {
		return nil, ErrAdapterClosed
	}

	var encoded bytes.Buffer
	if err := jpeg.Encode(&encoded, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	body, err := json.Marshal(detectRequest{
		Model:                  m.cfg.ModelPath,
		Delegate:               string(m.cfg.Delegate),
		NumPoses:               m.cfg.MaxPoses,
		MinDetectionConfidence: m.cfg.MinDetectionConfidence,
		MinPresenceConfidence:  m.cfg.MinPresenceConfidence,
		MinTrackingConfidence:  m.cfg.MinTrackingConfidence,
		Image:                  encoded.Bytes(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.backend.baseURL+"/v1/detect", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.backend.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var result pose.RawResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func (m *httpModel) Close() error {
	m.closed.Store(true)
	return nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body sidecarError
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return fmt.Errorf("sidecar returned status %d: %s", resp.StatusCode, body.Error)
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return fmt.Errorf("sidecar returned status %d: %s", resp.StatusCode, msg)
	}
	return errors.New("sidecar returned status " + resp.Status)
}
