package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/absen-kiosk/internal/facematch"
)

const (
	defaultSidecarURL     = "http://localhost:8000"
	DefaultSidecarTimeout = 10 * time.Second
	uploadQuality         = 90
	maxErrorBody          = 512
)

// EmbeddingClient talks to the face sidecar. It detects faces in camera
// frames and turns normalized face crops into embeddings.
type EmbeddingClient struct {
	baseURL string
	client  *http.Client
}

// NewEmbeddingClient creates a client for the sidecar at baseURL. Every
// request is abandoned after timeout, DefaultSidecarTimeout when not positive.
func NewEmbeddingClient(baseURL string, timeout time.Duration) *EmbeddingClient {
	if baseURL == "" {
		baseURL = defaultSidecarURL
	}
	if timeout <= 0 {
		timeout = DefaultSidecarTimeout
	}
	return &EmbeddingClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type sidecarEmbedding struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

type sidecarFace struct {
	BBox     []float64 `json:"bbox"` // x1, y1, x2, y2
	DetScore float64   `json:"det_score"`
}

type sidecarFaces struct {
	Faces []sidecarFace `json:"faces"`
	Model string        `json:"model"`
}

// uploadFrame posts img as the "file" part of a multipart form and decodes
// the JSON answer into T.
func uploadFrame[T any](ctx context.Context, c *EmbeddingClient, path string, img image.Image) (*T, error) {
	jpg, err := EncodeJPEG(img, uploadQuality)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := form.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(jpg); err != nil {
		return nil, fmt.Errorf("failed to write frame: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return &out, nil
}

// send performs req and turns any non-2xx answer into an error. The caller
// closes the body of a successful response.
func (c *EmbeddingClient) send(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req) //nolint:gosec // sidecar URL comes from config
	if err != nil {
		return nil, fmt.Errorf("sidecar request failed: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, fmt.Errorf("sidecar %s answered with status %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
}

// Detect returns the faces found in a frame. Boxes without four corners are dropped.
func (c *EmbeddingClient) Detect(ctx context.Context, frame image.Image) ([]facematch.Detection, error) {
	resp, err := uploadFrame[sidecarFaces](ctx, c, "/embed/face", frame)
	if err != nil {
		return nil, err
	}

	detections := make([]facematch.Detection, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if box, ok := facematch.BoxFromSlice(f.BBox); ok {
			detections = append(detections, facematch.Detection{Box: box, Score: f.DetScore})
		}
	}
	return detections, nil
}

// Embed computes the embedding of a normalized face crop.
func (c *EmbeddingClient) Embed(ctx context.Context, face image.Image) ([]float32, error) {
	resp, err := uploadFrame[sidecarEmbedding](ctx, c, "/embed/image", face)
	if err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("sidecar returned an empty embedding")
	}
	if resp.Dim > 0 && resp.Dim != len(resp.Embedding) {
		return nil, fmt.Errorf("sidecar reported dimension %d for %d values", resp.Dim, len(resp.Embedding))
	}
	return resp.Embedding, nil
}

// ReleaseScratch asks the sidecar to free cached accelerator memory.
func (c *EmbeddingClient) ReleaseScratch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/release", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
