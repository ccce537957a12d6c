// Package recognizer implements the client for the cloud handwriting
// recognition service. The service is a black box: stroke batches go in,
// ordered lines with word-level bounding boxes come out. One attempt per
// page, no retry; a failed page never halts sibling pages.
package recognizer

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/geometry"
	"github.com/JoshGJPI/smartpen-logseq-bridge-sub005/internal/models"
)

// Line is one recognized line as returned by the service, before the
// bridge derives geometry and canonical text from it.
type Line struct {
	Text        string
	Words       []geometry.Box
	IndentLevel int
}

// Service is the recognition operation the bridge depends on.
type Service interface {
	Recognize(ctx context.Context, page models.PageID, strokes []models.Stroke) ([]Line, error)
}

// Client calls the recognition REST API with HMAC-signed requests.
type Client struct {
	endpoint string
	appKey   string
	hmacKey  string
	language string
	http     *http.Client
}

// New creates a recognition client.
func New(endpoint, appKey, hmacKey, language string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		appKey:   appKey,
		hmacKey:  hmacKey,
		language: language,
		http:     &http.Client{Timeout: timeout},
	}
}

var _ Service = (*Client)(nil)

type strokeGroup struct {
	Strokes []strokePayload `json:"strokes"`
}

type strokePayload struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
	P []float64 `json:"p"`
}

type recognizeRequest struct {
	ContentType   string `json:"contentType"`
	Configuration struct {
		Lang string `json:"lang"`
	} `json:"configuration"`
	StrokeGroups []strokeGroup `json:"strokeGroups"`
}

type recognizeResponse struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Lines []struct {
		Label string `json:"label"`
		Words []struct {
			Label       string       `json:"label"`
			BoundingBox geometry.Box `json:"bounding-box"`
		} `json:"words"`
		Indent int `json:"indent"`
	} `json:"lines"`
}

// Recognize sends the page's stroke batch and returns the recognized lines
// in service order.
func (c *Client) Recognize(ctx context.Context, page models.PageID, strokes []models.Stroke) ([]Line, error) {
	if len(strokes) == 0 {
		return nil, nil
	}

	reqBody := recognizeRequest{ContentType: "Text"}
	reqBody.Configuration.Lang = c.language
	group := strokeGroup{Strokes: make([]strokePayload, 0, len(strokes))}
	for _, s := range strokes {
		p := strokePayload{
			X: make([]float64, len(s.Samples)),
			Y: make([]float64, len(s.Samples)),
			P: make([]float64, len(s.Samples)),
		}
		for i, sample := range s.Samples {
			p.X[i] = sample.X
			p.Y[i] = sample.Y
			p.P[i] = sample.Pressure
		}
		group.Strokes = append(group.Strokes, p)
	}
	reqBody.StrokeGroups = []strokeGroup{group}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("recognizer: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("recognizer: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.myscript.jiix")
	req.Header.Set("applicationKey", c.appKey)
	req.Header.Set("hmac", c.sign(jsonBody))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognizer: page %s: %w", page, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("recognizer: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recognizer: page %s: status %d: %s", page, resp.StatusCode, string(body))
	}

	var parsed recognizeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("recognizer: unmarshal response: %w", err)
	}

	lines := make([]Line, 0, len(parsed.Lines))
	for _, l := range parsed.Lines {
		line := Line{Text: l.Label, IndentLevel: l.Indent}
		for _, w := range l.Words {
			line.Words = append(line.Words, w.BoundingBox)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// sign computes the request HMAC the service verifies: SHA-512 keyed with
// the application key concatenated with the HMAC key, over the raw body.
func (c *Client) sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(c.appKey+c.hmacKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
