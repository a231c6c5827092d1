package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultImgBBEndpoint = "https://api.imgbb.com/1/upload"

	// imgbbPlaceholderKey ships in sample env files and is treated as unset.
	imgbbPlaceholderKey = "YOUR_FREE_IMGBB_KEY"
)

// ImgBB uploads base64 images to imgbb.com.
type ImgBB struct {
	APIKey   string
	Endpoint string
	HTTP     *http.Client
}

// NewImgBB creates a client with a 30 second HTTP timeout.
func NewImgBB(apiKey, endpoint string) *ImgBB {
	if endpoint == "" {
		endpoint = DefaultImgBBEndpoint
	}
	return &ImgBB{
		APIKey:   apiKey,
		Endpoint: endpoint,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

type imgbbResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload implements Uploader.
func (c *ImgBB) Upload(ctx context.Context, p Photo) (string, error) {
	if c.APIKey == "" || c.APIKey == imgbbPlaceholderKey {
		return "", ErrNotConfigured
	}

	form := url.Values{}
	form.Set("image", p.Data)

	endpoint := c.Endpoint + "?key=" + url.QueryEscape(c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("imgbb: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("imgbb: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var result imgbbResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("imgbb: decode response failed (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || !result.Success {
		return "", fmt.Errorf("imgbb: upload failed (%d): %s", resp.StatusCode, result.Error.Message)
	}
	return result.Data.URL, nil
}
