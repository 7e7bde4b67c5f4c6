// Package uploader delivers files to the storage provider's attachment
// store. Two delivery modes exist: the first-party bot API, and a single
// POST to a pre-provisioned webhook endpoint as fallback.
package uploader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonesrussell/media-archiver/internal/httpclient"
	"github.com/jonesrussell/media-archiver/internal/logger"
	"github.com/jonesrussell/media-archiver/internal/models"
)

// Delivery mode names used in errors and metrics.
const (
	ModeBot     = "bot"
	ModeWebhook = "webhook"
)

// Attachment is one provider-assigned sub-object of an uploaded message.
type Attachment struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Result identifies where the provider stored the uploaded file.
type Result struct {
	MessageID   string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	Attachments []Attachment `json:"attachments"`
}

// Client uploads files to the provider. Each upload uses a fresh,
// single-purpose HTTP client that is discarded afterwards.
type Client struct {
	baseURL    string
	botToken   string
	webhookURL string
	timeout    time.Duration
	logger     logger.Logger
}

// NewClient creates an upload client. baseURL is the provider API root;
// webhookURL may be empty when fallback delivery is not provisioned.
func NewClient(baseURL, botToken, webhookURL string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		botToken:   botToken,
		webhookURL: webhookURL,
		timeout:    timeout,
		logger:     log,
	}
}

// HasCredentials reports whether a bot token is configured.
func (c *Client) HasCredentials() bool {
	return c.botToken != ""
}

// Upload sends the file at path to the destination channel. With
// useFallback the webhook endpoint is used instead of the bot API. Any
// transport or provider error is wrapped in models.UploadError; this layer
// never retries, and a retried call that raced the manifest will surface as
// a duplicate remote object at the next hash lookup.
func (c *Client) Upload(ctx context.Context, path string, dest models.RouteDecision, useFallback bool) (*Result, error) {
	mode := ModeBot
	if useFallback {
		mode = ModeWebhook
	}

	result, err := c.send(ctx, path, dest, useFallback)
	if err != nil {
		return nil, &models.UploadError{Mode: mode, Err: err}
	}

	c.logger.Info("File uploaded",
		logger.String("mode", mode),
		logger.String("channel_id", result.ChannelID),
		logger.String("message_id", result.MessageID),
		logger.Int("attachments", len(result.Attachments)),
	)
	return result, nil
}

func (c *Client) send(ctx context.Context, path string, dest models.RouteDecision, useFallback bool) (*Result, error) {
	var endpoint string
	switch {
	case useFallback:
		if c.webhookURL == "" {
			return nil, errors.New("no webhook endpoint provisioned")
		}
		endpoint = c.webhookURL
	default:
		if c.botToken == "" {
			return nil, models.ErrNoCredentials
		}
		endpoint = fmt.Sprintf("%s/channels/%s/messages", c.baseURL, dest.ChannelID)
	}

	body, contentType, err := multipartBody(path, dest.ThreadID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if !useFallback {
		req.Header.Set("Authorization", "Bot "+c.botToken)
	}

	// One connected client per upload: authenticate, send, disconnect.
	client := httpclient.New(c.timeout)
	defer client.CloseIdleConnections()

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if result.MessageID == "" {
		return nil, errors.New("provider response missing message id")
	}
	if result.ChannelID == "" {
		result.ChannelID = dest.ChannelID
	}
	return &result, nil
}

// multipartBody builds the upload form: an optional payload part carrying
// the thread target, plus the file itself. The body is buffered in a pipe
// so large files are streamed rather than held in memory.
func multipartBody(path, threadID string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open upload file: %w", err)
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		defer f.Close()

		if threadID != "" {
			payload, _ := json.Marshal(map[string]string{"thread_id": threadID})
			if err := writer.WriteField("payload_json", string(payload)); err != nil {
				pw.CloseWithError(err)
				return
			}
		}

		part, err := writer.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	return pr, writer.FormDataContentType(), nil
}
