// Package rehydrate resolves a stored message back into fresh attachment
// URLs. Provider CDN links expire, so consumers re-fetch the message
// object on demand instead of trusting any URL persisted at archive time.
package rehydrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonesrussell/media-archiver/internal/httpclient"
	"github.com/jonesrussell/media-archiver/internal/logger"
	"github.com/jonesrussell/media-archiver/internal/models"
	"github.com/jonesrussell/media-archiver/internal/uploader"
)

// Fetcher retrieves message objects from the provider API.
type Fetcher struct {
	baseURL  string
	botToken string
	client   *http.Client
	logger   logger.Logger
}

// NewFetcher creates a fetcher against the provider API root.
func NewFetcher(baseURL, botToken string, timeout time.Duration, log logger.Logger) *Fetcher {
	return &Fetcher{
		baseURL:  strings.TrimRight(baseURL, "/"),
		botToken: botToken,
		client:   httpclient.New(timeout),
		logger:   log,
	}
}

// Message is the provider message object as returned by a fetch.
type Message struct {
	ID          string                `json:"id"`
	ChannelID   string                `json:"channel_id"`
	Attachments []uploader.Attachment `json:"attachments"`
}

// FetchMessage retrieves one message by its channel and message identifiers.
func (f *Fetcher) FetchMessage(ctx context.Context, channelID, messageID string) (*Message, error) {
	if f.botToken == "" {
		return nil, models.ErrNoCredentials
	}

	endpoint := fmt.Sprintf("%s/channels/%s/messages/%s", f.baseURL, channelID, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+f.botToken)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, models.ErrAttachmentNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var msg Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}

// FreshURL fetches the message and returns the current CDN URL of the
// requested attachment. An empty attachmentID selects the first attachment.
func (f *Fetcher) FreshURL(ctx context.Context, channelID, messageID, attachmentID string) (string, error) {
	msg, err := f.FetchMessage(ctx, channelID, messageID)
	if err != nil {
		return "", err
	}
	if len(msg.Attachments) == 0 {
		return "", models.ErrAttachmentNotFound
	}

	if attachmentID == "" {
		return msg.Attachments[0].URL, nil
	}
	for _, att := range msg.Attachments {
		if att.ID == attachmentID {
			return att.URL, nil
		}
	}

	f.logger.Warn("Attachment missing from message",
		logger.String("message_id", messageID),
		logger.String("attachment_id", attachmentID),
	)
	return "", models.ErrAttachmentNotFound
}
