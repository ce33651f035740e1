// Package notify delivers scan output over the Telegram Bot API. Delivery is
// best effort by contract: the orchestrator logs returned errors and moves on.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram sends text messages and document uploads to a single chat.
// Missing credentials leave the notifier disabled; sends then log a skip and
// report success so the scan never fails on notification plumbing.
type Telegram struct {
	log     zerolog.Logger
	client  *http.Client
	apiURL  string
	chatID  string
	enabled bool
}

// NewTelegram builds a notifier from bot token and chat id credentials.
func NewTelegram(log zerolog.Logger, botToken, chatID string) *Telegram {
	t := &Telegram{
		log:    log,
		client: &http.Client{Timeout: 30 * time.Second},
		chatID: chatID,
	}
	if botToken == "" || chatID == "" {
		log.Warn().Msg("telegram credentials missing, notifications disabled")
		return t
	}
	t.apiURL = fmt.Sprintf("%s/bot%s", telegramAPIBase, botToken)
	t.enabled = true
	return t
}

// Enabled reports whether credentials were provided.
func (t *Telegram) Enabled() bool { return t.enabled }

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

type textMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// SendText delivers a plain status message to the configured chat.
func (t *Telegram) SendText(ctx context.Context, text string) error {
	if !t.enabled {
		t.log.Warn().Msg("telegram disabled, skipping text notification")
		return nil
	}
	payload, err := json.Marshal(textMessage{ChatID: t.chatID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+"/sendMessage", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req)
}

// SendDocument uploads the file at path with a caption, as a multipart form.
func (t *Telegram) SendDocument(ctx context.Context, path, caption string) error {
	if !t.enabled {
		t.log.Warn().Msg("telegram disabled, skipping document notification")
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	_ = form.WriteField("chat_id", t.chatID)
	_ = form.WriteField("caption", caption)
	_ = form.WriteField("parse_mode", "HTML")
	part, err := form.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy document: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+"/sendDocument", &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return t.do(req)
}

func (t *Telegram) do(req *http.Request) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()
	var decoded telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode telegram response: %w", err)
	}
	if !decoded.OK {
		desc := decoded.Description
		if desc == "" {
			desc = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("telegram API error: %s", desc)
	}
	return nil
}
