package sys

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// ===========================
// Webhook reporting
// ===========================

const webhookTimeout = 10 * time.Second

type webhookPayload struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

// PostWebhook sends a plain content message to a Discord webhook URL.
func PostWebhook(ctx context.Context, url, content string) error {
	if url == "" {
		return nil
	}

	body, err := json.Marshal(webhookPayload{Content: content, Username: "MyForm"})
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := HttpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// UploadFileToWebhook sends a file attachment with a caption to a Discord
// webhook, used for off-site database backups.
func UploadFileToWebhook(ctx context.Context, url, filename string, file io.Reader, caption string) error {
	if url == "" {
		return fmt.Errorf("no webhook URL configured")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormField("payload_json")
	if err != nil {
		return err
	}
	payload, err := json.Marshal(webhookPayload{Content: caption, Username: "MyForm"})
	if err != nil {
		return err
	}
	if _, err := part.Write(payload); err != nil {
		return err
	}

	filePart, err := writer.CreateFormFile("files[0]", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(filePart, file); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := HttpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook upload failed with status %d", resp.StatusCode)
	}
	return nil
}

// AuditLog reports a monetization or administrative event to both the local
// log and the configured audit webhook. The webhook post runs detached so a
// slow Discord never blocks the caller.
func AuditLog(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	LogPremium("%s", msg)
	if GlobalConfig == nil || GlobalConfig.AuditWebhookURL == "" {
		return
	}
	url := GlobalConfig.AuditWebhookURL
	SafeGo(func() {
		if err := PostWebhook(context.Background(), url, msg); err != nil {
			LogPremium("audit webhook delivery failed: %v", err)
		}
	})
}
