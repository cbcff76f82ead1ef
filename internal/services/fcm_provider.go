package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/CyberwizD/driver-status-relay/internal/models"
)

// FCMProvider sends notifications via the Firebase Cloud Messaging HTTP API.
type FCMProvider struct {
	serverKey string
	endpoint  string
	client    *http.Client
	logger    *slog.Logger
}

func NewFCMProvider(serverKey, endpoint string, timeout time.Duration, logger *slog.Logger) *FCMProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FCMProvider{
		serverKey: serverKey,
		endpoint:  endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (p *FCMProvider) Name() string {
	return "fcm"
}

func (p *FCMProvider) Send(ctx context.Context, target models.Target, payload models.NotificationPayload) (models.DeliveryResult, error) {
	result := models.DeliveryResult{Target: target, Provider: p.Name()}

	reqMap := map[string]interface{}{}
	switch {
	case target.Token != "":
		reqMap["to"] = target.Token
	case target.Topic != "":
		reqMap["to"] = "/topics/" + target.Topic
	default:
		return result, fmt.Errorf("fcm: empty target")
	}
	if payload.HasNotification() {
		reqMap["notification"] = map[string]string{
			"title": payload.Title,
			"body":  payload.Body,
		}
	}
	if payload.HasData() {
		reqMap["data"] = payload.Data
	}

	body, err := json.Marshal(reqMap)
	if err != nil {
		return result, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return result, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+p.serverKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return result, fmt.Errorf("fcm: received status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var fcmResp fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&fcmResp); err != nil {
		return result, err
	}

	// Token sends answer with a results array, topic sends with a bare message_id.
	switch {
	case len(fcmResp.Results) > 0:
		res := fcmResp.Results[0]
		result.MessageID = res.MessageID
		result.Error = res.Error
	case fcmResp.Error != "":
		result.Error = fcmResp.Error
	default:
		result.MessageID = fcmResp.MessageID.String()
	}

	result.Status = models.ResultDelivered
	if result.Error != "" || result.MessageID == "" {
		result.Status = models.ResultFailed
		if result.Error == "" {
			result.Error = "no message id returned"
		}
		p.logger.Warn("fcm rejected message",
			slog.String("target", target.String()),
			slog.String("error", result.Error),
		)
	}
	return result, nil
}

type fcmResponse struct {
	MulticastID int64       `json:"multicast_id"`
	Success     int         `json:"success"`
	Failure     int         `json:"failure"`
	MessageID   json.Number `json:"message_id"`
	Error       string      `json:"error"`
	Results     []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}
