package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/DavidKroell/Vendora/internal/pkg/env"
	"github.com/DavidKroell/Vendora/internal/pkg/mail"
)

const defaultTelegramAPIBaseURL = "https://api.telegram.org"

// TelegramNotifier delivers messages through the Telegram Bot API. Operator
// notifications additionally go out as mail when OPS_ALERT_EMAIL is set.
type TelegramNotifier struct {
	BotToken        string
	APIBaseURL      string
	OperatorChatIDs []int64
	AlertEmail      string

	HTTPClient *http.Client
}

func NewTelegramNotifierFromEnv() *TelegramNotifier {
	var operatorIDs []int64
	for _, part := range strings.Split(env.GetEnv("OPERATOR_CHAT_IDS", ""), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			operatorIDs = append(operatorIDs, id)
		} else {
			log.Warnf("[Notify] Ignoring invalid operator chat id %q", part)
		}
	}

	return &TelegramNotifier{
		BotToken:        strings.TrimSpace(env.GetEnv("TELEGRAM_BOT_TOKEN", "")),
		APIBaseURL:      strings.TrimSpace(env.GetEnv("TELEGRAM_API_BASE_URL", defaultTelegramAPIBaseURL)),
		OperatorChatIDs: operatorIDs,
		AlertEmail:      strings.TrimSpace(env.GetEnv("OPS_ALERT_EMAIL", "")),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifyBuyer sends a chat message to a single buyer.
func (n *TelegramNotifier) NotifyBuyer(ctx context.Context, chatID int64, message string) error {
	if err := n.sendMessage(ctx, chatID, message); err != nil {
		log.Warnf("[Notify] Buyer message to chat %d failed: %v", chatID, err)
		return err
	}
	return nil
}

// NotifyOperators fans the message out to all configured operator chats and,
// when configured, to the alert mailbox. Individual failures are logged and
// do not stop the remaining deliveries.
func (n *TelegramNotifier) NotifyOperators(ctx context.Context, subject, message string) error {
	var lastErr error
	text := subject + "\n\n" + message
	for _, chatID := range n.OperatorChatIDs {
		if err := n.sendMessage(ctx, chatID, text); err != nil {
			log.Warnf("[Notify] Operator message to chat %d failed: %v", chatID, err)
			lastErr = err
		}
	}
	if n.AlertEmail != "" {
		if err := mail.SendMail(n.AlertEmail, subject, strings.ReplaceAll(message, "\n", "<br>")); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (n *TelegramNotifier) sendMessage(ctx context.Context, chatID int64, text string) error {
	if n.BotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is not configured")
	}

	reqBody, err := json.Marshal(map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(n.APIBaseURL, "/"), n.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram sendMessage failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}
