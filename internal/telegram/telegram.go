// Package telegram delivers outcome reports to the operator channel.
// Delivery is best-effort: failures are logged, never propagated.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// Notifier sends messages to a fixed chat.
type Notifier struct {
	BaseURL string
	token   string
	chatID  int64
	client  *http.Client
}

func NewNotifier(token string, chatID int64) *Notifier {
	return &Notifier{
		BaseURL: defaultBaseURL,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Notify sends a Markdown message to the operator chat. Errors are
// logged and swallowed; a lost report must never fail the invocation.
func (n *Notifier) Notify(ctx context.Context, message string) {
	if n.token == "" || n.chatID == 0 {
		log.Println("Telegram not configured, skipping report")
		return
	}

	params := url.Values{
		"chat_id":    {strconv.FormatInt(n.chatID, 10)},
		"text":       {message},
		"parse_mode": {"Markdown"},
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.BaseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		log.Printf("Building Telegram request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		log.Printf("Sending Telegram report: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("Telegram returned %d: %s", resp.StatusCode, string(body))
		return
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || !result.OK {
		log.Printf("Telegram rejected the report (ok=%v, err=%v)", result.OK, err)
	}
}
