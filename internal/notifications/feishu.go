package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const feishuAPI = "https://open.feishu.cn/open-apis"

// FeishuClient sends IM text messages to a single Feishu user on behalf
// of a custom app
type FeishuClient struct {
	appID     string
	appSecret string
	userID    string
	client    *resty.Client
	baseURL   string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

type feishuTokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

type feishuMessageResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// NewFeishuClient creates a Feishu client
func NewFeishuClient(appID, appSecret, userID string) *FeishuClient {
	return &FeishuClient{
		appID:     appID,
		appSecret: appSecret,
		userID:    userID,
		client:    resty.New().SetTimeout(30 * time.Second),
		baseURL:   feishuAPI,
	}
}

func (f *FeishuClient) IsConfigured() bool {
	return f.appID != "" && f.appSecret != "" && f.userID != ""
}

// tenantToken returns a cached tenant access token, refreshing it a minute
// before it expires
func (f *FeishuClient) tenantToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.token != "" && time.Now().Before(f.tokenExpiry) {
		return f.token, nil
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetBody(map[string]string{
			"app_id":     f.appID,
			"app_secret": f.appSecret,
		}).
		Post(f.baseURL + "/auth/v3/tenant_access_token/internal")

	if err != nil {
		return "", fmt.Errorf("failed to request tenant token: %w", err)
	}

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("feishu token endpoint returned status %d", resp.StatusCode())
	}

	var tokenResp feishuTokenResponse
	if err := json.Unmarshal(resp.Body(), &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse tenant token: %w", err)
	}

	if tokenResp.Code != 0 || tokenResp.TenantAccessToken == "" {
		return "", fmt.Errorf("feishu token error %d: %s", tokenResp.Code, tokenResp.Msg)
	}

	f.token = tokenResp.TenantAccessToken
	f.tokenExpiry = time.Now().Add(time.Duration(tokenResp.Expire)*time.Second - time.Minute)

	return f.token, nil
}

// SendText delivers a plain text message to the configured user
func (f *FeishuClient) SendText(ctx context.Context, text string) error {
	token, err := f.tenantToken(ctx)
	if err != nil {
		return err
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetQueryParam("receive_id_type", "user_id").
		SetBody(map[string]string{
			"receive_id": f.userID,
			"msg_type":   "text",
			"content":    string(content),
		}).
		Post(f.baseURL + "/im/v1/messages")

	if err != nil {
		return fmt.Errorf("failed to send Feishu message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("feishu returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var msgResp feishuMessageResponse
	if err := json.Unmarshal(resp.Body(), &msgResp); err != nil {
		return fmt.Errorf("failed to parse Feishu response: %w", err)
	}

	if msgResp.Code != 0 {
		return fmt.Errorf("feishu error %d: %s", msgResp.Code, msgResp.Msg)
	}

	return nil
}
