// Package registry は顔登録サーバーのクライアント
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"facecapture/internal/config"
	"facecapture/internal/httpc"
	"facecapture/internal/log"
)

const maxBodySize = 1 << 20

var (
	// ErrLoginFailed はログインが拒否されたことを示す
	ErrLoginFailed = errors.New("ログインに失敗しました")
	// ErrUnauthorized はセッションが無い、または期限切れであることを示す
	ErrUnauthorized = errors.New("認証されていません")
)

// Payload は1回の撮影で送信する内容
type Payload struct {
	Name      string `json:"name"`
	SectionID string `json:"section_id"`
	Image     string `json:"image"`
}

// Section は登録先のセクション
type Section struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type sectionsResponse struct {
	Sections []Section `json:"sections"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Client は登録サーバーと通信する
type Client struct {
	baseURL     *url.URL
	capturePath string
	http        *http.Client
}

// NewClient は設定からクライアントを作成する
func NewClient(cfg config.RegistryConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("登録サーバーURLの解析に失敗: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("登録サーバーURLが不正です: %s", cfg.BaseURL)
	}

	httpClient, err := httpc.NewSessionClient(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("HTTPクライアントの作成に失敗: %w", err)
	}

	capturePath := cfg.CapturePath
	if capturePath == "" {
		capturePath = "/capture"
	}

	return &Client{
		baseURL:     base,
		capturePath: capturePath,
		http:        httpClient,
	}, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.JoinPath(path).String()
}

// Submit は撮影内容を1回だけPOSTして応答を分類する
//
// 返されるエラーは通信失敗のみ。サーバーが返したエラーは Result で表す。
func (c *Client) Submit(ctx context.Context, payload Payload) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("送信内容のエンコードに失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.capturePath), bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Result{}, err
	}

	result := ParseResult(resp.StatusCode, respBody)
	if isRedirect(resp.StatusCode) {
		result = Result{Kind: KindMalformed, HTTPStatus: resp.StatusCode}
	}

	log.Info("撮影データを送信しました",
		"request_id", requestID,
		"name", payload.Name,
		"section_id", payload.SectionID,
		"http_status", resp.StatusCode,
		"kind", result.Kind.String())

	return result, nil
}

// Sections はセクション一覧を取得する
func (c *Client) Sections(ctx context.Context) ([]Section, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/sections"), nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("セクション一覧の取得に失敗: %w", err)
	}
	defer resp.Body.Close()

	if isRedirect(resp.StatusCode) || resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("セクション一覧の取得に失敗: HTTP %d", resp.StatusCode)
	}

	var decoded sectionsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("セクション一覧のデコードに失敗: %w", err)
	}
	return decoded.Sections, nil
}

// Login は管理者としてログインし、セッションCookieを保持する
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("ログイン情報のエンコードに失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/login"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ログインリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	var decoded loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&decoded); err != nil {
		return fmt.Errorf("%w: HTTP %d", ErrLoginFailed, resp.StatusCode)
	}
	if !decoded.Success {
		if decoded.Message == "" {
			return ErrLoginFailed
		}
		return fmt.Errorf("%w: %s", ErrLoginFailed, decoded.Message)
	}

	log.Info("登録サーバーにログインしました", "user", username)
	return nil
}

// Logout はセッションを破棄する
func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/logout"), nil)
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ログアウトリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ログアウトに失敗: HTTP %d", resp.StatusCode)
	}
	return nil
}

func isRedirect(code int) bool {
	return code >= 300 && code < 400
}
