package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Camera   CameraConfig   `yaml:"camera"`
	Registry RegistryConfig `yaml:"registry"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig はキオスク用HTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト

	// /api/capture のクライアント毎レート制限
	CapturePerMinute int `yaml:"capture_per_minute"`
	CaptureBurst     int `yaml:"capture_burst"`
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	Source string `yaml:"source"` // ソースタイプ (usb_camera, gocv)
	Device string `yaml:"device"` // デバイスパス。空なら自動検出

	FPS    int `yaml:"fps"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// 起動後、最初のフレームを待つ時間（CLI用）
	WarmupTimeout time.Duration `yaml:"warmup_timeout"`
}

// RegistryConfig は顔登録サーバーへの接続設定
type RegistryConfig struct {
	BaseURL     string        `yaml:"base_url"`
	CapturePath string        `yaml:"capture_path"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	Timeout     time.Duration `yaml:"timeout"`
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      10 * time.Second,
			WriteTimeout:     0, // ストリーミング用にタイムアウト無効化
			CapturePerMinute: 30,
			CaptureBurst:     5,
		},
		Camera: CameraConfig{
			Source:        "usb_camera",
			FPS:           15,
			Width:         1280,
			Height:        720,
			WarmupTimeout: 15 * time.Second,
		},
		Registry: RegistryConfig{
			BaseURL:     "http://127.0.0.1:5000",
			CapturePath: "/capture",
			Timeout:     30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load は設定を読み込む
//
// 優先順位: 環境変数 > 設定ファイル(path) > デフォルト値。
// カレントディレクトリに .env があれば環境変数として取り込む。
func Load(path string) (*Config, error) {
	// .env は存在しなくてもよい
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(".env の読み込みに失敗: %w", err)
	}

	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// loadFile はYAMLファイルを既存の設定に上書きする
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗 (%s): %w", path, err)
	}

	return nil
}

// applyEnv は環境変数で設定を上書きする
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)

	c.Camera.Source = getEnvOrDefault("CAMERA_SOURCE", c.Camera.Source)
	c.Camera.Device = getEnvOrDefault("CAMERA_DEVICE", c.Camera.Device)

	c.Registry.BaseURL = getEnvOrDefault("REGISTRY_URL", c.Registry.BaseURL)
	c.Registry.Username = getEnvOrDefault("REGISTRY_USERNAME", c.Registry.Username)
	c.Registry.Password = getEnvOrDefault("REGISTRY_PASSWORD", c.Registry.Password)
	c.Registry.Timeout = getEnvAsDurationOrDefault("REGISTRY_TIMEOUT", c.Registry.Timeout)

	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("LOG_FORMAT", c.Log.Format)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	// カメラ設定の検証
	if c.Camera.FPS <= 0 || c.Camera.FPS > 60 {
		return fmt.Errorf("無効なFPS値: %d", c.Camera.FPS)
	}
	if c.Camera.Width <= 0 || c.Camera.Width > 4096 {
		return fmt.Errorf("無効な幅: %d", c.Camera.Width)
	}
	if c.Camera.Height <= 0 || c.Camera.Height > 4096 {
		return fmt.Errorf("無効な高さ: %d", c.Camera.Height)
	}

	// 登録サーバー設定の検証
	u, err := url.Parse(c.Registry.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("無効な登録サーバーURL: %q", c.Registry.BaseURL)
	}
	if c.Registry.Timeout < 0 {
		return fmt.Errorf("無効なタイムアウト: %s", c.Registry.Timeout)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault は環境変数を time.Duration として取得する
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
