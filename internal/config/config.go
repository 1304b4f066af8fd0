package config

import (
	"fmt"
	"os"
	"strconv"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // 指定があればPOSTGRES_*より優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string

	JWTSecret string // JWT署名シークレット

	// Razorpay（決済ゲートウェイ）
	RazorpayKeyID         string
	RazorpayKeySecret     string // checkout署名の検証に使う
	RazorpayWebhookSecret string // webhook本文のHMAC検証に使う
	RazorpayBaseURL       string // テストではモックサーバーに向ける

	// 外部コラボレーター
	UserServiceURL         string
	CartServiceURL         string
	NotificationServiceURL string // 空なら通知はno-op

	GoEnv string // dev/prod
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort := 5432
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("POSTGRES_PORT must be number: %w", err)
		}
		pgPort = p
	}

	cfg := Config{
		Port: os.Getenv("PORT"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		RazorpayBaseURL:       getenv("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),

		UserServiceURL:         os.Getenv("USER_SERVICE_URL"),
		CartServiceURL:         os.Getenv("CART_SERVICE_URL"),
		NotificationServiceURL: os.Getenv("NOTIFICATION_SERVICE_URL"),

		GoEnv: getenv("GO_ENV", "dev"),
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.DatabaseURL == "" {
		if cfg.PostgresUser == "" {
			return Config{}, fmt.Errorf("POSTGRES_USER is required")
		}
		if cfg.PostgresPassword == "" {
			return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
		}
		if cfg.PostgresDB == "" {
			return Config{}, fmt.Errorf("POSTGRES_DB is required")
		}
		if cfg.PostgresHost == "" {
			return Config{}, fmt.Errorf("POSTGRES_HOST is required")
		}
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.RazorpayKeyID == "" {
		return Config{}, fmt.Errorf("RAZORPAY_KEY_ID is required")
	}
	if cfg.RazorpayKeySecret == "" {
		return Config{}, fmt.Errorf("RAZORPAY_KEY_SECRET is required")
	}
	if cfg.RazorpayWebhookSecret == "" {
		return Config{}, fmt.Errorf("RAZORPAY_WEBHOOK_SECRET is required")
	}
	if cfg.UserServiceURL == "" {
		return Config{}, fmt.Errorf("USER_SERVICE_URL is required")
	}
	if cfg.CartServiceURL == "" {
		return Config{}, fmt.Errorf("CART_SERVICE_URL is required")
	}

	return cfg, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
