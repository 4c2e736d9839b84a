// Package ratelimit はクライアント毎のレート制限を提供する
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter はクライアント毎のトークンバケットを管理する
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewLimiter は新しいLimiterを作成する
// requestsPerMinute: クライアント毎の1分あたりの許容数 (0以下なら無制限)
// burst: 連続して許容する最大数
func NewLimiter(requestsPerMinute int, burst int) *Limiter {
	r := rate.Limit(float64(requestsPerMinute) / 60.0)
	if requestsPerMinute <= 0 {
		r = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

// GetLimiter はクライアントのリミッターを返す
func (l *Limiter) GetLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}

	return limiter
}

// Allow はリクエストを許可するか判定する
func (l *Limiter) Allow(key string) bool {
	return l.GetLimiter(key).Allow()
}

// Tokens は現在利用可能なトークン数を返す
func (l *Limiter) Tokens(key string) float64 {
	return l.GetLimiter(key).Tokens()
}
