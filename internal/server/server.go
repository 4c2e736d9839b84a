package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"facecapture/internal/camera"
	"facecapture/internal/capture"
	"facecapture/internal/config"
	"facecapture/internal/log"
	"facecapture/internal/ratelimit"
	"facecapture/internal/registry"
	"facecapture/internal/status"
)

// SectionLister はセクション一覧を取得する
type SectionLister interface {
	Sections(ctx context.Context) ([]registry.Section, error)
}

// Deps はサーバーが使うコンポーネント
type Deps struct {
	Activator *camera.Activator
	Preview   *camera.Preview
	Capture   *capture.Service
	Sections  SectionLister
	Status    *status.Display
}

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	httpServer *http.Server
	engine     *gin.Engine
	listener   net.Listener
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, deps Deps) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), requestLogger())

	handler := &Handler{
		config:    cfg,
		activator: deps.Activator,
		preview:   deps.Preview,
		capture:   deps.Capture,
		sections:  deps.Sections,
		status:    deps.Status,
		limiter:   ratelimit.NewLimiter(cfg.Server.CapturePerMinute, cfg.Server.CaptureBurst),
	}
	handler.register(engine)

	return &Server{
		config: cfg,
		engine: engine,
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
}

// Handler はHTTPハンドラを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr は待ち受け中のアドレスを返す。起動前は設定値
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Listen はポートを確保する。Start より前に呼ぶとポート0の実アドレスを取得できる
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}
	s.listener = ln
	return nil
}

// Start はサーバーを起動し、コンテキストのキャンセルかシグナルで停止する
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	go func() {
		log.Info("HTTPサーバーを起動しています", "addr", s.Addr())
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		log.Info("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Info("シグナルを受信しました", "signal", sig.String())
	case err := <-shutdownCh:
		return err
	}

	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	log.Info("サーバーをシャットダウンしています")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	log.Info("サーバーが正常にシャットダウンされました")
	return nil
}
