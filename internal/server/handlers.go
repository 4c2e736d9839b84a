package server

import (
	"errors"
	"net/http"
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

// Handler はキオスク画面向けのAPIを実装する
type Handler struct {
	config    *config.Config
	activator *camera.Activator
	preview   *camera.Preview
	capture   *capture.Service
	sections  SectionLister
	status    *status.Display
	limiter   *ratelimit.Limiter
}

// ErrorResponse はエラー応答
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CaptureRequest は撮影リクエスト
type CaptureRequest struct {
	Name      string `json:"name"`
	SectionID string `json:"section_id"`
}

// CaptureResponse は撮影結果
type CaptureResponse struct {
	Status string `json:"status"`
	Kind   string `json:"kind"`
}

// CameraState はプレビュー中のカメラの状態
type CameraState struct {
	Attached bool   `json:"attached"`
	Source   string `json:"source,omitempty"`
	Device   string `json:"device,omitempty"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// StatusResponse はシステム状態
type StatusResponse struct {
	Status    string      `json:"status"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty"`
	Camera    CameraState `json:"camera"`
	Timestamp time.Time   `json:"timestamp"`
}

func (h *Handler) register(r *gin.Engine) {
	r.GET("/", h.Index)
	r.StaticFS("/static", GetStaticFS())
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	api.GET("/status", h.GetStatus)
	api.POST("/camera/start", h.StartCamera)
	api.POST("/camera/stop", h.StopCamera)
	api.GET("/camera/stream", h.GetCameraStream)
	api.GET("/sections", h.GetSections)
	api.POST("/capture", rateLimit(h.limiter, h.config.Server.CapturePerMinute), h.CaptureFace)

	r.GET("/ws/status", h.StatusWebSocket)
}

// Index はキオスク画面を返す
func (h *Handler) Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", getIndexHTML())
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// GetStatus は現在のステータス表示とカメラ状態を返す
func (h *Handler) GetStatus(c *gin.Context) {
	snapshot := h.status.Snapshot()

	response := StatusResponse{
		Status:    snapshot.Text,
		Camera:    h.cameraState(),
		Timestamp: time.Now(),
	}
	if !snapshot.At.IsZero() {
		response.UpdatedAt = &snapshot.At
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) cameraState() CameraState {
	source := h.preview.Source()
	if source == nil {
		return CameraState{}
	}

	info := source.GetInfo()
	width, height := h.preview.VideoSize()
	return CameraState{
		Attached: true,
		Source:   info.Name,
		Device:   info.Device,
		Width:    width,
		Height:   height,
	}
}

// StartCamera はカメラの開始を要求する。結果はステータス表示で通知される
func (h *Handler) StartCamera(c *gin.Context) {
	h.activator.StartCamera(c.Request.Context())
	c.JSON(http.StatusAccepted, gin.H{"status": "starting"})
}

// StopCamera はカメラを停止する
func (h *Handler) StopCamera(c *gin.Context) {
	if err := h.activator.StopCamera(c.Request.Context()); err != nil {
		abortWithError(c, http.StatusInternalServerError, "camera_stop_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": h.status.Text()})
}

// GetSections は登録サーバーのセクション一覧を返す
func (h *Handler) GetSections(c *gin.Context) {
	sections, err := h.sections.Sections(c.Request.Context())
	if err != nil {
		log.Warn("セクション一覧の取得に失敗", "error", err)
		if errors.Is(err, registry.ErrUnauthorized) {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "登録サーバーにログインしていません")
			return
		}
		abortWithError(c, http.StatusBadGateway, "registry_unavailable", err.Error())
		return
	}

	if sections == nil {
		sections = []registry.Section{}
	}
	c.JSON(http.StatusOK, gin.H{"sections": sections})
}

// CaptureFace は現在のフレームを撮影して登録サーバーへ送る
func (h *Handler) CaptureFace(c *gin.Context) {
	var req CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "リクエストの形式が不正です")
		return
	}

	var alert string
	alerter := capture.AlertFunc(func(message string) { alert = message })

	result, err := h.capture.CaptureFace(c.Request.Context(), capture.Form{
		Name:      req.Name,
		SectionID: req.SectionID,
	}, alerter)

	switch {
	case err == nil:
		c.JSON(http.StatusOK, CaptureResponse{Status: result.Display(), Kind: result.Kind.String()})

	case errors.Is(err, capture.ErrNameRequired), errors.Is(err, capture.ErrSectionRequired):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"alert": alert})

	case errors.Is(err, capture.ErrSubmissionInProgress):
		abortWithError(c, http.StatusConflict, "submission_in_progress", "送信処理が実行中です")

	case errors.Is(err, capture.ErrCameraNotReady):
		c.JSON(http.StatusConflict, CaptureResponse{Status: h.status.Text(), Kind: "not_ready"})

	default:
		c.JSON(http.StatusBadGateway, CaptureResponse{Status: h.status.Text(), Kind: "network"})
	}
}

// GetCameraStream はMJPEGストリーミングエンドポイントの実装
func (h *Handler) GetCameraStream(c *gin.Context) {
	if !h.preview.Attached() {
		abortWithError(c, http.StatusServiceUnavailable, "camera_not_active", "カメラがアクティブではありません")
		return
	}

	h.streamMJPEG(c)
}

// streamMJPEG はMJPEGストリームを配信する
func (h *Handler) streamMJPEG(c *gin.Context) {
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	frames, cancel := h.preview.Subscribe()
	defer cancel()

	// 接続直後に現在フレームを1枚送る
	if source := h.preview.Source(); source != nil {
		if frame, err := source.LatestFrame(c.Request.Context()); err == nil {
			if writeMJPEGFrame(writer, frame) != nil {
				return
			}
			flusher.Flush()
		}
	}

	clientGone := c.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			return

		case frame, ok := <-frames:
			if !ok {
				return
			}
			if writeMJPEGFrame(writer, frame) != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeMJPEGFrame(w gin.ResponseWriter, frame []byte) error {
	if _, err := w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

func abortWithError(c *gin.Context, code int, kind, message string) {
	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:     kind,
		Message:   message,
		Timestamp: time.Now(),
	})
}
