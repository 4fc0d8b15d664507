package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"Praetorius/cache"
	"Praetorius/core/console"
	"Praetorius/core/follow"
	"Praetorius/core/scatter"
	"Praetorius/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// MessageType 消息类型
type MessageType string

const (
	// 系统消息
	MsgTypePing  MessageType = "ping"  // 心跳
	MsgTypePong  MessageType = "pong"  // 心跳响应
	MsgTypeError MessageType = "error" // 错误消息

	// 客户端 -> 服务端
	MsgTypeSelect   MessageType = "select"    // 选中/反选作品
	MsgTypeHydrate  MessageType = "hydrate"   // 从URL片段恢复选择
	MsgTypePlay     MessageType = "play"      // 播放
	MsgTypePause    MessageType = "pause"     // 暂停
	MsgTypeToggle   MessageType = "toggle"    // 播放/暂停切换
	MsgTypeSeek     MessageType = "seek"      // 跳转
	MsgTypeCue      MessageType = "cue"       // 跳转到某个cue点
	MsgTypeCues     MessageType = "cues"      // 打开/关闭cue浮层
	MsgTypeDuration MessageType = "duration"  // 客户端上报媒体时长
	MsgTypeDrag     MessageType = "drag"      // 拖动作品标题
	MsgTypeResize   MessageType = "resize"    // 视口尺寸变化
	MsgTypeMeasure  MessageType = "measure"   // 客户端上报标题实际尺寸
	MsgTypeEscape   MessageType = "escape"    // Esc键
	MsgTypeOutside  MessageType = "outside"   // 点击空白区域
	MsgTypeTheme    MessageType = "theme"     // 主题偏好变更
	MsgTypeMotion   MessageType = "motion"    // 减少动态效果偏好
	MsgTypePDFOpen  MessageType = "pdf_open"  // 打开乐谱
	MsgTypePDFClose MessageType = "pdf_close" // 关闭乐谱
	MsgTypePDFReady MessageType = "pdf_ready" // 乐谱查看器就绪确认

	// 服务端 -> 客户端
	MsgTypeFooter      MessageType = "footer"       // 页脚状态快照
	MsgTypeLayout      MessageType = "layout"       // 布局计算结果
	MsgTypeFragment    MessageType = "fragment"     // URL片段更新
	MsgTypePDFGoto     MessageType = "pdf_goto"     // 翻页信号
	MsgTypePDFFrame    MessageType = "pdf_frame"    // 乐谱查看器frame地址
	MsgTypeWorksUpdate MessageType = "works_update" // 作品目录更新
	MsgTypeThemeSync   MessageType = "theme_sync"   // 生效主题下发
	MsgTypeAnnounce    MessageType = "announce"     // 无障碍播报文本
	MsgTypeHint        MessageType = "hint"         // 首次访问操作提示
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// SelectData 选择操作数据
type SelectData struct {
	WorkID int64 `json:"workId"`
	Toggle bool  `json:"toggle,omitempty"`
}

// HydrateData URL片段恢复数据
type HydrateData struct {
	Fragment string `json:"fragment"`
}

// TransportData 播放控制数据
type TransportData struct {
	WorkID int64   `json:"workId"`
	At     float64 `json:"at,omitempty"`
}

// CueData cue点播放数据
type CueData struct {
	WorkID int64 `json:"workId"`
	Index  int   `json:"index"`
}

// DurationData 媒体时长上报数据
type DurationData struct {
	WorkID  int64   `json:"workId"`
	Seconds float64 `json:"seconds"`
}

// DragData 拖动数据
type DragData struct {
	WorkID int64   `json:"workId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// ResizeData 视口尺寸数据
type ResizeData struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Force  bool    `json:"force,omitempty"`
}

// MeasureData 标题尺寸上报数据
type MeasureData struct {
	WorkID int64   `json:"workId"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// OutsideData 空白点击数据
type OutsideData struct {
	InField  bool `json:"inField"`
	InFooter bool `json:"inFooter"`
}

// ThemeData 主题偏好数据
type ThemeData struct {
	Theme      string `json:"theme,omitempty"`
	Cycle      bool   `json:"cycle,omitempty"`
	SystemDark bool   `json:"systemDark"`
}

// MotionData 减少动态效果数据
type MotionData struct {
	Reduce bool `json:"reduce"`
}

// PDFData 乐谱操作数据
type PDFData struct {
	WorkID int64  `json:"workId,omitempty"`
	Slug   string `json:"slug,omitempty"`
}

// LayoutPayload 布局结果数据
type LayoutPayload struct {
	Positions map[int64]scatter.Position `json:"positions"`
	Items     []console.ItemState        `json:"items"`
	Computed  bool                       `json:"computed"`
}

// ThemeSyncPayload 生效主题数据，Stored为空表示访客尚未存储偏好
type ThemeSyncPayload struct {
	Stored   string        `json:"stored,omitempty"`
	Resolved console.Theme `json:"resolved"`
}

// PDFFramePayload 乐谱frame数据
type PDFFramePayload struct {
	Slug string `json:"slug"`
	URL  string `json:"url"`
}

// ConsoleSession 一条控制台WebSocket连接
type ConsoleSession struct {
	id        string
	visitorID string
	conn      *websocket.Conn
	console   *console.Console
	hub       *ConsoleHub
	send      chan WSMessage
	quit      chan struct{}

	mu          sync.Mutex
	box         scatter.Box
	theme       console.Theme
	hasTheme    bool
	systemDark  bool
	resizeTimer *time.Timer
	closeOnce   sync.Once
}

// ConsoleHub 管理所有活跃的控制台会话
type ConsoleHub struct {
	mu       sync.Mutex
	sessions map[string]*ConsoleSession
	debounce time.Duration
}

// NewConsoleHub 创建会话管理器
func NewConsoleHub(resizeDebounce time.Duration) *ConsoleHub {
	if resizeDebounce <= 0 {
		resizeDebounce = 120 * time.Millisecond
	}
	return &ConsoleHub{
		sessions: make(map[string]*ConsoleSession),
		debounce: resizeDebounce,
	}
}

func (h *ConsoleHub) resizeDebounce() time.Duration {
	return h.debounce
}

func (h *ConsoleHub) register(s *ConsoleSession) {
	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()
}

func (h *ConsoleHub) unregister(s *ConsoleSession) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()
}

// BroadcastWorksUpdate 通知所有会话作品目录已更新
// feed热更新后由监听协程调用
func (h *ConsoleHub) BroadcastWorksUpdate() {
	h.mu.Lock()
	sessions := make([]*ConsoleSession, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		if s.console.SyncCatalog() {
			s.push(MsgTypeWorksUpdate, nil)
			s.sendLayout(true)
		}
	}
}

// WebSocketConsoleHandler 升级连接并运行一条控制台会话
func (h *APIHandler) WebSocketConsoleHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	visitorID := r.URL.Query().Get("visitor")
	if visitorID == "" {
		visitorID = uuid.NewString()
	}

	session := &ConsoleSession{
		id:        uuid.NewString(),
		visitorID: visitorID,
		conn:      conn,
		hub:       h.hub,
		send:      make(chan WSMessage, 64),
		quit:      make(chan struct{}),
		theme:     console.ThemeLight,
	}
	session.console = console.New(h.catalog, console.Options{
		Engine:       h.engine,
		PlaybackTick: h.cfg.PlaybackTick,
		Events: console.Events{
			Footer: func(snap console.FooterSnapshot) {
				session.push(MsgTypeFooter, snap)
			},
			PDFFrame: func(slug, frameURL string) {
				session.push(MsgTypePDFFrame, PDFFramePayload{Slug: slug, URL: frameURL})
			},
			PDFGoto: func(sig follow.Signal) {
				session.push(MsgTypePDFGoto, sig)
			},
			Announce: func(text string) {
				session.push(MsgTypeAnnounce, map[string]string{"text": text})
			},
		},
	})

	h.hub.register(session)
	logger.Info("console session opened",
		logger.String("session", session.id),
		logger.String("visitor", visitorID))

	session.restoreState(r.Context())

	go session.writePump()
	session.readPump()
}

// restoreState 从Redis恢复访客的主题、选择与提示状态
func (s *ConsoleSession) restoreState(ctx context.Context) {
	stored, err := cache.GetTheme(ctx, s.visitorID)
	if err != nil {
		logger.Warn("restore theme failed", logger.ErrorField(err))
	}
	s.mu.Lock()
	s.theme, s.hasTheme = console.DecodeStoredTheme(stored)
	theme, hasTheme := s.theme, s.hasTheme
	systemDark := s.systemDark
	s.mu.Unlock()
	s.pushThemeSync(theme, hasTheme, systemDark)

	if workID, err := cache.GetSelection(ctx, s.visitorID); err != nil {
		logger.Warn("restore selection failed", logger.ErrorField(err))
	} else if workID != 0 {
		s.console.SetActive(workID, false)
	}

	shown, err := cache.HintShown(ctx, s.visitorID)
	if err != nil {
		logger.Warn("restore hint flag failed", logger.ErrorField(err))
	}
	if !shown {
		s.push(MsgTypeHint, nil)
		if err := cache.MarkHintShown(ctx, s.visitorID); err != nil {
			logger.Warn("mark hint shown failed", logger.ErrorField(err))
		}
	}
}

// push 序列化payload并排队发送，队列满时丢弃并告警
func (s *ConsoleSession) push(msgType MessageType, payload interface{}) {
	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			logger.Error("marshal ws payload failed",
				logger.String("type", string(msgType)), logger.ErrorField(err))
			return
		}
		data = encoded
	}
	msg := WSMessage{Type: msgType, Data: data, Timestamp: time.Now().UnixMilli()}
	select {
	case <-s.quit:
	case s.send <- msg:
	default:
		logger.Warn("ws send queue full, dropping message",
			logger.String("session", s.id), logger.String("type", string(msgType)))
	}
}

func (s *ConsoleSession) writePump() {
	for {
		select {
		case <-s.quit:
			return
		case msg := <-s.send:
			if err := s.conn.WriteJSON(msg); err != nil {
				logger.Warn("websocket write failed", logger.ErrorField(err))
				s.close()
				return
			}
		}
	}
}

func (s *ConsoleSession) readPump() {
	defer s.close()
	for {
		var msg WSMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", logger.ErrorField(err))
			}
			return
		}
		s.dispatch(msg)
	}
}

func (s *ConsoleSession) close() {
	s.closeOnce.Do(func() {
		s.hub.unregister(s)
		close(s.quit)
		s.console.Teardown()
		s.mu.Lock()
		if s.resizeTimer != nil {
			s.resizeTimer.Stop()
		}
		s.mu.Unlock()
		s.conn.Close()
		logger.Info("console session closed", logger.String("session", s.id))
	})
}

// dispatch 按消息类型路由到对应的控制台操作
func (s *ConsoleSession) dispatch(msg WSMessage) {
	switch msg.Type {
	case MsgTypePing:
		s.push(MsgTypePong, nil)

	case MsgTypeSelect:
		var data SelectData
		if !s.decode(msg, &data) {
			return
		}
		if data.Toggle {
			s.console.ToggleSelection(data.WorkID)
		} else if data.WorkID == 0 {
			s.console.Clear(true)
		} else {
			s.console.SetActive(data.WorkID, true)
		}
		s.persistSelection()
		s.push(MsgTypeFragment, map[string]string{"fragment": s.console.Fragment()})

	case MsgTypeHydrate:
		var data HydrateData
		if !s.decode(msg, &data) {
			return
		}
		if s.console.Hydrate(data.Fragment) {
			s.persistSelection()
		}

	case MsgTypePlay:
		var data TransportData
		if !s.decode(msg, &data) {
			return
		}
		s.console.Play(data.WorkID, data.At)
		s.persistSelection()

	case MsgTypeToggle:
		var data TransportData
		if !s.decode(msg, &data) {
			return
		}
		s.console.Toggle(data.WorkID)
		s.persistSelection()

	case MsgTypePause:
		var data TransportData
		if !s.decode(msg, &data) {
			return
		}
		s.console.Pause(data.WorkID)

	case MsgTypeSeek:
		var data TransportData
		if !s.decode(msg, &data) {
			return
		}
		s.console.Seek(data.WorkID, data.At)

	case MsgTypeCue:
		var data CueData
		if !s.decode(msg, &data) {
			return
		}
		s.console.PlayCue(data.WorkID, data.Index)

	case MsgTypeCues:
		s.console.ToggleCues()

	case MsgTypeDuration:
		var data DurationData
		if !s.decode(msg, &data) {
			return
		}
		s.console.SetDuration(data.WorkID, data.Seconds)

	case MsgTypeDrag:
		var data DragData
		if !s.decode(msg, &data) {
			return
		}
		if pos, ok := s.console.Drag(data.WorkID, scatter.Position{X: data.X, Y: data.Y}); ok {
			s.push(MsgTypeLayout, LayoutPayload{
				Positions: map[int64]scatter.Position{data.WorkID: pos},
				Computed:  false,
			})
		}

	case MsgTypeResize:
		var data ResizeData
		if !s.decode(msg, &data) {
			return
		}
		s.scheduleResize(scatter.Box{Width: data.Width, Height: data.Height}, data.Force)

	case MsgTypeMeasure:
		var data MeasureData
		if !s.decode(msg, &data) {
			return
		}
		s.console.Measure(data.WorkID, data.Width, data.Height)

	case MsgTypeEscape:
		s.console.Escape()
		s.persistSelection()
		s.push(MsgTypeFragment, map[string]string{"fragment": s.console.Fragment()})

	case MsgTypeOutside:
		var data OutsideData
		if !s.decode(msg, &data) {
			return
		}
		s.console.OutsideClick(data.InField, data.InFooter)
		s.persistSelection()

	case MsgTypeTheme:
		var data ThemeData
		if !s.decode(msg, &data) {
			return
		}
		s.handleTheme(data)

	case MsgTypeMotion:
		var data MotionData
		if !s.decode(msg, &data) {
			return
		}
		s.console.SetReduceMotion(data.Reduce)
		s.sendLayout(false)

	case MsgTypePDFOpen:
		var data PDFData
		if !s.decode(msg, &data) {
			return
		}
		s.console.OpenPDF(data.WorkID)

	case MsgTypePDFClose:
		s.console.ClosePDF()

	case MsgTypePDFReady:
		var data PDFData
		if !s.decode(msg, &data) {
			return
		}
		s.console.PDFReady(data.Slug)

	default:
		logger.Warn("unknown ws message type",
			logger.String("session", s.id), logger.String("type", string(msg.Type)))
		s.push(MsgTypeError, map[string]string{"error": "unknown message type"})
	}
}

func (s *ConsoleSession) decode(msg WSMessage, out interface{}) bool {
	if err := json.Unmarshal(msg.Data, out); err != nil {
		logger.Warn("decode ws message failed",
			logger.String("type", string(msg.Type)), logger.ErrorField(err))
		s.push(MsgTypeError, map[string]string{"error": "malformed payload"})
		return false
	}
	return true
}

// scheduleResize 对resize做防抖，等待视口稳定后再重算布局
func (s *ConsoleSession) scheduleResize(box scatter.Box, force bool) {
	s.mu.Lock()
	s.box = box
	if s.resizeTimer != nil {
		s.resizeTimer.Stop()
	}
	debounce := s.hub.resizeDebounce()
	s.resizeTimer = time.AfterFunc(debounce, func() {
		s.sendLayout(force)
	})
	s.mu.Unlock()
}

// sendLayout 计算当前视口布局并下发，同时把新算出的结果写入Redis
func (s *ConsoleSession) sendLayout(force bool) {
	s.mu.Lock()
	box := s.box
	s.mu.Unlock()
	if box.Width <= 0 || box.Height <= 0 {
		return
	}

	positions, computed := s.console.Layout(box, force)
	s.push(MsgTypeLayout, LayoutPayload{
		Positions: positions,
		Items:     s.console.Items(),
		Computed:  computed,
	})

	if computed {
		seed := scatter.Seed(box, s.console.Field().Items())
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.SetLayoutPositions(ctx, seed, positions); err != nil {
			logger.Warn("cache layout failed", logger.ErrorField(err))
		}
	}
}

// handleTheme 应用主题变更并持久化存储偏好
// 切换时以当前生效主题为基准取反，首次切换也能正确落到另一侧
func (s *ConsoleSession) handleTheme(data ThemeData) {
	s.mu.Lock()
	s.systemDark = data.SystemDark
	changed := false
	if data.Cycle {
		effective := console.ResolveTheme(s.theme, s.hasTheme, s.systemDark)
		s.theme = console.ToggleTheme(effective)
		s.hasTheme = true
		changed = true
	} else if data.Theme != "" {
		s.theme = console.NormalizeTheme(data.Theme)
		s.hasTheme = true
		changed = true
	}
	theme, hasTheme := s.theme, s.hasTheme
	systemDark := s.systemDark
	s.mu.Unlock()

	if changed {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.SetTheme(ctx, s.visitorID, string(theme)); err != nil {
			logger.Warn("persist theme failed", logger.ErrorField(err))
		}
	}
	s.pushThemeSync(theme, hasTheme, systemDark)
	// 主题切换会影响字形度量，强制重算一次布局
	if changed {
		s.sendLayout(true)
	}
}

func (s *ConsoleSession) pushThemeSync(theme console.Theme, hasTheme, systemDark bool) {
	payload := ThemeSyncPayload{
		Resolved: console.ResolveTheme(theme, hasTheme, systemDark),
	}
	if hasTheme {
		payload.Stored = string(theme)
	}
	s.push(MsgTypeThemeSync, payload)
}

func (s *ConsoleSession) persistSelection() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cache.SetSelection(ctx, s.visitorID, s.console.Active()); err != nil {
		logger.Warn("persist selection failed", logger.ErrorField(err))
	}
}
