package platform

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akinokuni/renderbridge/pkg/config"
	"github.com/akinokuni/renderbridge/pkg/logger"
)

const oneBotAPITimeout = 15 * time.Second

// OneBotClient speaks the OneBot v11 action protocol over a forward
// WebSocket connection.
type OneBotClient struct {
	cfg config.OneBotConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex // guards conn
	conn    *websocket.Conn
	writeMu sync.Mutex

	apiWaitMu   sync.Mutex
	apiWaiters  map[string]chan oneBotAPIResponse
	echoCounter int64

	running atomic.Bool

	identityMu sync.Mutex
	identity   string
}

type oneBotSegment struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type oneBotAPIRequest struct {
	Action string      `json:"action"`
	Params interface{} `json:"params"`
	Echo   string      `json:"echo,omitempty"`
}

type oneBotAPIResponse struct {
	Status  string          `json:"status"`
	RetCode json.RawMessage `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Wording string          `json:"wording"`
	Echo    string          `json:"echo"`
}

func NewOneBotClient(cfg config.OneBotConfig) *OneBotClient {
	return &OneBotClient{
		cfg:        cfg,
		apiWaiters: make(map[string]chan oneBotAPIResponse),
	}
}

func (c *OneBotClient) Name() string { return "onebot" }

func (c *OneBotClient) IsRunning() bool { return c.running.Load() }

func (c *OneBotClient) Start(ctx context.Context) error {
	if c.cfg.WSUrl == "" {
		return fmt.Errorf("OneBot ws_url not configured")
	}

	logger.InfoCF("onebot", "Starting OneBot client", map[string]interface{}{
		"ws_url": c.cfg.WSUrl,
	})

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		logger.WarnCF("onebot", "Initial connection failed, will retry in background", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		go c.listen()
	}

	if c.cfg.ReconnectInterval > 0 {
		go c.reconnectLoop()
	} else if c.currentConn() == nil {
		return fmt.Errorf("failed to connect to OneBot and reconnect is disabled")
	}

	c.running.Store(true)
	return nil
}

func (c *OneBotClient) Stop(ctx context.Context) error {
	c.running.Store(false)

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	return nil
}

func (c *OneBotClient) connect() error {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	header := make(map[string][]string)
	if c.cfg.AccessToken != "" {
		header["Authorization"] = []string{"Bearer " + c.cfg.AccessToken}
	}

	conn, _, err := dialer.Dial(c.cfg.WSUrl, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	logger.InfoC("onebot", "WebSocket connected")
	return nil
}

func (c *OneBotClient) currentConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *OneBotClient) reconnectLoop() {
	interval := time.Duration(c.cfg.ReconnectInterval) * time.Second
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(interval):
			if c.currentConn() == nil {
				logger.InfoC("onebot", "Attempting to reconnect...")
				if err := c.connect(); err != nil {
					logger.ErrorCF("onebot", "Reconnect failed", map[string]interface{}{
						"error": err.Error(),
					})
				} else {
					go c.listen()
				}
			}
		}
	}
}

// listen drains inbound frames. This client only originates actions, so the
// loop exists to route API responses back to their waiters; events are
// ignored.
func (c *OneBotClient) listen() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			conn := c.currentConn()
			if conn == nil {
				return
			}

			_, payload, err := conn.ReadMessage()
			if err != nil {
				logger.ErrorCF("onebot", "WebSocket read error", map[string]interface{}{
					"error": err.Error(),
				})
				c.mu.Lock()
				if c.conn != nil {
					c.conn.Close()
					c.conn = nil
				}
				c.mu.Unlock()
				return
			}

			var resp oneBotAPIResponse
			if err := json.Unmarshal(payload, &resp); err != nil || resp.Echo == "" {
				continue
			}
			c.dispatchAPIResponse(resp)
		}
	}
}

func (c *OneBotClient) dispatchAPIResponse(resp oneBotAPIResponse) {
	c.apiWaitMu.Lock()
	waiter := c.apiWaiters[resp.Echo]
	c.apiWaitMu.Unlock()
	if waiter == nil {
		return
	}

	select {
	case waiter <- resp:
	default:
	}
}

func (c *OneBotClient) nextEcho(prefix string) string {
	n := atomic.AddInt64(&c.echoCounter, 1)
	return fmt.Sprintf("%s_%d", prefix, n)
}

func (c *OneBotClient) callAPI(ctx context.Context, action string, params interface{}) (*oneBotAPIResponse, error) {
	conn := c.currentConn()
	if conn == nil {
		return nil, fmt.Errorf("OneBot WebSocket not connected")
	}

	echo := c.nextEcho(action)
	waiter := make(chan oneBotAPIResponse, 1)

	c.apiWaitMu.Lock()
	c.apiWaiters[echo] = waiter
	c.apiWaitMu.Unlock()

	defer func() {
		c.apiWaitMu.Lock()
		delete(c.apiWaiters, echo)
		c.apiWaitMu.Unlock()
	}()

	payload, err := json.Marshal(oneBotAPIRequest{
		Action: action,
		Params: params,
		Echo:   echo,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal OneBot request: %w", err)
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write OneBot request: %w", err)
	}

	timer := time.NewTimer(oneBotAPITimeout)
	defer timer.Stop()

	select {
	case resp := <-waiter:
		if !oneBotResponseOK(&resp) {
			return &resp, fmt.Errorf("OneBot action %s failed: status=%s retcode=%s %s",
				action, resp.Status, string(resp.RetCode), resp.Wording)
		}
		return &resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("OneBot action %s timed out", action)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, fmt.Errorf("OneBot client stopped")
	}
}

func oneBotResponseOK(resp *oneBotAPIResponse) bool {
	status := strings.ToLower(strings.TrimSpace(resp.Status))
	if status != "" && status != "ok" && status != "async" {
		return false
	}
	if len(resp.RetCode) > 0 {
		var code int64
		if err := json.Unmarshal(resp.RetCode, &code); err == nil && code != 0 && code != 1 {
			return false
		}
	}
	return true
}

// Identity queries get_login_info once and caches the account id.
func (c *OneBotClient) Identity(ctx context.Context) (string, error) {
	c.identityMu.Lock()
	cached := c.identity
	c.identityMu.Unlock()
	if cached != "" {
		return cached, nil
	}

	resp, err := c.callAPI(ctx, "get_login_info", struct{}{})
	if err != nil {
		return "", err
	}

	var info struct {
		UserID   json.RawMessage `json:"user_id"`
		Nickname string          `json:"nickname"`
	}
	if err := json.Unmarshal(resp.Data, &info); err != nil {
		return "", fmt.Errorf("parse login info: %w", err)
	}

	id := strings.Trim(string(info.UserID), `"`)
	if id == "" {
		return "", fmt.Errorf("login info has no user_id")
	}

	c.identityMu.Lock()
	c.identity = id
	c.identityMu.Unlock()
	return id, nil
}

func (c *OneBotClient) SendGroupImage(ctx context.Context, groupID int64, img Image) error {
	segs, err := imageSegments(img)
	if err != nil {
		return err
	}
	_, err = c.callAPI(ctx, "send_group_msg", map[string]interface{}{
		"group_id": groupID,
		"message":  segs,
	})
	return err
}

func (c *OneBotClient) SendPrivateImage(ctx context.Context, userID int64, img Image) error {
	segs, err := imageSegments(img)
	if err != nil {
		return err
	}
	_, err = c.callAPI(ctx, "send_private_msg", map[string]interface{}{
		"user_id": userID,
		"message": segs,
	})
	return err
}

func (c *OneBotClient) SendGroupText(ctx context.Context, groupID int64, text string) error {
	_, err := c.callAPI(ctx, "send_group_msg", map[string]interface{}{
		"group_id": groupID,
		"message":  textSegments(text),
	})
	return err
}

func (c *OneBotClient) SendPrivateText(ctx context.Context, userID int64, text string) error {
	_, err := c.callAPI(ctx, "send_private_msg", map[string]interface{}{
		"user_id": userID,
		"message": textSegments(text),
	})
	return err
}

// imageSegments builds the single-attachment message list. Remote URLs pass
// through; local files are inlined as base64:// so the OneBot host does not
// need filesystem access to this process.
func imageSegments(img Image) ([]oneBotSegment, error) {
	file, err := oneBotFileValue(img)
	if err != nil {
		return nil, err
	}
	return []oneBotSegment{{
		Type: "image",
		Data: map[string]interface{}{"file": file},
	}}, nil
}

func textSegments(text string) []oneBotSegment {
	return []oneBotSegment{{
		Type: "text",
		Data: map[string]interface{}{"text": text},
	}}
}

func oneBotFileValue(img Image) (string, error) {
	if img.URL != "" {
		return img.URL, nil
	}
	if img.Path == "" {
		return "", fmt.Errorf("empty image reference")
	}

	data, err := os.ReadFile(img.Path)
	if err != nil {
		return "", fmt.Errorf("read image file: %w", err)
	}
	return "base64://" + base64.StdEncoding.EncodeToString(data), nil
}
