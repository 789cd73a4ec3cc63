// Package foxglove serves decoded observations over the Foxglove
// WebSocket protocol so a live dashboard can plot both channels while
// the CSV dump runs.
package foxglove

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tc2100/pkg/engine"
	"tc2100/pkg/observation"
)

type ObservationMessage struct {
	TS               string   `json:"ts"`
	MeterTime        string   `json:"meter_time"`
	ThermocoupleType string   `json:"thermocouple_type"`
	Units            string   `json:"units"`
	Channel1         *float64 `json:"channel_1"`
	Channel2         *float64 `json:"channel_2"`
}

type FrameTime struct {
	Sec  uint32 `json:"sec"`
	Nsec uint32 `json:"nsec"`
}

type TemperatureMessage struct {
	Timestamp FrameTime `json:"timestamp"`
	Channel   int       `json:"channel"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
}

type Server struct {
	cfg     Config
	hub     *engine.Hub
	clients map[*client]struct{}
	mu      sync.RWMutex
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	subs map[uint32]uint64
	mu   sync.RWMutex
	once sync.Once
}

func NewServer(cfg Config, hub *engine.Hub) *Server {
	defaults := DefaultConfig()
	if cfg.WSAddr == "" {
		cfg.WSAddr = defaults.WSAddr
	}
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.Topic == "" {
		cfg.Topic = defaults.Topic
	}
	if cfg.ChannelID == 0 {
		cfg.ChannelID = defaults.ChannelID
	}
	if cfg.SchemaName == "" {
		cfg.SchemaName = defaults.SchemaName
	}
	if cfg.SchemaEncoding == "" {
		cfg.SchemaEncoding = defaults.SchemaEncoding
	}
	if cfg.Schema == "" {
		cfg.Schema = defaults.Schema
	}
	if cfg.Encoding == "" {
		cfg.Encoding = defaults.Encoding
	}
	if cfg.TempTopic == "" {
		cfg.TempTopic = defaults.TempTopic
	}
	if cfg.TempChannelID == 0 {
		cfg.TempChannelID = defaults.TempChannelID
	}
	if cfg.TempSchemaName == "" {
		cfg.TempSchemaName = defaults.TempSchemaName
	}
	if cfg.TempSchema == "" {
		cfg.TempSchema = defaults.TempSchema
	}
	if cfg.TempChannelID == cfg.ChannelID {
		cfg.TempChannelID = cfg.ChannelID + 1
	}
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = defaults.SendBuf
	}

	return &Server{
		cfg:     cfg,
		hub:     hub,
		clients: make(map[*client]struct{}),
	}
}

func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)

	httpServer := &http.Server{
		Addr:    s.cfg.WSAddr,
		Handler: mux,
	}

	sub := s.hub.Subscribe()
	go s.broadcastLoop(ctx, sub)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		Subprotocols: []string{"foxglove.websocket.v1"},
		CheckOrigin: func(*http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := newClient(conn, s.cfg.SendBuf)
	s.addClient(c)

	if err := conn.WriteJSON(s.serverInfo()); err != nil {
		c.close()
		s.removeClient(c)
		return
	}
	if err := conn.WriteJSON(s.advertise()); err != nil {
		c.close()
		s.removeClient(c)
		return
	}

	go c.writeLoop()
	c.readLoop(s.supportedChannels())

	c.close()
	s.removeClient(c)
}

func (s *Server) supportedChannels() map[uint64]struct{} {
	return map[uint64]struct{}{
		s.cfg.ChannelID:     {},
		s.cfg.TempChannelID: {},
	}
}

func (s *Server) serverInfo() ServerInfoMsg {
	return ServerInfoMsg{
		Op:                 OpServerInfo,
		Name:               s.cfg.Name,
		Capabilities:       []string{},
		SupportedEncodings: []string{},
		SessionID:          fmt.Sprintf("%d", time.Now().UTC().UnixNano()),
	}
}

func (s *Server) advertise() AdvertiseMsg {
	return AdvertiseMsg{
		Op: OpAdvertise,
		Channels: []Channel{
			{
				ID:             s.cfg.ChannelID,
				Topic:          s.cfg.Topic,
				Encoding:       s.cfg.Encoding,
				SchemaName:     s.cfg.SchemaName,
				SchemaEncoding: s.cfg.SchemaEncoding,
				Schema:         s.cfg.Schema,
			},
			{
				ID:             s.cfg.TempChannelID,
				Topic:          s.cfg.TempTopic,
				Encoding:       s.cfg.Encoding,
				SchemaName:     s.cfg.TempSchemaName,
				SchemaEncoding: s.cfg.SchemaEncoding,
				Schema:         s.cfg.TempSchema,
			},
		},
	}
}

func (s *Server) broadcastLoop(ctx context.Context, sub <-chan observation.Observation) {
	for {
		select {
		case <-ctx.Done():
			return
		case obs, ok := <-sub:
			if !ok {
				return
			}
			s.broadcastObservation(obs)
		}
	}
}

func (s *Server) broadcastObservation(obs observation.Observation) {
	ts := obs.SystemTime
	if ts.IsZero() {
		ts = time.Now()
	}

	s.publishJSONToChannel(s.cfg.ChannelID, ts, observationMessage(obs, ts))
	for _, temp := range temperatureMessages(obs, ts) {
		s.publishJSONToChannel(s.cfg.TempChannelID, ts, temp)
	}
}

func observationMessage(obs observation.Observation, ts time.Time) ObservationMessage {
	hours, minutes, seconds := observation.SplitMeterTime(obs.MeterTime)
	return ObservationMessage{
		TS:               ts.UTC().Format(time.RFC3339Nano),
		MeterTime:        fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds),
		ThermocoupleType: obs.ThermocoupleType.String(),
		Units:            obs.Units.String(),
		Channel1:         finiteTemp(obs.ChannelTemp[0]),
		Channel2:         finiteTemp(obs.ChannelTemp[1]),
	}
}

// temperatureMessages emits one plot point per channel that has a
// reading; channels without a probe publish nothing.
func temperatureMessages(obs observation.Observation, ts time.Time) []TemperatureMessage {
	stamp := FrameTime{Sec: uint32(ts.Unix()), Nsec: uint32(ts.Nanosecond())}
	var out []TemperatureMessage
	for i, temp := range obs.ChannelTemp {
		if math.IsNaN(temp) {
			continue
		}
		out = append(out, TemperatureMessage{
			Timestamp: stamp,
			Channel:   i + 1,
			Value:     temp,
			Unit:      obs.Units.String(),
		})
	}
	return out
}

func finiteTemp(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func (s *Server) publishJSONToChannel(channelID uint64, ts time.Time, message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		return
	}

	logTime := uint64(ts.UnixNano())
	clients := s.snapshotClients()
	for _, c := range clients {
		subIDs := c.subIDsForChannel(channelID)
		for _, subID := range subIDs {
			frame := EncodeMessageData(subID, logTime, payload)
			c.trySend(frame)
		}
	}
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *Server) snapshotClients() []*client {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	return clients
}

func newClient(conn *websocket.Conn, sendBuf int) *client {
	if sendBuf <= 0 {
		sendBuf = DefaultConfig().SendBuf
	}
	return &client{
		conn: conn,
		send: make(chan []byte, sendBuf),
		subs: make(map[uint32]uint64),
	}
}

func (c *client) readLoop(supportedChannels map[uint64]struct{}) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var header struct {
			Op string `json:"op"`
		}
		if err := json.Unmarshal(data, &header); err != nil {
			continue
		}

		switch header.Op {
		case OpSubscribe:
			var msg SubscribeMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			for _, sub := range msg.Subscriptions {
				if _, ok := supportedChannels[sub.ChannelID]; ok {
					c.addSub(sub.ID, sub.ChannelID)
				}
			}
		case OpUnsubscribe:
			var msg UnsubscribeMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			for _, id := range msg.SubscriptionIDs {
				c.removeSub(id)
			}
		}
	}
}

func (c *client) writeLoop() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			c.close()
			return
		}
	}
}

func (c *client) trySend(msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) addSub(id uint32, channelID uint64) {
	c.mu.Lock()
	c.subs[id] = channelID
	c.mu.Unlock()
}

func (c *client) removeSub(id uint32) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

func (c *client) subIDsForChannel(channelID uint64) []uint32 {
	c.mu.RLock()
	ids := make([]uint32, 0, len(c.subs))
	for id, ch := range c.subs {
		if ch == channelID {
			ids = append(ids, id)
		}
	}
	c.mu.RUnlock()
	return ids
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}
