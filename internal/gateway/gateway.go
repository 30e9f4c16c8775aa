package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"classtrack/internal/device"
	"classtrack/internal/metrics"
	"classtrack/internal/queue"
	"classtrack/internal/scan"
	"classtrack/internal/verify"
)

// Pipeline processes one scan event into an admission decision.
type Pipeline interface {
	Process(ctx context.Context, deviceID, tag string, now time.Time) scan.Result
}

// DeviceRegistry is the slice of the device repo the gateway needs.
type DeviceRegistry interface {
	Find(ctx context.Context, id string) (*device.Device, error)
	SetStatus(ctx context.Context, id, status string) error
	Touch(ctx context.Context, id string, at time.Time) error
}

// Gateway owns the persistent device connections: the authentication
// handshake, message framing, and result fan-out. Each connection runs
// a single worker over a bounded queue, so per-connection state needs
// no locking.
type Gateway struct {
	pipeline Pipeline
	devices  DeviceRegistry
	hub      *Hub
	queue    queue.Queue
	buffer   int
	now      func() time.Time
}

// New creates a gateway.
func New(pipeline Pipeline, devices DeviceRegistry, hub *Hub, q queue.Queue, buffer int) *Gateway {
	if buffer <= 0 {
		buffer = 16
	}
	return &Gateway{
		pipeline: pipeline,
		devices:  devices,
		hub:      hub,
		queue:    q,
		buffer:   buffer,
		now:      time.Now,
	}
}

// connState is the per-connection authentication state machine:
// unauthenticated until a known deviceId is presented, authenticated
// after. It is only touched by the connection's worker goroutine.
type connState struct {
	deviceID string
}

func (s *connState) authenticated() bool { return s.deviceID != "" }

// DeviceHandler upgrades a device connection and serves its message
// loop until disconnect.
func (g *Gateway) DeviceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Printf("device accept failed: %v", err)
			return
		}
		g.serveDevice(r.Context(), conn)
	}
}

func (g *Gateway) serveDevice(ctx context.Context, conn *websocket.Conn) {
	st := &connState{}
	jobs := make(chan inbound, g.buffer)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for msg := range jobs {
			g.handleMessage(ctx, conn, st, msg)
		}
	}()

	for {
		var msg inbound
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			break
		}
		jobs <- msg
	}
	close(jobs)
	<-done

	if st.authenticated() {
		g.markOffline(st.deviceID)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "closed")
}

func (g *Gateway) handleMessage(ctx context.Context, conn *websocket.Conn, st *connState, msg inbound) {
	switch msg.Type {
	case msgAuthenticate:
		g.handleAuthenticate(ctx, conn, st, msg)
	case msgRFIDScan:
		g.handleScan(ctx, conn, st, msg)
	default:
		_ = wsjson.Write(ctx, conn, authResult{Type: "error", Status: verify.CodeBadRequest, Reason: "unknown_message_type"})
	}
}

func (g *Gateway) handleAuthenticate(ctx context.Context, conn *websocket.Conn, st *connState, msg inbound) {
	dev, err := g.devices.Find(ctx, msg.DeviceID)
	if err != nil {
		log.Printf("device lookup failed: %v", err)
		_ = wsjson.Write(ctx, conn, authResult{Type: "auth_result", Status: verify.CodeInternal, Reason: "internal_error"})
		return
	}
	if dev == nil {
		// Connection stays unauthenticated; scans keep being rejected
		// until a valid authenticate frame arrives.
		_ = wsjson.Write(ctx, conn, authResult{Type: "auth_result", Status: verify.CodeDeviceNotFound, Reason: "device_not_found"})
		return
	}

	if !st.authenticated() {
		metrics.ConnectedDevices.Inc()
	}
	st.deviceID = dev.ID
	if err := g.devices.SetStatus(ctx, dev.ID, device.StatusOnline); err != nil {
		log.Printf("device %s status update failed: %v", dev.ID, err)
	}
	g.broadcastStatus(dev.ID, device.StatusOnline)
	_ = wsjson.Write(ctx, conn, authResult{Type: "auth_result", Status: verify.CodeOK})
}

func (g *Gateway) handleScan(ctx context.Context, conn *websocket.Conn, st *connState, msg inbound) {
	if !st.authenticated() {
		_ = wsjson.Write(ctx, conn, newScanEnvelope(scan.Result{
			Code:   verify.CodeDeviceNotFound,
			Reason: "device_not_authenticated",
		}))
		return
	}

	now := g.now()
	res := g.pipeline.Process(ctx, st.deviceID, msg.RFIDTag, now)
	if err := g.devices.Touch(ctx, st.deviceID, now); err != nil {
		log.Printf("device %s touch failed: %v", st.deviceID, err)
	}

	envelope := newScanEnvelope(res)
	_ = wsjson.Write(ctx, conn, envelope)
	g.hub.Broadcast(envelope)
	g.publish("scan_result", envelope)
}

func (g *Gateway) markOffline(deviceID string) {
	metrics.ConnectedDevices.Dec()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.devices.SetStatus(ctx, deviceID, device.StatusOffline); err != nil {
		log.Printf("device %s offline update failed: %v", deviceID, err)
	}
	g.broadcastStatus(deviceID, device.StatusOffline)
}

func (g *Gateway) broadcastStatus(deviceID, status string) {
	update := deviceStatus{Type: "device_status", DeviceID: deviceID, Status: status}
	g.hub.Broadcast(update)
	g.publish("device_status", update)
}

func (g *Gateway) publish(kind string, v any) {
	if g.queue == nil {
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.queue.Publish(ctx, queue.Message{Type: kind, Body: body}); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

// DashboardHandler upgrades a dashboard listener and streams scan
// results and device-status updates until it disconnects.
func (g *Gateway) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Printf("dashboard accept failed: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closed")

		metrics.DashboardListeners.Inc()
		defer metrics.DashboardListeners.Dec()

		sub := g.hub.Subscribe()
		defer g.hub.Unsubscribe(sub)

		// CloseRead surfaces disconnects while we only write.
		ctx := conn.CloseRead(r.Context())
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-sub:
				if err := wsjson.Write(ctx, conn, msg); err != nil {
					return
				}
			}
		}
	}
}
