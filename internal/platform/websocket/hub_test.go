package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/hms/internal/platform/lifecycle"
	"github.com/ehr/hms/internal/platform/store"
	"github.com/ehr/hms/internal/platform/store/storetest"
	"github.com/ehr/hms/pkg/resource"
)

func newClient(id string, topics ...string) *Client {
	return &Client{ID: id, Topics: topics, Send: make(chan []byte, 16)}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case raw := <-c.Send:
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("c1", "assets")

	hub.Register(client)
	if hub.ClientCount() != 1 || hub.TopicCount("assets") != 1 {
		t.Fatalf("clients=%d assets=%d, want 1/1", hub.ClientCount(), hub.TopicCount("assets"))
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 || hub.TopicCount("assets") != 0 {
		t.Fatalf("clients=%d assets=%d, want 0/0", hub.ClientCount(), hub.TopicCount("assets"))
	}
	if _, open := <-client.Send; open {
		t.Error("expected Send to be closed")
	}
	hub.Unregister(client)
}

func TestHub_BroadcastRoutesByContainer(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	assets := newClient("a", "assets")
	donors := newClient("d", "donors")
	everything := newClient("all", AllTopics, "assets")
	hub.Register(assets)
	hub.Register(donors)
	hub.Register(everything)

	hub.Broadcast(Event{Container: "assets", Op: store.OpCreate, Status: lifecycle.StatusSucceeded, Total: 2})

	if ev := receive(t, assets); ev.Total != 2 || ev.Op != store.OpCreate {
		t.Errorf("unexpected event %+v", ev)
	}
	receive(t, everything)
	if len(everything.Send) != 0 {
		t.Error("client on both topics got the event twice")
	}
	if len(donors.Send) != 0 {
		t.Error("donors client received an assets event")
	}
}

func TestHub_BroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := &Client{ID: "slow", Topics: []string{"assets"}, Send: make(chan []byte, 1)}
	hub.Register(client)

	hub.Broadcast(Event{Container: "assets"})
	hub.Broadcast(Event{Container: "assets"})

	if len(client.Send) != 1 {
		t.Errorf("buffered = %d, want 1", len(client.Send))
	}
}

func TestHub_ProcessMessage(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("c", "assets")
	hub.Register(client)

	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{"notices", "assets"}})
	if hub.TopicCount("notices") != 1 {
		t.Fatalf("notices subscribers = %d, want 1", hub.TopicCount("notices"))
	}
	if len(client.Topics) != 2 {
		t.Errorf("topics = %v, want no duplicates", client.Topics)
	}

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{"assets"}})
	if hub.TopicCount("assets") != 0 {
		t.Errorf("assets subscribers = %d, want 0", hub.TopicCount("assets"))
	}
	if len(client.Topics) != 1 || client.Topics[0] != "notices" {
		t.Errorf("topics = %v, want [notices]", client.Topics)
	}

	hub.ProcessMessage(client, ClientMessage{Action: "noop", Topics: []string{"donors"}})
	if hub.TopicCount("donors") != 0 {
		t.Error("unknown action changed subscriptions")
	}
}

func TestHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newClient("c", "assets")
			hub.Register(c)
			hub.Broadcast(Event{Container: "assets"})
			hub.Unregister(c)
		}()
	}
	wg.Wait()
	if hub.ClientCount() != 0 {
		t.Errorf("clients = %d, want 0", hub.ClientCount())
	}
}

func TestHub_FollowPublishesContainerChanges(t *testing.T) {
	backend := storetest.NewBackend()
	backend.Seed("assets", resource.Entity{"id": 1, "name": "Bed"})
	containers := store.NewHub()
	c := store.NewContainer(store.Descriptor{Name: "assets"}, backend)
	if err := containers.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}

	hub := NewHub(zerolog.Nop())
	client := newClient("c", "assets")
	hub.Register(client)
	stop := hub.Follow(containers)

	if _, err := c.FetchAll(context.Background(), nil); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if ev := receive(t, client); ev.Status != lifecycle.StatusLoading {
		t.Errorf("first status = %q, want loading", ev.Status)
	}
	ev := receive(t, client)
	if ev.Status != lifecycle.StatusSucceeded || ev.Total != 1 || ev.Op != store.OpFetchAll {
		t.Errorf("unexpected event %+v", ev)
	}

	stop()
	c.ResetCurrent()
	if len(client.Send) != 0 {
		t.Error("received an event after stop")
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	e := echo.New()
	NewHandler(NewHub(zerolog.Nop()), nil).RegisterRoutes(e.Group(""))

	for _, r := range e.Routes() {
		if r.Path == "/watch" && r.Method == http.MethodGet {
			return
		}
	}
	t.Fatal("expected GET /watch route to be registered")
}

func TestHandler_HandleConnectRequiresWebSocket(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/watch", nil), rec)

	err := NewHandler(NewHub(zerolog.Nop()), nil).HandleConnect(c)
	if err == nil && rec.Code == http.StatusSwitchingProtocols {
		t.Fatal("expected upgrade to fail for a plain request")
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	e := echo.New()
	NewHandler(NewHub(zerolog.Nop()), []string{"http://localhost:3000"}).RegisterRoutes(e.Group(""))
	server := httptest.NewServer(e)
	defer server.Close()

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := gorillawebsocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/watch", header)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}
}

func TestHandler_StreamsEvents(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	e := echo.New()
	NewHandler(hub, []string{"*"}).RegisterRoutes(e.Group(""))
	server := httptest.NewServer(e)
	defer server.Close()

	conn, resp, err := gorillawebsocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/watch?resources=assets", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.TopicCount("assets") != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := conn.WriteJSON(ClientMessage{Action: "subscribe", Topics: []string{"notices"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for hub.TopicCount("notices") != 1 {
		if time.Now().After(deadline) {
			t.Fatal("subscribe never applied")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Broadcast(Event{Container: "notices", Op: store.OpDelete, Status: lifecycle.StatusSucceeded})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Container != "notices" || got.Op != store.OpDelete {
		t.Errorf("unexpected event %+v", got)
	}
}
