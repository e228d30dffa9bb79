package gateway

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"groupwire/internal/domain"
	"groupwire/internal/service"
)

type fakeMessageRepo struct {
	pages map[string][]domain.Message
}

func (r *fakeMessageRepo) Create(context.Context, domain.Message) error { return nil }

func (r *fakeMessageRepo) Paginate(_ context.Context, groupID string, page, limit int) (domain.MessagePage, error) {
	msgs := r.pages[groupID]
	return domain.MessagePage{Messages: msgs, Total: len(msgs)}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *ChannelRouter, *service.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtSvc := service.NewJWTService("secret", 15*time.Minute)
	users := &fakeUserRepo{users: map[string]domain.User{
		"u1": {ID: "u1", Email: "alice@example.com", Role: "member"},
	}}
	router := NewChannelRouter(nil)
	messages := &fakeMessageRepo{pages: map[string][]domain.Message{
		"g1": {{ID: "m1", GroupID: "g1", Content: "hola", Sender: "Alice"}},
	}}
	server := NewServer(nil, NewAuthGate(jwtSvc, users), router, messages, 50)

	r := gin.New()
	r.GET("/ws", server.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, router, jwtSvc
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func TestServer_RejectsConnectionWithoutToken(t *testing.T) {
	srv, _, _ := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	env := readEnvelope(t, conn)
	if env.Event != EventError {
		t.Fatalf("expected error event, got %s", env.Event)
	}
	if reason, _ := env.Data.(string); reason != ReasonNoToken {
		t.Fatalf("expected %s, got %v", ReasonNoToken, env.Data)
	}
}

func TestServer_SubscribeDeliversInitialAndLiveMessages(t *testing.T) {
	srv, router, jwtSvc := newTestServer(t)

	token, err := jwtSvc.GenerateAccessToken(domain.User{ID: "u1", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token="+token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(clientCommand{Action: ActionSubscribe, GroupID: "g1"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	env := readEnvelope(t, conn)
	if env.Event != EventInitialMessages {
		t.Fatalf("expected initial_messages, got %s", env.Event)
	}

	// initial_messages confirma que la suscripción ya está registrada.
	router.BroadcastToGroup("g1", EventNewMessage, NewMessagePayload{GroupID: "g1"})

	env = readEnvelope(t, conn)
	if env.Event != EventNewMessage {
		t.Fatalf("expected new_message, got %s", env.Event)
	}
}

func TestServer_DisconnectClearsSubscriptions(t *testing.T) {
	srv, router, jwtSvc := newTestServer(t)

	token, err := jwtSvc.GenerateAccessToken(domain.User{ID: "u1", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token="+token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	for _, group := range []string{"g1", "g2"} {
		if err := conn.WriteJSON(clientCommand{Action: ActionSubscribe, GroupID: group}); err != nil {
			t.Fatalf("subscribe %s: %v", group, err)
		}
		readEnvelope(t, conn) // initial_messages
	}

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(router.Subscribers("g1")) == 0 && len(router.Subscribers("g2")) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected session removed from both groups after disconnect")
}
