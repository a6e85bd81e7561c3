package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chatrelay/internal/app/server/ws"
	"chatrelay/internal/core/domain"
	"chatrelay/internal/core/services"
	"chatrelay/internal/platform/logger"
	"chatrelay/pkg/middleware"
)

// WSHandler upgrades the connection and bridges frames to the router. The
// first frame must be presenceAnnounce; until then nothing is routed. After
// the announce each event is dispatched on its own goroutine, so a slow
// gateway call never blocks the read loop or other connections.
type WSHandler struct {
	lifecycle     *services.LifecycleService
	router        *services.RouterService
	allowedOrigin string
}

func NewWSHandler(lifecycle *services.LifecycleService, router *services.RouterService, allowedOrigin string) *WSHandler {
	return &WSHandler{
		lifecycle:     lifecycle,
		router:        router,
		allowedOrigin: allowedOrigin,
	}
}

func (h *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	span := trace.SpanFromContext(r.Context())
	tokenIdentity, _ := r.Context().Value(middleware.UserIDKey).(string)

	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)
	defer cancel()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if h.allowedOrigin == "" || h.allowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == h.allowedOrigin
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade failed", "err", err)
		return
	}
	sock := ws.NewWebSocket(ctx, conn, log)

	var client *ws.Client
	sock.ReadLoop(func(data []byte) {
		env, err := domain.DecodeEnvelope(data)
		if err != nil {
			log.ErrorContext(ctx, "ws handler - bad frame, dropped", "err", err)
			return
		}
		if client == nil {
			if env.Event != domain.EventPresenceAnnounce {
				log.InfoContext(ctx, "ws handler - event before announce, dropped", "event", env.Event)
				return
			}
			announce, err := env.DecodePresenceAnnounce()
			if err != nil {
				log.ErrorContext(ctx, "ws handler - bad announce, dropped", "err", err)
				return
			}
			if tokenIdentity != "" && tokenIdentity != announce.Identity {
				// Announced identity is trusted, but a token mismatch is
				// worth a trace.
				log.WarnContext(ctx, "ws handler - announce does not match token subject",
					"announced", announce.Identity, "subject", tokenIdentity)
			}
			client = ws.NewClient(ctx, sock, announce.Identity)
			span.SetAttributes(
				attribute.String("chat.identity", announce.Identity),
				attribute.String("chat.handle_id", client.ID()),
			)
			h.lifecycle.HandleConnect(sessionCtx, client)
			return
		}
		// Dispatch on the uncancelled session context: a connection that
		// drops mid-handler still lets in-flight gateway calls finish, and
		// emits to its stale handle become no-ops.
		go h.route(sessionCtx, client, env)
	})

	if client != nil {
		h.lifecycle.HandleDisconnect(sessionCtx, client.ID())
		client.Close()
	}
}

func (h *WSHandler) route(ctx context.Context, client *ws.Client, env *domain.Envelope) {
	log := logger.FromContext(ctx)
	switch env.Event {
	case domain.EventPresenceAnnounce:
		// Already announced on this connection.
	case domain.EventSendFriendRequest:
		p, err := env.DecodeFriendRequest()
		if err != nil {
			log.ErrorContext(ctx, "ws handler - bad sendFriendRequest, dropped", "err", err)
			return
		}
		h.router.FriendRequest(ctx, client.Identity(), p.ReceiverID)
	case domain.EventAcceptRequest:
		p, err := env.DecodeAcceptRequest()
		if err != nil {
			log.ErrorContext(ctx, "ws handler - bad acceptRequest, dropped", "err", err)
			return
		}
		h.router.AcceptRequest(ctx, p.User, p.Friend)
	case domain.EventSendMessage:
		p, err := env.DecodeSendMessage()
		if err != nil {
			log.ErrorContext(ctx, "ws handler - bad sendMessage, dropped", "err", err)
			return
		}
		_ = h.router.SendMessage(ctx, p.MessageID)
	case domain.EventCreateGroup:
		p, err := env.DecodeCreateGroup()
		if err != nil {
			log.ErrorContext(ctx, "ws handler - bad createGroup, dropped", "err", err)
			return
		}
		_ = h.router.CreateGroup(ctx, p.GroupID, p.Payload)
	case domain.EventMarkAsRead:
		p, err := env.DecodeMarkAsRead()
		if err != nil {
			log.ErrorContext(ctx, "ws handler - bad markAsRead, dropped", "err", err)
			return
		}
		_ = h.router.MarkRead(ctx, p.MessageID)
	case domain.EventMarkGroupRead:
		p, err := env.DecodeMarkGroupRead()
		if err != nil {
			log.ErrorContext(ctx, "ws handler - bad markGroupRead, dropped", "err", err)
			return
		}
		_ = h.router.MarkGroupRead(ctx, p.MessageID, client.Identity())
	default:
		log.InfoContext(ctx, "ws handler - unknown event, dropped", "event", env.Event)
	}
}
