package ws

import (
	"net/http"
	"sync"

	"collabroom/client/protocol"
	"collabroom/client/rlog"
	"collabroom/internal/entity"
	"collabroom/internal/service"

	"github.com/gorilla/websocket"
)

// Hub fans typed room events out to every channel attached to a room.
// One websocket per (identity, room); the client announces its room with a
// join-room event after connecting.
type Hub struct {
	// roomID -> clients
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound

	mu sync.RWMutex

	roomService    service.RoomService
	messageService service.MessageService
	logger         rlog.Logger
}

type outbound struct {
	roomID  string
	exclude *Client
	data    []byte
}

func NewHub(roomService service.RoomService, messageService service.MessageService, logger rlog.Logger) *Hub {
	return &Hub{
		rooms:          make(map[string]map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan outbound, 256),
		roomService:    roomService,
		messageService: messageService,
		logger:         logger,
	}
}

func (h *Hub) Logf(format string, v ...any) {
	h.logger.Logf(format, v...)
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case out := <-h.broadcast:
			h.deliver(out)
		}
	}
}

func (h *Hub) deliver(out outbound) {
	h.mu.Lock()
	for client := range h.rooms[out.roomID] {
		if client == out.exclude {
			continue
		}
		select {
		case client.send <- out.data:
		default:
			// Slow consumer; drop the channel rather than block
			// the whole room.
			client.closeSend()
			delete(h.rooms[out.roomID], client)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	if h.rooms[client.roomID] == nil {
		h.rooms[client.roomID] = make(map[*Client]bool)
	}
	h.rooms[client.roomID][client] = true
	total := len(h.rooms[client.roomID])
	h.mu.Unlock()

	h.roomService.SetPresence(client.roomID, client.userID, entity.PresenceOnline)
	h.Logf("Client {%s} joined room {%s}. Total clients in room: %d", client.userID, client.roomID, total)

	h.notifyRoom(client.roomID, client, protocol.EventMemberJoined, protocol.MemberJoined{
		RoomID: client.roomID,
		Member: client.member,
	})
}

func (h *Hub) removeClient(client *Client) {
	roomID := client.roomID
	if roomID == "" {
		client.closeSend()
		return
	}

	h.mu.Lock()
	removed := false
	if clients, exists := h.rooms[roomID]; exists {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			removed = true
			if len(clients) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	h.mu.Unlock()

	client.closeSend()
	if !removed {
		return
	}

	h.roomService.SetPresence(roomID, client.userID, entity.PresenceOffline)
	h.Logf("Client {%s} left room {%s}", client.userID, roomID)

	h.notifyRoom(roomID, client, protocol.EventMemberLeft, protocol.MemberLeft{
		RoomID: roomID,
		UserID: client.userID,
	})
}

// broadcastToRoom queues a frame for the hub goroutine to fan out. Used by
// the per-client read pumps.
func (h *Hub) broadcastToRoom(roomID string, exclude *Client, event string, payload any) {
	data, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		h.Logf("Could not encode %s broadcast {%v}", event, err)
		return
	}
	h.broadcast <- outbound{roomID: roomID, exclude: exclude, data: data}
}

// notifyRoom fans a frame out synchronously. The register/unregister arms of
// Run use it; pushing onto the broadcast channel from inside the hub
// goroutine could block on its own buffer.
func (h *Hub) notifyRoom(roomID string, exclude *Client, event string, payload any) {
	data, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		h.Logf("Could not encode %s notice {%v}", event, err)
		return
	}
	h.deliver(outbound{roomID: roomID, exclude: exclude, data: data})
}

// CloseRoom force-disconnects every channel bound to a room. Used when the
// room's admin deletes it.
func (h *Hub) CloseRoom(roomUUID string) {
	h.mu.Lock()
	clients := h.rooms[roomUUID]
	delete(h.rooms, roomUUID)
	h.mu.Unlock()

	for client := range clients {
		client.closeSend()
		client.conn.Close()
	}
	h.Logf("Room {%s} closed, %d clients disconnected", roomUUID, len(clients))
}

// ClientCount reports how many channels are attached to a room.
func (h *Hub) ClientCount(roomUUID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomUUID])
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades an authenticated request. The caller has already
// resolved the identity; room binding happens on the first join-room event.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID, displayName string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logf("Websocket upgrade failed for user {%s}: %v", userID, err)
		return
	}

	client := &Client{
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, 256),
		userID:      userID,
		displayName: displayName,
	}

	go client.writePump()
	go client.readPump()
}
