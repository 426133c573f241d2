package input

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"collabroom/client/rlog"
	"collabroom/internal"
	"collabroom/internal/handler"
	"collabroom/internal/middleware"
	"collabroom/internal/service"
	"collabroom/internal/ws"

	"github.com/gorilla/mux"
)

// InputManager owns the HTTP front of the room server: the REST surface the
// clients' durable-store calls hit, and the websocket upgrade endpoint.
type InputManager struct {
	running atomic.Bool
	paused  atomic.Bool

	logger rlog.Logger
	server *http.Server

	stopFromOutsideChan chan struct{}
	doneFromInsideChan  chan struct{}

	authService      service.AuthService
	roomService      service.RoomService
	fileService      service.FileService
	messageService   service.MessageService
	executionService service.ExecutionService
	hub              *ws.Hub
}

func NewInputManager() *InputManager {
	return &InputManager{
		running:             atomic.Bool{},
		paused:              atomic.Bool{},
		stopFromOutsideChan: make(chan struct{}),
		doneFromInsideChan:  make(chan struct{}),
	}
}

func (i *InputManager) IsReady() bool {
	return i.logger != nil && i.authService != nil && i.roomService != nil &&
		i.fileService != nil && i.messageService != nil && i.hub != nil
}

func (i *InputManager) IsRunning() bool {
	return i.running.Load()
}

func (i *InputManager) SetLogger(l rlog.Logger) {
	i.logger = l
}

func (i *InputManager) SetServices(auth service.AuthService, room service.RoomService, file service.FileService, message service.MessageService, execution service.ExecutionService) {
	i.authService = auth
	i.roomService = room
	i.fileService = file
	i.messageService = message
	i.executionService = execution
}

func (i *InputManager) SetHub(hub *ws.Hub) {
	i.hub = hub
}

func (i *InputManager) Logf(format string, a ...any) {
	i.logger.Logf(format, a...)
}

func (i *InputManager) SetPause(paused bool) {
	i.paused.Store(paused)
}

func (i *InputManager) IsPaused() bool {
	return i.paused.Load()
}

// PauseMiddleware turns the whole surface away while the server drains.
func (i *InputManager) PauseMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if i.IsPaused() {
			http.Error(w, "Server is paused", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Router builds the full route table. Exposed on its own so tests can mount
// it on an httptest server.
func (i *InputManager) Router() *mux.Router {
	authHandler := handler.NewAuthHandler(i.authService)
	roomHandler := handler.NewRoomHandler(i.roomService, i.hub)
	fileHandler := handler.NewFileHandler(i.fileService, i.roomService)
	messageHandler := handler.NewMessageHandler(i.messageService, i.roomService)
	executeHandler := handler.NewExecuteHandler(i.executionService, i.roomService)

	authed := func(next func(w http.ResponseWriter, r *http.Request)) func(w http.ResponseWriter, r *http.Request) {
		return middleware.AuthMiddleware(i.authService, next)
	}

	r := mux.NewRouter()

	// Authentication routes
	r.HandleFunc("/api/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/api/auth/refresh", authHandler.Refresh).Methods("POST")
	r.HandleFunc("/api/auth/logout", authed(authHandler.Logout)).Methods("POST")
	r.HandleFunc("/api/me", authed(authHandler.Me)).Methods("GET")

	// Room routes
	r.HandleFunc("/api/rooms", authed(roomHandler.CreateRoom)).Methods("POST")
	r.HandleFunc("/api/rooms", authed(roomHandler.ListRooms)).Methods("GET")
	r.HandleFunc("/api/rooms/join", authed(roomHandler.JoinRoom)).Methods("POST")
	r.HandleFunc("/api/rooms/{roomId}", authed(roomHandler.GetRoom)).Methods("GET")
	r.HandleFunc("/api/rooms/{roomId}", authed(roomHandler.UpdateRoom)).Methods("PUT")
	r.HandleFunc("/api/rooms/{roomId}", authed(roomHandler.DeleteRoom)).Methods("DELETE")
	r.HandleFunc("/api/rooms/{roomId}/leave", authed(roomHandler.LeaveRoom)).Methods("POST")
	r.HandleFunc("/api/rooms/{roomId}/members", authed(roomHandler.GetRoster)).Methods("GET")

	// File routes
	r.HandleFunc("/api/rooms/{roomId}/files", authed(fileHandler.ListFiles)).Methods("GET")
	r.HandleFunc("/api/rooms/{roomId}/files", authed(fileHandler.CreateFile)).Methods("POST")
	r.HandleFunc("/api/rooms/{roomId}/files/{fileId}", authed(fileHandler.GetFile)).Methods("GET")
	r.HandleFunc("/api/rooms/{roomId}/files/{fileId}", authed(fileHandler.UpdateFile)).Methods("PUT")
	r.HandleFunc("/api/rooms/{roomId}/files/{fileId}", authed(fileHandler.DeleteFile)).Methods("DELETE")

	// Chat routes
	r.HandleFunc("/api/rooms/{roomId}/messages", authed(messageHandler.GetHistory)).Methods("GET")
	r.HandleFunc("/api/rooms/{roomId}/messages", authed(messageHandler.SendMessage)).Methods("POST")

	// Code execution
	r.HandleFunc("/api/rooms/{roomId}/execute", authed(executeHandler.Execute)).Methods("POST")

	// Realtime channel. The credential rides in the query string because
	// browser websocket clients cannot set headers.
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		user, err := i.authService.Validate(token)
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		i.hub.ServeWS(w, r, user.UUID, user.DisplayName)
	})

	return r
}

func (i *InputManager) Run(ctx context.Context, cfg *internal.Config) error {
	if !i.IsReady() {
		return fmt.Errorf("The Input manager is not ready... Missing components")
	}
	i.Logf("Input service started...")

	i.server = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.HTTPServerPort),
		Handler:        i.PauseMiddleware(i.Router()),
		ReadTimeout:    time.Duration(cfg.ReadTimeout * int64(time.Second)),
		WriteTimeout:   time.Duration(cfg.WriteTimeout * int64(time.Second)),
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		select {
		case <-ctx.Done():
			i.Logf("Received stop signal. Shutting down...")
		case <-i.stopFromOutsideChan:
			i.Logf("Server was asked to stop. Shutting down...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := i.server.Shutdown(shutdownCtx); err != nil {
			i.Logf("Error during shutdown... %v\n", err)
		}
		close(i.doneFromInsideChan)
	}()

	i.running.Store(true)

	if err := i.server.ListenAndServe(); err != http.ErrServerClosed {
		i.Logf("FATAL: HTTP Server error{%v}\n", err)
		return err
	}

	return nil
}

func (i *InputManager) Stop() {
	close(i.stopFromOutsideChan)
	<-i.doneFromInsideChan
	i.running.Store(false)
}
