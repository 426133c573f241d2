package room

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"collabroom/client/channel"
	"collabroom/client/chat"
	"collabroom/client/exec"
	"collabroom/client/files"
	"collabroom/client/protocol"
	"collabroom/client/rlog"
	"collabroom/client/roster"
	"collabroom/client/session"
	"collabroom/internal/entity"
)

type Phase int

const (
	Idle Phase = iota
	Loading
	Active
)

var readablePhase = []string{"idle", "loading", "active"}

func (p Phase) String() string {
	return readablePhase[int(p)]
}

const reconnectTimeout = 30 * time.Second

// Controller drives the lifecycle of room participation: it owns the
// channel and the per-room synchronizers, brings them up in order on
// entry, resyncs them after a reconnect and guarantees that exit leaves
// no subscription and no timer behind.
type Controller struct {
	session  *session.Session
	registry *rlog.Registry
	logger   rlog.Logger
	filesCfg files.Config
	chatCfg  chat.Config

	// OnNotice surfaces room-scoped server errors and connection events
	// to whatever is rendering the room. Optional.
	OnNotice func(kind, message string)

	// lifecycle serializes enter/exit/reconnect end to end so an
	// automatic reconnect can never interleave with an explicit teardown.
	lifecycle sync.Mutex

	mu           sync.Mutex
	phase        Phase
	epoch        int
	room         *entity.Room
	channel      *channel.Channel
	roster       *roster.Synchronizer
	files        *files.Synchronizer
	chat         *chat.Synchronizer
	exec         *exec.Bridge
	unsubscribes []func()
}

func NewController(sess *session.Session, registry *rlog.Registry, filesCfg files.Config) *Controller {
	return &Controller{
		session:  sess,
		registry: registry,
		logger:   registry.RegisterSubsystem("room"),
		filesCfg: filesCfg,
		chatCfg:  chat.DefaultConfig(),
	}
}

func (c *Controller) Logf(format string, v ...any) {
	c.logger.Logf(format, v...)
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Room returns the room currently entered, or nil when idle.
func (c *Controller) Room() *entity.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Controller) Roster() *roster.Synchronizer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roster
}

func (c *Controller) Files() *files.Synchronizer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.files
}

func (c *Controller) Chat() *chat.Synchronizer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chat
}

func (c *Controller) Exec() *exec.Bridge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exec
}

// CreateRoom creates the room on the server and enters it.
func (c *Controller) CreateRoom(ctx context.Context, params session.RoomParams) (*entity.Room, error) {
	created, err := c.session.CreateRoom(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := c.Enter(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

// JoinRoom joins by room id or share code and enters.
func (c *Controller) JoinRoom(ctx context.Context, roomIDOrCode string) (*entity.Room, error) {
	joined, err := c.session.JoinRoom(ctx, roomIDOrCode)
	if err != nil {
		return nil, err
	}
	if err := c.Enter(ctx, joined); err != nil {
		return nil, err
	}
	return joined, nil
}

// Enter brings up the full room stack: dial, announce, attach the
// synchronizers, then resync every one of them from the durable store.
// Any failure along the way rolls the controller back to idle.
func (c *Controller) Enter(ctx context.Context, target *entity.Room) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	identity := c.session.CurrentIdentity()
	if identity == nil {
		return &session.APIError{Kind: session.KindAuthExpired, Message: "not logged in"}
	}

	c.mu.Lock()
	if c.phase != Idle {
		c.mu.Unlock()
		return &session.APIError{Kind: session.KindConflict, Message: "already in room " + string(c.room.UUID)}
	}
	c.phase = Loading
	c.room = target
	c.roster = roster.New(target.UUID, c.session, c.registry.RegisterSubsystem("roster"))
	c.files = files.New(target.UUID, identity.UUID, c.session, c.filesCfg, c.registry.RegisterSubsystem("files"))
	c.chat = chat.New(target.UUID, identity.UUID, c.session, c.chatCfg, c.registry.RegisterSubsystem("chat"))
	c.exec = exec.New(target.UUID, c.session, c.registry.RegisterSubsystem("exec"))
	c.mu.Unlock()

	if err := c.connect(ctx); err != nil {
		c.teardown()
		return err
	}
	if err := c.resync(ctx); err != nil {
		c.teardown()
		return err
	}

	c.mu.Lock()
	c.phase = Active
	c.mu.Unlock()
	c.Logf("Entered room {%s}", target.UUID)
	return nil
}

// connect dials the channel, wires the error and disconnect handlers,
// attaches the synchronizers and announces presence.
func (c *Controller) connect(ctx context.Context) error {
	c.mu.Lock()
	target := c.room
	c.mu.Unlock()

	ch, err := channel.Dial(ctx, c.session.BaseURL(), c.session.AccessToken(), c.registry.RegisterSubsystem("channel"))
	if err != nil {
		return err
	}
	ch.OnDisconnect = c.onDisconnect

	c.mu.Lock()
	c.channel = ch
	c.unsubscribes = append(c.unsubscribes,
		ch.Subscribe(protocol.EventChatError, func(data json.RawMessage) { c.onServerError("chat", data) }),
		ch.Subscribe(protocol.EventEditorError, func(data json.RawMessage) { c.onServerError("editor", data) }),
		ch.Subscribe(protocol.EventErrorMessage, func(data json.RawMessage) { c.onServerError("room", data) }),
	)
	c.roster.Attach(ch)
	c.files.Attach(ch)
	c.chat.Attach(ch)
	c.mu.Unlock()

	return ch.Emit(protocol.EventJoinRoom, protocol.RoomRef{RoomID: target.UUID})
}

// resync pulls the authoritative roster, file list and transcript. Used
// both on entry and after a reconnect: the durable store is the source of
// truth for everything missed while offline.
func (c *Controller) resync(ctx context.Context) error {
	c.mu.Lock()
	members, fileSet, transcript := c.roster, c.files, c.chat
	c.mu.Unlock()

	if err := members.FetchRoster(ctx); err != nil {
		return err
	}
	if err := fileSet.ListFiles(ctx); err != nil {
		return err
	}
	return transcript.ResyncNewest(ctx)
}

// Exit leaves the realtime layer but keeps the membership: the user can
// re-enter later without rejoining.
func (c *Controller) Exit() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.exitLocked()
}

func (c *Controller) exitLocked() {
	c.mu.Lock()
	if c.phase == Idle {
		c.mu.Unlock()
		return
	}
	target := c.room
	ch := c.channel
	c.mu.Unlock()

	if ch != nil {
		ch.Emit(protocol.EventLeaveRoom, protocol.RoomRef{RoomID: target.UUID})
	}
	c.teardown()
	c.Logf("Exited room {%s}", target.UUID)
}

// Leave exits and gives up the membership.
func (c *Controller) Leave(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	target := c.room
	c.mu.Unlock()
	if target == nil {
		return &session.APIError{Kind: session.KindValidation, Message: "not in a room"}
	}

	c.exitLocked()
	return c.session.LeaveRoom(ctx, target.UUID)
}

// Delete tears the room down for everyone. Owner only; the server rejects
// anyone else and the local stack stays up in that case.
func (c *Controller) Delete(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	target := c.room
	c.mu.Unlock()
	if target == nil {
		return &session.APIError{Kind: session.KindValidation, Message: "not in a room"}
	}

	if err := c.session.DeleteRoom(ctx, target.UUID); err != nil {
		return err
	}
	c.teardown()
	return nil
}

// Reconnect replaces a dropped channel and resyncs everything through the
// durable store. Local synchronizer state survives; anything stale in it
// is overwritten by the wholesale resync.
func (c *Controller) Reconnect(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.reconnectLocked(ctx)
}

func (c *Controller) reconnectLocked(ctx context.Context) error {
	c.mu.Lock()
	if c.room == nil {
		c.mu.Unlock()
		return &session.APIError{Kind: session.KindValidation, Message: "not in a room"}
	}
	c.phase = Loading
	c.detachLocked()
	c.mu.Unlock()

	if err := c.connect(ctx); err != nil {
		c.teardown()
		return err
	}
	if err := c.resync(ctx); err != nil {
		c.teardown()
		return err
	}

	c.mu.Lock()
	c.phase = Active
	c.mu.Unlock()
	c.Logf("Reconnected to room {%s}", c.Room().UUID)
	return nil
}

func (c *Controller) onDisconnect(err error) {
	c.mu.Lock()
	active := c.phase == Active
	epoch := c.epoch
	c.mu.Unlock()
	if !active {
		return
	}

	c.Logf("Channel dropped {%v}, attempting reconnect", err)
	c.notice("connection", "connection lost, reconnecting")

	go func() {
		c.lifecycle.Lock()
		defer c.lifecycle.Unlock()

		// An explicit teardown may have won the race with the drop.
		c.mu.Lock()
		stale := c.epoch != epoch
		c.mu.Unlock()
		if stale {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), reconnectTimeout)
		defer cancel()
		if err := c.reconnectLocked(ctx); err != nil {
			c.Logf("Reconnect failed {%v}", err)
			c.notice("connection", "reconnect failed: "+err.Error())
			return
		}
		c.notice("connection", "reconnected")
	}()
}

func (c *Controller) onServerError(kind string, data json.RawMessage) {
	var event protocol.ErrorMessage
	if err := json.Unmarshal(data, &event); err != nil {
		return
	}
	c.Logf("Server error {%s, %s}", kind, event.Message)
	c.notice(kind, event.Message)
}

func (c *Controller) notice(kind, message string) {
	if c.OnNotice != nil {
		c.OnNotice(kind, message)
	}
}

// detachLocked strips every subscription and pending timer off the
// current channel and closes it. Caller holds mu.
func (c *Controller) detachLocked() {
	if c.roster != nil {
		c.roster.Detach()
	}
	if c.files != nil {
		c.files.Detach()
	}
	if c.chat != nil {
		c.chat.Detach()
	}
	for _, unsubscribe := range c.unsubscribes {
		unsubscribe()
	}
	c.unsubscribes = nil

	if c.channel != nil {
		// Close after the handlers are gone; this also disarms the
		// disconnect callback so teardown never triggers a reconnect.
		c.channel.Close()
		c.channel = nil
	}
	c.epoch++
}

// teardown returns the controller to idle with nothing left running.
func (c *Controller) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detachLocked()
	c.roster = nil
	c.files = nil
	c.chat = nil
	c.exec = nil
	c.room = nil
	c.phase = Idle
}
