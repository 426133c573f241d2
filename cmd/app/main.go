package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collabroom/client/files"
	"collabroom/client/rlog"
	"collabroom/client/room"
	"collabroom/client/session"
)

// Demo driver: two identities share one room, edit the same file and chat.
func wait() { var i int; fmt.Scan(&i) }

func newClient(ctx context.Context, registry *rlog.Registry, baseURL, username, password string) (*session.Session, *room.Controller, error) {
	sess := session.New(baseURL, registry.RegisterSubsystem("session-"+username))
	if err := sess.Register(ctx, username, username, password); err != nil {
		if err = sess.Login(ctx, username, password); err != nil {
			return nil, nil, err
		}
	}

	controller := room.NewController(sess, registry, files.DefaultConfig())
	controller.OnNotice = func(kind, message string) {
		fmt.Printf("[%s] notice (%s): %s\n", username, kind, message)
	}
	return sess, controller, nil
}

func main() {
	baseURL := "http://127.0.0.1:8080"
	if len(os.Args) > 1 {
		baseURL = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := rlog.NewRegistry("app", os.Stdout, true)
	go registry.Run(ctx)

	alice, aliceRoom, err := newClient(ctx, registry, baseURL, "alice", "alice-password-1")
	if err != nil {
		fmt.Printf("Cannot set up first client... %v\n", err)
		os.Exit(1)
	}
	_, bobRoom, err := newClient(ctx, registry, baseURL, "bob", "bob-password-1")
	if err != nil {
		fmt.Printf("Cannot set up second client... %v\n", err)
		os.Exit(1)
	}

	created, err := aliceRoom.CreateRoom(ctx, session.RoomParams{Name: "pairing", Visibility: "public"})
	if err != nil {
		fmt.Printf("Cannot create room... %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Room %s created, join code %s\n", created.UUID, created.JoinCode)

	if _, err := bobRoom.JoinRoom(ctx, created.JoinCode); err != nil {
		fmt.Printf("Cannot join room... %v\n", err)
		os.Exit(1)
	}

	file, err := aliceRoom.Files().CreateFile(ctx, "main.py", "python")
	if err != nil {
		fmt.Printf("Cannot create file... %v\n", err)
		os.Exit(1)
	}
	aliceRoom.Files().ApplyLocalEdit("print('hello from alice')\n")

	aliceRoom.Chat().SetTyping(true)
	if _, err := aliceRoom.Chat().SendMessage(ctx, "hello"); err != nil {
		fmt.Printf("Chat send failed... %v\n", err)
	}

	// Let the debounce windows fire and the broadcasts land.
	time.Sleep(2 * time.Second)

	if err := bobRoom.Files().SelectFile(ctx, file.UUID); err == nil {
		fmt.Printf("Second client sees: %q\n", bobRoom.Files().Buffer())
	}
	for _, message := range bobRoom.Chat().Messages() {
		fmt.Printf("Transcript: %s\n", message.Body)
	}

	result, err := bobRoom.Exec().ExecuteCode(ctx, bobRoom.Files().Buffer(), "python", file.UUID)
	if err != nil {
		fmt.Printf("Execution failed... %v\n", err)
	} else {
		fmt.Printf("Execution output (%dms): %s\n", result.ExecutionTimeMs, result.Output)
	}

	wait()

	bobRoom.Exit()
	aliceRoom.Exit()
	if err := alice.Logout(ctx); err != nil {
		fmt.Printf("Logout failed... %v\n", err)
	}
	fmt.Printf("Shutting off...\n")
}
