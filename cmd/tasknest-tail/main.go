// tasknest-tail joins a TaskNest room and tails its messages: history first,
// then live channel events as they arrive. It exercises the whole client
// path against a running backend.
//
// Configuration comes from the environment (or a .env file): BACKEND_URL,
// optional CHANNEL_URL and BEARER_TOKEN, plus MEMBER_ID, MEMBER_NAME and
// either TASK_ID (group room) or ROOM_ID (direct conversation).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	tasknest "github.com/Susekh/TaskNest-client"
	"github.com/Susekh/TaskNest-client/domain"
	"github.com/Susekh/TaskNest-client/stream"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := tasknest.ConfigFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	self := domain.Member{
		ID:   os.Getenv("MEMBER_ID"),
		Name: os.Getenv("MEMBER_NAME"),
		Role: domain.Role(os.Getenv("MEMBER_ROLE")),
	}
	if self.ID == "" {
		log.Fatal("MEMBER_ID must be set")
	}
	taskID := os.Getenv("TASK_ID")
	roomID := os.Getenv("ROOM_ID")
	if taskID == "" && roomID == "" {
		log.Fatal("set TASK_ID or ROOM_ID")
	}

	client := tasknest.New(cfg, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var (
		messages *stream.Reconciler
		closeFn  func()
	)
	if taskID != "" {
		view, err := client.OpenTaskView(ctx, taskID, self)
		if err != nil {
			log.Fatalf("open task view: %v", err)
		}
		fmt.Printf("== %s ==\n", view.Task.Name)
		messages = view.Messages
		closeFn = view.Close
	} else {
		view, err := client.OpenConversationView(ctx, roomID, self)
		if err != nil {
			log.Fatalf("open conversation: %v", err)
		}
		fmt.Printf("== conversation with %s ==\n", view.Room.ReceiverID())
		messages = view.Messages
		closeFn = view.Close
	}
	defer closeFn()

	printed := 0
	printNew := func() {
		list := messages.Messages()
		if printed > len(list) {
			printed = len(list)
		}
		for _, msg := range list[printed:] {
			fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Format(time.Kitchen), msg.Name, msg.Content)
			printed++
		}
	}
	printNew()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	for {
		select {
		case <-messages.Updates():
			printNew()
		case <-stop:
			return
		}
	}
}
