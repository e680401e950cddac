package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/hunt-engine/internal/config"
	"github.com/jwebster45206/hunt-engine/internal/logger"
	iqueue "github.com/jwebster45206/hunt-engine/internal/queue"
	"github.com/jwebster45206/hunt-engine/internal/storage"
	"github.com/jwebster45206/hunt-engine/pkg/queue"
)

func main() {
	user := flag.String("user", "", "LINE user id to play as (default: a fresh test id)")
	messages := flag.String("messages", "START,Maruyama,到", "Comma separated messages to enqueue after the follow event")
	noFollow := flag.Bool("no-follow", false, "Skip the leading follow event")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	lg := logger.Setup(cfg)

	rs := storage.NewRedisStorage(cfg.RedisURL, lg)
	defer func() { _ = rs.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rs.Ping(ctx); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	fmt.Println("Connected to Redis successfully!")

	userID := *user
	if userID == "" {
		userID = "Utest" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}

	var events []*queue.Event
	if !*noFollow {
		events = append(events, queue.NewEvent(queue.EventTypeFollow, userID))
	}
	for _, text := range strings.Split(*messages, ",") {
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		ev := queue.NewEvent(queue.EventTypeMessage, userID)
		ev.Text = text
		events = append(events, ev)
	}

	q := iqueue.NewEventQueue(rs.Client(), lg)
	for _, ev := range events {
		if err := q.Enqueue(ctx, ev); err != nil {
			log.Fatal("Failed to enqueue event:", err)
		}
		if ev.Type == queue.EventTypeMessage {
			fmt.Printf("✅ Enqueued %s %q: %s\n", ev.Type, ev.Text, ev.EventID)
		} else {
			fmt.Printf("✅ Enqueued %s: %s\n", ev.Type, ev.EventID)
		}
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		log.Fatal("Failed to get queue depth:", err)
	}

	fmt.Printf("\n📊 Queue depth: %d events on %s\n", depth, iqueue.DefaultKey)
	fmt.Printf("👤 User: %s\n", userID)
	fmt.Println("\n💡 Now start the worker to see it process these events!")
	fmt.Println("   Run: go run ./cmd/worker")
	fmt.Printf("   Then: curl localhost:%s/v1/progress/%s\n", cfg.Port, userID)
}
