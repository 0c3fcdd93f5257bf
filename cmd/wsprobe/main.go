// wsprobe connects to a running gateway and streams received envelopes
// to the console. It answers server pings so the connection stays alive,
// and can send periodic chat messages to generate traffic.
//
// Usage: go run ./cmd/wsprobe --url ws://localhost:8080/ws --user alice --chat "hello" --interval 5s
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lhchen/assistant-realtime/internal/message"
)

func main() {
	wsURL := flag.String("url", "ws://localhost:8080/ws", "gateway WebSocket URL")
	user := flag.String("user", "", "user id to connect as (empty = anonymous)")
	room := flag.String("room", "", "room to join on connect")
	chat := flag.String("chat", "", "chat message to send periodically")
	interval := flag.Duration("interval", 5*time.Second, "chat send interval")
	verbose := flag.Bool("verbose", false, "print full envelope JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	target, err := buildURL(*wsURL, *user, *room)
	if err != nil {
		logger.Error("bad url", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	logger.Info("connecting", "url", target)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		logger.Error("dial failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Counters per envelope type, printed every 10s.
	counts := make(map[message.Type]int)
	countCh := make(chan message.Type, 256)

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case typ := <-countCh:
				counts[typ]++
			case <-ticker.C:
				logger.Info("stats", "received", counts)
			}
		}
	}()

	if *chat != "" {
		go sendChat(ctx, conn, *chat, *room, *interval, logger)
	}

	logger.Info("streaming started - press Ctrl+C to stop")

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("read failed", "error", err)
			}
			return
		}

		env, perr := message.Parse(raw)
		if perr != nil {
			logger.Warn("unparseable envelope", "error", perr)
			continue
		}

		select {
		case countCh <- env.Type:
		default:
		}

		if env.Type == message.TypePing {
			pong := message.New(message.TypePong, map[string]any{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			if err := writeEnvelope(conn, pong); err != nil {
				logger.Warn("send pong", "error", err)
			}
			continue
		}

		if *verbose {
			data, _ := json.MarshalIndent(env, "", "  ")
			fmt.Printf("[%s] %s\n", env.Type, data)
		} else {
			fmt.Printf("[%s] sender=%s room=%s content=%v\n",
				env.Type, env.SenderID, env.RoomID, env.Content)
		}
	}
}

// writeMu serializes writes between the pong replies and the chat sender.
var writeMu sync.Mutex

func writeEnvelope(conn *websocket.Conn, env *message.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func buildURL(base, user, room string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	q := u.Query()
	if user != "" {
		q.Set("user_id", user)
	}
	if room != "" {
		q.Set("room", room)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func sendChat(ctx context.Context, conn *websocket.Conn, text, room string, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n++
			env := message.New(message.TypeChat, map[string]any{
				"text": fmt.Sprintf("%s (%d)", text, n),
			})
			env.RoomID = room

			if err := writeEnvelope(conn, env); err != nil {
				logger.Error("send chat", "error", err)
				return
			}
		}
	}
}
