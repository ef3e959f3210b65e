// Command irischeck probes the Iris endpoints the puzzle bot depends on and prints
// which incoming messages would be routed to it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appcfg "github.com/park285/Cheese-Puzzle-bot/internal/config"
	"github.com/park285/Cheese-Puzzle-bot/internal/irisfast"
)

func main() {
	watch := flag.Duration("watch", 10*time.Second, "how long to observe websocket traffic")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if !cfg.KakaoEnabled() {
		log.Fatal("IRIS_BASE_URL and IRIS_WS_URL are required")
	}

	headers := func() map[string]string {
		m := map[string]string{}
		if cfg.XUserID != "" {
			m["X-User-Id"] = cfg.XUserID
		}
		if cfg.XUserEmail != "" {
			m["X-User-Email"] = cfg.XUserEmail
		}
		if cfg.XSessionID != "" {
			m["X-Session-Id"] = cfg.XSessionID
		}
		return m
	}

	client := irisfast.NewClient(cfg.IrisBaseURL,
		irisfast.WithHeaderProvider(headers),
		irisfast.WithTimeout(8*time.Second),
		irisfast.WithRetry(1),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	irisCfg, err := client.GetConfig(ctx)
	cancel()
	if err != nil {
		log.Printf("/config error: %v", err)
	} else {
		log.Printf("/config ok: bot=%s port=%d polling=%d rate=%d endpoint=%s",
			irisCfg.BotName, irisCfg.Port, irisCfg.PollingSpeed, irisCfg.MessageRate, irisCfg.WebserverEndpoint)
	}

	filter := irisfast.NewCommandFilter(cfg.BotPrefix, cfg.AllowedRooms)
	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 0, time.Second, irisfast.WithWSHeaders(headers))
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		log.Printf("WS state: %s", state)
	})
	ws.OnMessage(func(msg *irisfast.Message) {
		if room, text, ok := filter.Command(msg); ok {
			fmt.Printf("ROUTE room=%s from=%s command=%q\n", room, msg.SenderName(), text)
			return
		}
		fmt.Printf("skip  room=%s from=%s text=%q\n", msg.Room, msg.SenderName(), msg.Msg)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = ws.Connect(cctx)
	ccancel()
	if err != nil {
		log.Printf("WS connect error: %v", err)
		os.Exit(1)
	}

	sctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case <-sctx.Done():
	case <-time.After(*watch):
	}
	_ = ws.Close(context.Background())
}
