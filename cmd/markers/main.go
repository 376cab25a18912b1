// markers tails the daemon's marker stream: it dials the websocket endpoint
// and prints one JSON payload per line, suitable for piping into jq or a
// plotting script.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/strikelab/go-armctl/internal/log"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws/markers", "marker stream endpoint")
	level := flag.String("log", "warn", "log level")
	flag.Parse()

	log.Init(*level)

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		log.Error("dial", "url", *url, "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	log.Info("connected", "url", *url)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("read", "error", err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
	}
}
