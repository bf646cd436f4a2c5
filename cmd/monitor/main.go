// Monitor inspects a running wristpad daemon over its dashboard API:
// a one-shot status dump by default, or a live feed of confirmed
// gestures with -follow.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-wristpad/internal/httpc"
)

func main() {
	addr := flag.String("addr", "localhost:8787", "Dashboard address of the running daemon")
	follow := flag.Bool("follow", false, "Stream confirmed gestures as they happen")
	flag.Parse()

	var err error
	if *follow {
		err = followEvents(*addr)
	} else {
		err = dumpStatus(*addr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitor: %v\n", err)
		os.Exit(1)
	}
}

// dumpStatus pretty-prints the daemon's aggregate status document.
func dumpStatus(addr string) error {
	var status json.RawMessage
	if err := httpc.GetJSON("http://"+addr+"/api/status", &status); err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, status, "", "  "); err != nil {
		return err
	}
	fmt.Println(pretty.String())
	return nil
}

// followEvents tails the confirmed-gesture websocket until interrupted.
func followEvents(addr string) error {
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/events", nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	interrupted := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		close(interrupted)
		conn.Close()
	}()

	fmt.Printf("watching %s (Ctrl+C to exit)\n", addr)
	for {
		var ev struct {
			Stream     string    `json:"stream"`
			Gesture    string    `json:"gesture"`
			Confidence float64   `json:"confidence"`
			Timestamp  time.Time `json:"timestamp"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			select {
			case <-interrupted:
				return nil
			default:
				return fmt.Errorf("event stream closed: %w", err)
			}
		}
		fmt.Printf("%s  %-10s  %-12s  %.2f\n",
			ev.Timestamp.Format("15:04:05.000"), ev.Stream, ev.Gesture, ev.Confidence)
	}
}
