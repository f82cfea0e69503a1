package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"fairdice.ai/internal/protocol"
)

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		rolls = flag.Int("rolls", 1000, "rolls per batch")
		every = flag.Int("every", 100, "log progress every n rolls")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	var sessionID string
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME tick_rate=%d max_rolls=%s running=%v", w.Params.TickRateHz, humanize.Comma(int64(w.Params.MaxRolls)), w.Session.Running)
			start := protocol.StartBatchMsg{
				Type:            protocol.TypeStartBatch,
				ProtocolVersion: protocol.Version,
				ID:              "bot_1",
				Rolls:           *rolls,
			}
			if err := conn.WriteJSON(start); err != nil {
				logger.Fatalf("send START_BATCH: %v", err)
			}

		case protocol.TypeAck:
			var a protocol.AckMsg
			if err := json.Unmarshal(msg, &a); err != nil {
				continue
			}
			if !a.Accepted {
				logger.Fatalf("batch rejected: %s %s", a.Code, a.Message)
			}
			sessionID = a.SessionID
			logger.Printf("batch accepted session=%s rolls=%s", sessionID, humanize.Comma(int64(*rolls)))

		case protocol.TypeRoll:
			var r protocol.RollMsg
			if err := json.Unmarshal(msg, &r); err != nil || r.SessionID != sessionID {
				continue
			}
			if *every > 0 && r.Roll%*every == 0 {
				logger.Printf("roll %s/%s faces=%v %s", humanize.Comma(int64(r.Roll)), humanize.Comma(int64(r.Session.Target)), r.Faces, verdictLine(r.Session.Fairness))
			}

		case protocol.TypeBatchComplete:
			var b protocol.BatchCompleteMsg
			if err := json.Unmarshal(msg, &b); err != nil || b.Session.SessionID != sessionID {
				continue
			}
			logger.Printf("batch complete session=%s rolls=%s %s", sessionID, humanize.Comma(int64(b.Session.Completed)), verdictLine(b.Session.Fairness))
			return

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err == nil {
				logger.Printf("ERROR %s: %s", e.Code, e.Message)
			}
		}
	}
}

func verdictLine(f protocol.FairnessView) string {
	if f.ChiSquared == nil {
		return f.Verdict
	}
	return fmt.Sprintf("%s chi2=%.3f (df=%d, critical=%.2f)", f.Verdict, *f.ChiSquared, f.DegreesOfFreedom, f.CriticalValue)
}
