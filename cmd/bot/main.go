package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"housevault/internal/protocol"
	"housevault/internal/sim/render"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		playerID = flag.String("player", "bot", "player id")
		token    = flag.String("token", os.Getenv("HV_BOT_TOKEN"), "player api token")
		houseID  = flag.String("house", "", "house to rob (default: ask the server for an unoccupied one)")
		maxSteps = flag.Int("steps", 200, "give up after this many moves")
		delay    = flag.Duration("delay", 250*time.Millisecond, "pause between moves")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerID:        *playerID,
		Token:           *token,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	logger.Printf("WELCOME player=%s house=%s palette=%s", welcome.PlayerID, welcome.HouseID, welcome.Palette.Digest)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	b := &bot{conn: conn, log: logger}
	target := *houseID
	if target == "" {
		var found protocol.FindHouseResponse
		if err := b.call(protocol.RequestMsg{Op: protocol.OpFindHouse}, &found); err != nil {
			logger.Fatalf("FIND_HOUSE: %v", err)
		}
		target = found.HouseID
	}

	var view viewResult
	if err := b.call(protocol.RequestMsg{Op: protocol.OpEnter, HouseID: target}, &view); err != nil {
		logger.Fatalf("ENTER %s: %v", target, err)
	}
	logger.Printf("entered house=%s at %v", view.HouseID, view.PlayerLocation)

	w := newWalker()
	for i := 0; i < *maxSteps; i++ {
		select {
		case <-stop:
			return
		case <-time.After(*delay):
		}
		pos := cell{view.PlayerLocation[0], view.PlayerLocation[1]}
		dir := w.next(pos, view.Construction)
		if dir == "" {
			logger.Printf("boxed in at %v", pos)
			break
		}
		if err := b.call(protocol.RequestMsg{Op: protocol.OpMove, Direction: dir}, &view); err != nil {
			logger.Printf("MOVE %s from %v: %v", dir, pos, err)
			continue
		}
		if view.Robbery != nil {
			logger.Printf("robbed house=%s dollars=%d in %d moves", view.Robbery.VictimHouseID, view.Robbery.Dollars, i+1)
			break
		}
	}
	if err := b.call(protocol.RequestMsg{Op: protocol.OpLeave}, nil); err != nil {
		logger.Printf("LEAVE: %v", err)
	}
}

// viewResult is ViewResponse with the construction pinned to the explicit
// form, which is all the bot ever asks for.
type viewResult struct {
	HouseID        string            `json:"house_id"`
	PlayerLocation [2]int            `json:"player_location"`
	Construction   []render.Record   `json:"construction"`
	Robbery        *protocol.Robbery `json:"robbery"`
}

type bot struct {
	conn *websocket.Conn
	log  *log.Logger
	seq  int
}

type rawResult struct {
	ReqID  string                  `json:"req_id"`
	OK     bool                    `json:"ok"`
	Error  *protocol.ErrorResponse `json:"error"`
	Result json.RawMessage         `json:"result"`
}

func (b *bot) call(req protocol.RequestMsg, out any) error {
	b.seq++
	req.Type = protocol.TypeRequest
	req.ReqID = fmt.Sprintf("R%d", b.seq)
	if err := b.conn.WriteJSON(req); err != nil {
		return err
	}
	var res rawResult
	if err := b.conn.ReadJSON(&res); err != nil {
		return err
	}
	if !res.OK {
		if res.Error == nil {
			return fmt.Errorf("request %s failed", res.ReqID)
		}
		return fmt.Errorf("%s: %s", res.Error.Code, res.Error.Reason)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(res.Result, out)
}
