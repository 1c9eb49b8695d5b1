package broadcast

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

var errObserverGone = errors.New("observer connection closed or send buffer full")

// Observer is one connected client interested in live updates. It owns the
// only goroutine allowed to write to the underlying connection: deliveries
// are enqueued on a buffered channel and written with a deadline, so a stuck
// peer can never block a broadcast.
type Observer struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewObserver wraps a websocket connection and starts its write goroutine.
func NewObserver(connection *websocket.Conn, clock clockwork.Clock) *Observer {
	o := &Observer{
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
	}
	o.configurePongHandler()
	o.wg.Add(1)
	go o.run()
	return o
}

// Deliver enqueues a frame for the write goroutine. It never blocks: a full
// buffer (slow client) or a stopped observer yields an immediate error so the
// caller can evict it.
func (o *Observer) Deliver(frame []byte) error {
	select {
	case <-o.doneChannel:
		return errObserverGone
	default:
	}

	select {
	case o.sendChannel <- frame:
		return nil
	default:
		return errObserverGone
	}
}

func (o *Observer) run() {
	ticker := o.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer o.wg.Done()

	for {
		select {
		case frame := <-o.sendChannel:
			o.updateWriteDeadline()
			if err := o.connection.WriteMessage(websocket.TextMessage, frame); err != nil {
				o.markDead()
				return
			}
		case <-ticker.Chan():
			o.updateWriteDeadline()
			if err := o.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				o.markDead()
				return
			}
		case <-o.doneChannel:
			return
		}
	}
}

// markDead tears the observer down after a failed write. The next Deliver
// then errors immediately instead of queueing frames into a dead buffer.
// Called from the write goroutine itself, so it must not wait on wg.
func (o *Observer) markDead() {
	o.stopOnce.Do(func() {
		close(o.doneChannel)
		_ = o.connection.Close()
	})
}

// Stop terminates the write goroutine and closes the connection.
func (o *Observer) Stop() {
	o.stopOnce.Do(func() {
		close(o.doneChannel)
		_ = o.connection.Close()
	})
	o.wg.Wait()
}

// StopGraceful sends a close frame with reason before closing. The write
// goroutine is stopped first so the close frame is not a concurrent write.
func (o *Observer) StopGraceful(reason string) {
	o.stopOnce.Do(func() {
		close(o.doneChannel)
		o.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		o.updateWriteDeadline()
		_ = o.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = o.connection.Close()
	})
	o.wg.Wait()
}

func (o *Observer) configurePongHandler() {
	o.updateReadDeadline()
	o.connection.SetPongHandler(func(string) error {
		o.updateReadDeadline()
		return nil
	})
}

func (o *Observer) updateWriteDeadline() {
	_ = o.connection.SetWriteDeadline(o.clock.Now().Add(writeDeadline))
}

func (o *Observer) updateReadDeadline() {
	_ = o.connection.SetReadDeadline(o.clock.Now().Add(pongDeadline))
}
