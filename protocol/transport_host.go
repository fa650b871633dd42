package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrAckTimeout      = errors.New("ack timeout")
	ErrResponseTimeout = errors.New("response timeout")
	ErrClosed          = errors.New("transport closed")
	ErrMessageTooLong  = errors.New("message too long")
)

// HostTransport is the host end of the link. Commands are sent one at a
// time and each waits for its ack; responses are collected by a reader
// goroutine.
type HostTransport struct {
	port io.ReadWriteCloser

	seq    uint32 // atomic; sequence of the next command
	synced uint32 // atomic bool

	input *FifoBuffer // owned by readLoop

	acks      chan *Message
	responses chan *Message

	writeMu sync.Mutex

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewHostTransport starts reading port in the background.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:      port,
		seq:       MessageDest,
		synced:    1,
		input:     NewFifoBuffer(1024),
		acks:      make(chan *Message, 4),
		responses: make(chan *Message, 256),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand sends one command and waits up to two seconds for its ack.
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, 2*time.Second)
}

// SendCommandWithTimeout sends one command and waits up to timeout for its
// ack. Responses the command produces arrive before the ack.
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	seq := uint8(atomic.LoadUint32(&t.seq))
	msg, err := buildCommand(seq, cmdID, args)
	if err != nil {
		return err
	}
	if _, err := t.port.Write(msg); err != nil {
		return fmt.Errorf("write command %d: %w", cmdID, err)
	}
	if err := t.waitForAck(nextSeq(seq), timeout); err != nil {
		return fmt.Errorf("command %d: %w", cmdID, err)
	}
	atomic.StoreUint32(&t.seq, uint32(nextSeq(seq)))
	return nil
}

func buildCommand(seq uint8, cmdID uint16, args func(output OutputBuffer)) ([]byte, error) {
	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	payload := scratch.Result()
	if len(payload) > MessagePayloadMax {
		return nil, fmt.Errorf("%w: %d payload bytes (max %d)", ErrMessageTooLong, len(payload), MessagePayloadMax)
	}
	return appendFrame(make([]byte, 0, len(payload)+MessageLengthMin), seq, payload), nil
}

// waitForAck returns once the target acknowledges with want as its next
// expected sequence. Stale acks for earlier frames are skipped.
func (t *HostTransport) waitForAck(want uint8, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case ack := <-t.acks:
			if ack.Sequence == want {
				return nil
			}
		case <-deadline.C:
			return fmt.Errorf("%w after %v", ErrAckTimeout, timeout)
		case <-t.stop:
			return ErrClosed
		}
	}
}

// ReceiveResponse returns the next queued response frame.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	select {
	case resp := <-t.responses:
		return resp, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %v", ErrResponseTimeout, timeout)
	case <-t.stop:
		return nil, ErrClosed
	}
}

// DiscardResponses drops every queued response and returns how many there
// were.
func (t *HostTransport) DiscardResponses() int {
	n := 0
	for {
		select {
		case <-t.responses:
			n++
		default:
			return n
		}
	}
}

func (t *HostTransport) readLoop() {
	defer close(t.done)

	buf := make([]byte, 256)
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if n > 0 {
			t.input.Write(buf[:n])
			t.processMessages()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) processMessages() {
	data := t.input.Data()
	for len(data) > 0 {
		if !t.isSynced() {
			var found bool
			data, found = skipToSync(data)
			if found {
				t.setSynced(true)
			}
			continue
		}
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		n := scanFrame(data)
		if n == 0 {
			break
		}
		if n < 0 {
			t.setSynced(false)
			continue
		}

		payload := make([]byte, n-MessageLengthMin)
		copy(payload, data[MessageHeaderSize:n-MessageTrailerSize])
		msg := &Message{
			Length:   data[MessagePositionLen],
			Sequence: data[MessagePositionSeq],
			Payload:  payload,
			CRC:      uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1]),
		}
		data = data[n:]
		t.dispatch(msg)
	}

	if consumed := t.input.Available() - len(data); consumed > 0 {
		t.input.Pop(consumed)
	}
}

func (t *HostTransport) dispatch(msg *Message) {
	if len(msg.Payload) == 0 {
		select {
		case t.acks <- msg:
		default:
			// drop the oldest ack; only the latest matters
			select {
			case <-t.acks:
			default:
			}
			t.acks <- msg
		}
		return
	}

	select {
	case t.responses <- msg:
	default:
		select {
		case <-t.responses:
		default:
		}
		t.responses <- msg
	}
}

// Close stops the reader and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		err = t.port.Close()
		<-t.done
	})
	return err
}

// Sequence returns the sequence the next command will carry.
func (t *HostTransport) Sequence() uint8 {
	return uint8(atomic.LoadUint32(&t.seq))
}

func (t *HostTransport) isSynced() bool {
	return atomic.LoadUint32(&t.synced) != 0
}

func (t *HostTransport) setSynced(v bool) {
	var u uint32
	if v {
		u = 1
	}
	atomic.StoreUint32(&t.synced, u)
}
