// Package link is the host side of the monitor: a Client that talks to the
// target over a serial port and exposes the target's registers as a
// core.Bus and its microsecond counter as a core.TimeSource.
package link

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"mmcinit/core"
	"mmcinit/host/serial"
	"mmcinit/monitor"
	"mmcinit/protocol"
	"mmcinit/sdmmc"
)

var (
	ErrDictionaryMismatch = errors.New("target command table differs from host")
	ErrRejected           = errors.New("target rejected bring-up arguments")
	ErrBadResponse        = errors.New("malformed response")
)

const (
	// DefaultTimeout bounds a single command round trip.
	DefaultTimeout = 2 * time.Second

	// BringUpTimeout bounds a remote bring-up. The slowest failing run
	// spends about two seconds in the clock poll.
	BringUpTimeout = 10 * time.Second
)

// Client is a connection to the target monitor.
type Client struct {
	tr  *protocol.HostTransport
	reg *core.CommandRegistry

	timeout time.Duration

	mu  sync.Mutex
	err error

	idIdentify   uint16
	idGetClock   uint16
	idDebugRead  uint16
	idDebugWrite uint16
	idBringUp    uint16
	idIdentResp  uint16
	idClock      uint16
	idDebugRes   uint16
	idLog        uint16
	idTiming     uint16
	idResult     uint16
}

// Dial opens the serial port described by cfg and verifies the target's
// command table.
func Dial(cfg *serial.Config) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	c := NewClient(port)
	if _, err := c.Identify(); err != nil {
		c.Close()
		return nil, fmt.Errorf("identify %s: %w", cfg.Device, err)
	}
	return c, nil
}

// NewClient runs the monitor protocol over port. It does not talk to the
// target until the first call.
func NewClient(port io.ReadWriteCloser) *Client {
	c := &Client{
		tr:      protocol.NewHostTransport(port),
		reg:     core.NewCommandRegistry(),
		timeout: DefaultTimeout,
	}
	monitor.Declare(c.reg)

	c.idIdentify = c.reg.MustLookup(monitor.CmdIdentify)
	c.idGetClock = c.reg.MustLookup(monitor.CmdGetClock)
	c.idDebugRead = c.reg.MustLookup(monitor.CmdDebugRead)
	c.idDebugWrite = c.reg.MustLookup(monitor.CmdDebugWrite)
	c.idBringUp = c.reg.MustLookup(monitor.CmdBringUp)
	c.idIdentResp = c.reg.MustLookup(monitor.CmdIdentifyResponse)
	c.idClock = c.reg.MustLookup(monitor.CmdClock)
	c.idDebugRes = c.reg.MustLookup(monitor.CmdDebugResult)
	c.idLog = c.reg.MustLookup(monitor.CmdLog)
	c.idTiming = c.reg.MustLookup(monitor.CmdTiming)
	c.idResult = c.reg.MustLookup(monitor.CmdResult)
	return c
}

// Close shuts the link down.
func (c *Client) Close() error {
	return c.tr.Close()
}

// SetTimeout changes the per-command round trip bound.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// query sends one command and returns the arguments of the first response
// with ID want.
func (c *Client) query(cmd uint16, args func(protocol.OutputBuffer), want uint16) ([]byte, error) {
	c.tr.DiscardResponses()
	if err := c.tr.SendCommandWithTimeout(cmd, args, c.timeout); err != nil {
		return nil, err
	}
	for {
		msg, err := c.tr.ReceiveResponse(c.timeout)
		if err != nil {
			return nil, err
		}
		p := msg.Payload
		id, err := protocol.DecodeVLQUint(&p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		if uint16(id) == want {
			return p, nil
		}
	}
}

// Identify downloads the target's dictionary and checks it against the
// host's own table. It returns the target's text either way.
func (c *Client) Identify() (string, error) {
	var raw bytes.Buffer
	for offset := uint32(0); ; {
		p, err := c.query(c.idIdentify, func(out protocol.OutputBuffer) {
			protocol.EncodeVLQUint(out, offset)
			protocol.EncodeVLQUint(out, monitor.IdentifyChunk)
		}, c.idIdentResp)
		if err != nil {
			return "", fmt.Errorf("dictionary chunk at %d: %w", offset, err)
		}
		got, err := protocol.DecodeVLQUint(&p)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		if got != offset {
			return "", fmt.Errorf("%w: offset %d, expected %d", ErrBadResponse, got, offset)
		}
		chunk, err := protocol.DecodeVLQBytes(&p)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
		}
		raw.Write(chunk)
		offset += uint32(len(chunk))
		if len(chunk) < monitor.IdentifyChunk {
			break
		}
	}

	zr, err := zlib.NewReader(&raw)
	if err != nil {
		return "", fmt.Errorf("inflate dictionary: %w", err)
	}
	text, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("inflate dictionary: %w", err)
	}

	if want := monitor.Dictionary(c.reg); string(text) != want {
		return string(text), fmt.Errorf("%w: %s", ErrDictionaryMismatch, firstDiff(want, string(text)))
	}
	return string(text), nil
}

func firstDiff(want, got string) string {
	w := strings.Split(want, "\n")
	g := strings.Split(got, "\n")
	for i := range w {
		if i >= len(g) {
			return fmt.Sprintf("target is missing %q", w[i])
		}
		if w[i] != g[i] {
			return fmt.Sprintf("line %d: host %q, target %q", i+1, w[i], g[i])
		}
	}
	return fmt.Sprintf("target has extra %q", g[len(w)])
}

// ReadMem reads one register of width w on the target.
func (c *Client) ReadMem(addr uintptr, w core.Width) (uint32, error) {
	p, err := c.query(c.idDebugRead, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, monitor.WidthOrder(w))
		protocol.EncodeVLQUint(out, uint32(addr))
	}, c.idDebugRes)
	if err != nil {
		return 0, fmt.Errorf("read 0x%08x: %w", addr, err)
	}
	v, err := protocol.DecodeVLQUint(&p)
	if err != nil {
		return 0, fmt.Errorf("read 0x%08x: %w: %v", addr, ErrBadResponse, err)
	}
	return v & w.Mask(), nil
}

// WriteMem writes one register of width w on the target.
func (c *Client) WriteMem(addr uintptr, w core.Width, val uint32) error {
	err := c.tr.SendCommandWithTimeout(c.idDebugWrite, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, monitor.WidthOrder(w))
		protocol.EncodeVLQUint(out, uint32(addr))
		protocol.EncodeVLQUint(out, val&w.Mask())
	}, c.timeout)
	if err != nil {
		return fmt.Errorf("write 0x%08x: %w", addr, err)
	}
	return nil
}

// Clock returns the target's microsecond counter.
func (c *Client) Clock() (uint32, error) {
	p, err := c.query(c.idGetClock, nil, c.idClock)
	if err != nil {
		return 0, fmt.Errorf("get clock: %w", err)
	}
	return protocol.DecodeVLQUint(&p)
}

// BringUp runs the sequencer on the target. Messages are replayed into
// sink in the order the target emitted them.
func (c *Client) BringUp(ctrl sdmmc.Controller, cfg sdmmc.Config, sink core.Sink) (sdmmc.Result, error) {
	if sink == nil {
		sink = core.NopSink
	}
	var nonRemovable uint32
	if cfg.NonRemovable {
		nonRemovable = 1
	}

	c.tr.DiscardResponses()
	err := c.tr.SendCommandWithTimeout(c.idBringUp, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(ctrl))
		protocol.EncodeVLQUint(out, uint32(cfg.Mode))
		protocol.EncodeVLQUint(out, uint32(cfg.Voltage))
		protocol.EncodeVLQUint(out, nonRemovable)
		protocol.EncodeVLQUint(out, uint32(cfg.BusWidth))
	}, BringUpTimeout)
	if err != nil {
		return sdmmc.Result{}, fmt.Errorf("bring-up %s: %w", ctrl, err)
	}

	var timings []sdmmc.StageTiming
	for {
		msg, err := c.tr.ReceiveResponse(c.timeout)
		if err != nil {
			return sdmmc.Result{}, fmt.Errorf("bring-up %s: %w", ctrl, err)
		}
		p := msg.Payload
		id, err := protocol.DecodeVLQUint(&p)
		if err != nil {
			return sdmmc.Result{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}

		switch uint16(id) {
		case c.idLog:
			source, err := protocol.DecodeVLQString(&p)
			if err != nil {
				return sdmmc.Result{}, fmt.Errorf("%w: log: %v", ErrBadResponse, err)
			}
			text, err := protocol.DecodeVLQString(&p)
			if err != nil {
				return sdmmc.Result{}, fmt.Errorf("%w: log: %v", ErrBadResponse, err)
			}
			sink.Emit(source, text)

		case c.idTiming:
			var stage, start, duration, failed uint32
			if err := protocol.DecodeVLQArgs(&p, &stage, &start, &duration, &failed); err != nil {
				return sdmmc.Result{}, fmt.Errorf("%w: timing: %v", ErrBadResponse, err)
			}
			timings = append(timings, sdmmc.StageTiming{
				Stage:    sdmmc.Stage(stage),
				Start:    start,
				Duration: duration,
				Failed:   failed != 0,
			})

		case c.idResult:
			return decodeResult(&p, cfg, timings)
		}
	}
}

func decodeResult(p *[]byte, cfg sdmmc.Config, timings []sdmmc.StageTiming) (sdmmc.Result, error) {
	var status, stage, elapsed, caps, flags, tap uint32
	if err := protocol.DecodeVLQArgs(p, &status, &stage, &elapsed, &caps, &flags, &tap); err != nil {
		return sdmmc.Result{}, fmt.Errorf("%w: result: %v", ErrBadResponse, err)
	}
	summary := sdmmc.Summary{
		Capabilities: caps,
		Mode:         cfg.Mode,
		Voltage:      cfg.Voltage,
		BusWidth:     cfg.BusWidth,
		TapValue:     tap,
	}
	monitor.DecodeFlags(&summary, flags)

	switch status {
	case monitor.ResultReady:
		return sdmmc.Result{
			Status:  sdmmc.StatusReady,
			Elapsed: elapsed,
			Summary: summary,
			Timings: timings,
		}, nil
	case monitor.ResultFailed:
		res := sdmmc.FailedResult(sdmmc.Stage(stage), elapsed, summary)
		res.Timings = timings
		return res, nil
	case monitor.ResultRejected:
		return sdmmc.Result{}, ErrRejected
	}
	return sdmmc.Result{}, fmt.Errorf("%w: status %d", ErrBadResponse, status)
}
