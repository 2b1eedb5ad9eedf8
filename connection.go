package memprotogw

import (
	"errors"
	"io"
	"net"
)

// zeroFlags is the 4-byte zero extras field every successful GET
// response carries (this gateway never sets per-item flags).
var zeroFlags = [4]byte{}

// requestEntry is the per-request record threaded from framing through
// to response formatting: the slot it reserved, the original header
// (for opcode/opaque echo), and the get-specific flags. One struct
// covers every opcode rather than a separate type per request kind,
// since nothing here needs the extra type safety.
type requestEntry struct {
	slot      slotID
	header    RequestHeader
	zone      *Zone
	flagKey   bool
	flagQuiet bool
}

// Connection owns one accepted socket's framer, receive buffer, current
// zone and response queue, and drives requests into backend and
// responses back onto the wire in order.
type Connection struct {
	conn    net.Conn
	backend Backend
	config  *Config
	logger  Logger
	metrics *Metrics

	framer *Framer
	recv   []byte
	r, w   int // recv[r:w] is the unconsumed, already-read region

	zone  *Zone
	queue *ResponseQueue
	wr    *iovecWriter
}

// NewConnection wraps conn with a fresh Connection ready to Serve.
func NewConnection(conn net.Conn, backend Backend, config *Config, logger Logger, metrics *Metrics) *Connection {
	if config == nil {
		config = DefaultConfig()
	}
	wr := newIovecWriter(conn)
	c := &Connection{
		conn:    conn,
		backend: backend,
		config:  config,
		logger:  logger,
		metrics: metrics,
		framer:  NewFramer(config.MaxBodySize),
		recv:    make([]byte, config.InitialBufferSize),
		zone:    NewZone(),
		wr:      wr,
	}
	c.queue = NewResponseQueue(wr)
	return c
}

// Serve runs the read-event loop until the connection closes or a fatal
// protocol error occurs, then tears down (closes the socket and
// invalidates the response queue so any still-outstanding backend
// completions become no-ops). It never returns a nil error: io.EOF on a
// clean close, otherwise the error that caused teardown.
func (c *Connection) Serve() error {
	defer c.teardown()
	for {
		done, err := c.readEvent()
		if err != nil {
			return err
		}
		if done {
			return io.EOF
		}
	}
}

// pushEntry reserves e's response-queue slot and samples the resulting
// queue depth into c.metrics.
func (c *Connection) pushEntry(e *requestEntry) {
	e.slot = c.queue.PushEntry(e.zone)
	if c.metrics != nil {
		c.metrics.observeQueueDepth(c.queue.Len())
	}
}

func (c *Connection) teardown() {
	c.queue.Invalidate()
	c.conn.Close()
	if c.metrics != nil {
		c.metrics.ConnectionsClosed.Add(1)
	}
}

// reserve ensures at least n writable bytes exist in c.recv past c.w,
// compacting the already-consumed prefix or growing the buffer as
// needed.
func (c *Connection) reserve(n int) {
	if len(c.recv)-c.w >= n {
		return
	}
	if c.r > 0 {
		copy(c.recv, c.recv[c.r:c.w])
		c.w -= c.r
		c.r = 0
		if len(c.recv)-c.w >= n {
			return
		}
	}
	grown := make([]byte, c.w+n)
	copy(grown, c.recv[:c.w])
	c.recv = grown
}

// readEvent reads once from the socket and frames as many complete
// requests as are now available, dispatching each in arrival order.
// done is true once the peer has cleanly closed the connection.
func (c *Connection) readEvent() (done bool, err error) {
	c.reserve(c.config.ReserveSize)

	n, err := c.conn.Read(c.recv[c.w:])
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return false, ErrClosed
		}
		if n == 0 {
			if err == io.EOF {
				return true, nil
			}
			return false, err
		}
	}
	if n == 0 {
		return true, nil
	}
	c.w += n

	for c.r < c.w {
		consumed, status, ferr := c.framer.Execute(c.recv[c.r:c.w])
		c.r += consumed

		switch status {
		case FrameNeedMore:
			return false, nil
		case FrameError:
			if c.metrics != nil {
				c.metrics.ProtocolErrors.Add(1)
			}
			if c.logger != nil {
				c.logger.Debugf("framing error: %v", ferr)
			}
			return false, ferr
		case FrameComplete:
			frame := c.framer.Current()
			if err := c.dispatch(frame); err != nil {
				if c.metrics != nil {
					c.metrics.ProtocolErrors.Add(1)
				}
				return false, err
			}
			c.zone = NewZone()
		}
	}
	return false, nil
}

// dispatch fires the typed request constructor for frame's opcode, a
// plain type switch standing in for a callback vtable.
func (c *Connection) dispatch(f Frame) error {
	switch f.Header.Opcode {
	case OpGet, OpGetQ, OpGetK, OpGetKQ:
		c.requestGetx(f)
	case OpSet:
		return c.requestSet(f)
	case OpDelete:
		return c.requestDelete(f)
	case OpNoop:
		c.requestNoop(f)
	case OpFlush:
		return c.requestFlush(f)
	default:
		return newProtocolError("dispatch", f.Header, ErrUnknownOpcode)
	}
	return nil
}

func (c *Connection) requestGetx(f Frame) {
	e := &requestEntry{
		header:    f.Header,
		zone:      c.zone,
		flagKey:   wantsKey(f.Header.Opcode),
		flagQuiet: isQuiet(f.Header.Opcode),
	}
	c.pushEntry(e)

	if c.metrics != nil {
		c.metrics.GetOps.Add(1)
	}

	c.backend.SubmitGet(GetRequest{
		Key:  f.Key,
		Hash: keyHash(f.Key),
		Zone: c.zone,
		Callback: func(res GetResponse) {
			c.responseGetx(e, res)
		},
	})
}

func (c *Connection) requestSet(f Frame) error {
	if f.Header.CAS != 0 || len(f.Extras) < 8 {
		return newProtocolError("set", f.Header, ErrInvalidArgument)
	}
	flags := beUint32(f.Extras[0:4])
	expiration := beUint32(f.Extras[4:8])
	if flags != 0 || expiration != 0 {
		return newProtocolError("set", f.Header, ErrInvalidArgument)
	}

	e := &requestEntry{header: f.Header, zone: c.zone}
	c.pushEntry(e)

	if c.metrics != nil {
		c.metrics.SetOps.Add(1)
	}

	c.backend.SubmitSet(SetRequest{
		Key:  f.Key,
		Val:  f.Value,
		Hash: keyHash(f.Key),
		Zone: c.zone,
		Callback: func(res SetResponse) {
			c.responseSet(e, res)
		},
	})
	return nil
}

func (c *Connection) requestDelete(f Frame) error {
	var expiration uint32
	if len(f.Extras) >= 4 {
		expiration = beUint32(f.Extras[0:4])
	}
	if expiration != 0 {
		return newProtocolError("delete", f.Header, ErrInvalidArgument)
	}

	e := &requestEntry{header: f.Header, zone: c.zone}
	c.pushEntry(e)

	if c.metrics != nil {
		c.metrics.DeleteOps.Add(1)
	}

	c.backend.SubmitDelete(DeleteRequest{
		Key:  f.Key,
		Hash: keyHash(f.Key),
		Zone: c.zone,
		Callback: func(res DeleteResponse) {
			c.responseDelete(e, res)
		},
	})
	return nil
}

func (c *Connection) requestNoop(f Frame) {
	e := &requestEntry{header: f.Header, zone: c.zone}
	c.pushEntry(e)
	if c.metrics != nil {
		c.metrics.NoopOps.Add(1)
	}
	c.sendResponseNoData(e, StatusNoError)
}

func (c *Connection) requestFlush(f Frame) error {
	var expiration uint32
	if len(f.Extras) >= 4 {
		expiration = beUint32(f.Extras[0:4])
	}
	if expiration != 0 {
		return newProtocolError("flush", f.Header, ErrInvalidArgument)
	}

	e := &requestEntry{header: f.Header, zone: c.zone}
	c.pushEntry(e)
	if c.metrics != nil {
		c.metrics.FlushOps.Add(1)
	}
	// Flush acknowledges without actually flushing any state: there is
	// no expiring-keys store backing this gateway yet.
	c.sendResponseNoData(e, StatusNoError)
	return nil
}

func (c *Connection) responseGetx(e *requestEntry, res GetResponse) {
	if !c.queue.IsValid() {
		return
	}

	if res.Err != nil {
		if c.metrics != nil {
			c.metrics.BackendErrors.Add(1)
		}
		if e.flagQuiet {
			c.sendResponseNoSend(e)
			return
		}
		c.sendResponseNoData(e, StatusInvalidArguments)
		return
	}

	if res.Val == nil {
		if e.flagQuiet {
			c.sendResponseNoSend(e)
			return
		}
		if c.metrics != nil {
			c.metrics.GetMisses.Add(1)
		}
		c.sendResponseNoData(e, StatusKeyNotFound)
		return
	}

	if c.metrics != nil {
		c.metrics.GetHits.Add(1)
	}

	var key []byte
	if e.flagKey {
		key = res.Key
	}
	c.sendResponse(e, StatusNoError, key, res.Val, zeroFlags[:])
}

func (c *Connection) responseSet(e *requestEntry, res SetResponse) {
	if !c.queue.IsValid() {
		return
	}
	if res.Err != nil {
		if c.metrics != nil {
			c.metrics.BackendErrors.Add(1)
		}
		c.sendResponseNoData(e, StatusOutOfMemory)
		return
	}
	c.sendResponseNoData(e, StatusNoError)
}

func (c *Connection) responseDelete(e *requestEntry, res DeleteResponse) {
	if !c.queue.IsValid() {
		return
	}
	if res.Err != nil {
		if c.metrics != nil {
			c.metrics.BackendErrors.Add(1)
		}
		c.sendResponseNoData(e, StatusInvalidArguments)
		return
	}
	if res.Deleted {
		c.sendResponseNoData(e, StatusNoError)
		return
	}
	// A delete that found nothing to delete answers OUT_OF_MEMORY, not
	// KEY_NOT_FOUND or NO_ERROR. A known wart carried over deliberately
	// (see DESIGN.md) rather than "fixed" into a different wire contract.
	c.sendResponseNoData(e, StatusOutOfMemory)
}

// sendResponseNoSend completes e's slot with zero bytes: the slot
// advances and is removed during drain, but nothing is written to the
// wire. Used for quiet GET misses/errors.
func (c *Connection) sendResponseNoSend(e *requestEntry) {
	c.queue.ReachedTrySend(e.slot, nil)
}

// sendResponseNoData completes e's slot with a bare 24-byte header
// (empty body): NOOP, FLUSH, SET and error responses all take this
// shape.
func (c *Connection) sendResponseNoData(e *requestEntry, status Status) {
	header := e.zone.Alloc(HeaderSize)
	packResponseHeader(header, e.header.Opcode, status, 0, 0, 0, e.header.Opaque, 0)
	c.queue.ReachedTrySend(e.slot, [][]byte{header})
}

// sendResponse completes e's slot with header + extras + (optional)
// key + value, in that order.
func (c *Connection) sendResponse(e *requestEntry, status Status, key []byte, val []byte, extras []byte) {
	header := e.zone.Alloc(HeaderSize)
	packResponseHeader(header, e.header.Opcode, status, uint16(len(key)), uint8(len(extras)),
		uint32(len(extras)+len(key)+len(val)), e.header.Opaque, 0)

	vec := make([][]byte, 0, 4)
	vec = append(vec, header)
	if len(extras) > 0 {
		vec = append(vec, extras)
	}
	if len(key) > 0 {
		vec = append(vec, key)
	}
	if len(val) > 0 {
		vec = append(vec, val)
	}
	c.queue.ReachedTrySend(e.slot, vec)
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
