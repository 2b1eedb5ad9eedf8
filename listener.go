package memprotogw

import (
	"net"
)

// Listener accepts TCP connections and spawns one Connection goroutine
// per socket, the same one-session-per-conn shape a multiplexing
// session driven by its own recv/send goroutines uses. There is no
// shared reactor loop to generalize: net.Listener.Accept already blocks
// the right way.
type Listener struct {
	ln      net.Listener
	backend Backend
	config  *Config
	logger  Logger
	metrics *Metrics

	// tokens bounds how many connections may be served concurrently,
	// sized from config.AcceptBacklog: Serve takes a token before
	// spawning each serveConn goroutine, which gives it back when the
	// connection ends. While no token is free, Serve blocks and does not
	// call Accept, so an overload doesn't spin up unbounded goroutines.
	tokens chan struct{}
}

// NewListener wraps ln. config may be nil (DefaultConfig is used);
// logger may be nil (NewSlogLogger, writing to os.Stderr, is used). A
// fresh Metrics is always created; read it through Metrics.
func NewListener(ln net.Listener, backend Backend, config *Config, logger Logger) *Listener {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = NewSlogLogger()
	}
	return &Listener{
		ln:      ln,
		backend: backend,
		config:  config,
		logger:  logger,
		metrics: NewMetrics(),
		tokens:  make(chan struct{}, config.AcceptBacklog),
	}
}

// Metrics returns the listener's counters.
func (l *Listener) Metrics() *Metrics {
	return l.metrics
}

// Serve accepts connections until ln is closed, returning the error
// that stopped it (net.ErrClosed on a clean Close).
func (l *Listener) Serve() error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return err
		}
		l.metrics.ConnectionsAccepted.Add(1)
		l.tokens <- struct{}{}
		go l.serveConn(conn)
	}
}

func (l *Listener) serveConn(conn net.Conn) {
	defer func() { <-l.tokens }()

	c := NewConnection(conn, l.backend, l.config, l.logger, l.metrics)
	if err := c.Serve(); err != nil {
		l.logger.Debugf("connection %s closed: %v", conn.RemoteAddr(), err)
	}
}

// Close stops accepting new connections. In-flight connections are left
// to finish on their own.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}
