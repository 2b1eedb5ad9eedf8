package memprotogw

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// workingBackend resolves every get as a miss and every set/delete
// synchronously, enough to exercise Listener/Connection end to end over
// a real TCP socket.
type workingBackend struct{}

func (workingBackend) SubmitGet(req GetRequest)       { req.Callback(GetResponse{Key: req.Key}) }
func (workingBackend) SubmitSet(req SetRequest)       { req.Callback(SetResponse{}) }
func (workingBackend) SubmitDelete(req DeleteRequest) { req.Callback(DeleteResponse{}) }

func TestListenerServesOverRealTCPSocket(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	gw := NewListener(ln, workingBackend{}, nil, nil)
	go gw.Serve()
	defer gw.Close()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	raw := buildGetRequest(OpNoop, "", 42)
	_, err = conn.Write(raw)
	require.NoError(t, err)

	buf := make([]byte, HeaderSize)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = readFull(conn, buf)
	require.NoError(t, err)

	require.Equal(t, magicResponse, buf[0])
	require.Equal(t, uint32(42), beUint32(buf[12:16]))
	require.Equal(t, uint16(0), uint16(buf[6])<<8|uint16(buf[7])) // NO_ERROR
}
