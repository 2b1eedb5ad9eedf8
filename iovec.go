// MIT License
//
// Copyright (c) 2016-2017 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package memprotogw

import (
	"io"

	"github.com/sagernet/sing/common/bufio"
	N "github.com/sagernet/sing/common/network"
)

// iovecWriter performs a gathered write of a response's buffers across
// a single net.Conn. It implements Writer for use by ResponseQueue.
//
// Prefers a true vectorised writer when the underlying conn exposes one
// (TCP conns do, via sing's N.VectorisedWriter adapter over writev(2)),
// and falls back to a single concatenated Write otherwise, the same
// shape as sendLoop's writer selection in the upstream session
// implementation this pattern is adapted from.
type iovecWriter struct {
	conn io.Writer
	vw   N.VectorisedWriter
	ok   bool
}

// newIovecWriter wraps conn for gathered writes.
func newIovecWriter(conn io.Writer) *iovecWriter {
	w := &iovecWriter{conn: conn}
	w.vw, w.ok = bufio.CreateVectorisedWriter(conn)
	return w
}

// WriteVectored writes every buffer in vec, in order, as a single
// gathered write when possible, then releases zone. The caller (the
// response queue, under its mutex) guarantees this is never called
// concurrently with another WriteVectored on the same writer, so two
// completions' bytes can never interleave on the wire.
func (w *iovecWriter) WriteVectored(vec [][]byte, zone *Zone) error {
	defer func() {
		if zone != nil {
			zone.Release()
		}
	}()

	if w.ok {
		_, err := bufio.WriteVectorised(w.vw, vec)
		return err
	}

	total := 0
	for _, b := range vec {
		total += len(b)
	}
	buf := make([]byte, 0, total)
	for _, b := range vec {
		buf = append(buf, b...)
	}
	_, err := w.conn.Write(buf)
	return err
}
