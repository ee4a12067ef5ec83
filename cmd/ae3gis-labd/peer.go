package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
)

// ssePeer adapts an http.ResponseWriter into a statusstream.Peer using
// Server-Sent Events: one-directional, which is all the status stream
// needs. No third-party websocket library is wired into this module (the
// status/exec streams are documented as accepting any transport-agnostic
// Peer), so the demo server uses stdlib-only transports.
type ssePeer struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSEPeer(w http.ResponseWriter) (*ssePeer, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &ssePeer{w: w, f: f}, true
}

func (p *ssePeer) Send(data []byte) error {
	if _, err := fmt.Fprintf(p.w, "data: %s\n\n", data); err != nil {
		return err
	}
	p.f.Flush()
	return nil
}

func (p *ssePeer) Close(code int, reason string) error {
	_, err := fmt.Fprintf(p.w, "event: close\ndata: {\"code\":%d,\"reason\":%q}\n\n", code, reason)
	p.f.Flush()
	return err
}

// framedPeer adapts a hijacked raw connection into a duplex ptyexec.Peer
// using a minimal length-prefixed framing: a 4-byte big-endian length
// followed by that many message bytes, in each direction.
type framedPeer struct {
	conn net.Conn
	br   *bufio.Reader
}

func newFramedPeer(w http.ResponseWriter) (*framedPeer, error) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return nil, fmt.Errorf("response writer does not support hijacking")
	}
	conn, rw, err := hj.Hijack()
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Type: application/octet-stream\r\n\r\n")); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &framedPeer{conn: conn, br: rw.Reader}, nil
}

func (p *framedPeer) Send(data []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data)))
	if _, err := p.conn.Write(hdr[:]); err != nil {
		return err
	}
	_, err := p.conn.Write(data)
	return err
}

func (p *framedPeer) Recv() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(p.br, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(p.br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *framedPeer) Close() error {
	return p.conn.Close()
}
