// network/connection.go
package network

import (
	"bufio"
	"net"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is one client transport carrying the line-oriented text protocol.
// ReadLine blocks until a full line arrives; writers are safe for concurrent
// use from the lobby loop and a match engine during handoff.
type Conn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	WriteText(text string) error
	RemoteAddr() net.Addr
	Close() error
}

// TCPConn frames the protocol over a raw TCP stream, one '\n'-terminated
// line per command or reply.
type TCPConn struct {
	conn      net.Conn
	reader    *bufio.Reader
	sendMutex sync.Mutex
}

func NewTCPConn(conn net.Conn) *TCPConn {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return &TCPConn{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

func (c *TCPConn) ReadLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *TCPConn) WriteLine(line string) error {
	return c.WriteText(line + "\n")
}

func (c *TCPConn) WriteText(text string) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	_, err := c.conn.Write([]byte(text))
	return err
}

func (c *TCPConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *TCPConn) Close() error {
	return c.conn.Close()
}

// WSConn carries the same text protocol over a websocket, one protocol line
// (or text block) per text message.
type WSConn struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
}

func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

func (c *WSConn) ReadLine() (string, error) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		line := strings.TrimRight(string(data), "\r\n")
		if line == "" {
			continue
		}
		return line, nil
	}
}

func (c *WSConn) WriteLine(line string) error {
	return c.WriteText(line + "\n")
}

func (c *WSConn) WriteText(text string) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (c *WSConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *WSConn) Close() error {
	return c.conn.Close()
}
