// Package nntp implements per-server authenticated NNTP connection pools
// (§4.2) and a priority-fallback dispatcher across them (§4.3), grounded
// on the teacher's textproto-based provider.
package nntp

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"time"

	"github.com/datallboy/gonzb/internal/errs"
)

// ServerConfig is one configured NNTP server (§3 "NNTP Server Config").
type ServerConfig struct {
	Name          string
	Host          string
	Port          int
	TLS           bool
	Username      string
	Password      string
	MaxConnection int
	Priority      int
	Enabled       bool
}

// Connection owns one authenticated textproto socket and remembers the
// last selected group so that select_group is a no-op when unchanged.
type Connection struct {
	conf          ServerConfig
	conn          *textproto.Conn
	currentGroup  string
	broken        bool
	dialTimeout   time.Duration
}

func newConnection(conf ServerConfig) *Connection {
	return &Connection{conf: conf, dialTimeout: 10 * time.Second}
}

// connect dials, reads the greeting, and authenticates if credentials are
// configured.
func (c *Connection) connect() error {
	addr := fmt.Sprintf("%s:%d", c.conf.Host, c.conf.Port)

	var textConn *textproto.Conn
	var err error

	if c.conf.TLS {
		tlsConn, derr := tls.DialWithDialer(&net.Dialer{Timeout: c.dialTimeout}, "tcp", addr, &tls.Config{
			ServerName: c.conf.Host,
			MinVersion: tls.VersionTLS12,
		})
		if derr != nil {
			return errs.NewTransientNetworkError("dial", derr)
		}
		textConn = textproto.NewConn(tlsConn)
	} else {
		plainConn, derr := net.DialTimeout("tcp", addr, c.dialTimeout)
		if derr != nil {
			return errs.NewTransientNetworkError("dial", derr)
		}
		textConn = textproto.NewConn(plainConn)
	}

	if _, _, err = textConn.ReadCodeLine(200); err != nil {
		if _, _, err2 := textConn.ReadCodeLine(201); err2 != nil {
			textConn.Close()
			return errs.NewTransientNetworkError("greeting", err)
		}
	}

	c.conn = textConn

	if c.conf.Username != "" {
		if err := c.authenticate(); err != nil {
			textConn.Close()
			c.conn = nil
			return err
		}
	}
	return nil
}

func (c *Connection) authenticate() error {
	if _, err := c.conn.Cmd("AUTHINFO USER %s", c.conf.Username); err != nil {
		return errs.NewTransientNetworkError("authinfo user", err)
	}
	if _, _, err := c.conn.ReadCodeLine(381); err != nil {
		return errs.NewAuthError(c.conf.Name, "username rejected")
	}

	if _, err := c.conn.Cmd("AUTHINFO PASS %s", c.conf.Password); err != nil {
		return errs.NewTransientNetworkError("authinfo pass", err)
	}
	if _, _, err := c.conn.ReadCodeLine(281); err != nil {
		return errs.NewAuthError(c.conf.Name, "password rejected")
	}
	return nil
}

// SelectGroup issues GROUP g unless it is already the current group.
// Returns false (not an error) for a transient, non-fatal rejection —
// common when a server doesn't carry a given newsgroup.
func (c *Connection) SelectGroup(group string) bool {
	if group == "" || group == c.currentGroup {
		return true
	}
	if _, err := c.conn.Cmd("GROUP %s", group); err != nil {
		return false
	}
	code, _, err := c.conn.ReadCodeLine(211)
	if err != nil || code != 211 {
		return false
	}
	c.currentGroup = group
	return true
}

// Body issues BODY <mid> and returns the fully read, dot-unstuffed
// article bytes, without the final line's terminator.
func (c *Connection) Body(messageID string) ([]byte, error) {
	formatted := messageID
	if !strings.HasPrefix(formatted, "<") {
		formatted = "<" + formatted + ">"
	}

	if _, err := c.conn.Cmd("BODY %s", formatted); err != nil {
		c.broken = true
		return nil, errs.NewTransientNetworkError("body", err)
	}

	code, _, err := c.conn.ReadCodeLine(222)
	if err != nil {
		if code == 430 {
			return nil, errs.ErrArticleMissing
		}
		c.broken = true
		return nil, errs.NewTransientNetworkError("body response", err)
	}

	body, rerr := readAll(c.conn)
	if rerr != nil {
		c.broken = true
		return nil, errs.NewTransientNetworkError("body read", rerr)
	}
	return body, nil
}

func readAll(conn *textproto.Conn) ([]byte, error) {
	r := conn.DotReader()
	buf := make([]byte, 0, 64*1024)
	chunk := make([]byte, 32*1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if err.Error() == "EOF" {
				if n := len(buf); n > 0 && buf[n-1] == '\n' {
					buf = buf[:n-1]
				}
				return buf, nil
			}
			return buf, err
		}
	}
}

// Close sends QUIT and closes the underlying socket.
func (c *Connection) Close() error {
	if c.conn == nil {
		return nil
	}
	c.conn.Cmd("QUIT")
	return c.conn.Close()
}

// Broken reports whether a retrieval on this connection hit a transport
// failure (the pool must remove and not re-list such connections).
func (c *Connection) Broken() bool { return c.broken }
