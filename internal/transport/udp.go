package transport

import (
	"bufio"
	"fmt"
	"net"
)

// maxDatagramSize generously bounds one UDP datagram (the practical
// IPv4 ceiling). The read buffer below must hold a whole datagram in
// one underlying Read, because readFrame's header/payload/checksum are
// read as several short calls: on a connectionless socket, a Read
// smaller than the pending datagram truncates it and silently
// discards the remainder, which would desynchronize the frame parser
// one field into every message. Buffering once per datagram and
// serving the short reads from that buffer keeps "one packet, one
// frame" intact.
const maxDatagramSize = 65507

// udpDuplex wraps a connected UDP socket. "Connect" here means what
// spec §4.1 describes: bind a local socket and cache the remote
// endpoint as the default send target; reads yield datagram payloads.
type udpDuplex struct {
	conn *net.UDPConn
	r    *bufio.Reader
}

// DialUDP opens a UDP duplex to (ip, port). Failure to resolve or dial
// is reported as a SourceError.
func DialUDP(ip net.IP, port uint16) (Duplex, error) {
	raddr := &net.UDPAddr{IP: ip, Port: int(port)}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return nil, &SourceError{Details: fmt.Sprintf("dial udp %s:%d", ip, port), Err: err}
	}
	return &udpDuplex{conn: conn, r: bufio.NewReaderSize(conn, maxDatagramSize)}, nil
}

func (u *udpDuplex) Read(p []byte) (int, error)  { return u.r.Read(p) }
func (u *udpDuplex) Write(p []byte) (int, error) { return u.conn.Write(p) }
func (u *udpDuplex) Close() error                { return u.conn.Close() }
