package hal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/internal/relay/video"
	"github.com/autopeer-io/dronerelay/pkg/log"
	"github.com/autopeer-io/dronerelay/pkg/options"
)

var _ core.Dialer = (*UDPDialer)(nil)

// UDPDialer opens the command and state sockets of a drone speaking the
// text SDK.
type UDPDialer struct {
	drone *options.DroneOptions
	video *options.VideoOptions
}

func NewUDPDialer(drone *options.DroneOptions, video *options.VideoOptions) *UDPDialer {
	return &UDPDialer{drone: drone, video: video}
}

func (d *UDPDialer) Dial(ctx context.Context) (core.Link, error) {
	ip := net.ParseIP(d.drone.Addr)
	if ip == nil {
		return nil, fmt.Errorf("invalid drone address %q", d.drone.Addr)
	}
	remote := &net.UDPAddr{IP: ip, Port: d.drone.CommandPort}

	var lc net.ListenConfig
	cmd, err := listenUDP(ctx, &lc, d.drone.LocalCommandPort)
	if err != nil {
		return nil, fmt.Errorf("bind command socket: %w", err)
	}
	state, err := listenUDP(ctx, &lc, d.drone.StatePort)
	if err != nil {
		_ = cmd.Close()
		return nil, fmt.Errorf("bind state socket: %w", err)
	}

	log.Info("Drone link opened", "drone", remote.String(), "localCommand", cmd.LocalAddr().String(), "state", state.LocalAddr().String())

	return &udpLink{
		cmd:   &udpCommandConn{conn: cmd, remote: remote},
		state: &udpStateConn{conn: state},
		video: video.NewDroneSource(d.drone, d.video),
	}, nil
}

func listenUDP(ctx context.Context, lc *net.ListenConfig, port int) (*net.UDPConn, error) {
	pc, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}

type udpLink struct {
	cmd   *udpCommandConn
	state *udpStateConn
	video *video.FFmpegSource
}

func (l *udpLink) Command() core.CommandConn { return l.cmd }
func (l *udpLink) State() core.StateConn     { return l.state }
func (l *udpLink) Video() core.VideoSource   { return l.video }

func (l *udpLink) Close() error {
	return errors.Join(l.video.Stop(), l.cmd.Close(), l.state.Close())
}

type udpCommandConn struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
}

func (c *udpCommandConn) Send(payload []byte) error {
	_, err := c.conn.WriteToUDP(payload, c.remote)
	return err
}

// Recv returns the next datagram from the drone. Datagrams from other
// peers are ignored.
func (c *udpCommandConn) Recv(deadline time.Time) ([]byte, error) {
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	buf := make([]byte, 1518)
	for {
		n, addr, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			return nil, err
		}
		if addr.IP.Equal(c.remote.IP) {
			return buf[:n], nil
		}
	}
}

func (c *udpCommandConn) Close() error { return c.conn.Close() }

type udpStateConn struct {
	conn *net.UDPConn
}

func (c *udpStateConn) Recv(deadline time.Time) ([]byte, error) {
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	buf := make([]byte, 1518)
	n, _, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *udpStateConn) Close() error { return c.conn.Close() }
