package comm_test

import (
	"errors"
	"io"
	"net"
	"testing"

	"github.com/kmoncr/horibactl/comm"
)

// tcpEchoServer echoes everything back on an ephemeral port and returns
// its address
func tcpEchoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() { io.Copy(conn, conn) }()
		}
	}()
	return ln.Addr().String()
}

func TestSendRecvRoundTripStripsTerminator(t *testing.T) {
	addr := tcpEchoServer(t)
	rd := comm.NewRemoteDevice(addr, false)
	if err := rd.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rd.Close()
	resp, err := rd.SendRecv([]byte("Q:"))
	if err != nil {
		t.Fatalf("send/recv: %v", err)
	}
	if string(resp) != "Q:" {
		t.Errorf("got %q, expected terminator-stripped echo %q", resp, "Q:")
	}
}

func TestNotConnectedErrors(t *testing.T) {
	rd := comm.NewRemoteDevice("127.0.0.1:1", false)
	if err := rd.Send([]byte("x")); !errors.Is(err, comm.ErrNotConnected) {
		t.Errorf("send got %v, expected ErrNotConnected", err)
	}
	if _, err := rd.Recv(); !errors.Is(err, comm.ErrNotConnected) {
		t.Errorf("recv got %v, expected ErrNotConnected", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	addr := tcpEchoServer(t)
	rd := comm.NewRemoteDevice(addr, false)
	if err := rd.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := rd.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rd.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestSerialWithoutConfErrors(t *testing.T) {
	rd := comm.NewRemoteDevice("/dev/null", true)
	err := rd.Open()
	if !errors.Is(err, comm.ErrNoSerialConf) {
		t.Errorf("got %v, expected ErrNoSerialConf", err)
	}
}
