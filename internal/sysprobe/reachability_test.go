package sysprobe

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHostPortDefaultsPortFromScheme(t *testing.T) {
	hostPort, err := HostPort("wss://asr.example.com/v1/stream")
	require.NoError(t, err)
	require.Equal(t, "asr.example.com:443", hostPort)

	hostPort, err = HostPort("ws://asr.example.com/v1/stream")
	require.NoError(t, err)
	require.Equal(t, "asr.example.com:80", hostPort)
}

func TestHostPortKeepsExplicitPort(t *testing.T) {
	hostPort, err := HostPort("wss://asr.example.com:8443/v1/stream")
	require.NoError(t, err)
	require.Equal(t, "asr.example.com:8443", hostPort)
}

func TestHostPortRejectsMissingHost(t *testing.T) {
	_, err := HostPort("wss:///v1/stream")
	require.Error(t, err)
}

func TestCheckReachableSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	err = CheckReachable(context.Background(), "ws://"+ln.Addr().String()+"/v1/stream", nil)
	require.NoError(t, err)
}

func TestCheckReachableFailureOnClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	err = CheckReachable(context.Background(), "ws://"+addr+"/v1/stream", nil)
	require.Error(t, err)
}

func TestCheckReachableAuxHostFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	auxAddr := closed.Addr().String()
	closed.Close()

	err = CheckReachable(context.Background(), "ws://"+ln.Addr().String()+"/v1/stream", []string{auxAddr})
	require.Error(t, err)
}
