package systemd

import (
	"net"
	"testing"
)

func TestFromNamed(t *testing.T) {
	api, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer api.Close()

	listeners := fromNamed(map[string][]net.Listener{
		SocketAPI: {api},
		"unused":  {api},
	})
	if !listeners.Activated {
		t.Error("expected activated listeners")
	}
	if listeners.API != api {
		t.Error("expected api listener to be mapped")
	}
	if listeners.Metrics != nil {
		t.Error("expected no metrics listener")
	}

	if empty := fromNamed(nil); empty.Activated || empty.API != nil {
		t.Errorf("expected empty listeners, got %+v", empty)
	}
}

func TestGetListenersWithoutActivation(t *testing.T) {
	t.Setenv("LISTEN_FDS", "")
	t.Setenv("LISTEN_PID", "")

	listeners, err := GetListeners()
	if err != nil {
		t.Fatalf("GetListeners: %v", err)
	}
	if listeners.Activated {
		t.Error("expected no socket activation")
	}
}
