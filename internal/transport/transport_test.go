package transport

import (
	"net"
	"testing"

	"github.com/oscarsaleta/pbala/internal/protocol"
)

func TestSendRecvRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewConn(server)
	cc := NewConn(client)

	want := protocol.ResultMessage{WorkerID: 2, TaskNumber: 5, Status: protocol.StatusOK, ArgsCSV: "a,b", ExecSeconds: 1.5}

	errCh := make(chan error, 1)
	go func() { errCh <- sc.Send(protocol.TagResult, want) }()

	tag, payload, err := cc.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if tag != protocol.TagResult {
		t.Errorf("tag = %v, want %v", tag, protocol.TagResult)
	}
	got, err := Unmarshal[protocol.ResultMessage](payload)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestListenAcceptDial(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	acceptedCh := make(chan *Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			t.Error(err)
			return
		}
		acceptedCh <- c
	}()

	client, err := Dial(ln.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	server := <-acceptedCh
	defer server.Close()

	greeting := protocol.GreetingMessage{WorkerID: 0, RunID: "run-1", TaskType: 1}
	if err := client.Send(protocol.TagGreeting, greeting); err != nil {
		t.Fatalf("Send: %v", err)
	}
	tag, payload, err := server.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if tag != protocol.TagGreeting {
		t.Fatalf("tag = %v, want %v", tag, protocol.TagGreeting)
	}
	got, err := Unmarshal[protocol.GreetingMessage](payload)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != greeting {
		t.Errorf("got %+v, want %+v", got, greeting)
	}
}
