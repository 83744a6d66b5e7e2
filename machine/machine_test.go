package machine

import (
	"bytes"
	"errors"
	"testing"

	"github.com/momentics/hioload-amqp/api"
	"github.com/momentics/hioload-amqp/channel"
	"github.com/momentics/hioload-amqp/promise"
	"github.com/momentics/hioload-amqp/protocol"
)

// fakeConn records everything the machine sends and feeds deliveries back
// through a real channel table and scheduler.
type fakeConn struct {
	promises *promise.Scheduler
	channels *channel.Table
	raw      [][]byte
	sent     []api.Method
	frameMax uint32
	downWith promise.Result
	down     bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		promises: promise.NewScheduler(),
		channels: channel.NewTable(),
		frameMax: protocol.DefaultFrameMax,
	}
}

func (f *fakeConn) SendRaw(data []byte) error {
	f.raw = append(f.raw, data)
	return nil
}

func (f *fakeConn) SendFrames(channelID uint16, frames []protocol.RawFrame) error {
	if channelID != 0 {
		return errors.New("machine sent outside channel 0")
	}
	for _, fr := range frames {
		decoded, _, _, err := protocol.DecodeFrame(protocol.EncodeFrames(0, []protocol.RawFrame{fr}), 0)
		if err != nil {
			return err
		}
		f.sent = append(f.sent, decoded.Method)
	}
	return nil
}

func (f *fakeConn) Promises() *promise.Scheduler { return f.promises }
func (f *fakeConn) Channels() *channel.Table     { return f.channels }

func (f *fakeConn) TuneFrameMax(newMax uint32) uint32 {
	if newMax == 0 {
		newMax = protocol.UnboundedFrameMax
	}
	if newMax < f.frameMax {
		f.frameMax = newMax
	}
	return f.frameMax
}

func (f *fakeConn) Credentials() (string, string, string) {
	return "user", "secret", "/prod"
}

func (f *fakeConn) Shutdown(r promise.Result) {
	f.down = true
	f.downWith = r
	f.promises.Broadcast(r)
}

func (f *fakeConn) deliver(t *testing.T, m api.Method) {
	t.Helper()
	if err := f.channels.InboundMethod(0, m); err != nil {
		t.Fatal(err)
	}
}

func TestHandshakeSequence(t *testing.T) {
	conn := newFakeConn()
	_, pid, err := StartHandshake(conn)
	if err != nil {
		t.Fatal(err)
	}
	if len(conn.raw) != 1 || !bytes.Equal(conn.raw[0], protocol.ProtocolHeader) {
		t.Fatalf("preamble = %v", conn.raw)
	}

	conn.deliver(t, &protocol.ConnectionStart{
		VersionMajor: 0, VersionMinor: 9,
		Mechanisms: "AMQPLAIN PLAIN",
		Locales:    "en_US",
	})
	if len(conn.sent) != 1 {
		t.Fatalf("after start: sent %d methods", len(conn.sent))
	}
	startOk, ok := conn.sent[0].(*protocol.ConnectionStartOk)
	if !ok {
		t.Fatalf("sent %T", conn.sent[0])
	}
	if startOk.Mechanism != "PLAIN" || startOk.Response != "\x00user\x00secret" {
		t.Fatalf("start-ok = %+v", startOk)
	}

	conn.deliver(t, &protocol.ConnectionTune{ChannelMax: 8, FrameMax: 4096, Heartbeat: 30})
	if len(conn.sent) != 3 {
		t.Fatalf("after tune: sent %d methods", len(conn.sent))
	}
	tuneOk := conn.sent[1].(*protocol.ConnectionTuneOk)
	if tuneOk.FrameMax != 4096 || tuneOk.ChannelMax != 8 || tuneOk.Heartbeat != 0 {
		t.Fatalf("tune-ok = %+v", tuneOk)
	}
	open := conn.sent[2].(*protocol.ConnectionOpen)
	if open.VirtualHost != "/prod" {
		t.Fatalf("open = %+v", open)
	}
	if conn.promises.IsReady(pid) {
		t.Fatal("open promise ready before open-ok")
	}

	conn.deliver(t, &protocol.ConnectionOpenOk{})
	if !conn.promises.IsReady(pid) {
		t.Fatal("open promise not completed")
	}
}

func TestHandshakeRejectsMissingPlain(t *testing.T) {
	conn := newFakeConn()
	_, pid, err := StartHandshake(conn)
	if err != nil {
		t.Fatal(err)
	}
	conn.deliver(t, &protocol.ConnectionStart{Mechanisms: "EXTERNAL"})
	if !conn.down {
		t.Fatal("connection not shut down")
	}
	v, err := conn.promises.RunCallback(pid, true)
	if err == nil {
		t.Fatalf("handshake promise delivered success: %v", v)
	}
}

func TestGracefulClose(t *testing.T) {
	conn := newFakeConn()
	m, _, err := StartHandshake(conn)
	if err != nil {
		t.Fatal(err)
	}
	pid, err := m.Close()
	if err != nil {
		t.Fatal(err)
	}
	closeM := conn.sent[len(conn.sent)-1].(*protocol.ConnectionClose)
	if closeM.ReplyCode != 200 {
		t.Fatalf("close = %+v", closeM)
	}

	conn.deliver(t, &protocol.ConnectionCloseOk{})
	if !conn.down {
		t.Fatal("close-ok did not shut the connection down")
	}
	if !conn.promises.IsReady(pid) {
		t.Fatal("close promise not ready")
	}
	if _, err := conn.promises.RunCallback(pid, true); err != nil {
		t.Fatalf("close promise carries failure: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	m, _, _ := StartHandshake(conn)
	pid1, err := m.Close()
	if err != nil {
		t.Fatal(err)
	}
	pid2, err := m.Close()
	if err != nil {
		t.Fatal(err)
	}
	if pid1 != pid2 {
		t.Fatalf("second close created a new promise: %d != %d", pid1, pid2)
	}
}

func TestBrokerInitiatedClose(t *testing.T) {
	conn := newFakeConn()
	_, pid, _ := StartHandshake(conn)
	conn.deliver(t, &protocol.ConnectionClose{ReplyCode: 320, ReplyText: "CONNECTION_FORCED"})
	if !conn.down {
		t.Fatal("broker close did not shut the connection down")
	}
	last := conn.sent[len(conn.sent)-1]
	if _, ok := last.(*protocol.ConnectionCloseOk); !ok {
		t.Fatalf("no close-ok reply, last sent %T", last)
	}
	_, err := conn.promises.RunCallback(pid, true)
	var connErr *api.ConnectionError
	if !errors.As(err, &connErr) || connErr.ReplyCode != 320 {
		t.Fatalf("err = %v", err)
	}
}

func TestUnsolicitedCloseOkIsFault(t *testing.T) {
	conn := newFakeConn()
	_, _, _ = StartHandshake(conn)
	err := conn.channels.InboundMethod(0, &protocol.ConnectionCloseOk{})
	if !errors.Is(err, api.ErrFramingViolation) {
		t.Fatalf("err = %v", err)
	}
}
