package outbound

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/wscomms-dev/wscomms/pkg/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingWriter struct {
	mu    sync.Mutex
	names []string
	fail  error
	wrote chan struct{}
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{wrote: make(chan struct{}, 64)}
}

func (w *recordingWriter) WriteMessage(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	env, err := protocol.Decode(data)
	if err != nil {
		return err
	}
	w.names = append(w.names, env.Name)
	w.wrote <- struct{}{}
	return nil
}

func (w *recordingWriter) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.names...)
}

func (w *recordingWriter) waitFor(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-w.wrote:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d writes", i, n)
		}
	}
}

func named(name string, args ...any) *protocol.Envelope {
	env, err := protocol.NewCommand(name, args...)
	if err != nil {
		panic(err)
	}
	return env
}

func wantNames(t *testing.T, w *recordingWriter, want ...string) {
	t.Helper()
	if got := w.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("written = %v, want %v", got, want)
	}
}

func start(t *testing.T, s *Sender) {
	t.Helper()
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error=%v", err)
	}
}

func priority(env *protocol.Envelope) int {
	n, _ := env.Arg(0)
	var p int
	_ = n.Decode(&p)
	return p
}

func TestSenderFIFO(t *testing.T) {
	q := NewQueue()
	w := newRecordingWriter()
	q.Enqueue(named("A"))
	q.Enqueue(named("B"))
	q.Enqueue(named("C"))

	s := NewSender(q, w, Options{})
	start(t, s)
	w.waitFor(t, 3)
	s.Stop()

	wantNames(t, w, "A", "B", "C")
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestSenderCoalesceAlwaysFalse(t *testing.T) {
	q := NewQueue()
	w := newRecordingWriter()
	q.Enqueue(named("A"))
	q.Enqueue(named("B"))
	q.Enqueue(named("C"))

	var dropped []string
	s := NewSender(q, w, Options{
		ShouldSend: func(_, _ *protocol.Envelope) bool { return false },
		OnDropped:  func(env *protocol.Envelope) { dropped = append(dropped, env.Name) },
	})
	start(t, s)
	w.waitFor(t, 1)
	s.Stop()

	wantNames(t, w, "C")
	if !reflect.DeepEqual(dropped, []string{"A", "B"}) {
		t.Errorf("dropped = %v, want [A B]", dropped)
	}
}

func TestSenderCoalescePairwise(t *testing.T) {
	q := NewQueue()
	w := newRecordingWriter()
	q.Enqueue(named("P1", 1))
	q.Enqueue(named("P5", 5))
	q.Enqueue(named("P2", 2))

	s := NewSender(q, w, Options{
		ShouldSend: func(cur, next *protocol.Envelope) bool {
			return priority(cur) >= priority(next)
		},
	})
	start(t, s)
	w.waitFor(t, 2)
	s.Stop()

	wantNames(t, w, "P5", "P2")
}

func TestSenderSingleMessageAlwaysSent(t *testing.T) {
	q := NewQueue()
	w := newRecordingWriter()
	s := NewSender(q, w, Options{
		ShouldSend: func(_, _ *protocol.Envelope) bool { return false },
	})
	start(t, s)
	defer s.Stop()

	q.Enqueue(named("Only"))
	w.waitFor(t, 1)
	wantNames(t, w, "Only")
}

func TestSenderWakesOnEnqueue(t *testing.T) {
	q := NewQueue()
	w := newRecordingWriter()
	s := NewSender(q, w, Options{PollInterval: time.Hour})
	start(t, s)
	defer s.Stop()

	for _, name := range []string{"X", "Y"} {
		q.Enqueue(named(name))
		w.waitFor(t, 1)
	}
	wantNames(t, w, "X", "Y")
}

func TestSenderWriteFailureEndsLoop(t *testing.T) {
	q := NewQueue()
	w := newRecordingWriter()
	w.fail = errors.New("broken pipe")

	s := NewSender(q, w, Options{})
	start(t, s)
	q.Enqueue(named("A"))

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("sender did not exit after write failure")
	}
	if err := s.Err(); !errors.Is(err, ErrTransportWrite) {
		t.Errorf("Err() = %v, want ErrTransportWrite", err)
	}
	s.Stop()
}

func TestSenderOnSent(t *testing.T) {
	q := NewQueue()
	w := newRecordingWriter()
	sent := make(chan int, 1)
	s := NewSender(q, w, Options{
		OnSent: func(_ *protocol.Envelope, size int) { sent <- size },
	})
	start(t, s)
	defer s.Stop()

	q.Enqueue(named("A"))
	select {
	case size := <-sent:
		if size <= 0 {
			t.Errorf("size = %d, want > 0", size)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnSent not called")
	}
}

func TestSenderStopIdempotent(t *testing.T) {
	s := NewSender(NewQueue(), newRecordingWriter(), Options{})
	s.Stop()
	s.Stop()
	if err := s.Start(); !errors.Is(err, ErrSenderStarted) {
		t.Errorf("Start() after Stop error=%v, want ErrSenderStarted", err)
	}

	s = NewSender(NewQueue(), newRecordingWriter(), Options{})
	start(t, s)
	if err := s.Start(); !errors.Is(err, ErrSenderStarted) {
		t.Errorf("second Start() error=%v, want ErrSenderStarted", err)
	}
	s.Stop()
	s.Stop()
	if err := s.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestQueueConcurrentEnqueue(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Enqueue(named("N"))
			}
		}()
	}
	wg.Wait()

	if q.Len() != 800 {
		t.Errorf("Len() = %d, want 800", q.Len())
	}
	if n := len(q.Drain()); n != 800 {
		t.Errorf("len(Drain()) = %d, want 800", n)
	}
	if q.Len() != 0 {
		t.Errorf("Len() after Drain = %d, want 0", q.Len())
	}
}

func TestQueueIgnoresNil(t *testing.T) {
	q := NewQueue()
	q.Enqueue(nil)
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}
