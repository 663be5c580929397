package notification

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilm2002/booze-and-books-sub002/internal/sse"
)

// deadConn имитирует молча разорванное соединение: любая запись падает
type deadConn struct{}

func (deadConn) Write(p []byte) (int, error)       { return 0, errors.New("соединение разорвано") }
func (deadConn) WriteString(s string) (int, error) { return 0, errors.New("соединение разорвано") }
func (deadConn) Flush() error                      { return errors.New("соединение разорвано") }

// bufConn собирает записанные кадры в память
type bufConn struct {
	bytes.Buffer
}

func (b *bufConn) Flush() error { return nil }

// Клиент без единого события, у которого разорвано соединение,
// снимается с учёта в хабе, а не висит в ожидании следующего кадра
func TestStreamPumpUnregistersIdleDisconnect(t *testing.T) {
	hub := sse.NewHub()
	client := hub.AddClient("user-1")
	require.Equal(t, 1, hub.ConnectedUsers())

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer hub.RemoveClient(client.ID)
		streamPump(deadConn{}, client.Ch, 5*time.Millisecond)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("насос не завершился после разрыва соединения")
	}

	assert.Equal(t, 0, hub.ConnectedUsers())
}

// Закрытие канала клиента завершает насос
func TestStreamPumpStopsOnClosedChannel(t *testing.T) {
	frames := make(chan []byte)
	close(frames)

	done := make(chan struct{})
	go func() {
		defer close(done)
		streamPump(&bufConn{}, frames, time.Hour)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("насос не завершился после закрытия канала")
	}
}

// События доставляются в соединение в порядке поступления
func TestStreamPumpWritesFrames(t *testing.T) {
	frames := make(chan []byte, 2)
	frames <- []byte("data: one\n\n")
	frames <- []byte("data: two\n\n")
	close(frames)

	conn := &bufConn{}
	streamPump(conn, frames, time.Hour)

	assert.Equal(t, "data: one\n\ndata: two\n\n", conn.String())
}
