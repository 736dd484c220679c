package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	// maxRequestBytes bounds one request line.
	maxRequestBytes = 4 << 10
	connDeadline    = 2 * time.Second
)

// Handler answers one control command.
type Handler interface {
	Handle(context.Context, Request) Response
}

type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve answers one request per connection until ctx is cancelled or the
// listener is closed. Unknown commands are rejected without reaching handler.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	var conns sync.WaitGroup
	defer conns.Wait()

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept control connection: %w", err)
		}

		conns.Add(1)
		go func() {
			defer conns.Done()
			defer conn.Close()
			_ = conn.SetDeadline(time.Now().Add(connDeadline))
			_ = json.NewEncoder(conn).Encode(answer(ctx, conn, handler))
		}()
	}
}

func answer(ctx context.Context, conn net.Conn, handler Handler) Response {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 256), maxRequestBytes)
	if !scanner.Scan() {
		err := scanner.Err()
		if err == nil {
			err = errors.New("connection closed before request")
		}
		return Response{Error: fmt.Sprintf("read request: %v", err)}
	}

	var req Request
	if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
		return Response{Error: fmt.Sprintf("decode request: %v", err)}
	}
	if !KnownCommand(req.Command) {
		return Response{Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
	return handler.Handle(ctx, req)
}
