package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/zsprackett/tunedeck/internal/model"
)

// Send writes text as one line to the control socket at path and returns
// the first status line the server sends back. The status is nil when none
// arrives within wait.
func Send(ctx context.Context, path, text string, wait time.Duration) (*model.Status, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", path, err)
	}
	defer conn.Close()

	line := strings.ReplaceAll(strings.TrimSpace(text), "\n", ";") + "\n"
	if _, err := conn.Write([]byte(line)); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(wait))
	sc := bufio.NewScanner(conn)
	if !sc.Scan() {
		err := sc.Err()
		if err == nil || errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("read status: %w", err)
	}
	var st model.Status
	if err := json.Unmarshal(sc.Bytes(), &st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}
