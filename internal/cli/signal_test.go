package cli_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/aretw0/amrviz/internal/cli"
	"github.com/stretchr/testify/assert"
)

func TestSignalContext_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	sc := cli.NewSignalContext(parent)
	cancel()

	<-sc.Done()
	assert.Nil(t, sc.Signal())
	assert.ErrorIs(t, sc.Err(), context.Canceled)
}

func TestHandleExecutionError(t *testing.T) {
	var buf bytes.Buffer
	wrapped := fmt.Errorf("solve: %w", context.Canceled)

	assert.NoError(t, cli.HandleExecutionError(&buf, wrapped, os.Interrupt))
	assert.Contains(t, buf.String(), "[CTRL+C]")
	assert.Contains(t, buf.String(), ">>> Solve interrupted.")

	buf.Reset()
	assert.NoError(t, cli.HandleExecutionError(&buf, wrapped, syscall.SIGTERM))
	assert.Contains(t, buf.String(), "terminated")

	boom := errors.New("boom")
	assert.ErrorIs(t, cli.HandleExecutionError(&buf, boom, nil), boom)
	assert.NoError(t, cli.HandleExecutionError(&buf, nil, nil))
}
