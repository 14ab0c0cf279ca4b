package main_test

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMainExitsOnStoreError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/quarry")
	cmd.Dir = "../.."
	cmd.Env = append(os.Environ(),
		"FLOW_REDIS_ADDR=127.0.0.1:0",
		"INDEX_REDIS_ADDR=127.0.0.1:0",
		"CLIENT_INDEX_REDIS_ADDR=127.0.0.1:0",
	)

	err := cmd.Run()
	assert.Error(t, err)
	assert.NotEqual(t, context.DeadlineExceeded, ctx.Err())
}

func TestMainExitsOnInvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/quarry")
	cmd.Dir = "../.."
	cmd.Env = append(os.Environ(),
		"AGENT_ENDPOINT=http://localhost:9090/agents",
	)

	err := cmd.Run()
	assert.Error(t, err)
	assert.NotEqual(t, context.DeadlineExceeded, ctx.Err())
}
