package apt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/medshop-deploy/internal/runner"
)

const prefix = "DEBIAN_FRONTEND=noninteractive apt-get --option=Dpkg::Options::=--force-confold --option=Dpkg::options::=--force-unsafe-io --assume-yes --quiet"

func TestClient(t *testing.T) {
	rec := runner.NewRecorder()
	c := &Client{Runner: rec, IndexTimeout: time.Minute, InstallTimeout: time.Hour}
	ctx := context.Background()

	require.NoError(t, c.Update(ctx))
	require.NoError(t, c.Upgrade(ctx))
	require.NoError(t, c.Install(ctx, "nginx", "python3-venv"))
	require.NoError(t, c.Install(ctx))

	assert.Equal(t, []string{
		prefix + " update",
		prefix + " upgrade",
		prefix + " install nginx python3-venv",
	}, rec.Lines())

	cmds := rec.Commands()
	assert.Equal(t, time.Minute, cmds[0].Timeout)
	assert.Equal(t, time.Hour, cmds[2].Timeout)
}

func TestClient_FailurePropagates(t *testing.T) {
	rec := runner.NewRecorder()
	rec.FailOn[prefix+" install"] = 100
	c := &Client{Runner: rec}

	err := c.Install(context.Background(), "postgresql")
	assert.Error(t, err)
}
