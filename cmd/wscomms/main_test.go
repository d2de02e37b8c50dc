package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wscomms-dev/wscomms/internal/config"
	"github.com/wscomms-dev/wscomms/pkg/dispatch"
	"github.com/wscomms-dev/wscomms/pkg/protocol"
)

func invoke(t *testing.T, tbl *dispatch.Table, name string, args ...any) *protocol.Envelope {
	t.Helper()
	env, err := protocol.NewCommand(name, args...)
	require.NoError(t, err)
	env.GUID = "g"
	reply, _ := tbl.Invoke(context.Background(), env)
	require.NotNil(t, reply)
	return reply
}

func TestCalculator(t *testing.T) {
	tbl, err := dispatch.NewTableFrom("demo", calculator{})
	require.NoError(t, err)

	assert.Equal(t, "5", invoke(t, tbl, "Add", 2, 3).Result().String())
	assert.Equal(t, "-1", invoke(t, tbl, "Subtract", 2, 3).Result().String())
	assert.Equal(t, "6", invoke(t, tbl, "Multiply", 2, 3).Result().String())
	assert.Equal(t, "2.5", invoke(t, tbl, "Divide", 5, 2).Result().String())
	assert.True(t, invoke(t, tbl, "Divide", 1, 0).IsError())
	assert.Equal(t, "6", invoke(t, tbl, "Sum", []int{1, 2, 3}).Result().String())
	assert.Equal(t, `"hi"`, invoke(t, tbl, "Echo", "hi").Result().String())
	assert.Equal(t, `""`, invoke(t, tbl, "Whoami").Result().String())
}

type recordingCaller struct {
	names []string
}

func (c *recordingCaller) ID() string { return "session-1" }

func (c *recordingCaller) Notify(name string, _ ...any) error {
	c.names = append(c.names, name)
	return nil
}

func TestCalculatorCallerOperations(t *testing.T) {
	tbl, err := dispatch.NewTableFrom("demo", calculator{})
	require.NoError(t, err)

	caller := &recordingCaller{}
	ctx := dispatch.WithCaller(context.Background(), caller)

	env, err := protocol.NewCommand("Whoami")
	require.NoError(t, err)
	env.GUID = "w"
	reply, err := tbl.Invoke(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, `"session-1"`, reply.Result().String())

	env, err = protocol.NewCommand("Ping", map[string]int{"n": 1})
	require.NoError(t, err)
	_, err = tbl.Invoke(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, []string{"Pong"}, caller.names)
}

func TestClock(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tbl, err := dispatch.NewTableFrom("demo", clock{now: func() time.Time { return fixed }})
	require.NoError(t, err)

	assert.Equal(t, `"2026-01-02T03:04:05Z"`, invoke(t, tbl, "Now").Result().String())
}

func TestCoalesceTicks(t *testing.T) {
	tick := &protocol.Envelope{Name: tickName}
	other := &protocol.Envelope{Name: "Alert"}

	assert.False(t, coalesceTicks(tick, tick))
	assert.True(t, coalesceTicks(tick, other))
	assert.True(t, coalesceTicks(other, tick))
}

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{"2", `"quoted"`, "plain", "[1,2]", `{"a":1}`})
	require.NoError(t, err)
	require.Len(t, args, 5)

	env, err := protocol.NewCommand("X", args...)
	require.NoError(t, err)
	data, err := protocol.Encode(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"X","arguments":[2,"quoted","plain",[1,2],{"a":1}],"guid":""}`, string(data))
}

func TestApplyServeFlags(t *testing.T) {
	cmd := serveCmd(func() (*config.Config, error) { return config.New(), nil })
	require.NoError(t, cmd.Flags().Parse([]string{"--listen", ":9999", "--echo", "--etcd", "a:1,b:2"}))

	cfg := config.New()
	cfg.Link = "from-file"
	var f serveFlags
	f.listen, _ = cmd.Flags().GetString("listen")
	f.echo, _ = cmd.Flags().GetBool("echo")
	f.etcd, _ = cmd.Flags().GetStringSlice("etcd")
	applyServeFlags(cmd, cfg, f)

	assert.Equal(t, ":9999", cfg.Listen)
	assert.True(t, cfg.Echo)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Discovery.EtcdEndpoints)
	assert.Equal(t, "from-file", cfg.Link, "unset flags leave the file value")
}

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--short"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, version+"\n", out.String())
}
