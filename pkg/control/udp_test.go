package control

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"camlink/pkg/command"
	"camlink/pkg/simulator"
	"camlink/pkg/transport/udp"
)

func startCamera(t *testing.T, opts simulator.Options) string {
	t.Helper()
	sim, err := simulator.New(opts)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sim.Listen(ctx, "127.0.0.1:0"))
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = sim.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = sim.Close()
		<-served
	})
	return sim.Addr().String()
}

func newUDPController(t *testing.T, addr string, opts Options) *Controller {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	c, err := New(context.Background(), udp.New(udp.Options{}), addr, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestUDP_ResetRoundTrip(t *testing.T) {
	c := newUDPController(t, startCamera(t, simulator.Options{}), Options{})

	r := c.Submit(context.Background(), command.MustNew("RESET", 1, 4), 3*time.Second)
	require.True(t, r.Success(), r.String())
	require.Equal(t, []byte("ISOK"), r.Data)
	require.Equal(t, "Result SUCCESS: 4 bytes: [73 83 79 75]", r.String())
}

func TestUDP_ImageReassembly(t *testing.T) {
	addr := startCamera(t, simulator.Options{RateBytesPerSec: 32 << 20, Burst: 64 << 10})
	c := newUDPController(t, addr, Options{})

	img := command.MustNew("IMAGE", simulator.ImageRows, simulator.ImageWidth)
	want := simulator.Flatten(simulator.ImageRowsPattern(simulator.ImageRows, simulator.ImageWidth))
	for i := 0; i < 2; i++ {
		r := c.Submit(context.Background(), img, 3*time.Second)
		require.True(t, r.Success(), r.String())
		require.Len(t, r.Data, 480*640)
		require.Equal(t, want, r.Data)
	}
}

func TestUDP_UnansweredCommandTimesOut(t *testing.T) {
	c := newUDPController(t, startCamera(t, simulator.Options{}), Options{})

	start := time.Now()
	r := c.Submit(context.Background(), command.MustNew("ZOOM", 1, 4), 200*time.Millisecond)
	took := time.Since(start)

	require.ErrorIs(t, r.Err, ErrTimeout)
	require.Empty(t, r.Data)
	require.GreaterOrEqual(t, took, 200*time.Millisecond)
	require.Less(t, took, 700*time.Millisecond)

	// a timed out exchange leaves the controller usable
	r = c.Submit(context.Background(), command.MustNew("STATUS", 1, 8), time.Second)
	require.Equal(t, "MYSTATUS", string(r.Data))
}

func TestUDP_DroppedRequestTimesOut(t *testing.T) {
	c := newUDPController(t, startCamera(t, simulator.Options{DropRate: 1}), Options{})

	r := c.Submit(context.Background(), command.MustNew("RESET", 1, 4), 100*time.Millisecond)
	require.ErrorIs(t, r.Err, ErrTimeout)
	require.Contains(t, r.String(), "Result FAIL: 0 bytes: [] -> RESET: timeout after")
}

func TestUDP_LateReplyDoesNotLeakIntoNextExchange(t *testing.T) {
	addr := startCamera(t, simulator.Options{ReplyDelay: 150 * time.Millisecond})
	c := newUDPController(t, addr, Options{})

	r := c.Submit(context.Background(), command.MustNew("STATUS", 1, 8), 50*time.Millisecond)
	require.ErrorIs(t, r.Err, ErrTimeout)

	// MYSTATUS lands in the socket buffer while nothing is in flight
	time.Sleep(250 * time.Millisecond)

	r = c.Submit(context.Background(), command.MustNew("RESET", 1, 4), time.Second)
	require.True(t, r.Success(), r.String())
	require.Equal(t, "ISOK", string(r.Data))
}

func TestUDP_PartialImageOnTimeout(t *testing.T) {
	// slow enough that only part of the image fits in the window
	addr := startCamera(t, simulator.Options{RateBytesPerSec: 64 << 10, Burst: 640})
	c := newUDPController(t, addr, Options{})

	img := command.MustNew("IMAGE", simulator.ImageRows, simulator.ImageWidth)
	r := c.Submit(context.Background(), img, 200*time.Millisecond)
	require.ErrorIs(t, r.Err, ErrTimeout)
	require.NotEmpty(t, r.Data)
	require.Less(t, len(r.Data), img.Total())
	require.Zero(t, len(r.Data)%simulator.ImageWidth)

	want := simulator.Flatten(simulator.ImageRowsPattern(simulator.ImageRows, simulator.ImageWidth))
	require.Equal(t, want[:len(r.Data)], r.Data)
}

func TestUDP_ConcurrentCallersGetTheirOwnReplies(t *testing.T) {
	c := newUDPController(t, startCamera(t, simulator.Options{}), Options{})

	reset := command.MustNew("RESET", 1, 4)
	status := command.MustNew("STATUS", 1, 8)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 8; i++ {
				cmd, want := reset, "ISOK"
				if (g+i)%2 == 1 {
					cmd, want = status, "MYSTATUS"
				}
				r := c.Submit(context.Background(), cmd, 2*time.Second)
				if !r.Success() || string(r.Data) != want {
					errs <- fmt.Errorf("caller %d #%d %s: %s", g, i, cmd.Name(), r)
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	require.Equal(t, uint64(64), c.Stats().Succeeded)
}

func TestUDP_DialFailure(t *testing.T) {
	_, err := New(context.Background(), udp.New(udp.Options{}), "127.0.0.1:notaport", Options{})
	require.Error(t, err)
}
