package simulator

import (
	"context"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startSim(t *testing.T, opts Options) *Simulator {
	t.Helper()
	s, err := New(opts)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Listen(ctx, "127.0.0.1:0"))
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, s.Close())
		select {
		case err := <-served:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("serve did not return")
		}
	})
	return s
}

func dialSim(t *testing.T, s *Simulator) *net.UDPConn {
	t.Helper()
	c, err := net.DialUDP("udp", nil, s.Addr().(*net.UDPAddr))
	require.NoError(t, err)
	require.NoError(t, c.SetReadBuffer(1<<20))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readDatagram(t *testing.T, c *net.UDPConn, wait time.Duration) ([]byte, error) {
	t.Helper()
	buf := make([]byte, 2048)
	require.NoError(t, c.SetReadDeadline(time.Now().Add(wait)))
	n, err := c.Read(buf)
	return buf[:n], err
}

func TestSimulator_ResetAndStatus(t *testing.T) {
	s := startSim(t, Options{})
	c := dialSim(t, s)

	_, err := c.Write([]byte("RESET"))
	require.NoError(t, err)
	got, err := readDatagram(t, c, time.Second)
	require.NoError(t, err)
	require.Equal(t, "ISOK", string(got))

	_, err = c.Write([]byte("STATUS\n"))
	require.NoError(t, err)
	got, err = readDatagram(t, c, time.Second)
	require.NoError(t, err)
	require.Equal(t, "MYSTATUS", string(got))

	st := s.Stats()
	require.EqualValues(t, 2, st.Received)
	require.EqualValues(t, 2, st.Replied)
}

func TestSimulator_ImageRows(t *testing.T) {
	s := startSim(t, Options{RateBytesPerSec: 32 << 20, Burst: 64 << 10})
	c := dialSim(t, s)

	_, err := c.Write([]byte("IMAGE"))
	require.NoError(t, err)
	want := ImageRowsPattern(ImageRows, ImageWidth)
	for n := 0; n < ImageRows; n++ {
		got, err := readDatagram(t, c, 2*time.Second)
		require.NoError(t, err, "row %d", n)
		require.Equal(t, want[n], got, "row %d", n)
	}
}

func TestSimulator_UnknownCommandIsSilent(t *testing.T) {
	s := startSim(t, Options{})
	c := dialSim(t, s)

	_, err := c.Write([]byte("ZOOM"))
	require.NoError(t, err)
	_, err = readDatagram(t, c, 100*time.Millisecond)
	require.Error(t, err)
	require.Eventually(t, func() bool { return s.Stats().Unknown == 1 }, time.Second, 5*time.Millisecond)
	require.Zero(t, s.Stats().Replied)
}

func TestSimulator_DropAll(t *testing.T) {
	s := startSim(t, Options{DropRate: 1})
	c := dialSim(t, s)

	for i := 0; i < 5; i++ {
		_, err := c.Write([]byte("RESET"))
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return s.Stats().Dropped == 5 }, time.Second, 5*time.Millisecond)
	_, err := readDatagram(t, c, 50*time.Millisecond)
	require.Error(t, err)
}

func TestSimulator_DropRateIsReproducible(t *testing.T) {
	count := func() uint64 {
		s := startSim(t, Options{DropRate: 0.5, Rand: rand.New(rand.NewSource(7))})
		c := dialSim(t, s)
		for i := 0; i < 40; i++ {
			_, err := c.Write([]byte("FILTER"))
			require.NoError(t, err)
		}
		require.Eventually(t, func() bool { return s.Stats().Received == 40 }, time.Second, 5*time.Millisecond)
		return s.Stats().Dropped
	}
	first := count()
	require.Equal(t, first, count())
	require.Greater(t, first, uint64(0))
	require.Less(t, first, uint64(40))
}

func TestSimulator_ReplyDelay(t *testing.T) {
	s := startSim(t, Options{ReplyDelay: 150 * time.Millisecond})
	c := dialSim(t, s)

	start := time.Now()
	_, err := c.Write([]byte("RESET"))
	require.NoError(t, err)
	got, err := readDatagram(t, c, time.Second)
	require.NoError(t, err)
	require.Equal(t, "ISOK", string(got))
	require.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}

func TestSimulator_CustomTable(t *testing.T) {
	s := startSim(t, Options{Table: map[string][][]byte{"PING": {[]byte("PO"), []byte("NG")}}})
	c := dialSim(t, s)

	_, err := c.Write([]byte("PING"))
	require.NoError(t, err)
	a, err := readDatagram(t, c, time.Second)
	require.NoError(t, err)
	b, err := readDatagram(t, c, time.Second)
	require.NoError(t, err)
	require.Equal(t, "PONG", string(a)+string(b))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{DropRate: 1.5})
	require.Error(t, err)
	_, err = New(Options{ReplyDelay: -time.Second})
	require.Error(t, err)

	s, err := New(Options{})
	require.NoError(t, err)
	require.Nil(t, s.Addr())
	require.Error(t, s.Serve(context.Background()))
	require.NoError(t, s.Close())
}

func TestImageRowsPattern(t *testing.T) {
	rows := ImageRowsPattern(ImageRows, ImageWidth)
	require.Len(t, rows, ImageRows)
	require.Equal(t, []byte{0, 0, 2, 3}, rows[0][:4])
	require.Equal(t, byte(4), rows[479][0])
	require.Equal(t, byte(79), rows[479][1])
	require.Equal(t, byte(200&0x7f), rows[12][200])

	flat := Flatten(rows)
	require.Len(t, flat, ImageRows*ImageWidth)
	require.Equal(t, rows[1], flat[ImageWidth:2*ImageWidth])
}
