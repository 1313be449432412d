package control

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProtocolError_Messages(t *testing.T) {
	tests := []struct {
		name string
		err  *ProtocolError
		want string
	}{
		{
			name: "timeout",
			err:  &ProtocolError{Kind: KindTimeout, Command: "IMAGE", Expected: 307200, SoFar: []byte{0, 0, 2, 3, 4, 5, 6, 7, 8, 9}, Transfer: 1, Elapsed: 3001 * time.Millisecond},
			want: "IMAGE: timeout after 3001ms after transfer 1 [ 10 bytes so far -> [0 0 2 3 4 5 6 7]]",
		},
		{
			name: "closed",
			err:  &ProtocolError{Kind: KindConnectionClosed, Command: "RESET", Expected: 4, SoFar: []byte{}, Cause: io.EOF},
			want: "RESET: unexpected closed connection expecting 4 bytes for transfer 0 [ 0 bytes so far -> []]",
		},
		{
			name: "io",
			err:  &ProtocolError{Kind: KindIOFailure, Command: "STATUS", Expected: 8, SoFar: []byte{}, Cause: errors.New("receive: refused")},
			want: "STATUS: receive: refused [ 0 bytes so far -> []]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestProtocolError_Matching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &ProtocolError{Kind: KindConnectionClosed, Command: "RESET", Cause: io.EOF})

	require.ErrorIs(t, err, ErrConnectionClosed)
	require.ErrorIs(t, err, io.EOF)
	require.NotErrorIs(t, err, ErrTimeout)
	require.NotErrorIs(t, err, ErrIOFailure)
	require.Equal(t, KindConnectionClosed, KindOf(err))
	require.Equal(t, Kind(0), KindOf(ErrQueueOverflow))
	require.Equal(t, "connection-closed", KindConnectionClosed.String())
	require.Equal(t, "unknown", Kind(0).String())
}

func TestResult_String(t *testing.T) {
	ok := succeeded([]byte("MYSTATUS-extra"))
	require.True(t, ok.Success())
	require.Equal(t, "Result SUCCESS: 14 bytes: [77 89 83 84 65 84 85 83]", ok.String())

	bad := failed(nil, ErrClosed)
	require.False(t, bad.Success())
	require.NotNil(t, bad.Data)
	require.Equal(t, "Result FAIL: 0 bytes: [] -> control: controller closed", bad.String())
}

func TestParseOverflowPolicy(t *testing.T) {
	for in, want := range map[string]OverflowPolicy{"": OverflowBlock, "block": OverflowBlock, " Reject ": OverflowReject, "fail": OverflowReject} {
		got, err := ParseOverflowPolicy(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseOverflowPolicy("drop-oldest")
	require.Error(t, err)
	require.Equal(t, "reject", OverflowReject.String())
}
