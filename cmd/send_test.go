package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunSendWaitsForFinalResult(t *testing.T) {
	res, err := runSend(simSettings(), []byte("AT+CSQ\r"), time.Second)
	require.NoError(t, err)

	require.Equal(t, 7, res.sent)
	require.True(t, res.complete)
	require.Contains(t, string(res.reply), "+CSQ: 23,99")
	require.Contains(t, string(res.reply), "\r\nOK\r\n")
	require.Equal(t, uint64(7), res.stats.BytesSent)
	require.Equal(t, uint64(len(res.reply)), res.stats.BytesReceived)
}

func TestRunSendWithoutWait(t *testing.T) {
	res, err := runSend(simSettings(), []byte("AT\r"), 0)
	require.NoError(t, err)
	require.Equal(t, 3, res.sent)
	require.False(t, res.complete)
}

func TestRunSendIncompleteReply(t *testing.T) {
	// Without a CR the sim modem only echoes, so no final result arrives.
	res, err := runSend(simSettings(), []byte("AT"), 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, res.complete)
}

func TestRunSendBadBackend(t *testing.T) {
	s := simSettings()
	s.Backend = "nope"
	res, err := runSend(s, []byte("AT\r"), 0)
	require.Error(t, err)
	require.Error(t, res.sendErr)
}
