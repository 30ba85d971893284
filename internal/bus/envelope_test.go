package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	orig := &Envelope{
		DestNodeID:  "node1",
		DestAppID:   AppIgnition,
		SenderAppID: AppBroker,
		Type:        MsgSetLinkStatusReq,
		Payload:     []byte("link-node0-node1"),
	}

	raw, err := orig.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalEnvelope(raw)
	require.NoError(t, err)
	require.Equal(t, orig.DestNodeID, got.DestNodeID)
	require.Equal(t, orig.DestAppID, got.DestAppID)
	require.Equal(t, orig.SenderAppID, got.SenderAppID)
	require.Equal(t, orig.Type, got.Type)
	require.Equal(t, orig.Payload, got.Payload)
}

func TestEnvelopeCompressRoundTrip(t *testing.T) {
	e := &Envelope{Payload: []byte("payload body to compress")}
	require.NoError(t, e.CompressPayload())
	require.True(t, e.Compressed)
	require.NoError(t, e.DecompressPayload())
	require.False(t, e.Compressed)
	require.Equal(t, "payload body to compress", string(e.Payload))
}

func TestParseZapHandshake(t *testing.T) {
	key := "id"
	val := []byte("10.0.0.1:7007")
	blob := make([]byte, 0, 1+len(key)+4+len(val))
	blob = append(blob, byte(len(key)))
	blob = append(blob, key...)
	blob = append(blob, 0, 0, 0, byte(len(val)))
	blob = append(blob, val...)

	got, err := ParseZapHandshake(blob)
	require.NoError(t, err)
	require.Equal(t, key, got.Key)
	require.Equal(t, val, got.Value)
}

func TestParseZapHandshakeTruncated(t *testing.T) {
	_, err := ParseZapHandshake([]byte{5, 'a', 'b'})
	require.ErrorIs(t, err, ErrHandshakeTooShort)
}
