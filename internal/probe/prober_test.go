package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sixem/databendd/internal/codec"
)

func TestProber_FrameMap(t *testing.T) {
	fake := writeFakeFFprobe(t)
	resolver := &codec.Resolver{
		Overrides: map[codec.Role]string{codec.RoleProbe: fake},
	}
	p := NewProber(resolver)

	result, err := p.FrameMap(context.Background(), "/in.mp4")
	require.NoError(t, err)

	require.Len(t, result.Times, 3)
	assert.InDelta(t, 0.0, result.Times[0], 1e-9)
	assert.InDelta(t, 0.04, result.Times[1], 1e-9)
	assert.InDelta(t, 0.08, result.Times[2], 1e-9)

	require.Len(t, result.KeyframeTimes, 1)
	assert.InDelta(t, 0.0, result.KeyframeTimes[0], 1e-9)

	require.NotNil(t, result.DurationSec)
	assert.InDelta(t, 0.12, *result.DurationSec, 1e-9)
}

func TestProber_FrameMapResolveFailure(t *testing.T) {
	resolver := &codec.Resolver{}
	p := NewProber(resolver)

	_, err := p.FrameMap(context.Background(), "/in.mp4")
	assert.Error(t, err)
}
