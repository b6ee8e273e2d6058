package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePureHandler struct{ abi string }

func (f fakePureHandler) ABI() string { return f.abi }
func (f fakePureHandler) Handle(ctx context.Context, hctx *PureHandlerContext) error { return nil }

type fakeSideEffectHandler struct{ abi string }

func (f fakeSideEffectHandler) ABI() string { return f.abi }
func (f fakeSideEffectHandler) Handle(ctx context.Context, hctx *SideEffectHandlerContext) error {
	return nil
}

func TestRegistry_PureLookup(t *testing.T) {
	r := NewRegistry()
	h := fakePureHandler{abi: "Transfer(address,address,uint256)"}
	r.RegisterPure(h)

	found, ok := r.Pure("Transfer(address,address,uint256)")
	require.True(t, ok)
	require.Equal(t, h, found)

	_, ok = r.Pure("Unknown(uint256)")
	require.False(t, ok)
}

func TestRegistry_SideEffectLookup(t *testing.T) {
	r := NewRegistry()
	h := fakeSideEffectHandler{abi: "Approval(address,address,uint256)"}
	r.RegisterSideEffect(h)

	found, ok := r.SideEffect("Approval(address,address,uint256)")
	require.True(t, ok)
	require.Equal(t, h, found)

	_, ok = r.SideEffect("Unknown(uint256)")
	require.False(t, ok)
}

func TestRegistry_PureAndSideEffectAreIndependentNamespaces(t *testing.T) {
	r := NewRegistry()
	r.RegisterPure(fakePureHandler{abi: "Transfer(address,address,uint256)"})

	_, ok := r.SideEffect("Transfer(address,address,uint256)")
	require.False(t, ok)
}
