package requests

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetRequestId(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	id := GetRequestId(req)
	require.Len(t, id, 8)
	require.Equal(t, id, GetRequestId(req), "the id is stable for the request")

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-Id", "from-upstream")
	require.Equal(t, "from-upstream", GetRequestId(req))
}

func TestIdentity(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	require.False(t, ok)

	_, ok = IdentityFrom(WithIdentity(context.Background(), Identity{}))
	require.False(t, ok, "an identity needs a user")

	id, ok := IdentityFrom(WithIdentity(context.Background(), Identity{UserID: "u1", Role: "USER"}))
	require.True(t, ok)
	require.Equal(t, Identity{UserID: "u1", Role: "USER"}, id)
}
