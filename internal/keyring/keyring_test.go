package keyring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binancex/pkg/core"
)

func threeKeys() []*APIKey {
	return []*APIKey{
		{ID: "a", Key: "key-aaaaaaaa", Secret: "secret-a"},
		{ID: "b", Key: "key-bbbbbbbb", Secret: "secret-b"},
		{ID: "c", Key: "key-cccccccc", Secret: "secret-c"},
	}
}

func TestParseRotationStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    RotationStrategy
		wantErr bool
	}{
		{"", RotationRoundRobin, false},
		{"round_robin", RotationRoundRobin, false},
		{"on_error", RotationOnError, false},
		{"random", RotationRoundRobin, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRotationStrategy(tt.in)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyRing_Empty(t *testing.T) {
	ring := NewKeyRing(nil, RotationRoundRobin)

	assert.Nil(t, ring.Current())
	_, ok := ring.Credential()
	assert.False(t, ok)
	ring.Rotate()
	ring.OnError("missing", errors.New("boom"))
}

func TestKeyRing_RoundRobin(t *testing.T) {
	ring := NewKeyRing(threeKeys(), RotationRoundRobin)

	var ids []string
	for i := 0; i < 4; i++ {
		cred, ok := ring.Credential()
		require.True(t, ok)
		ids = append(ids, cred.ID)
	}

	assert.Equal(t, []string{"a", "b", "c", "a"}, ids)
}

func TestKeyRing_CredentialMarksUsed(t *testing.T) {
	ring := NewKeyRing(threeKeys(), RotationOnError)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ring.now = func() time.Time { return now }

	cred, ok := ring.Credential()

	require.True(t, ok)
	assert.Equal(t, core.Credentials{ID: "a", APIKey: "key-aaaaaaaa", SecretKey: "secret-a"}, cred)
	assert.Equal(t, now, ring.Current().LastUsed)
}

func TestKeyRing_OnErrorRotates(t *testing.T) {
	ring := NewKeyRing(threeKeys(), RotationOnError)

	cred, _ := ring.Credential()
	assert.Equal(t, "a", cred.ID)
	cred, _ = ring.Credential()
	assert.Equal(t, "a", cred.ID, "on_error keeps the key until it fails")

	ring.OnError("a", core.NewUpstreamError(401, -2015, "Invalid API-key"))

	cred, _ = ring.Credential()
	assert.Equal(t, "b", cred.ID)

	ring.OnError("a", errors.New("late failure"))
	cred, _ = ring.Credential()
	assert.Equal(t, "b", cred.ID, "errors for a non-current key do not rotate")
}

func TestKeyRing_OnErrorCountsUnderRoundRobin(t *testing.T) {
	ring := NewKeyRing(threeKeys(), RotationRoundRobin)

	ring.OnError("b", errors.New("rejected"))
	ring.OnError("b", errors.New("rejected"))

	ring.Rotate()
	assert.Equal(t, "b", ring.Current().ID)
	assert.Equal(t, 2, ring.Current().ErrorCount)
}

func TestKeyRing_DisableEnable(t *testing.T) {
	ring := NewKeyRing(threeKeys(), RotationRoundRobin)

	ring.Disable("a")
	ring.Disable("b")
	assert.Equal(t, "c", ring.Current().ID)

	ring.Disable("c")
	assert.Nil(t, ring.Current())

	ring.Enable("b")
	cred, ok := ring.Credential()
	assert.True(t, ok)
	assert.Equal(t, "b", cred.ID)
}

func TestKeyRing_AddRemove(t *testing.T) {
	ring := NewKeyRing(threeKeys(), RotationRoundRobin)

	ring.Add(&APIKey{ID: "a", Key: "dup"})
	ring.Add(&APIKey{ID: "d", Key: "key-dddddddd"})
	assert.Equal(t, 4, ring.Len())

	ring.Remove("a")
	ring.Remove("missing")
	assert.Equal(t, 3, ring.Len())
	assert.Equal(t, "b", ring.Current().ID)
}

func TestFromCredentials(t *testing.T) {
	ring := FromCredentials([]core.Credentials{
		{APIKey: "k1", SecretKey: "s1"},
		{ID: "named", APIKey: "k2", SecretKey: "s2"},
	}, RotationRoundRobin)

	first, _ := ring.Credential()
	second, _ := ring.Credential()
	assert.Equal(t, "key-0", first.ID)
	assert.Equal(t, "named", second.ID)
}

func TestKeyRing_Concurrent(t *testing.T) {
	ring := NewKeyRing(threeKeys(), RotationOnError)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = ring.Credential()
		}()
		go func() {
			defer wg.Done()
			ring.OnError("a", errors.New("rejected"))
		}()
	}
	wg.Wait()

	assert.NotNil(t, ring.Current())
}

func TestAPIKey_String(t *testing.T) {
	key := &APIKey{ID: "main", Key: "abcd1234efgh5678", Secret: "hidden"}

	assert.Equal(t, "APIKey{ID:main, Key:abcd****5678}", key.String())
}
