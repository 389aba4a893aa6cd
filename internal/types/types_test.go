package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBanActive(t *testing.T) {
	now := time.Now()

	t.Run("no expiry", func(t *testing.T) {
		b := Ban{SessionId: "s1"}
		assert.True(t, b.Active(now), "expected a ban without expiry to stay in force")
	})

	t.Run("future expiry", func(t *testing.T) {
		exp := now.Add(time.Hour)
		b := Ban{SessionId: "s1", ExpiresAt: &exp}
		assert.True(t, b.Active(now), "expected an unexpired ban to be active")
	})

	t.Run("past expiry", func(t *testing.T) {
		exp := now.Add(-time.Hour)
		b := Ban{SessionId: "s1", ExpiresAt: &exp}
		assert.False(t, b.Active(now), "expected an expired ban to be inactive")
	})
}
