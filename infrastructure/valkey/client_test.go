package valkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey_JoinsPartsWithPrefix(t *testing.T) {
	c := &Client{keyPrefix: "azengage:"}

	assert.Equal(t, "azengage:lease:feed:42", c.Key("lease", "feed", "42"))
	assert.Equal(t, "azengage", c.Key())
}

func TestKey_NoPrefix(t *testing.T) {
	c := &Client{}
	assert.Equal(t, "ws:events", c.Key("ws", "events"))
}

func TestWrap_NormalizesPrefix(t *testing.T) {
	assert.Equal(t, "azengage:lease", Wrap(nil, "azengage").Key("lease"))
	assert.Equal(t, "azengage:lease", Wrap(nil, "azengage:").Key("lease"))
	assert.Equal(t, "lease", Wrap(nil, "").Key("lease"))
}
