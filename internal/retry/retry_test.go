package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifier_TransientAndPermanent(t *testing.T) {
	c := NewClassifierFromPatterns(DefaultTransientPatterns, DefaultPermanentPatterns)
	assert.Equal(t, ClassificationTransient, c.Classify("dial tcp: i/o timeout"))
	assert.Equal(t, ClassificationTransient, c.Classify("write: broken pipe"))
	assert.Equal(t, ClassificationPermanent, c.Classify("open /etc/shadow: permission denied"))
	assert.Equal(t, ClassificationUnknown, c.Classify("something else entirely"))
}

func TestParseClassifierScript(t *testing.T) {
	src := `
pattern_rule(patterns=["econnreset"], classification="transient")
pattern_rule(patterns=["no such file"], classification="permanent")
`
	c, err := ParseClassifierScript("inline", src)
	require.NoError(t, err)
	assert.Equal(t, ClassificationTransient, c.Classify("ECONNRESET by peer"))
	assert.Equal(t, ClassificationPermanent, c.Classify("open x: no such file or directory"))
}

func TestParseClassifierScript_RejectsBadClassification(t *testing.T) {
	_, err := ParseClassifierScript("inline", `pattern_rule(patterns=["x"], classification="maybe")`)
	require.Error(t, err)
}

func TestPolicy_Do_RetriesTransientThenSucceeds(t *testing.T) {
	p := NewDefaultPolicy()
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 5 * time.Millisecond

	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestPolicy_Do_PermanentShortCircuits(t *testing.T) {
	p := NewDefaultPolicy()
	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		return errors.New("permission denied")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestPolicy_Do_ExhaustsRetries(t *testing.T) {
	p := NewDefaultPolicy()
	p.MaxRetries = 2
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 2 * time.Millisecond
	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		return errors.New("i/o timeout")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts) // initial + 2 retries
}
