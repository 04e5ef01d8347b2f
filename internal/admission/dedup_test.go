package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeduplicator(t *testing.T) *Deduplicator {
	t.Helper()
	d, err := NewDeduplicator(DedupConfig{Enabled: true, Threshold: 0.85, Window: 5 * time.Second})
	require.NoError(t, err)
	return d
}

func TestDedupConfigValidate(t *testing.T) {
	assert.NoError(t, DedupConfig{Enabled: true, Threshold: 0.85, Window: 5 * time.Second}.Validate())
	assert.NoError(t, DedupConfig{}.Validate(), "disabled config needs no tuning")
	assert.Error(t, DedupConfig{Enabled: true, Threshold: 0, Window: 5 * time.Second}.Validate())
	assert.Error(t, DedupConfig{Enabled: true, Threshold: 1.1, Window: 5 * time.Second}.Validate())
	assert.Error(t, DedupConfig{Enabled: true, Threshold: 0.85}.Validate(), "missing window")
}

func TestDeduplicatorSuppressesNearRepeats(t *testing.T) {
	d := newTestDeduplicator(t)

	assert.False(t, d.IsDuplicate("sender-1", "Mika, hello!"), "first message is never a duplicate")
	assert.True(t, d.IsDuplicate("sender-1", "Mika, hello!!"), "near-identical repeat should be suppressed")
	assert.True(t, d.IsDuplicate("sender-1", "Mika, hello!"), "exact repeat should be suppressed")
}

func TestDeduplicatorAdmitsDistinctMessages(t *testing.T) {
	d := newTestDeduplicator(t)

	assert.False(t, d.IsDuplicate("sender-1", "千本桜的BPM是多少"))
	assert.False(t, d.IsDuplicate("sender-1", "Mika早上好"))
	assert.False(t, d.IsDuplicate("sender-1", "recommend me a hard song"))
}

func TestDeduplicatorIsolatesSenders(t *testing.T) {
	d := newTestDeduplicator(t)

	require.False(t, d.IsDuplicate("sender-1", "Mika, hello!"))
	assert.False(t, d.IsDuplicate("sender-2", "Mika, hello!"), "another sender repeating the text is fine")
}

func TestDeduplicatorRejectedRepeatIsNotRecorded(t *testing.T) {
	d := newTestDeduplicator(t)

	require.False(t, d.IsDuplicate("sender-1", "Mika, hello!"))
	require.True(t, d.IsDuplicate("sender-1", "Mika, hello!!"))
	require.True(t, d.IsDuplicate("sender-1", "Mika, hello!!"))

	d.mu.Lock()
	require.Len(t, d.recent["sender-1"], 1, "suppressed repeats must not extend the window")
	// Age the original past the window.
	d.recent["sender-1"][0].seen = time.Now().Add(-6 * time.Second)
	d.mu.Unlock()

	assert.False(t, d.IsDuplicate("sender-1", "Mika, hello!!"),
		"once the original expires the repeat is admissible even though copies were attempted meanwhile")
}

func TestDeduplicatorWindowExpiry(t *testing.T) {
	d := newTestDeduplicator(t)

	require.False(t, d.IsDuplicate("sender-1", "Mika, hello!"))

	d.mu.Lock()
	d.recent["sender-1"][0].seen = time.Now().Add(-6 * time.Second)
	d.mu.Unlock()

	assert.False(t, d.IsDuplicate("sender-1", "Mika, hello!"), "the same text is fine after the window passes")
}

func TestDeduplicatorDisabled(t *testing.T) {
	d, err := NewDeduplicator(DedupConfig{Enabled: false})
	require.NoError(t, err)

	assert.False(t, d.IsDuplicate("sender-1", "Mika, hello!"))
	assert.False(t, d.IsDuplicate("sender-1", "Mika, hello!"), "disabled deduplicator never suppresses")
	assert.Equal(t, 0, d.Tracked(), "disabled deduplicator keeps no state")
}

func TestDeduplicatorSweepDropsIdleSenders(t *testing.T) {
	d := newTestDeduplicator(t)

	require.False(t, d.IsDuplicate("sender-1", "Mika, hello!"))
	require.False(t, d.IsDuplicate("sender-2", "Mika早上好"))

	// Age sender-1's entries out and force the next call to sweep.
	d.mu.Lock()
	d.recent["sender-1"][0].seen = time.Now().Add(-6 * time.Second)
	d.lastSweep = time.Now().Add(-2 * time.Minute)
	d.mu.Unlock()

	require.False(t, d.IsDuplicate("sender-3", "what song is this"))

	d.mu.Lock()
	_, stale := d.recent["sender-1"]
	_, live := d.recent["sender-2"]
	d.mu.Unlock()

	assert.False(t, stale, "sender with only expired entries should be swept")
	assert.True(t, live, "sender with live entries survives the sweep")
	assert.Equal(t, 2, d.Tracked())
}

func TestDeduplicatorSweepIsThrottled(t *testing.T) {
	d := newTestDeduplicator(t)

	require.False(t, d.IsDuplicate("sender-1", "Mika, hello!"))

	d.mu.Lock()
	d.recent["sender-1"][0].seen = time.Now().Add(-6 * time.Second)
	d.lastSweep = time.Now()
	d.mu.Unlock()

	require.False(t, d.IsDuplicate("sender-2", "Mika早上好"))

	d.mu.Lock()
	_, ok := d.recent["sender-1"]
	d.mu.Unlock()
	assert.True(t, ok, "a recent sweep means the expired sender is kept until the next interval")
}
