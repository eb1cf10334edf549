package chain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/feamster/pedalboard-effects/internal/effect"
	"github.com/feamster/pedalboard-effects/internal/errors"
)

func mustEffect(t *testing.T, kind effect.Kind) *effect.Effect {
	t.Helper()
	e, err := effect.New(kind, nil)
	require.NoError(t, err)
	return e
}

func TestNew(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		c, err := New("Lead")
		require.NoError(t, err)
		require.Equal(t, "Lead", c.Name())
		require.Equal(t, 0, c.Len())
		require.False(t, c.Active())
	})

	t.Run("NameLength", func(t *testing.T) {
		_, err := New("")
		require.Error(t, err)

		long := make([]byte, 51)
		for i := range long {
			long[i] = 'x'
		}
		_, err = New(string(long))
		require.Error(t, err)
	})

	t.Run("NameLengthCountsCharacters", func(t *testing.T) {
		// 30 characters but 60 bytes
		c, err := New(strings.Repeat("é", 30))
		require.NoError(t, err)
		require.Equal(t, strings.Repeat("é", 30), c.Name())

		_, err = New(strings.Repeat("é", 51))
		require.Error(t, err)
	})
}

func TestAddEffect(t *testing.T) {
	t.Run("PositionsContiguous", func(t *testing.T) {
		c, err := New("Rig")
		require.NoError(t, err)

		for i := 0; i < 4; i++ {
			require.NoError(t, c.AddEffect(mustEffect(t, effect.Boost)))
		}
		for i, e := range c.Effects() {
			require.Equal(t, i, e.Position())
		}
	})

	t.Run("CapacityExceeded", func(t *testing.T) {
		c, err := New("Full")
		require.NoError(t, err)

		for i := 0; i < MaxEffects; i++ {
			require.NoError(t, c.AddEffect(mustEffect(t, effect.Reverb)))
		}
		err = c.AddEffect(mustEffect(t, effect.Reverb))
		require.ErrorIs(t, err, errors.ErrCapacityExceeded)
		require.Equal(t, MaxEffects, c.Len())
	})

	t.Run("DuplicateInstance", func(t *testing.T) {
		c, err := New("Rig")
		require.NoError(t, err)

		e := mustEffect(t, effect.Delay)
		require.NoError(t, c.AddEffect(e))
		require.ErrorIs(t, c.AddEffect(e), errors.ErrDuplicateEffect)
		require.Equal(t, 1, c.Len())
	})
}

func TestRemoveEffect(t *testing.T) {
	c, err := New("Rig")
	require.NoError(t, err)

	a := mustEffect(t, effect.Boost)
	b := mustEffect(t, effect.Distortion)
	d := mustEffect(t, effect.Delay)
	require.NoError(t, c.AddEffect(a))
	require.NoError(t, c.AddEffect(b))
	require.NoError(t, c.AddEffect(d))

	t.Run("RenumbersRemainder", func(t *testing.T) {
		require.True(t, c.RemoveEffect(b.ID()))
		effects := c.Effects()
		require.Len(t, effects, 2)
		require.Equal(t, a.ID(), effects[0].ID())
		require.Equal(t, d.ID(), effects[1].ID())
		require.Equal(t, 0, effects[0].Position())
		require.Equal(t, 1, effects[1].Position())
	})

	t.Run("UnknownID", func(t *testing.T) {
		require.False(t, c.RemoveEffect(uuid.New()))
	})
}

func TestReorderEffects(t *testing.T) {
	newChain := func(t *testing.T) (*Chain, []*effect.Effect) {
		c, err := New("Rig")
		require.NoError(t, err)
		var effects []*effect.Effect
		for _, kind := range []effect.Kind{effect.Boost, effect.Distortion, effect.Delay} {
			e := mustEffect(t, kind)
			require.NoError(t, c.AddEffect(e))
			effects = append(effects, e)
		}
		return c, effects
	}

	t.Run("Permutation", func(t *testing.T) {
		c, effects := newChain(t)
		order := []uuid.UUID{effects[2].ID(), effects[0].ID(), effects[1].ID()}
		require.NoError(t, c.ReorderEffects(order))

		got := c.Effects()
		require.Len(t, got, 3)
		for i, id := range order {
			require.Equal(t, id, got[i].ID())
			require.Equal(t, i, got[i].Position())
		}
	})

	t.Run("MissingID", func(t *testing.T) {
		c, effects := newChain(t)
		err := c.ReorderEffects([]uuid.UUID{effects[0].ID(), effects[1].ID()})
		require.ErrorIs(t, err, errors.ErrOrderMismatch)
	})

	t.Run("ForeignID", func(t *testing.T) {
		c, effects := newChain(t)
		err := c.ReorderEffects([]uuid.UUID{effects[0].ID(), effects[1].ID(), uuid.New()})
		require.ErrorIs(t, err, errors.ErrOrderMismatch)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		c, effects := newChain(t)
		err := c.ReorderEffects([]uuid.UUID{effects[0].ID(), effects[0].ID(), effects[1].ID()})
		require.ErrorIs(t, err, errors.ErrOrderMismatch)
	})
}

func TestLookupsAndCounts(t *testing.T) {
	c, err := New("Rig")
	require.NoError(t, err)

	boost := mustEffect(t, effect.Boost)
	delay := mustEffect(t, effect.Delay)
	delay2 := mustEffect(t, effect.Delay)
	require.NoError(t, c.AddEffect(boost))
	require.NoError(t, c.AddEffect(delay))
	require.NoError(t, c.AddEffect(delay2))
	delay.SetBypassed(true)

	require.Equal(t, boost, c.EffectByID(boost.ID()))
	require.Nil(t, c.EffectByID(uuid.New()))
	require.Len(t, c.EffectsByKind(effect.Delay), 2)
	require.True(t, c.HasKind(effect.Boost))
	require.False(t, c.HasKind(effect.Reverb))
	require.Equal(t, 3, c.Len())
	require.Equal(t, 2, c.ActiveEffectCount())
}

func TestActivation(t *testing.T) {
	c, err := New("Rig")
	require.NoError(t, err)
	before := c.ModifiedAt()

	c.Activate()
	require.True(t, c.Active())
	require.False(t, c.ModifiedAt().Before(before))

	c.Deactivate()
	require.False(t, c.Active())
}

func TestClearEffects(t *testing.T) {
	c, err := New("Rig")
	require.NoError(t, err)
	require.NoError(t, c.AddEffect(mustEffect(t, effect.Boost)))

	c.ClearEffects()
	require.Equal(t, 0, c.Len())
}

func TestCopy(t *testing.T) {
	c, err := New("Rig")
	require.NoError(t, err)
	e, err := effect.New(effect.Boost, map[string]any{"gain_db": 6.0})
	require.NoError(t, err)
	require.NoError(t, c.AddEffect(e))

	t.Run("DefaultName", func(t *testing.T) {
		clone, err := c.Copy("")
		require.NoError(t, err)
		require.Equal(t, "Rig (Copy)", clone.Name())
		require.NotEqual(t, c.ID(), clone.ID())
		require.Equal(t, 1, clone.Len())

		// deep copy with new effect identities
		original := c.Effects()[0]
		copied := clone.Effects()[0]
		require.NotEqual(t, original.ID(), copied.ID())
		require.Equal(t, original.Parameters(), copied.Parameters())
	})

	t.Run("ExplicitName", func(t *testing.T) {
		clone, err := c.Copy("Backup")
		require.NoError(t, err)
		require.Equal(t, "Backup", clone.Name())
	})
}

func TestRename(t *testing.T) {
	c, err := New("Rig")
	require.NoError(t, err)

	require.NoError(t, c.Rename("Stage Rig"))
	require.Equal(t, "Stage Rig", c.Name())
	require.Error(t, c.Rename(""))
}

func TestSerializationRoundTrip(t *testing.T) {
	c, err := New("Studio")
	require.NoError(t, err)

	boost, err := effect.New(effect.Boost, map[string]any{"gain_db": 6.0, "tone": 0.6})
	require.NoError(t, err)
	dist, err := effect.New(effect.Distortion, map[string]any{"drive_db": 15.0})
	require.NoError(t, err)
	dist.SetBypassed(true)
	require.NoError(t, c.AddEffect(boost))
	require.NoError(t, c.AddEffect(dist))
	c.Activate()

	data, err := c.MarshalJSON()
	require.NoError(t, err)

	restored, err := Deserialize(data)
	require.NoError(t, err)
	require.Equal(t, c.ID(), restored.ID())
	require.Equal(t, "Studio", restored.Name())
	require.True(t, restored.Active())

	want := c.Effects()
	got := restored.Effects()
	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].Kind(), got[i].Kind())
		require.Equal(t, want[i].Parameters(), got[i].Parameters())
		require.Equal(t, want[i].Bypassed(), got[i].Bypassed())
		require.Equal(t, i, got[i].Position())
	}
}
