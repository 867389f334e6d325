package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row map[string]string

func (r row) FieldValue(field string) (string, bool) {
	v, ok := r[field]
	return v, ok
}

func TestFilter_Constructors(t *testing.T) {
	t.Run("and drops empty filters", func(t *testing.T) {
		f := And(All(), Eq("status", "Open"), All())
		assert.Equal(t, Eq("status", "Open"), f)
	})

	t.Run("and with none is none", func(t *testing.T) {
		assert.True(t, And(Eq("a", "b"), None()).IsNone())
	})

	t.Run("and of nothing is empty", func(t *testing.T) {
		assert.True(t, And().IsEmpty())
	})

	t.Run("or with empty is empty", func(t *testing.T) {
		assert.True(t, Or(Eq("a", "b"), All()).IsEmpty())
	})

	t.Run("or of none is none", func(t *testing.T) {
		assert.True(t, Or(None(), None()).IsNone())
	})

	t.Run("in with no values is none", func(t *testing.T) {
		assert.True(t, In("status").IsNone())
	})
}

func TestFilter_Matches(t *testing.T) {
	r := row{"hierarchyString": "ITW>Automotive OEM>PlantX", "status": "Open"}

	assert.True(t, All().Matches(r))
	assert.False(t, None().Matches(r))
	assert.True(t, Eq("status", "Open").Matches(r))
	assert.False(t, Eq("status", "Closed").Matches(r))
	assert.True(t, BeginsWith("hierarchyString", "ITW>Automotive OEM>").Matches(r))
	assert.False(t, BeginsWith("hierarchyString", "ITW>Other>").Matches(r))
	assert.True(t, In("status", "Draft", "Open").Matches(r))
	assert.False(t, Eq("missing", "").Matches(r))
	assert.True(t, And(Eq("status", "Open"), BeginsWith("hierarchyString", "ITW>")).Matches(r))
	assert.False(t, And(Eq("status", "Open"), BeginsWith("hierarchyString", "X>")).Matches(r))
	assert.True(t, Or(Eq("status", "Closed"), BeginsWith("hierarchyString", "ITW>")).Matches(r))
}

func TestFilter_MarshalJSON(t *testing.T) {
	t.Run("begins with", func(t *testing.T) {
		data, err := json.Marshal(BeginsWith("hierarchyString", "ITW>Automotive OEM>"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"hierarchyString":{"beginsWith":"ITW>Automotive OEM>"}}`, string(data))
	})

	t.Run("empty", func(t *testing.T) {
		data, err := json.Marshal(All())
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(data))
	})

	t.Run("in expands to or", func(t *testing.T) {
		f := And(Eq("hierarchyString", "ITW>P"), In("status", "Draft", "Open"))
		data, err := json.Marshal(f)
		require.NoError(t, err)
		assert.JSONEq(t, `{"and":[
			{"hierarchyString":{"eq":"ITW>P"}},
			{"or":[{"status":{"eq":"Draft"}},{"status":{"eq":"Open"}}]}
		]}`, string(data))
	})

	t.Run("none cannot be rendered", func(t *testing.T) {
		_, err := json.Marshal(None())
		assert.ErrorIs(t, err, ErrUnsatisfiable)
	})
}

func TestFilter_SQL(t *testing.T) {
	columns := map[string]string{"hierarchyString": "hierarchy_string", "status": "status"}

	t.Run("prefix and status list", func(t *testing.T) {
		f := And(BeginsWith("hierarchyString", "ITW>A_B>"), In("status", "Draft", "Open"))
		clause, args, err := f.SQL(columns, 3)
		require.NoError(t, err)
		assert.Equal(t, `(hierarchy_string LIKE $3 ESCAPE '\' AND status IN ($4, $5))`, clause)
		assert.Equal(t, []interface{}{`ITW>A\_B>%`, "Draft", "Open"}, args)
	})

	t.Run("empty and none", func(t *testing.T) {
		clause, args, err := All().SQL(columns, 1)
		require.NoError(t, err)
		assert.Equal(t, "1=1", clause)
		assert.Empty(t, args)

		clause, _, err = None().SQL(columns, 1)
		require.NoError(t, err)
		assert.Equal(t, "1=0", clause)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, _, err := Eq("nope", "x").SQL(columns, 1)
		assert.Error(t, err)
	})
}
