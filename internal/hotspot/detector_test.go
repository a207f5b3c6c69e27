package hotspot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolwatch/internal/merge"
)

func TestSimilar_ReflexiveSymmetricNotTransitive(t *testing.T) {
	assert.True(t, Similar("新能源", "新能源"))

	assert.True(t, Similar("新能源", "新能源汽车"))
	assert.True(t, Similar("新能源汽车", "新能源"))

	// 汽车零部件 relates to 新能源汽车 through 汽车... no: substring check
	// on the full labels only. A label chain a⊂b, c⊂b does not force a~c.
	assert.True(t, Similar("汽车", "新能源汽车"))
	assert.False(t, Similar("汽车", "新能源"))
}

func hist() []Count {
	return []Count{
		{Date: "20260106", Label: "固态电池", Stocks: 8},
		{Date: "20260106", Label: "新能源", Stocks: 5},
		{Date: "20260106", Label: "other", Stocks: 3},
		{Date: "20260105", Label: "新能源汽车", Stocks: 6},
		{Date: "20260105", Label: "机器人", Stocks: 4},
		{Date: "20260102", Label: "机器人概念", Stocks: 2},
	}
}

func TestDetector_Novel(t *testing.T) {
	d := NewDetector(10, "other")

	novel, err := d.Novel(hist(), "20260106")
	require.NoError(t, err)

	// 新能源 is a substring of yesterday's 新能源汽车, so only 固态电池 is
	// new; the generic bucket never counts.
	assert.Equal(t, []string{"固态电池"}, novel)
}

func TestDetector_CatchAllBucketsNeverNovel(t *testing.T) {
	history := []Count{
		{Date: "20260106", Label: GenericBucket, Stocks: 3},
		{Date: "20260106", Label: "other", Stocks: 2},
		{Date: "20260106", Label: "固态电池", Stocks: 1},
		{Date: "20260105", Label: "机器人", Stocks: 4},
	}

	// Regardless of the configured extra label, the literal catch-all
	// buckets stay excluded: a reappearing 其他 is noise, not a theme.
	for _, generic := range []string{"", "涨停战法", GenericBucket} {
		d := NewDetector(10, generic)
		novel, err := d.Novel(history, "20260106")
		require.NoError(t, err)
		assert.Equal(t, []string{"固态电池"}, novel)
	}
}

func TestDetector_FirstSeenOrder(t *testing.T) {
	history := []Count{
		{Date: "20260106", Label: "b-theme", Stocks: 1},
		{Date: "20260106", Label: "a-theme", Stocks: 9},
		{Date: "20260105", Label: "unrelated", Stocks: 2},
	}
	d := NewDetector(10, "other")

	novel, err := d.Novel(history, "20260106")
	require.NoError(t, err)
	// Order of appearance, not magnitude.
	assert.Equal(t, []string{"b-theme", "a-theme"}, novel)
}

func TestDetector_LookbackWindowBounds(t *testing.T) {
	history := []Count{
		{Date: "20260106", Label: "theme-x", Stocks: 1},
		{Date: "20260105", Label: "filler", Stocks: 1},
		// theme-x last appeared beyond a 1-day lookback.
		{Date: "20260102", Label: "theme-x", Stocks: 1},
	}

	narrow := NewDetector(1, "other")
	novel, err := narrow.Novel(history, "20260106")
	require.NoError(t, err)
	assert.Equal(t, []string{"theme-x"}, novel)

	wide := NewDetector(10, "other")
	novel, err = wide.Novel(history, "20260106")
	require.NoError(t, err)
	assert.Empty(t, novel)
}

func TestDetector_StaleHistoryFails(t *testing.T) {
	d := NewDetector(10, "other")

	_, err := d.Novel(hist(), "20260107")
	assert.ErrorIs(t, err, ErrStaleHistory)

	_, err = d.Novel(nil, "20260107")
	assert.ErrorIs(t, err, ErrStaleHistory)
}

func TestCountLabels(t *testing.T) {
	rows := []merge.AnomalyRow{
		{Code: "1", Hotspot: "新能源"},
		{Code: "2", Hotspot: "机器人"},
		{Code: "3", Hotspot: "新能源"},
		{Code: "4", Hotspot: ""},
	}

	counts := CountLabels(rows, "20260106")
	require.Len(t, counts, 2)
	assert.Equal(t, Count{Date: "20260106", Label: "新能源", Stocks: 2}, counts[0])
	assert.Equal(t, Count{Date: "20260106", Label: "机器人", Stocks: 1}, counts[1])
}

func TestEmerging(t *testing.T) {
	rows := []merge.Row{
		{Hotspot: "固态电池"},
		{Hotspot: "机器人"},
		{Hotspot: "固态电池"},
	}

	got := Emerging(rows, []string{"固态电池"})
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, "固态电池", r.Hotspot)
	}
}

func TestCanonicalize_LatestLabelWins(t *testing.T) {
	history := []Count{
		{Date: "20260106", Label: "新能源汽车", Stocks: 3},
		{Date: "20260103", Label: "新能源", Stocks: 5},
		{Date: "20260102", Label: "机器人", Stocks: 2},
	}

	mapping := Canonicalize(history)
	assert.Equal(t, "新能源汽车", mapping["新能源"])
	assert.Equal(t, "新能源汽车", mapping["新能源汽车"])
	// Singleton clusters are left unmapped.
	_, ok := mapping["机器人"]
	assert.False(t, ok)
}

func TestHistory_AppendAndLoad(t *testing.T) {
	h := NewHistory(t.TempDir() + "/hotspot_history.csv")

	require.NoError(t, h.Append("20260105", []Count{{Date: "20260105", Label: "机器人", Stocks: 4}}))
	require.NoError(t, h.Append("20260106", []Count{{Date: "20260106", Label: "新能源", Stocks: 5}}))

	counts, err := h.Load()
	require.NoError(t, err)
	require.Len(t, counts, 2)
	// Newest first.
	assert.Equal(t, "20260106", counts[0].Date)
	assert.Equal(t, "20260105", counts[1].Date)
}

func TestHistory_AppendSkipsExistingDate(t *testing.T) {
	h := NewHistory(t.TempDir() + "/hotspot_history.csv")

	require.NoError(t, h.Append("20260106", []Count{{Date: "20260106", Label: "新能源", Stocks: 5}}))
	require.NoError(t, h.Append("20260106", []Count{{Date: "20260106", Label: "duplicate", Stocks: 1}}))

	counts, err := h.Load()
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "新能源", counts[0].Label)
}

func TestHistory_LoadMissingFile(t *testing.T) {
	h := NewHistory(t.TempDir() + "/nope.csv")
	counts, err := h.Load()
	require.NoError(t, err)
	assert.Empty(t, counts)
}
