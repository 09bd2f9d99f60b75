package history

import (
	"testing"
	"time"

	"github.com/bobmcallan/pricehistory/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveDuplicates_LaterRecordWins(t *testing.T) {
	e := newTestEngine(gapNow)
	h := models.NewHistory("AAPL")
	h.Records = []models.QuoteRecord{quote("2024-01-02", 100), quote("2024-01-02", 105)}

	assert.True(t, e.RemoveDuplicates(h))
	require.Len(t, h.Records, 1)
	assert.Equal(t, 105.0, h.Records[0].Close)
}

func TestRemoveDuplicates_DropsUndatedRecords(t *testing.T) {
	e := newTestEngine(gapNow)
	h := models.NewHistory("AAPL")
	h.Records = []models.QuoteRecord{{Close: 1}, quote("2024-01-02", 100), {Close: 2}, quote("2024-01-03", 101)}

	assert.True(t, e.RemoveDuplicates(h))
	require.Len(t, h.Records, 2)
	assert.Equal(t, day("2024-01-02"), h.Records[0].Date)
	assert.Equal(t, day("2024-01-03"), h.Records[1].Date)
}

func TestRemoveDuplicates_TripleKeepsLast(t *testing.T) {
	e := newTestEngine(gapNow)
	h := models.NewHistory("AAPL")
	h.Records = []models.QuoteRecord{
		quote("2024-01-02", 1), quote("2024-01-03", 2), quote("2024-01-03", 3), quote("2024-01-03", 4), quote("2024-01-04", 5),
	}

	assert.True(t, e.RemoveDuplicates(h))
	require.Len(t, h.Records, 3)
	assert.Equal(t, []float64{1, 4, 5}, []float64{h.Records[0].Close, h.Records[1].Close, h.Records[2].Close})
}

func TestRemoveDuplicates_RepairsOrder(t *testing.T) {
	e := newTestEngine(gapNow)
	h := models.NewHistory("AAPL")
	h.Records = []models.QuoteRecord{quote("2024-01-04", 3), quote("2024-01-02", 1), quote("2024-01-03", 2)}

	assert.True(t, e.RemoveDuplicates(h))
	require.Len(t, h.Records, 3)
	assertStrictlyAscending(t, h)
}

func TestRemoveDuplicates_CleanHistoryUnchanged(t *testing.T) {
	e := newTestEngine(gapNow)
	h := completeHistory(day("2024-01-02"), day("2024-03-28"))
	h.LastUpdate = day("2024-04-01")
	before := len(h.Records)

	assert.False(t, e.RemoveDuplicates(h))
	assert.Len(t, h.Records, before)
	assert.Equal(t, day("2024-04-01"), h.LastUpdate)
}

func TestRemoveDuplicates_KeepsLastUpdate(t *testing.T) {
	e := newTestEngine(time.Date(2024, 6, 7, 9, 0, 0, 0, time.UTC))
	h := models.NewHistory("AAPL")
	h.Records = []models.QuoteRecord{quote("2024-01-02", 100), quote("2024-01-02", 105)}
	h.LastUpdate = day("2024-01-02")

	assert.True(t, e.RemoveDuplicates(h))
	assert.Equal(t, day("2024-01-02"), h.LastUpdate)
	assert.True(t, e.NeedsUpdating(h))
}
