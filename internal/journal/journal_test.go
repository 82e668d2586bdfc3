package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilJournalDiscards(t *testing.T) {
	var j *Journal
	require.NoError(t, j.Write(Record{Event: "bid_submitted"}))
	require.NoError(t, j.Close())

	assert.Nil(t, Open(""))
	assert.Nil(t, Open("   "))
}

func TestWriteAppendsOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.jsonl")
	j := Open(path)
	require.NotNil(t, j)

	require.NoError(t, j.Write(Record{Event: "bid_submitted", TxHash: "0xabc", URL: "https://example.org/a"}))
	require.NoError(t, j.Write(Record{Event: "pop_too_early"}))
	require.NoError(t, j.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var recs []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		recs = append(recs, rec)
	}
	require.NoError(t, sc.Err())

	require.Len(t, recs, 2)
	assert.Equal(t, "bid_submitted", recs[0].Event)
	assert.Equal(t, "0xabc", recs[0].TxHash)
	assert.NotZero(t, recs[0].TsMs)
	assert.Equal(t, "pop_too_early", recs[1].Event)
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tx.jsonl")
	j := Open(path)
	require.NoError(t, j.Write(Record{Event: "pop_sent"}))
	require.NoError(t, j.Close())

	_, err := os.Stat(path)
	require.NoError(t, err)
}
