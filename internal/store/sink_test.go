package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimprobe/internal/model"
)

func testRecord(name string, result bool) *model.VerdictRecord {
	return model.NewVerdictRecord(
		model.Axes{"einrichtung", "software"},
		model.Combination{name, "Moodle"},
		[]model.URLVerdict{{URL: "https://" + name + ".example", Result: result, Reasoning: strings.Repeat("x", 4096)}},
	)
}

func TestJSONLSink_ConcurrentAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonlines")
	sink, err := OpenJSONL(path, false)
	require.NoError(t, err)

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, sink.Append(testRecord(fmt.Sprintf("uni-%d", i), i%2 == 0)))
		}(i)
	}
	wg.Wait()
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, n)

	seen := make(map[string]bool)
	for _, line := range lines {
		var obj map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &obj), "line must parse on its own")
		seen[obj["einrichtung"].(string)] = true
	}
	assert.Len(t, seen, n)
}

func TestJSONLSink_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "results.jsonlines")

	sink, err := OpenJSONL(path, true)
	require.NoError(t, err)
	require.NoError(t, sink.Append(testRecord("a", true)))
	require.NoError(t, sink.Close())

	sink, err = OpenJSONL(path, true)
	require.NoError(t, err)
	require.NoError(t, sink.Append(testRecord("b", false)))
	require.NoError(t, sink.Close())

	var names []string
	err = Scan(path, func(lineNo int, obj map[string]json.RawMessage, err error) {
		require.NoError(t, err)
		var name string
		require.NoError(t, json.Unmarshal(obj["einrichtung"], &name))
		names = append(names, name)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestJSONLSink_AppendAfterTornLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonlines")
	torn := `{"einrichtung":"a","software":"Moodle","result":true}` + "\n" + `{"einrichtung":"b","soft`
	require.NoError(t, os.WriteFile(path, []byte(torn), 0o644))

	sink, err := OpenJSONL(path, false)
	require.NoError(t, err)
	require.NoError(t, sink.Append(testRecord("c", false)))
	require.NoError(t, sink.Close())

	var names []string
	var bad []int
	err = Scan(path, func(lineNo int, obj map[string]json.RawMessage, err error) {
		if err != nil {
			bad = append(bad, lineNo)
			return
		}
		var name string
		require.NoError(t, json.Unmarshal(obj["einrichtung"], &name))
		names = append(names, name)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, names)
	assert.Equal(t, []int{2}, bad)
}

func TestJSONLSink_AppendAfterClose(t *testing.T) {
	sink, err := OpenJSONL(filepath.Join(t.TempDir(), "r.jsonl"), false)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	assert.ErrorIs(t, sink.Append(testRecord("a", true)), ErrClosed)
}

func TestScan_MissingFileIsEmpty(t *testing.T) {
	calls := 0
	err := Scan(filepath.Join(t.TempDir(), "none.jsonl"), func(int, map[string]json.RawMessage, error) {
		calls++
	})
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestScanReader_ReportsMalformedLines(t *testing.T) {
	input := `{"einrichtung":"a","result":true}

{"einrichtung":"b","res
[1,2,3]
`
	var good, bad []int
	err := ScanReader(strings.NewReader(input), func(lineNo int, obj map[string]json.RawMessage, err error) {
		if err != nil {
			bad = append(bad, lineNo)
			return
		}
		good = append(good, lineNo)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, good)
	assert.Equal(t, []int{3, 4}, bad)
}

func TestScanReader_SkipsOversizeLines(t *testing.T) {
	orig := maxLineBytes
	maxLineBytes = 256
	t.Cleanup(func() { maxLineBytes = orig })

	long := `{"einrichtung":"b","reasoning":"` + strings.Repeat("x", 200_000) + `"}`
	input := `{"einrichtung":"a"}` + "\n" + long + "\n" + `{"einrichtung":"c"}`

	var good []int
	var tooLong []int
	err := ScanReader(strings.NewReader(input), func(lineNo int, obj map[string]json.RawMessage, err error) {
		if err != nil {
			require.ErrorIs(t, err, ErrLineTooLong)
			tooLong = append(tooLong, lineNo)
			return
		}
		good = append(good, lineNo)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, good)
	assert.Equal(t, []int{2}, tooLong)
}
