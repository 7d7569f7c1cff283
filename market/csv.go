package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ReadCandlesCSV reads bars in the canonical layout
//
//	time,open,high,low,close[,volume]
//
// where time is RFC3339 or RFC3339Nano. A header row ("time,...") is allowed,
// empty or short rows are skipped and rows outside [from, to) are dropped
// when the bounds are set. The result is sorted oldest first.
func ReadCandlesCSV(r io.Reader, from, to time.Time) ([]Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var out []Candle
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if first {
			first = false
			if len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}
		if len(row) < 5 || strings.TrimSpace(row[0]) == "" {
			continue
		}

		c, err := parseCandleRow(row)
		if err != nil {
			return nil, err
		}
		if !from.IsZero() && c.Time.Before(from) {
			continue
		}
		if !to.IsZero() && !c.Time.Before(to) {
			continue
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// LoadCandlesCSV opens path and reads it with ReadCandlesCSV.
func LoadCandlesCSV(path string, from, to time.Time) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCandlesCSV(f, from, to)
}

// WriteCandlesCSV writes bars in the layout ReadCandlesCSV accepts.
func WriteCandlesCSV(w io.Writer, bars []Candle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, c := range bars {
		if err := cw.Write([]string{
			c.Time.UTC().Format(time.RFC3339),
			formatFloat(c.Open), formatFloat(c.High), formatFloat(c.Low), formatFloat(c.Close),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseCandleRow(row []string) (Candle, error) {
	ts := strings.TrimSpace(row[0])
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, ts)
		if err2 != nil {
			return Candle{}, fmt.Errorf("bad time %q: %w", ts, err)
		}
		t = t2
	}

	var vals [5]float64
	n := 4
	if len(row) > 5 && strings.TrimSpace(row[5]) != "" {
		n = 5
	}
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
		if err != nil {
			return Candle{}, fmt.Errorf("bad value %q in column %d: %w", row[i+1], i+1, err)
		}
		vals[i] = v
	}

	return Candle{
		Time:   t.UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
