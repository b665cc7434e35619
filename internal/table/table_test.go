package table_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/table"
)

func TestParseCell(t *testing.T) {
	tests := []struct {
		raw  string
		want table.Value
	}{
		{"", table.Missing()},
		{"NA", table.Missing()},
		{"nan", table.Missing()},
		{"12", table.Number(12)},
		{" 3.5 ", table.Number(3.5)},
		{"-1e3", table.Number(-1000)},
		{" 36 months", table.Text(" 36 months")},
		{"A4", table.Text("A4")},
		{"Inf", table.Text("Inf")},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, table.ParseCell(tt.raw))
		})
	}
}

func TestValueKey(t *testing.T) {
	assert.Equal(t, "1", table.Number(1).Key())
	assert.Equal(t, "2.5", table.Number(2.5).Key())
	assert.Equal(t, "RENT", table.Text("RENT").Key())
	assert.Equal(t, "", table.Missing().Key())

	f, ok := table.Text(" 7 ").Float()
	require.True(t, ok)
	assert.Equal(t, 7.0, f)
	_, ok = table.Text("x").Float()
	assert.False(t, ok)
}

func TestTable_AppendRemoveDrop(t *testing.T) {
	tb, err := table.New(
		table.Column{Name: "a", Values: []table.Value{table.Number(1), table.Number(2)}},
		table.Column{Name: "b", Values: []table.Value{table.Text("x"), table.Text("y")}},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, tb.Rows())
	assert.Equal(t, []string{"a", "b"}, tb.Names())

	err = tb.Append(table.Column{Name: "c", Values: []table.Value{table.Number(1)}})
	assert.True(t, errors.Is(err, table.ErrLength))

	err = tb.Append(table.Column{Name: "a", Values: []table.Value{table.Number(1), table.Number(1)}})
	assert.True(t, errors.Is(err, table.ErrDuplicateColumn))

	err = tb.Drop("a", "zzz")
	assert.True(t, errors.Is(err, table.ErrNoColumn))
	assert.Equal(t, []string{"a", "b"}, tb.Names(), "failed drop must not change the table")

	require.NoError(t, tb.MoveToEnd("a", []table.Value{table.Number(5), table.Number(6)}))
	assert.Equal(t, []string{"b", "a"}, tb.Names())
	col, err := tb.Column("a")
	require.NoError(t, err)
	assert.Equal(t, table.Number(6), col.Values[1])
}

func TestTable_CloneIsDeep(t *testing.T) {
	tb, err := table.New(table.Column{Name: "a", Values: []table.Value{table.Number(1)}})
	require.NoError(t, err)

	cp := tb.Clone()
	col, _ := cp.Column("a")
	col.Values[0] = table.Number(99)

	orig, _ := tb.Column("a")
	assert.Equal(t, table.Number(1), orig.Values[0])
	assert.False(t, tb.Equal(cp))
}

func TestReadCSV(t *testing.T) {
	in := ",grade,term,loan_amnt\n0,A, 36 months,1000\n1,B, 60 months,\n2,C\n"
	tb, err := table.ReadCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"Unnamed: 0", "grade", "term", "loan_amnt"}, tb.Names())
	assert.Equal(t, 3, tb.Rows())

	amt, err := tb.Column("loan_amnt")
	require.NoError(t, err)
	assert.Equal(t, table.Number(1000), amt.Values[0])
	assert.True(t, amt.Values[1].IsMissing())
	assert.True(t, amt.Values[2].IsMissing(), "short rows are padded")
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := table.ReadCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, err = table.ReadCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.Error(t, err)

	_, err = table.ReadCSV(strings.NewReader("a,a\n1,2\n"))
	assert.True(t, errors.Is(err, table.ErrDuplicateColumn))
}

func TestCSVRoundTrip(t *testing.T) {
	in := "x,y\n1,a\n,b\n2.5,\n"
	tb, err := table.ReadCSV(strings.NewReader(in))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf, tb))
	assert.Equal(t, in, buf.String())

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, table.WriteCSVFile(path, tb))
	back, err := table.ReadCSVFile(path)
	require.NoError(t, err)
	assert.True(t, tb.Equal(back))
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	tb, err := table.ReadCSV(strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, tb.Rows())
	assert.Equal(t, 2, tb.Width())
}
