package features_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/features"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/table"
	"github.com/danielpatrickdp/lendingclub-trainer/internal/transform"
)

var lcDropped = []string{
	"emp_title", "pymnt_plan", "desc", "purpose", "title", "zip_code", "addr_state",
	"delinq_2yrs", "earliest_cr_line", "mths_since_last_record", "pub_rec", "total_acc",
	"initial_list_status", "collections_12_mths_ex_med", "mths_since_last_delinq",
	"mths_since_last_major_derog", "policy_code", "month_issued", "year_issued",
}

func n(f float64) table.Value { return table.Number(f) }
func s(v string) table.Value { return table.Text(v) }
func na() table.Value { return table.Missing() }

func col(name string, vs ...table.Value) table.Column {
	return table.Column{Name: name, Values: vs}
}

// loanTable builds a four-row raw loan table.
func loanTable(t *testing.T) *table.Table {
	t.Helper()
	cols := []table.Column{
		col("Unnamed: 0", n(0), n(1), n(2), n(3)),
		col("int_rate", n(10.5), n(12), na(), n(9)),
		col("grade", s("A"), s("C"), s("G"), s("B")),
		col("sub_grade", s("A1"), s("C3"), s("G5"), s("B2")),
		col("term", s(" 36 months"), s(" 60 months"), s(" 36 months"), s(" 36 months")),
		col("home_ownership", s("RENT"), s("OWN"), s("MORTGAGE"), s("RENT")),
		col("verification_status", s("not verified"), s("VERIFIED - income"), s("VERIFIED - income source"), s("not verified")),
		col("emp_length", s("< 1 year"), s("10+ years"), s("n/a"), na()),
		col("loan_amnt", n(1000), n(2000), n(3000), n(5000)),
		col("installment", n(10), n(20), n(30), n(40)),
		col("annual_inc", n(1), n(2), n(3), n(4)),
		col("dti", n(0), n(1), n(2), n(3)),
		col("revol_bal", n(5), n(6), n(7), n(8)),
		col("inq_last_6mths", s("x"), n(1), n(2), n(3)),
		col("open_acc", n(1), n(2), n(3), n(5)),
		col("revol_util", s("50%"), n(10), n(20), n(40)),
		col("is_bad", n(0), n(1), n(0), n(1)),
	}
	for _, name := range lcDropped {
		cols = append(cols, col(name, s("x"), s("y"), na(), n(1)))
	}
	tb, err := table.New(cols...)
	require.NoError(t, err)
	return tb
}

func values(t *testing.T, tb *table.Table, name string) []table.Value {
	t.Helper()
	c, err := tb.Column(name)
	require.NoError(t, err)
	return c.Values
}

func TestLendingClub_Apply(t *testing.T) {
	raw := loanTable(t)
	before := raw.Clone()

	res, err := features.LendingClub().Apply(raw)
	require.NoError(t, err)

	assert.Equal(t, features.LendingClubSchema, res.Features.Names())
	assert.Equal(t, append(append([]string(nil), features.LendingClubSchema...), "is_bad"), res.Schema)
	require.NotNil(t, res.Labels)
	assert.Equal(t, []table.Value{n(0), n(1), n(0), n(1)}, res.Labels.Values)

	assert.Equal(t, []table.Value{n(10.5), n(12), n(0), n(9)}, values(t, res.Features, "int_rate"))
	assert.Equal(t, []table.Value{n(1), n(3), n(5), n(2)}, values(t, res.Features, "sub_grade"))
	assert.Equal(t, []table.Value{n(0), n(0.25), n(0.5), n(1)}, values(t, res.Features, "loan_amnt"))
	assert.Equal(t, []table.Value{n(0), n(0.25), n(0.5), n(1)}, values(t, res.Features, "revol_util"))
	assert.Equal(t, []table.Value{n(1), n(0), n(0), n(0)}, values(t, res.Features, "grade_1"))
	assert.Equal(t, []table.Value{n(0), n(0), n(0), n(1)}, values(t, res.Features, "grade_2"))
	assert.Equal(t, []table.Value{n(0), n(1), n(0), n(0)}, values(t, res.Features, "grade_3"))
	assert.Equal(t, []table.Value{n(0), n(0), n(0), n(0)}, values(t, res.Features, "grade_4"))
	assert.Equal(t, []table.Value{n(0), n(0), n(1), n(0)}, values(t, res.Features, "grade_7"))
	assert.Equal(t, []table.Value{n(0), n(0), n(0), n(0)}, values(t, res.Features, "home_ownership_NONE"))
	assert.Equal(t, []table.Value{n(1), n(0), n(0), n(1)}, values(t, res.Features, "home_ownership_RENT"))
	assert.Equal(t, []table.Value{n(0), n(1), n(0), n(0)}, values(t, res.Features, "term_ 60 months"))
	assert.Equal(t, []table.Value{n(2), n(10), n(0), n(0)}, values(t, res.Features, "emp_length"))

	for _, name := range features.LendingClubSchema {
		for _, v := range values(t, res.Features, name) {
			assert.Equal(t, table.KindNumber, v.Kind, "column %s", name)
		}
	}
	assert.True(t, raw.Equal(before), "input must be untouched")

	joined, err := res.Table()
	require.NoError(t, err)
	names := joined.Names()
	assert.Equal(t, "is_bad", names[len(names)-1])
}

func TestLendingClub_Idempotent(t *testing.T) {
	raw := loanTable(t)
	p := features.LendingClub()

	first, err := p.Apply(raw)
	require.NoError(t, err)
	second, err := p.Apply(raw)
	require.NoError(t, err)

	assert.True(t, first.Features.Equal(second.Features))
	assert.Equal(t, first.Labels, second.Labels)
	assert.Equal(t, first.Schema, second.Schema)
}

func TestLendingClub_NoTarget(t *testing.T) {
	raw := loanTable(t)
	require.NoError(t, raw.Drop("is_bad"))

	res, err := features.LendingClub().Apply(raw)
	require.NoError(t, err)
	assert.Nil(t, res.Labels)
	assert.Equal(t, features.LendingClubSchema, res.Schema)
}

func TestLendingClub_SchemaViolation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*table.Table) error
		wantMsg string
	}{
		{
			name:    "missing step column",
			mutate:  func(tb *table.Table) error { return tb.Drop("emp_length") },
			wantMsg: `"emp_length"`,
		},
		{
			name:    "missing drop column",
			mutate:  func(tb *table.Table) error { return tb.Drop("policy_code") },
			wantMsg: `"policy_code"`,
		},
		{
			name: "extra column",
			mutate: func(tb *table.Table) error {
				return tb.Append(col("extra", n(1), n(2), n(3), n(4)))
			},
			wantMsg: "count mismatch",
		},
		{
			name:    "missing schema column",
			mutate:  func(tb *table.Table) error { return tb.Drop("int_rate") },
			wantMsg: "count mismatch",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := loanTable(t)
			require.NoError(t, tt.mutate(raw))

			_, err := features.LendingClub().Apply(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, features.ErrSchemaViolation))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLendingClub_ConstantColumn(t *testing.T) {
	raw := loanTable(t)
	_, err := raw.Remove("dti")
	require.NoError(t, err)
	require.NoError(t, raw.Append(col("dti", n(3), n(3), n(3), n(3))))

	_, err = features.LendingClub().Apply(raw)
	assert.True(t, errors.Is(err, transform.ErrDivideByZero))
	assert.Contains(t, err.Error(), "dti")
}

func TestApply_RenamedSchemaColumn(t *testing.T) {
	raw, err := table.New(col("a", n(1), n(2)), col("b", n(3), n(4)))
	require.NoError(t, err)

	p := &features.Pipeline{Schema: []string{"a", "c"}}
	_, err = p.Apply(raw)
	assert.True(t, errors.Is(err, features.ErrSchemaViolation))
	assert.Contains(t, err.Error(), `"c"`)
}

func TestApply_OrdinalPassThrough(t *testing.T) {
	raw, err := table.New(col("grade", s("A"), s("Z"), na()))
	require.NoError(t, err)

	p := &features.Pipeline{
		Steps:  []features.Step{features.OrdinalMap{Column: "grade", Mapping: map[string]float64{"A": 1}}},
		Schema: []string{"grade"},
	}
	res, err := p.Apply(raw)
	require.NoError(t, err)
	assert.Equal(t, []table.Value{n(1), s("Z"), n(0)}, values(t, res.Features, "grade"))
}

func TestApply_ObservedCategories(t *testing.T) {
	raw, err := table.New(col("home", s("RENT"), s("OWN"), s("RENT")))
	require.NoError(t, err)

	p := &features.Pipeline{
		Steps:  []features.Step{features.OneHot{Column: "home"}},
		Schema: []string{"home_OWN", "home_RENT"},
	}
	res, err := p.Apply(raw)
	require.NoError(t, err)
	assert.Equal(t, []table.Value{n(0), n(1), n(0)}, values(t, res.Features, "home_OWN"))
	assert.Equal(t, []table.Value{n(1), n(0), n(1)}, values(t, res.Features, "home_RENT"))
}

func TestApply_GradeEndToEnd(t *testing.T) {
	in := "grade,sub_grade,term,loan_amnt,is_bad\n" +
		"A,A1, 36 months,1000,0\n" +
		"B,B2, 60 months,2000,1\n" +
		"C,C3, 36 months,3000,0\n" +
		"D,D4, 60 months,4000,1\n" +
		"E,E5, 36 months,5000,0\n" +
		"F,F1, 36 months,6000,1\n" +
		"G,G2, 60 months,7000,0\n" +
		"A,A3, 36 months,8000,1\n" +
		"B,B4, 36 months,9000,0\n" +
		"C,C5, 60 months,10000,1\n"
	raw, err := table.ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 10, raw.Rows())

	p := &features.Pipeline{
		Target:        "is_bad",
		UnnamedPrefix: features.UnnamedPrefix,
		Steps: []features.Step{
			features.OrdinalMap{Column: "grade", Mapping: map[string]float64{
				"A": 1, "B": 2, "C": 3, "D": 4, "E": 5, "F": 6, "G": 7,
			}},
			features.SubstringOrdinalMap{Column: "sub_grade", Position: 1, Mapping: map[string]float64{
				"1": 1, "2": 2, "3": 3, "4": 4, "5": 5,
			}},
			features.Scale{Columns: []string{"loan_amnt"}},
			features.OneHot{Column: "term", Categories: []string{" 36 months", " 60 months"}},
		},
		Schema: []string{"grade", "sub_grade", "loan_amnt", "term_ 36 months", "term_ 60 months"},
	}
	res, err := p.Apply(raw)
	require.NoError(t, err)

	out, err := res.Table()
	require.NoError(t, err)
	names := out.Names()
	assert.Equal(t, "is_bad", names[len(names)-1])

	want := []float64{1, 2, 3, 4, 5, 6, 7, 1, 2, 3}
	for i, v := range values(t, out, "grade") {
		require.Equal(t, table.KindNumber, v.Kind)
		assert.Equal(t, want[i], v.Num)
		assert.GreaterOrEqual(t, v.Num, 1.0)
		assert.LessOrEqual(t, v.Num, 7.0)
		assert.Equal(t, float64(int(v.Num)), v.Num)
	}
}
