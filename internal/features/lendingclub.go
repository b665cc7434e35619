package features

// #region lendingclub
const (
	// LendingClubTarget is the reserved label column of the loan dataset.
	LendingClubTarget = "is_bad"
	// UnnamedPrefix marks index columns written by earlier CSV round-trips.
	UnnamedPrefix = "Unnamed"
)

// LendingClubSchema is the fixed feature order of the processed loan dataset.
var LendingClubSchema = []string{
	"int_rate", "sub_grade", "loan_amnt", "installment", "annual_inc",
	"dti", "revol_bal", "inq_last_6mths", "open_acc", "revol_util",
	"term_ 36 months", "term_ 60 months",
	"grade_1", "grade_2", "grade_3", "grade_4", "grade_5", "grade_6", "grade_7",
	"home_ownership_MORTGAGE", "home_ownership_OTHER", "home_ownership_OWN",
	"home_ownership_NONE", "home_ownership_RENT",
	"verification_status_VERIFIED - income",
	"verification_status_VERIFIED - income source",
	"verification_status_not verified",
	"emp_length",
}

// LendingClub returns the pipeline for the raw loan dataset.
func LendingClub() *Pipeline {
	return &Pipeline{
		Target:        LendingClubTarget,
		UnnamedPrefix: UnnamedPrefix,
		Steps: []Step{
			OrdinalMap{Column: "grade", Mapping: map[string]float64{
				"A": 1, "B": 2, "C": 3, "D": 4, "E": 5, "F": 6, "G": 7,
			}},
			SubstringOrdinalMap{Column: "sub_grade", Position: 1, Mapping: map[string]float64{
				"1": 1, "2": 2, "3": 3, "4": 4, "5": 5,
			}},
			NumericCoerce{Columns: []string{"inq_last_6mths", "open_acc", "revol_util"}},
			Drop{Columns: []string{
				"emp_title", "pymnt_plan", "desc", "purpose", "title", "zip_code", "addr_state",
				"delinq_2yrs", "earliest_cr_line", "mths_since_last_record", "pub_rec", "total_acc",
				"initial_list_status", "collections_12_mths_ex_med", "mths_since_last_delinq",
				"mths_since_last_major_derog", "policy_code", "month_issued", "year_issued",
			}},
			Scale{Columns: []string{
				"loan_amnt", "installment", "annual_inc", "dti", "revol_bal",
				"inq_last_6mths", "open_acc", "revol_util",
			}},
			OneHot{Column: "term", Categories: []string{" 36 months", " 60 months"}},
			OneHot{Column: "grade", Categories: []string{"1", "2", "3", "4", "5", "6", "7"}},
			OneHot{Column: "home_ownership", Categories: []string{"MORTGAGE", "OTHER", "OWN", "NONE", "RENT"}},
			OneHot{Column: "verification_status", Categories: []string{
				"VERIFIED - income", "VERIFIED - income source", "not verified",
			}},
			BucketMap{Column: "emp_length", Mapping: map[string]float64{
				"< 1 year": 2, "1 year": 2, "2 years": 2, "3 years": 4, "4 years": 4,
				"5 years": 6, "6 years": 6, "7 years": 8, "8 years": 8, "9 years": 10, "10+ years": 10,
			}},
		},
		Schema: LendingClubSchema,
	}
}

// #endregion lendingclub
