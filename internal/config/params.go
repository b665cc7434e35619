package config

import (
	"fmt"
	"time"
)

// Option is one string-valued command-line option with its default.
type Option struct {
	Name    string
	Default string
	Usage   string
}

// Raw holds option values by name, as given on the command line.
type Raw map[string]string

// WithDefaults returns a copy of r with every unset option filled in.
func (r Raw) WithDefaults(opts []Option) Raw {
	out := make(Raw, len(r)+len(opts))
	for _, o := range opts {
		out[o.Name] = o.Default
	}
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a copy of r overridden by every value in o.
func (r Raw) Merge(o Raw) Raw {
	out := make(Raw, len(r)+len(o))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range o {
		out[k] = v
	}
	return out
}

// #region common
// CommonOptions are shared by every training family.
var CommonOptions = []Option{
	{"data", "", "path to the processed csv file; the last column holds the labels"},
	{"project_dir", "", "directory the output model is written to"},
	{"output_dir", "", "directory for auxiliary outputs"},
	{"x_val", None, "number of cross-validation folds, None to disable"},
	{"test_size", "0.2", "fraction of rows held out for testing"},
	{"seed", None, "seed of the train/test split, None for a random one"},
}

// Common is the family-independent training configuration.
type Common struct {
	Data        string
	ProjectDir  string
	OutputDir   string
	Folds       *int
	TestSize    float64
	OutputModel string
	Seed        *int64
}

// ParseCommon reads the shared options. outputModel is the family default
// used when output_model is unset.
func ParseCommon(r Raw, outputModel string) (Common, error) {
	r = r.WithDefaults(CommonOptions)
	c := Common{
		Data:        r["data"],
		ProjectDir:  r["project_dir"],
		OutputDir:   r["output_dir"],
		OutputModel: r["output_model"],
	}
	if c.OutputModel == "" {
		c.OutputModel = outputModel
	}
	if c.Data == "" {
		return Common{}, fmt.Errorf("%w for data: a dataset path is required", ErrInvalidValue)
	}
	var err error
	if c.Folds, err = ParseOptionalInt("x_val", r["x_val"]); err != nil {
		return Common{}, err
	}
	if c.TestSize, err = ParseFloat("test_size", r["test_size"]); err != nil {
		return Common{}, err
	}
	if c.Seed, err = ParseOptionalInt64("seed", r["seed"]); err != nil {
		return Common{}, err
	}
	return c, nil
}

// #endregion common

// #region forest
// ForestOptions are the random forest hyperparameters.
var ForestOptions = []Option{
	{"output_model", "rf_model.sav", "name of the output model file"},
	{"n_estimators", "10", "number of trees in the forest"},
	{"criterion", "gini", "split quality function: gini or entropy"},
	{"max_depth", None, "maximum tree depth, None for unlimited"},
	{"min_samples_split", "2", "minimum samples to split a node, count or fraction"},
	{"min_samples_leaf", "1", "minimum samples at a leaf, count or fraction"},
	{"min_weight_fraction_leaf", "0.", "minimum weighted fraction of samples at a leaf"},
	{"max_features", "auto", "features considered per split: auto, sqrt, log2, None, int or fraction"},
	{"max_leaf_nodes", None, "maximum leaf nodes, recorded only"},
	{"min_impurity_decrease", "0.", "minimum impurity decrease for a split"},
	{"min_impurity_split", None, "impurity below which a node is a leaf"},
	{"bootstrap", "True", "draw bootstrap samples for each tree"},
	{"oob_score", "False", "out-of-bag scoring, recorded only"},
	{"n_jobs", "1", "trees fitted in parallel, None for 1"},
	{"random_state", None, "seed of the forest, None for a random one"},
	{"verbose", "0", "log every fitted tree when above 0"},
	{"warm_start", "True", "keep fitted trees and only add new ones on refit"},
	{"class_weight", None, `None, balanced, balanced_subsample or {"label": weight}`},
}

// ForestParams are the typed random forest hyperparameters.
type ForestParams struct {
	NEstimators           int         `json:"n_estimators"`
	Criterion             string      `json:"criterion"`
	MaxDepth              *int        `json:"max_depth"`
	MinSamplesSplit       Threshold   `json:"min_samples_split"`
	MinSamplesLeaf        Threshold   `json:"min_samples_leaf"`
	MinWeightFractionLeaf float64     `json:"min_weight_fraction_leaf"`
	MaxFeatures           MaxFeatures `json:"max_features"`
	MaxLeafNodes          *int        `json:"max_leaf_nodes"`
	MinImpurityDecrease   float64     `json:"min_impurity_decrease"`
	MinImpuritySplit      *float64    `json:"min_impurity_split"`
	Bootstrap             bool        `json:"bootstrap"`
	OOBScore              bool        `json:"oob_score"`
	NJobs                 *int        `json:"n_jobs"`
	RandomState           *int64      `json:"random_state"`
	Verbose               int         `json:"verbose"`
	WarmStart             bool        `json:"warm_start"`
	ClassWeight           ClassWeight `json:"class_weight"`
}

// ParseForest reads the random forest options.
func ParseForest(r Raw) (ForestParams, error) {
	r = r.WithDefaults(ForestOptions)
	p := ForestParams{Criterion: r["criterion"]}
	var err error
	if p.NEstimators, err = ParseInt("n_estimators", r["n_estimators"]); err != nil {
		return ForestParams{}, err
	}
	if p.MaxDepth, err = ParseOptionalInt("max_depth", r["max_depth"]); err != nil {
		return ForestParams{}, err
	}
	if p.MinSamplesSplit, err = ParseThreshold("min_samples_split", r["min_samples_split"]); err != nil {
		return ForestParams{}, err
	}
	if p.MinSamplesLeaf, err = ParseThreshold("min_samples_leaf", r["min_samples_leaf"]); err != nil {
		return ForestParams{}, err
	}
	if p.MinWeightFractionLeaf, err = ParseFloat("min_weight_fraction_leaf", r["min_weight_fraction_leaf"]); err != nil {
		return ForestParams{}, err
	}
	if p.MaxFeatures, err = ParseMaxFeatures("max_features", r["max_features"]); err != nil {
		return ForestParams{}, err
	}
	if p.MaxLeafNodes, err = ParseOptionalInt("max_leaf_nodes", r["max_leaf_nodes"]); err != nil {
		return ForestParams{}, err
	}
	if p.MinImpurityDecrease, err = ParseFloat("min_impurity_decrease", r["min_impurity_decrease"]); err != nil {
		return ForestParams{}, err
	}
	if p.MinImpuritySplit, err = ParseOptionalFloat("min_impurity_split", r["min_impurity_split"]); err != nil {
		return ForestParams{}, err
	}
	if p.Bootstrap, err = ParseBool("bootstrap", r["bootstrap"]); err != nil {
		return ForestParams{}, err
	}
	if p.OOBScore, err = ParseBool("oob_score", r["oob_score"]); err != nil {
		return ForestParams{}, err
	}
	if p.NJobs, err = ParseOptionalInt("n_jobs", r["n_jobs"]); err != nil {
		return ForestParams{}, err
	}
	if p.RandomState, err = ParseOptionalInt64("random_state", r["random_state"]); err != nil {
		return ForestParams{}, err
	}
	if p.Verbose, err = ParseInt("verbose", r["verbose"]); err != nil {
		return ForestParams{}, err
	}
	if p.WarmStart, err = ParseBool("warm_start", r["warm_start"]); err != nil {
		return ForestParams{}, err
	}
	if p.ClassWeight, err = ParseClassWeight("class_weight", r["class_weight"]); err != nil {
		return ForestParams{}, err
	}
	return p, nil
}

// #endregion forest

// #region boost
// BoostOptions are the gradient boosting hyperparameters.
var BoostOptions = []Option{
	{"output_model", "xgb_model.sav", "name of the output model file"},
	{"max_depth", "3", "maximum tree depth"},
	{"learning_rate", "0.1", "shrinkage applied to every tree"},
	{"n_estimators", "100", "number of boosting rounds"},
	{"silent", "True", "suppress per-round logging"},
	{"objective", "binary:logistic", "learning objective"},
	{"booster", "gbtree", "booster type"},
	{"n_jobs", "1", "parallel split search workers"},
	{"nthread", None, "alias of n_jobs, wins when set"},
	{"gamma", "0", "minimum loss reduction to split"},
	{"min_child_weight", "1", "minimum hessian sum in a child"},
	{"max_delta_step", "0", "maximum leaf step, 0 for unlimited"},
	{"subsample", "1", "row fraction sampled per round"},
	{"colsample_bytree", "1", "column fraction sampled per tree"},
	{"colsample_bylevel", "1", "column fraction sampled per level"},
	{"reg_alpha", "0", "L1 regularization on leaf weights"},
	{"reg_lambda", "1", "L2 regularization on leaf weights"},
	{"scale_pos_weight", "1", "weight of positive examples"},
	{"base_score", "0.5", "initial prediction"},
	{"random_state", "0", "seed of row and column sampling"},
	{"seed", None, "alias of random_state, wins when set"},
	{"missing", None, "cell value treated as missing"},
}

// BoostParams are the typed gradient boosting hyperparameters.
type BoostParams struct {
	MaxDepth         int      `json:"max_depth"`
	LearningRate     float64  `json:"learning_rate"`
	NEstimators      int      `json:"n_estimators"`
	Silent           bool     `json:"silent"`
	Objective        string   `json:"objective"`
	Booster          string   `json:"booster"`
	NJobs            *int     `json:"n_jobs"`
	NThread          *int     `json:"nthread"`
	Gamma            float64  `json:"gamma"`
	MinChildWeight   float64  `json:"min_child_weight"`
	MaxDeltaStep     float64  `json:"max_delta_step"`
	Subsample        float64  `json:"subsample"`
	ColsampleByTree  float64  `json:"colsample_bytree"`
	ColsampleByLevel float64  `json:"colsample_bylevel"`
	RegAlpha         float64  `json:"reg_alpha"`
	RegLambda        float64  `json:"reg_lambda"`
	ScalePosWeight   float64  `json:"scale_pos_weight"`
	BaseScore        float64  `json:"base_score"`
	RandomState      int64    `json:"random_state"`
	Seed             *int64   `json:"seed"`
	Missing          *float64 `json:"missing"`
}

// ParseBoost reads the gradient boosting options.
func ParseBoost(r Raw) (BoostParams, error) {
	r = r.WithDefaults(BoostOptions)
	p := BoostParams{Objective: r["objective"], Booster: r["booster"]}
	var err error
	floats := []struct {
		name string
		dst  *float64
	}{
		{"learning_rate", &p.LearningRate},
		{"gamma", &p.Gamma},
		{"min_child_weight", &p.MinChildWeight},
		{"max_delta_step", &p.MaxDeltaStep},
		{"subsample", &p.Subsample},
		{"colsample_bytree", &p.ColsampleByTree},
		{"colsample_bylevel", &p.ColsampleByLevel},
		{"reg_alpha", &p.RegAlpha},
		{"reg_lambda", &p.RegLambda},
		{"scale_pos_weight", &p.ScalePosWeight},
		{"base_score", &p.BaseScore},
	}
	for _, f := range floats {
		if *f.dst, err = ParseFloat(f.name, r[f.name]); err != nil {
			return BoostParams{}, err
		}
	}
	if p.MaxDepth, err = ParseInt("max_depth", r["max_depth"]); err != nil {
		return BoostParams{}, err
	}
	if p.NEstimators, err = ParseInt("n_estimators", r["n_estimators"]); err != nil {
		return BoostParams{}, err
	}
	if p.Silent, err = ParseBool("silent", r["silent"]); err != nil {
		return BoostParams{}, err
	}
	if p.NJobs, err = ParseOptionalInt("n_jobs", r["n_jobs"]); err != nil {
		return BoostParams{}, err
	}
	if p.NThread, err = ParseOptionalInt("nthread", r["nthread"]); err != nil {
		return BoostParams{}, err
	}
	if p.RandomState, err = ParseInt64("random_state", r["random_state"]); err != nil {
		return BoostParams{}, err
	}
	if p.Seed, err = ParseOptionalInt64("seed", r["seed"]); err != nil {
		return BoostParams{}, err
	}
	if p.Missing, err = ParseOptionalFloat("missing", r["missing"]); err != nil {
		return BoostParams{}, err
	}
	return p, nil
}

// #endregion boost

// #region remote
// RemoteOptions configure the remote model service family.
var RemoteOptions = []Option{
	{"output_model", "remote_model.sav", "name of the output model file"},
	{"addr", "localhost:50051", "model service address"},
	{"algorithm", "random_forest", "algorithm the service should train"},
	{"n_estimators", "10", "estimator count forwarded to the service"},
	{"timeout", "60s", "deadline of a single service call"},
}

// RemoteParams configure the remote family. Extra holds every option the
// binary does not know itself; they are forwarded to the service verbatim.
type RemoteParams struct {
	Addr        string            `json:"addr"`
	Algorithm   string            `json:"algorithm"`
	NEstimators int               `json:"n_estimators"`
	Timeout     time.Duration     `json:"timeout"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// ParseRemote reads the remote family options. Options not listed in
// RemoteOptions or CommonOptions end up in Extra.
func ParseRemote(r Raw) (RemoteParams, error) {
	known := make(map[string]bool)
	for _, o := range append(append([]Option(nil), CommonOptions...), RemoteOptions...) {
		known[o.Name] = true
	}
	r = r.WithDefaults(RemoteOptions)

	p := RemoteParams{Addr: r["addr"], Algorithm: r["algorithm"]}
	var err error
	if p.NEstimators, err = ParseInt("n_estimators", r["n_estimators"]); err != nil {
		return RemoteParams{}, err
	}
	if p.Timeout, err = time.ParseDuration(r["timeout"]); err != nil {
		return RemoteParams{}, invalid("timeout", r["timeout"], "a duration")
	}
	for k, v := range r {
		if !known[k] {
			if p.Extra == nil {
				p.Extra = make(map[string]string)
			}
			p.Extra[k] = v
		}
	}
	return p, nil
}

// #endregion remote
