// Package mixture は対角共分散のガウス混合モデル(GMM)をEMアルゴリズムで推定します。
// 成分数の自動選択にはBIC（ベイズ情報量規準）を使います。
package mixture

import (
	"fmt"
	"math"
	"sync"

	"github.com/YuminosukeSato/coelurus/core/model"
	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/YuminosukeSato/coelurus/sklearn/cluster"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var _ model.DensityModel = (*GaussianMixture)(nil)

const log2Pi = 1.8378770664093453 // log(2π)

// GaussianMixture は対角共分散のガウス混合モデル
// scikit-learnのGaussianMixture(covariance_type="diag", init_params="kmeans")に対応する
type GaussianMixture struct {
	model.BaseEstimator

	// ハイパーパラメータ
	nComponents int     // 混合成分数
	maxIter     int     // EMの最大イテレーション数
	tol         float64 // 平均対数尤度の改善量による収束判定
	regCovar    float64 // 分散に加える正則化項
	randomState int64   // k-means初期化の乱数シード
	nInit       int     // 初期化の試行回数

	// 学習パラメータ
	weights_     []float64   // 混合比 (nComponents)
	means_       [][]float64 // 平均 (nComponents x nFeatures)
	covariances_ [][]float64 // 対角分散 (nComponents x nFeatures)
	converged_   bool
	nIter_       int
	lowerBound_  float64 // 学習データの平均対数尤度

	mu         sync.RWMutex
	nFeatures_ int
}

// Option はGaussianMixtureの設定オプション
type Option func(*GaussianMixture)

// NewGaussianMixture は新しいGaussianMixtureを作成
//
// 使用例:
//
//	gmm := mixture.NewGaussianMixture(mixture.WithNComponents(3), mixture.WithRandomState(42))
//	err := gmm.Fit(X)
//	bic, err := gmm.BIC(X)
func NewGaussianMixture(options ...Option) *GaussianMixture {
	gmm := &GaussianMixture{
		nComponents: 1,
		maxIter:     100,
		tol:         1e-3,
		regCovar:    1e-6,
		nInit:       1,
	}
	for _, opt := range options {
		opt(gmm)
	}
	return gmm
}

// WithNComponents は混合成分数を設定
func WithNComponents(n int) Option {
	return func(gmm *GaussianMixture) {
		gmm.nComponents = n
	}
}

// WithMaxIter はEMの最大イテレーション数を設定
func WithMaxIter(maxIter int) Option {
	return func(gmm *GaussianMixture) {
		gmm.maxIter = maxIter
	}
}

// WithTol は収束判定の許容誤差を設定
func WithTol(tol float64) Option {
	return func(gmm *GaussianMixture) {
		gmm.tol = tol
	}
}

// WithRegCovar は分散の正則化項を設定
func WithRegCovar(reg float64) Option {
	return func(gmm *GaussianMixture) {
		gmm.regCovar = reg
	}
}

// WithRandomState は乱数シードを設定
func WithRandomState(seed int64) Option {
	return func(gmm *GaussianMixture) {
		gmm.randomState = seed
	}
}

// WithNInit は初期化の試行回数を設定。最も対数尤度の高い結果を採用する
func WithNInit(n int) Option {
	return func(gmm *GaussianMixture) {
		gmm.nInit = n
	}
}

// Fit はEMアルゴリズムでモデルを推定する
//
// サンプル数が成分数より少ない場合、入力の分散が全次元でゼロの場合、
// 分散が潰れた場合、尤度が有限でない場合は*errors.ModelFitErrorを返す
func (gmm *GaussianMixture) Fit(X mat.Matrix) error {
	gmm.mu.Lock()
	defer gmm.mu.Unlock()

	n, d := X.Dims()
	k := gmm.nComponents
	if k < 1 {
		return errors.NewValueError("GaussianMixture.Fit", "n_components must be positive")
	}
	if n < k {
		return errors.NewModelFitError("GaussianMixture.Fit", "fewer samples than components", k, n)
	}

	samples := make([][]float64, n)
	for i := range samples {
		samples[i] = mat.Row(nil, i, X)
		if err := errors.CheckFinite("GaussianMixture.Fit", samples[i], k, n); err != nil {
			return err
		}
	}
	if n < 2 || constantColumns(samples, d) {
		return errors.NewModelFitError("GaussianMixture.Fit", "input has zero variance", k, n)
	}

	bestBound := math.Inf(-1)
	var lastErr error
	fitted := false
	for run := 0; run < max(1, gmm.nInit); run++ {
		res, err := gmm.fitSingleRun(samples, d, gmm.randomState+int64(run))
		if err != nil {
			lastErr = err
			continue
		}
		if !fitted || res.lowerBound > bestBound {
			bestBound = res.lowerBound
			gmm.weights_ = res.weights
			gmm.means_ = res.means
			gmm.covariances_ = res.covariances
			gmm.converged_ = res.converged
			gmm.nIter_ = res.nIter
			gmm.lowerBound_ = res.lowerBound
			fitted = true
		}
	}
	if !fitted {
		return lastErr
	}

	if !gmm.converged_ {
		errors.Warn(errors.NewConvergenceWarning("GaussianMixture", gmm.nIter_,
			fmt.Sprintf("n_components=%d; try a larger max_iter or tol", k)))
	}

	gmm.nFeatures_ = d
	gmm.SetFitted()
	return nil
}

type emResult struct {
	weights     []float64
	means       [][]float64
	covariances [][]float64
	converged   bool
	nIter       int
	lowerBound  float64
}

func (gmm *GaussianMixture) fitSingleRun(samples [][]float64, d int, seed int64) (*emResult, error) {
	n, k := len(samples), gmm.nComponents

	resp := make([][]float64, n)
	for i := range resp {
		resp[i] = make([]float64, k)
	}

	// k-meansのラベルから初期責務を作る
	if k == 1 {
		for i := range resp {
			resp[i][0] = 1
		}
	} else {
		X := mat.NewDense(n, d, nil)
		for i, s := range samples {
			X.SetRow(i, s)
		}
		km := cluster.NewKMeans(cluster.WithKMeansNClusters(k), cluster.WithKMeansRandomState(seed))
		if err := km.Fit(X, nil); err != nil {
			return nil, err
		}
		for i, label := range km.Labels() {
			resp[i][label] = 1
		}
	}

	res := &emResult{
		weights:     make([]float64, k),
		means:       newTable(k, d),
		covariances: newTable(k, d),
	}
	if err := gmm.mStep(samples, resp, res); err != nil {
		return nil, err
	}

	logProb := make([]float64, k)
	bound := math.Inf(-1)
	for res.nIter = 1; res.nIter <= gmm.maxIter; res.nIter++ {
		prev := bound

		// Eステップ
		total := 0.0
		for i, x := range samples {
			for c := 0; c < k; c++ {
				logProb[c] = errors.StabilizeLog(res.weights[c]) + logGaussian(x, res.means[c], res.covariances[c])
			}
			lse := errors.LogSumExp(logProb)
			total += lse
			for c := 0; c < k; c++ {
				resp[i][c] = math.Exp(logProb[c] - lse)
			}
		}
		bound = total / float64(n)
		if math.IsNaN(bound) || math.IsInf(bound, 0) {
			return nil, errors.NewModelFitError("GaussianMixture.Fit", "log-likelihood is not finite", k, n)
		}

		// Mステップ
		if err := gmm.mStep(samples, resp, res); err != nil {
			return nil, err
		}

		if math.Abs(bound-prev) < gmm.tol {
			res.converged = true
			break
		}
	}
	if res.nIter > gmm.maxIter {
		res.nIter = gmm.maxIter
	}
	res.lowerBound = bound
	return res, nil
}

// mStep は責務から混合比・平均・分散を更新する
func (gmm *GaussianMixture) mStep(samples [][]float64, resp [][]float64, res *emResult) error {
	n, k := len(samples), gmm.nComponents
	eps := 10 * math.SmallestNonzeroFloat64

	for c := 0; c < k; c++ {
		nk := eps
		for i := range samples {
			nk += resp[i][c]
		}
		res.weights[c] = nk / float64(n)

		mean, cov := res.means[c], res.covariances[c]
		for j := range mean {
			mean[j], cov[j] = 0, 0
		}
		for i, x := range samples {
			for j, v := range x {
				mean[j] += resp[i][c] * v
			}
		}
		for j := range mean {
			mean[j] /= nk
		}
		for i, x := range samples {
			for j, v := range x {
				diff := v - mean[j]
				cov[j] += resp[i][c] * diff * diff
			}
		}
		for j := range cov {
			cov[j] = cov[j]/nk + gmm.regCovar
			if !(cov[j] > 0) || math.IsInf(cov[j], 0) {
				return errors.NewModelFitError("GaussianMixture.Fit",
					"component variance collapsed to zero; increase reg_covar", k, n)
			}
		}
	}
	return nil
}

func logGaussian(x, mean, variance []float64) float64 {
	lp := 0.0
	for j, v := range x {
		diff := v - mean[j]
		lp -= 0.5 * (log2Pi + math.Log(variance[j]) + diff*diff/variance[j])
	}
	return lp
}

// scoreSamples は各サンプルの成分ごとの重み付き対数確率を返す
func (gmm *GaussianMixture) scoreSamples(X mat.Matrix, op string) ([][]float64, error) {
	if !gmm.IsFitted() {
		return nil, errors.NewNotFittedError("GaussianMixture", op)
	}
	n, d := X.Dims()
	if d != gmm.nFeatures_ {
		return nil, errors.NewDimensionError("GaussianMixture."+op, gmm.nFeatures_, d, 1)
	}

	out := make([][]float64, n)
	x := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(x, i, X)
		out[i] = make([]float64, gmm.nComponents)
		for c := range out[i] {
			out[i][c] = errors.StabilizeLog(gmm.weights_[c]) + logGaussian(x, gmm.means_[c], gmm.covariances_[c])
		}
	}
	return out, nil
}

// PredictProba は各サンプルの成分への所属確率 (n_samples x n_components) を返す
func (gmm *GaussianMixture) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	gmm.mu.RLock()
	defer gmm.mu.RUnlock()

	logProb, err := gmm.scoreSamples(X, "PredictProba")
	if err != nil {
		return nil, err
	}
	if len(logProb) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "GaussianMixture.PredictProba")
	}
	proba := mat.NewDense(len(logProb), gmm.nComponents, nil)
	for i, lp := range logProb {
		lse := errors.LogSumExp(lp)
		for c, v := range lp {
			proba.Set(i, c, math.Exp(v-lse))
		}
	}
	return proba, nil
}

// Predict は各サンプルの最も確率の高い成分を返す
func (gmm *GaussianMixture) Predict(X mat.Matrix) ([]int, error) {
	gmm.mu.RLock()
	defer gmm.mu.RUnlock()

	logProb, err := gmm.scoreSamples(X, "Predict")
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(logProb))
	for i, lp := range logProb {
		for c := range lp {
			if lp[c] > lp[labels[i]] {
				labels[i] = c
			}
		}
	}
	return labels, nil
}

// LogLikelihood はXの総対数尤度を返す
func (gmm *GaussianMixture) LogLikelihood(X mat.Matrix) (float64, error) {
	gmm.mu.RLock()
	defer gmm.mu.RUnlock()

	logProb, err := gmm.scoreSamples(X, "LogLikelihood")
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, lp := range logProb {
		total += errors.LogSumExp(lp)
	}
	return total, nil
}

// Score はXの平均対数尤度を返す
func (gmm *GaussianMixture) Score(X mat.Matrix) (float64, error) {
	total, err := gmm.LogLikelihood(X)
	if err != nil {
		return 0, err
	}
	n, _ := X.Dims()
	return total / float64(n), nil
}

// NParameters は自由パラメータ数 k*d(平均) + k*d(対角分散) + (k-1)(混合比) を返す
func (gmm *GaussianMixture) NParameters() int {
	gmm.mu.RLock()
	defer gmm.mu.RUnlock()
	k, d := gmm.nComponents, gmm.nFeatures_
	return 2*k*d + k - 1
}

// BIC はベイズ情報量規準 -2 log L + p log n を返す。小さいほど良い
func (gmm *GaussianMixture) BIC(X mat.Matrix) (float64, error) {
	logL, err := gmm.LogLikelihood(X)
	if err != nil {
		return 0, err
	}
	n, _ := X.Dims()
	return -2*logL + float64(gmm.NParameters())*math.Log(float64(n)), nil
}

// NComponents は混合成分数を返す
func (gmm *GaussianMixture) NComponents() int { return gmm.nComponents }

// Weights は混合比のコピーを返す
func (gmm *GaussianMixture) Weights() []float64 {
	gmm.mu.RLock()
	defer gmm.mu.RUnlock()
	return append([]float64(nil), gmm.weights_...)
}

// Means は各成分の平均のコピーを返す
func (gmm *GaussianMixture) Means() [][]float64 {
	gmm.mu.RLock()
	defer gmm.mu.RUnlock()
	return cloneTable(gmm.means_)
}

// Covariances は各成分の対角分散のコピーを返す
func (gmm *GaussianMixture) Covariances() [][]float64 {
	gmm.mu.RLock()
	defer gmm.mu.RUnlock()
	return cloneTable(gmm.covariances_)
}

// Converged はEMが収束したかどうかを返す
func (gmm *GaussianMixture) Converged() bool {
	gmm.mu.RLock()
	defer gmm.mu.RUnlock()
	return gmm.converged_
}

// NIterations は最良の試行で実行されたEMイテレーション数を返す
func (gmm *GaussianMixture) NIterations() int {
	gmm.mu.RLock()
	defer gmm.mu.RUnlock()
	return gmm.nIter_
}

// LowerBound は学習データの平均対数尤度を返す
func (gmm *GaussianMixture) LowerBound() float64 {
	gmm.mu.RLock()
	defer gmm.mu.RUnlock()
	return gmm.lowerBound_
}

// GetParams はハイパーパラメータを返す
func (gmm *GaussianMixture) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_components": gmm.nComponents,
		"max_iter":     gmm.maxIter,
		"tol":          gmm.tol,
		"reg_covar":    gmm.regCovar,
		"random_state": gmm.randomState,
		"n_init":       gmm.nInit,
	}
}

func (gmm *GaussianMixture) String() string {
	return fmt.Sprintf("GaussianMixture(n_components=%d, covariance_type=diag, reg_covar=%g)",
		gmm.nComponents, gmm.regCovar)
}

// constantColumns reports whether every dimension takes a single value.
func constantColumns(samples [][]float64, d int) bool {
	col := make([]float64, len(samples))
	for j := 0; j < d; j++ {
		for i, x := range samples {
			col[i] = x[j]
		}
		if floats.Max(col) != floats.Min(col) {
			return false
		}
	}
	return true
}

func newTable(rows, cols int) [][]float64 {
	t := make([][]float64, rows)
	for i := range t {
		t[i] = make([]float64, cols)
	}
	return t
}

func cloneTable(t [][]float64) [][]float64 {
	out := make([][]float64, len(t))
	for i := range t {
		out[i] = append([]float64(nil), t[i]...)
	}
	return out
}
