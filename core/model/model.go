// Package model は推定器が共有する状態管理と最小限のインターフェースを定義します。
package model

import "gonum.org/v1/gonum/mat"

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

// BaseEstimator は全ての推定器に埋め込む学習状態
type BaseEstimator struct {
	state EstimatorState
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	return e.state == Fitted
}

// SetFitted はモデルを学習済み状態に設定する
func (e *BaseEstimator) SetFitted() {
	e.state = Fitted
}

// Reset はモデルを初期状態にリセットする
func (e *BaseEstimator) Reset() {
	e.state = NotFitted
}

// Transformer は行列を行列に写す前処理
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// DensityModel is an unsupervised model scored by penalised likelihood.
// Component selection works against this interface.
type DensityModel interface {
	Fit(X mat.Matrix) error
	IsFitted() bool
	LogLikelihood(X mat.Matrix) (float64, error)
	// NParameters is the free parameter count used in the BIC penalty.
	NParameters() int
	BIC(X mat.Matrix) (float64, error)
}

// Clusterer assigns each row of X to one of a fixed number of groups.
type Clusterer interface {
	Fit(X, y mat.Matrix) error
	Predict(X mat.Matrix) ([]int, error)
}
