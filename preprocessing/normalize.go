package preprocessing

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/coelurus/core/model"
	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var _ model.Transformer = (*RowMaxScaler)(nil)

// RowMaxScaler は各行をその行の最大値で割り、プロファイルを[0, 1]に正規化する
// 欠損値(NaN)は0として扱う。最大値が0の行は0のまま残す
type RowMaxScaler struct {
	model.BaseEstimator

	// NFeatures はFit時の列数（分画数）
	NFeatures int
}

// NewRowMaxScaler は新しいRowMaxScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewRowMaxScaler()
//	XScaled, err := scaler.FitTransform(X)
func NewRowMaxScaler() *RowMaxScaler {
	return &RowMaxScaler{}
}

// Fit は列数を記録する。スケールは行ごとに決まるため学習する統計量はない
func (s *RowMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.Wrap(errors.ErrEmptyData, "RowMaxScaler.Fit")
	}
	s.NFeatures = c
	s.SetFitted()
	return nil
}

// Transform は各行を行最大値で割った新しい行列を返す
func (s *RowMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("RowMaxScaler", "Transform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("RowMaxScaler.Transform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		peak := 0.0
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			if math.IsNaN(v) {
				v = 0
			}
			row[j] = v
			peak = math.Max(peak, v)
		}
		if peak > 0 {
			for j := range row {
				row[j] /= peak
			}
		}
		result.SetRow(i, row)
	}
	return result, nil
}

// FitTransform はFitとTransformを続けて実行する
func (s *RowMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// String はスケーラーの文字列表現を返す
func (s *RowMaxScaler) String() string {
	if !s.IsFitted() {
		return "RowMaxScaler()"
	}
	return fmt.Sprintf("RowMaxScaler(n_features=%d)", s.NFeatures)
}
