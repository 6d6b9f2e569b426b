// Package cluster はk-meansクラスタリングを提供します。
// 主に混合モデル(mixture)の初期責務の計算に使われます。
package cluster

import (
	"math"
	"math/rand"
	"sync"

	"github.com/YuminosukeSato/coelurus/core/model"
	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var _ model.Clusterer = (*KMeans)(nil)

// KMeans はLloydアルゴリズムによるk-meansクラスタリング
// 中心はk-means++で初期化され、乱数シードを固定すれば結果は決定的になる
type KMeans struct {
	model.BaseEstimator

	// ハイパーパラメータ
	nClusters   int     // クラスタ数
	init        string  // 初期化方法: "k-means++", "random"
	maxIter     int     // 最大イテレーション数
	nInit       int     // 異なる初期化での実行回数
	randomState int64   // 乱数シード
	tol         float64 // 中心移動量(二乗和)の収束判定

	// 学習パラメータ
	clusterCenters_ [][]float64 // クラスタ中心（nClusters x nFeatures）
	labels_         []int       // 各サンプルのクラスタラベル
	inertia_        float64     // クラスタ内平方和誤差
	nIter_          int         // 実行されたイテレーション数

	// 内部状態
	mu         sync.RWMutex
	rng        *rand.Rand
	nFeatures_ int
}

// KMeansOption はKMeansの設定オプション
type KMeansOption func(*KMeans)

// NewKMeans は新しいKMeansを作成
func NewKMeans(options ...KMeansOption) *KMeans {
	kmeans := &KMeans{
		nClusters: 8,
		init:      "k-means++",
		maxIter:   300,
		nInit:     1,
		tol:       1e-4,
	}
	for _, opt := range options {
		opt(kmeans)
	}
	kmeans.rng = rand.New(rand.NewSource(kmeans.randomState))
	return kmeans
}

// WithKMeansNClusters はクラスタ数を設定
func WithKMeansNClusters(n int) KMeansOption {
	return func(kmeans *KMeans) {
		kmeans.nClusters = n
	}
}

// WithKMeansInit は初期化方法を設定
func WithKMeansInit(init string) KMeansOption {
	return func(kmeans *KMeans) {
		kmeans.init = init
	}
}

// WithKMeansMaxIter は最大イテレーション数を設定
func WithKMeansMaxIter(maxIter int) KMeansOption {
	return func(kmeans *KMeans) {
		kmeans.maxIter = maxIter
	}
}

// WithKMeansNInit は初期化の試行回数を設定
func WithKMeansNInit(nInit int) KMeansOption {
	return func(kmeans *KMeans) {
		kmeans.nInit = nInit
	}
}

// WithKMeansRandomState は乱数シードを設定
func WithKMeansRandomState(seed int64) KMeansOption {
	return func(kmeans *KMeans) {
		kmeans.randomState = seed
	}
}

// WithKMeansTol は収束判定の許容誤差を設定
func WithKMeansTol(tol float64) KMeansOption {
	return func(kmeans *KMeans) {
		kmeans.tol = tol
	}
}

// Fit はモデルを訓練する。yは使用しない
func (kmeans *KMeans) Fit(X, y mat.Matrix) error {
	kmeans.mu.Lock()
	defer kmeans.mu.Unlock()

	rows, cols := X.Dims()
	if kmeans.nClusters < 1 {
		return errors.NewValueError("KMeans.Fit", "n_clusters must be positive")
	}
	if rows < kmeans.nClusters {
		return errors.NewModelFitError("KMeans.Fit", "fewer samples than clusters", kmeans.nClusters, rows)
	}
	kmeans.nFeatures_ = cols

	samples := make([][]float64, rows)
	for i := range samples {
		samples[i] = mat.Row(nil, i, X)
	}

	// 複数回実行して最良の結果を選択
	bestInertia := math.Inf(1)
	for run := 0; run < max(1, kmeans.nInit); run++ {
		centers, labels, inertia, nIter := kmeans.fitSingleRun(samples)
		if inertia < bestInertia {
			bestInertia = inertia
			kmeans.clusterCenters_ = centers
			kmeans.labels_ = labels
			kmeans.nIter_ = nIter
		}
	}
	kmeans.inertia_ = bestInertia

	kmeans.SetFitted()
	return nil
}

// fitSingleRun は単一回の学習を実行
func (kmeans *KMeans) fitSingleRun(samples [][]float64) ([][]float64, []int, float64, int) {
	cols := len(samples[0])
	centers := kmeans.initializeCenters(samples)
	labels := make([]int, len(samples))
	sums := make([][]float64, kmeans.nClusters)
	for c := range sums {
		sums[c] = make([]float64, cols)
	}
	counts := make([]int, kmeans.nClusters)

	iter := 0
	for iter < kmeans.maxIter {
		iter++

		// 割り当て
		for c := range sums {
			counts[c] = 0
			for j := range sums[c] {
				sums[c][j] = 0
			}
		}
		for i, sample := range samples {
			c, _ := findNearestCluster(sample, centers)
			labels[i] = c
			counts[c]++
			for j, v := range sample {
				sums[c][j] += v
			}
		}

		// 更新（空クラスタは中心を維持）
		shift := 0.0
		for c := range centers {
			if counts[c] == 0 {
				continue
			}
			for j := range centers[c] {
				next := sums[c][j] / float64(counts[c])
				d := next - centers[c][j]
				shift += d * d
				centers[c][j] = next
			}
		}

		if shift <= kmeans.tol {
			break
		}
	}

	inertia := 0.0
	for i, sample := range samples {
		c, dist := findNearestCluster(sample, centers)
		labels[i] = c
		inertia += dist
	}
	return centers, labels, inertia, iter
}

// Predict は各サンプルの最近傍クラスタのラベルを返す
func (kmeans *KMeans) Predict(X mat.Matrix) ([]int, error) {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()

	if !kmeans.IsFitted() {
		return nil, errors.NewNotFittedError("KMeans", "Predict")
	}
	rows, cols := X.Dims()
	if cols != kmeans.nFeatures_ {
		return nil, errors.NewDimensionError("KMeans.Predict", kmeans.nFeatures_, cols, 1)
	}

	labels := make([]int, rows)
	sample := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(sample, i, X)
		labels[i], _ = findNearestCluster(sample, kmeans.clusterCenters_)
	}
	return labels, nil
}

// ClusterCenters は学習されたクラスタ中心を返す
func (kmeans *KMeans) ClusterCenters() [][]float64 {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()

	centers := make([][]float64, len(kmeans.clusterCenters_))
	for i := range kmeans.clusterCenters_ {
		centers[i] = append([]float64(nil), kmeans.clusterCenters_[i]...)
	}
	return centers
}

// Labels は学習データのクラスタラベルを返す
func (kmeans *KMeans) Labels() []int {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return append([]int(nil), kmeans.labels_...)
}

// Inertia は慣性（クラスタ内平方和誤差）を返す
func (kmeans *KMeans) Inertia() float64 {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return kmeans.inertia_
}

// NIterations は実行されたイテレーション数を返す
func (kmeans *KMeans) NIterations() int {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return kmeans.nIter_
}

// initializeCenters はクラスタ中心を初期化
func (kmeans *KMeans) initializeCenters(samples [][]float64) [][]float64 {
	if kmeans.init == "random" {
		centers := make([][]float64, kmeans.nClusters)
		for c, idx := range kmeans.rng.Perm(len(samples))[:kmeans.nClusters] {
			centers[c] = append([]float64(nil), samples[idx]...)
		}
		return centers
	}
	return kmeans.initKMeansPlusPlus(samples)
}

// initKMeansPlusPlus はk-means++初期化を実行
func (kmeans *KMeans) initKMeansPlusPlus(samples [][]float64) [][]float64 {
	rows := len(samples)
	centers := make([][]float64, 0, kmeans.nClusters)
	centers = append(centers, append([]float64(nil), samples[kmeans.rng.Intn(rows)]...))

	// 各サンプルから最近傍中心までの距離の二乗
	distances := make([]float64, rows)
	for i, sample := range samples {
		distances[i] = squaredDistance(sample, centers[0])
	}

	for len(centers) < kmeans.nClusters {
		total := 0.0
		for _, d := range distances {
			total += d
		}

		// 全サンプルが既存の中心と一致する場合は先頭から順に選ぶ
		selected := len(centers) % rows
		if total > 0 {
			target := kmeans.rng.Float64() * total
			cumSum := 0.0
			for i, d := range distances {
				cumSum += d
				if cumSum >= target && d > 0 {
					selected = i
					break
				}
			}
		}

		center := append([]float64(nil), samples[selected]...)
		centers = append(centers, center)
		for i, sample := range samples {
			distances[i] = math.Min(distances[i], squaredDistance(sample, center))
		}
	}
	return centers
}

// findNearestCluster は最近傍クラスタとその距離の二乗を返す
func findNearestCluster(sample []float64, centers [][]float64) (int, float64) {
	minDist := math.Inf(1)
	nearest := 0
	for c, center := range centers {
		if dist := squaredDistance(sample, center); dist < minDist {
			minDist = dist
			nearest = c
		}
	}
	return nearest, minDist
}

func squaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}
