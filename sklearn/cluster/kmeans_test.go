package cluster

import (
	"testing"

	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func twoBlobs() *mat.Dense {
	return mat.NewDense(8, 1, []float64{1.0, 1.1, 0.9, 1.05, 10.0, 10.2, 9.8, 10.1})
}

func TestKMeansSeparatesBlobs(t *testing.T) {
	kmeans := NewKMeans(WithKMeansNClusters(2), WithKMeansRandomState(7))
	require.NoError(t, kmeans.Fit(twoBlobs(), nil))

	labels := kmeans.Labels()
	for i := 1; i < 4; i++ {
		assert.Equal(t, labels[0], labels[i])
		assert.Equal(t, labels[4], labels[4+i])
	}
	assert.NotEqual(t, labels[0], labels[4])

	centers := kmeans.ClusterCenters()
	require.Len(t, centers, 2)
	assert.InDelta(t, 1.0125, centers[labels[0]][0], 1e-9)
	assert.InDelta(t, 10.025, centers[labels[4]][0], 1e-9)
	assert.Greater(t, kmeans.Inertia(), 0.0)
	assert.GreaterOrEqual(t, kmeans.NIterations(), 1)
}

func TestKMeansDeterministic(t *testing.T) {
	a := NewKMeans(WithKMeansNClusters(3), WithKMeansRandomState(1))
	b := NewKMeans(WithKMeansNClusters(3), WithKMeansRandomState(1))
	require.NoError(t, a.Fit(twoBlobs(), nil))
	require.NoError(t, b.Fit(twoBlobs(), nil))
	assert.Equal(t, a.ClusterCenters(), b.ClusterCenters())
}

func TestKMeansIdenticalSamples(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{2, 2, 2, 2})
	kmeans := NewKMeans(WithKMeansNClusters(3))
	require.NoError(t, kmeans.Fit(X, nil))
	assert.Len(t, kmeans.ClusterCenters(), 3)
	assert.Equal(t, 0.0, kmeans.Inertia())
}

func TestKMeansErrors(t *testing.T) {
	kmeans := NewKMeans(WithKMeansNClusters(5))

	_, err := kmeans.Predict(twoBlobs())
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = kmeans.Fit(mat.NewDense(2, 1, []float64{1, 2}), nil)
	var fe *errors.ModelFitError
	assert.True(t, errors.As(err, &fe))
}

func TestKMeansPredict(t *testing.T) {
	kmeans := NewKMeans(WithKMeansNClusters(2), WithKMeansInit("random"), WithKMeansNInit(3))
	require.NoError(t, kmeans.Fit(twoBlobs(), nil))

	got, err := kmeans.Predict(mat.NewDense(2, 1, []float64{0.5, 11}))
	require.NoError(t, err)
	labels := kmeans.Labels()
	assert.Equal(t, []int{labels[0], labels[4]}, got)

	_, err = kmeans.Predict(mat.NewDense(1, 2, nil))
	assert.Error(t, err)
}
